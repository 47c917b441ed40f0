// Package testutil provides shared fixtures for point cloud tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// SortedIndexSets returns a copy of sets with each set sorted ascending and
// the sets ordered by their first element, for order-insensitive comparison
// of cluster membership.
func SortedIndexSets[S ~[]int](sets []S) [][]int {
	out := make([][]int, 0, len(sets))
	for _, s := range sets {
		c := append([]int{}, s...)
		sort.Ints(c)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) == 0 || len(out[j]) == 0 {
			return len(out[i]) < len(out[j])
		}
		return out[i][0] < out[j][0]
	})
	return out
}

// PCDText renders xyz points as an ASCII PCD v0.7 document.
func PCDText(points [][3]float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# .PCD v0.7 - Point Cloud Data file format\n")
	fmt.Fprintf(&b, "VERSION 0.7\nFIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nCOUNT 1 1 1\n")
	fmt.Fprintf(&b, "WIDTH %d\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS %d\nDATA ascii\n", len(points), len(points))
	for _, p := range points {
		fmt.Fprintf(&b, "%g %g %g\n", p[0], p[1], p[2])
	}
	return b.String()
}

// WritePCD writes points as an ASCII PCD file named name inside dir and
// returns its path.
func WritePCD(t *testing.T, dir, name string, points [][3]float64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(PCDText(points)), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
