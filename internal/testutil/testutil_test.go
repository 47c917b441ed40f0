package testutil

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSortedIndexSets(t *testing.T) {
	t.Parallel()

	type cluster []int
	got := SortedIndexSets([]cluster{{9, 7}, {3, 1, 2}, {5}})
	want := [][]int{{1, 2, 3}, {5}, {7, 9}}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Fatalf("set %d = %v, want %v", i, got[i], want[i])
			}
		}
	}
}

func TestWritePCD(t *testing.T) {
	t.Parallel()

	path := WritePCD(t, t.TempDir(), "frame.pcd", [][3]float64{{1, 2, 3}, {4.5, 5, 6}})
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	text := string(data)
	for _, want := range []string{"FIELDS x y z", "POINTS 2", "DATA ascii", "1 2 3\n", "4.5 5 6\n"} {
		if !strings.Contains(text, want) {
			t.Errorf("PCD output missing %q:\n%s", want, text)
		}
	}
}
