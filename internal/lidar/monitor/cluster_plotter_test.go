package monitor

import (
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/obstacles/internal/lidar/l4perception"
)

func plotFixture() ([]l4perception.WorldPoint, []l4perception.WorldPoint, []l4perception.WorldCluster) {
	var ground []l4perception.WorldPoint
	for x := -5.0; x <= 5; x++ {
		for y := -5.0; y <= 5; y++ {
			ground = append(ground, l4perception.WorldPoint{X: x, Y: y, Z: -1.7})
		}
	}
	objects := []l4perception.WorldPoint{
		{X: 2, Y: 0}, {X: 2.1, Y: 0.1}, {X: 2.2, Y: 0},
		{X: -8, Y: 3}, {X: -8.1, Y: 3.1},
	}
	clusters := []l4perception.WorldCluster{
		{
			ClusterID:   1,
			Indices:     l4perception.Cluster{0, 1, 2},
			PointsCount: 3,
			Bounds:      l4perception.Box{Min: r3.Vector{X: 2}, Max: r3.Vector{X: 2.2, Y: 0.1}},
			Highlighted: true,
		},
		{
			ClusterID:   2,
			Indices:     l4perception.Cluster{3, 4},
			PointsCount: 2,
			Bounds:      l4perception.Box{Min: r3.Vector{X: -8.1, Y: 3}, Max: r3.Vector{X: -8, Y: 3.1}},
		},
	}
	return ground, objects, clusters
}

func TestClusterColor(t *testing.T) {
	assert.Equal(t, color.Color(color.RGBA{R: 255, G: 255, A: 255}), ClusterColor(1))
	assert.Equal(t, color.Color(color.RGBA{B: 255, A: 255}), ClusterColor(2))
	assert.Equal(t, ClusterColor(1), ClusterColor(5), "palette cycles every four clusters")
	assert.Equal(t, ClusterColor(4), ClusterColor(0))

	_, _, clusters := plotFixture()
	assert.Equal(t, highlightColor, BoxColor(clusters[0]))
	assert.Equal(t, ClusterColor(2), BoxColor(clusters[1]))
}

func TestClusterPlotter_PlotFrame(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots")
	cp, err := NewClusterPlotter(dir)
	require.NoError(t, err)
	cp.Size = 200

	ground, objects, clusters := plotFixture()
	path, err := cp.PlotFrame(7, ground, objects, clusters)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "frame_000007.png"), path)
	assert.Equal(t, 1, cp.PlotCount())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	_, err = png.DecodeConfig(f)
	assert.NoError(t, err, "output should be a PNG")
}

func TestClusterPlotter_EmptyFrame(t *testing.T) {
	cp, err := NewClusterPlotter(t.TempDir())
	require.NoError(t, err)
	cp.Size = 100

	_, err = cp.PlotFrame(0, nil, nil, nil)
	assert.NoError(t, err)
}

func TestClusterPlotter_BadIndex(t *testing.T) {
	cp, err := NewClusterPlotter(t.TempDir())
	require.NoError(t, err)

	ground, objects, clusters := plotFixture()
	_, err = cp.PlotFrame(1, ground, objects[:3], clusters)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "references point")
	assert.Equal(t, 0, cp.PlotCount())
}

func TestBoxOutlineIsClosed(t *testing.T) {
	xys := boxOutline(l4perception.Box{Min: r3.Vector{X: -1, Y: -2}, Max: r3.Vector{X: 3, Y: 4}})
	require.Len(t, xys, 5)
	assert.Equal(t, xys[0], xys[4])
}
