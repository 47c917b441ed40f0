package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/obstacles/internal/lidar/l4perception"
)

var (
	// groundColor is used for every ground-plane inlier.
	groundColor = color.RGBA{G: 255, A: 255}
	// highlightColor outlines clusters ahead of or close to the sensor.
	highlightColor = color.RGBA{R: 255, A: 255}
	// clusterPalette cycles by cluster ID: yellow, blue, magenta, cyan.
	clusterPalette = []color.Color{
		color.RGBA{R: 255, G: 255, A: 255},
		color.RGBA{B: 255, A: 255},
		color.RGBA{R: 255, B: 255, A: 255},
		color.RGBA{G: 255, B: 255, A: 255},
	}
)

// ClusterColor returns the point colour for a 1-based cluster ID.
func ClusterColor(clusterID int64) color.Color {
	i := (clusterID - 1) % int64(len(clusterPalette))
	if i < 0 {
		i += int64(len(clusterPalette))
	}
	return clusterPalette[i]
}

// BoxColor returns the outline colour for a cluster's bounding box.
func BoxColor(wc l4perception.WorldCluster) color.Color {
	if wc.Highlighted {
		return highlightColor
	}
	return ClusterColor(wc.ClusterID)
}

// ClusterPlotter writes a top-down PNG for each processed frame: ground
// points, cluster points and cluster bounding boxes.
type ClusterPlotter struct {
	mu        sync.Mutex
	outputDir string
	plotted   int

	// Size is the side length of each square image.
	Size vg.Length
}

// NewClusterPlotter creates outputDir if needed.
func NewClusterPlotter(outputDir string) (*ClusterPlotter, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	return &ClusterPlotter{outputDir: outputDir, Size: 8 * vg.Inch}, nil
}

// OutputDir returns the directory plots are written to.
func (cp *ClusterPlotter) OutputDir() string { return cp.outputDir }

// PlotCount returns the number of frames plotted so far.
func (cp *ClusterPlotter) PlotCount() int {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return cp.plotted
}

// PlotFrame renders one frame. Cluster indices refer into objects. It returns
// the path of the written file.
func (cp *ClusterPlotter) PlotFrame(seq int64, ground, objects []l4perception.WorldPoint, clusters []l4perception.WorldCluster) (string, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Frame %d - %d clusters", seq, len(clusters))
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"
	p.Add(plotter.NewGrid())

	if len(ground) > 0 {
		xys := make(plotter.XYs, len(ground))
		for i, pt := range ground {
			xys[i] = plotter.XY{X: pt.X, Y: pt.Y}
		}
		s, err := plotter.NewScatter(xys)
		if err != nil {
			return "", fmt.Errorf("ground scatter: %w", err)
		}
		s.GlyphStyle.Color = groundColor
		s.GlyphStyle.Radius = vg.Points(0.5)
		p.Add(s)
		p.Legend.Add("ground", s)
	}

	for _, wc := range clusters {
		xys := make(plotter.XYs, 0, len(wc.Indices))
		for _, i := range wc.Indices {
			if i < 0 || i >= len(objects) {
				return "", fmt.Errorf("cluster %d references point %d of %d", wc.ClusterID, i, len(objects))
			}
			xys = append(xys, plotter.XY{X: objects[i].X, Y: objects[i].Y})
		}
		s, err := plotter.NewScatter(xys)
		if err != nil {
			return "", fmt.Errorf("cluster %d scatter: %w", wc.ClusterID, err)
		}
		s.GlyphStyle.Color = ClusterColor(wc.ClusterID)
		s.GlyphStyle.Radius = vg.Points(1)
		p.Add(s)

		outline, err := plotter.NewLine(boxOutline(wc.Bounds))
		if err != nil {
			return "", fmt.Errorf("cluster %d box: %w", wc.ClusterID, err)
		}
		outline.Color = BoxColor(wc)
		outline.Width = vg.Points(1)
		p.Add(outline)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	path := filepath.Join(cp.outputDir, fmt.Sprintf("frame_%06d.png", seq))
	if err := p.Save(cp.Size, cp.Size, path); err != nil {
		return "", fmt.Errorf("save frame plot: %w", err)
	}

	cp.mu.Lock()
	cp.plotted++
	cp.mu.Unlock()
	return path, nil
}

// boxOutline returns the closed top-down rectangle of an AABB.
func boxOutline(b l4perception.Box) plotter.XYs {
	return plotter.XYs{
		{X: b.Min.X, Y: b.Min.Y},
		{X: b.Max.X, Y: b.Min.Y},
		{X: b.Max.X, Y: b.Max.Y},
		{X: b.Min.X, Y: b.Max.Y},
		{X: b.Min.X, Y: b.Min.Y},
	}
}
