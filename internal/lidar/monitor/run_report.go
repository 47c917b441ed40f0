package monitor

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/obstacles/internal/lidar/l4perception"
)

// maxReportCentroids bounds the scatter series; later centroids are counted
// but not drawn.
const maxReportCentroids = 20000

type reportFrame struct {
	seq          int64
	clusters     int
	highlighted  int
	processingMs float64
}

// RunReport accumulates per-frame results and renders an HTML summary page:
// a top-down scatter of cluster centroids, clusters per frame, and frame
// processing time.
type RunReport struct {
	mu       sync.Mutex
	title    string
	budgetMs float64

	frames    []reportFrame
	normal    []opts.ScatterData
	highlight []opts.ScatterData
	dropped   int
}

// NewRunReport creates an empty report. A positive budget is drawn as a
// reference line on the processing-time chart.
func NewRunReport(title string, budget time.Duration) *RunReport {
	return &RunReport{
		title:    title,
		budgetMs: float64(budget) / float64(time.Millisecond),
	}
}

// AddFrame records one frame's clusters and processing time.
func (r *RunReport) AddFrame(seq int64, clusters []l4perception.WorldCluster, processing time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f := reportFrame{
		seq:          seq,
		clusters:     len(clusters),
		processingMs: float64(processing) / float64(time.Millisecond),
	}
	for _, wc := range clusters {
		if wc.Highlighted {
			f.highlighted++
		}
		if len(r.normal)+len(r.highlight) >= maxReportCentroids {
			r.dropped++
			continue
		}
		pt := opts.ScatterData{Value: []interface{}{wc.Centroid.X, wc.Centroid.Y, wc.PointsCount}}
		if wc.Highlighted {
			r.highlight = append(r.highlight, pt)
		} else {
			r.normal = append(r.normal, pt)
		}
	}
	r.frames = append(r.frames, f)
}

// FrameCount returns the number of frames recorded.
func (r *RunReport) FrameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// Render writes the report page as HTML.
func (r *RunReport) Render(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: r.title, Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Cluster Centroids",
			Subtitle: fmt.Sprintf("frames=%d centroids=%d omitted=%d", len(r.frames), len(r.normal)+len(r.highlight), r.dropped),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("clusters", r.normal,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 5}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "#35b779"}),
	)
	scatter.AddSeries("highlighted", r.highlight,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 7}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ff0000"}),
	)

	x := make([]string, len(r.frames))
	counts := make([]opts.BarData, len(r.frames))
	highlighted := make([]opts.BarData, len(r.frames))
	timings := make([]opts.LineData, len(r.frames))
	budget := make([]opts.LineData, len(r.frames))
	for i, f := range r.frames {
		x[i] = strconv.FormatInt(f.seq, 10)
		counts[i] = opts.BarData{Value: f.clusters}
		highlighted[i] = opts.BarData{Value: f.highlighted}
		timings[i] = opts.LineData{Value: f.processingMs}
		budget[i] = opts.LineData{Value: r.budgetMs}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Clusters per Frame"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
	)
	bar.SetXAxis(x).
		AddSeries("clusters", counts).
		AddSeries("highlighted", highlighted, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ff0000"}))

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Processing Time"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ms"}),
	)
	line.SetXAxis(x).AddSeries("processing", timings)
	if r.budgetMs > 0 {
		line.AddSeries("budget", budget, charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}))
	}

	page := components.NewPage()
	page.PageTitle = r.title
	page.AddCharts(scatter, bar, line)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render run report: %w", err)
	}
	return nil
}

// WriteFile renders the report to path.
func (r *RunReport) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create run report: %w", err)
	}
	if err := r.Render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
