package pipeline

import (
	"context"
	"sync"

	"github.com/banshee-data/obstacles/internal/lidar/monitor"
	"github.com/banshee-data/obstacles/internal/lidar/storage/sqlite"
)

// StoreSink records every frame and its clusters under one run.
type StoreSink struct {
	Store *sqlite.DetectionStore
	RunID string
}

// HandleFrame writes the frame summary and clusters.
func (s *StoreSink) HandleFrame(_ context.Context, res *FrameResult) error {
	plane := res.Plane
	return s.Store.RecordFrame(&sqlite.FrameRecord{
		RunID:           s.RunID,
		Seq:             res.Seq,
		Path:            res.Path,
		TSUnixNanos:     res.Timestamp.UnixNano(),
		InputPoints:     res.InputPoints,
		FilteredPoints:  res.FilteredPoints,
		GroundPoints:    len(res.Ground),
		ObjectPoints:    len(res.Objects),
		Plane:           &plane,
		ProcessingNanos: res.Timings.Total.Nanoseconds(),
		OverBudget:      res.OverBudget,
	}, res.Clusters)
}

// PlotSink writes a PNG for every Every-th frame. Plot failures are logged
// and do not stop the run.
type PlotSink struct {
	Plotter *monitor.ClusterPlotter
	Every   int // <= 1 plots every frame

	mu   sync.Mutex
	seen int
}

// HandleFrame plots the frame when it falls on the sampling interval.
func (s *PlotSink) HandleFrame(_ context.Context, res *FrameResult) error {
	s.mu.Lock()
	n := s.seen
	s.seen++
	s.mu.Unlock()
	if s.Every > 1 && n%s.Every != 0 {
		return nil
	}

	path, err := s.Plotter.PlotFrame(res.Seq, res.Ground, res.Objects, res.Clusters)
	if err != nil {
		opsf("[Plot] Frame %d: %v", res.Seq, err)
		return nil
	}
	tracef("[Plot] Wrote %s", path)
	return nil
}

// ReportSink feeds the run report.
type ReportSink struct {
	Report *monitor.RunReport
}

// HandleFrame adds the frame to the report.
func (s *ReportSink) HandleFrame(_ context.Context, res *FrameResult) error {
	s.Report.AddFrame(res.Seq, res.Clusters, res.Timings.Total)
	return nil
}

var (
	_ ResultSink = (*StoreSink)(nil)
	_ ResultSink = (*PlotSink)(nil)
	_ ResultSink = (*ReportSink)(nil)
)
