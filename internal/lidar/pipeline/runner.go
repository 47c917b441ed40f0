package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/obstacles/internal/lidar/l4perception"
	"github.com/banshee-data/obstacles/internal/monitoring"
	"github.com/banshee-data/obstacles/internal/timeutil"
)

// RunStats summarises a Runner.Run call.
type RunStats struct {
	Frames       int // frames processed and delivered to sinks
	Skipped      int // frames with no ground plane
	OverBudget   int // frames whose processing exceeded FrameBudget
	Clusters     int
	Highlighted  int
	TotalElapsed time.Duration
}

// Runner drives a FrameSource through a FrameProcessor, one frame at a time.
type Runner struct {
	Source    FrameSource
	Processor *FrameProcessor
	Sinks     []ResultSink

	// FrameBudget is the processing time allowed per frame; overruns are
	// logged and flagged on the result. Zero disables the check.
	FrameBudget time.Duration
	// Pace, when set, sleeps out the rest of FrameBudget after each frame so
	// a replay runs at sensor rate.
	Pace bool
	// MaxFrames stops the run after this many frames; zero means no limit.
	MaxFrames int
	// Clock defaults to the wall clock.
	Clock timeutil.Clock
}

func (r *Runner) clock() timeutil.Clock {
	if r.Clock == nil {
		return timeutil.RealClock{}
	}
	return r.Clock
}

// Run processes frames until the source is exhausted, MaxFrames is reached,
// or ctx is done. Cancellation is checked between frames and returns
// ctx.Err() with the stats gathered so far. A sink error aborts the run.
func (r *Runner) Run(ctx context.Context) (RunStats, error) {
	var stats RunStats
	clock := r.clock()
	start := clock.Now()
	defer func() { stats.TotalElapsed = clock.Since(start) }()

	for r.MaxFrames <= 0 || stats.Frames+stats.Skipped < r.MaxFrames {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		frame, err := r.Source.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("next frame: %w", err)
		}

		frameStart := clock.Now()
		res, err := r.Processor.Process(frame)
		if errors.Is(err, l4perception.ErrNoPlane) {
			stats.Skipped++
			opsf("[Frame %d] Skipped %s: %v", frame.Seq, frame.Path, err)
			if err := r.pace(ctx, clock.Since(frameStart)); err != nil {
				return stats, err
			}
			continue
		}
		if err != nil {
			return stats, err
		}

		res.OverBudget = monitoring.LogSlow(fmt.Sprintf("frame %d", res.Seq), res.Timings.Total, r.FrameBudget)
		if res.OverBudget {
			stats.OverBudget++
		}
		stats.Frames++
		stats.Clusters += len(res.Clusters)
		stats.Highlighted += res.HighlightedCount()

		diagf("[Frame %d] Loaded %d points from %s; %d after filtering, %d ground, %d clusters (%d highlighted) in %v",
			res.Seq, res.InputPoints, res.Path, res.FilteredPoints, len(res.Ground),
			len(res.Clusters), res.HighlightedCount(), res.Timings.Total.Round(time.Microsecond))

		for _, sink := range r.Sinks {
			if err := sink.HandleFrame(ctx, res); err != nil {
				return stats, fmt.Errorf("frame %d sink: %w", res.Seq, err)
			}
		}

		if err := r.pace(ctx, clock.Since(frameStart)); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// pace waits out the remainder of the frame budget when pacing is enabled.
func (r *Runner) pace(ctx context.Context, elapsed time.Duration) error {
	if !r.Pace || r.FrameBudget <= 0 || elapsed >= r.FrameBudget {
		return nil
	}
	t := r.clock().NewTimer(r.FrameBudget - elapsed)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C():
		return nil
	}
}
