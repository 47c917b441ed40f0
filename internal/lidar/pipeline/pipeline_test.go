package pipeline

import (
	"context"
	"errors"
	"io"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/obstacles/internal/config"
	"github.com/banshee-data/obstacles/internal/lidar/l2frames"
	"github.com/banshee-data/obstacles/internal/lidar/l4perception"
	"github.com/banshee-data/obstacles/internal/lidar/monitor"
	"github.com/banshee-data/obstacles/internal/lidar/storage/sqlite"
	"github.com/banshee-data/obstacles/internal/monitoring"
	"github.com/banshee-data/obstacles/internal/timeutil"
)

const groundZ = -1.5

// obstacle returns a 4x4x11 block of points at 0.1 m spacing whose lowest
// layer sits 0.3 m above the ground.
func obstacle(x0, y0 float64) []l2frames.Point {
	var pts []l2frames.Point
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			for k := 0; k <= 10; k++ {
				pts = append(pts, l2frames.Point{
					X: x0 + 0.1*float64(i),
					Y: y0 + 0.1*float64(j),
					Z: groundZ + 0.3 + 0.1*float64(k),
				})
			}
		}
	}
	return pts
}

// syntheticFrame is a flat 4 m x 4 m ground patch with one obstacle ahead
// of the sensor and one behind it beyond the highlight distance.
func syntheticFrame(seq int64) *l2frames.Frame {
	var pts []l2frames.Point
	pts = append(pts, obstacle(2.0, 0.0)...)
	pts = append(pts, obstacle(-5.0, 3.0)...)
	for i := 0; i <= 40; i++ {
		for j := 0; j <= 40; j++ {
			pts = append(pts, l2frames.Point{X: 0.1 * float64(i), Y: -2 + 0.1*float64(j), Z: groundZ})
		}
	}
	return &l2frames.Frame{
		Seq:       seq,
		Path:      "synthetic.pcd",
		SensorID:  "sensor-a",
		Timestamp: time.Unix(1700000000, 0),
		Points:    pts,
	}
}

func testProcessor() *FrameProcessor {
	crop := l4perception.DefaultCropBox()
	return &FrameProcessor{
		Crop:   &crop,
		Ground: l4perception.NewRANSACPlaneSegmenter(),
		Clusterer: l4perception.NewEuclideanClusterer(l4perception.ClusterParams{
			Radius:  0.15,
			MinSize: 20,
			MaxSize: 1000,
		}),
	}
}

func quietLogs(t *testing.T) {
	t.Helper()
	orig := monitoring.Logf
	monitoring.SetLogger(t.Logf)
	t.Cleanup(func() { monitoring.SetLogger(orig) })
}

func TestFrameProcessor_Process(t *testing.T) {
	res, err := testProcessor().Process(syntheticFrame(3))
	require.NoError(t, err)

	assert.Equal(t, int64(3), res.Seq)
	assert.Equal(t, 2*176+41*41, res.InputPoints)
	assert.Equal(t, res.InputPoints, res.FilteredPoints)
	assert.Len(t, res.Ground, 41*41)
	assert.Len(t, res.Objects, 2*176)
	assert.InDelta(t, 1.0, math.Abs(res.Plane.C), 1e-6)
	assert.InDelta(t, 0.0, res.Plane.Distance(res.Ground[0].Vector()), 1e-6)

	require.Len(t, res.Clusters, 2)
	ahead, behind := res.Clusters[0], res.Clusters[1]
	assert.Equal(t, int64(1), ahead.ClusterID)
	assert.Equal(t, 176, ahead.PointsCount)
	assert.InDelta(t, 2.15, ahead.Centroid.X, 1e-9)
	assert.True(t, ahead.Highlighted)
	assert.Equal(t, "sensor-a", ahead.SensorID)

	assert.Equal(t, int64(2), behind.ClusterID)
	assert.InDelta(t, -4.85, behind.Centroid.X, 1e-9)
	assert.False(t, behind.Highlighted, "behind the sensor and beyond 5 m")
	assert.Equal(t, 1, res.HighlightedCount())

	assert.True(t, res.Timings.Total >= res.Timings.Cluster)
}

func TestFrameProcessor_CropAndVoxel(t *testing.T) {
	fp := testProcessor()
	crop := l4perception.NewCropBox(r3Vec(-1, -3, -3), r3Vec(5, 3, 3))
	fp.Crop = &crop
	fp.VoxelLeafSize = 0.5

	res, err := fp.Process(syntheticFrame(0))
	require.NoError(t, err)
	assert.Less(t, res.FilteredPoints, res.InputPoints)
	for _, p := range append(res.Ground, res.Objects...) {
		assert.True(t, crop.Contains(p.Vector()), "point %v outside crop", p)
	}
}

func TestFrameProcessor_NoPlane(t *testing.T) {
	frame := &l2frames.Frame{Points: []l2frames.Point{{X: 1}, {X: 2}}}
	_, err := testProcessor().Process(frame)
	assert.ErrorIs(t, err, l4perception.ErrNoPlane)
}

func TestFrameProcessor_InvalidParams(t *testing.T) {
	fp := testProcessor()
	fp.Clusterer.SetParams(l4perception.ClusterParams{Radius: -1, MaxSize: 10})
	_, err := fp.Process(syntheticFrame(0))
	assert.ErrorIs(t, err, l4perception.ErrInvalidParameter)

	_, err = (&FrameProcessor{}).Process(syntheticFrame(0))
	assert.Error(t, err)
}

func TestNewDefaultFrameProcessor(t *testing.T) {
	fp := NewDefaultFrameProcessor()
	assert.Equal(t, l4perception.DefaultVoxelLeafSize, fp.VoxelLeafSize)
	assert.Equal(t, l4perception.DefaultClusterParams(), fp.Clusterer.GetParams())
}

func TestNewFrameProcessorFromConfig(t *testing.T) {
	fp, err := NewFrameProcessorFromConfig(config.MustLoadDefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 0.1, fp.VoxelLeafSize)
	assert.Equal(t, l4perception.DefaultCropBox(), *fp.Crop)
	assert.Equal(t, l4perception.DefaultClusterParams(), fp.Clusterer.GetParams())

	truncate := config.OverflowTruncate
	balanced := true
	fp, err = NewFrameProcessorFromConfig(&config.TuningConfig{ClusterOverflow: &truncate, BalancedIndex: &balanced})
	require.NoError(t, err)
	params := fp.Clusterer.GetParams()
	assert.Equal(t, l4perception.OverflowTruncate, params.Overflow)
	assert.True(t, params.Balanced)

	bogus := "split"
	_, err = NewFrameProcessorFromConfig(&config.TuningConfig{ClusterOverflow: &bogus})
	assert.ErrorIs(t, err, l4perception.ErrInvalidParameter)

	small := 10
	_, err = NewFrameProcessorFromConfig(&config.TuningConfig{MaxClusterSize: &small})
	assert.ErrorIs(t, err, l4perception.ErrInvalidParameter, "max below default min")
}

// sliceSource replays frames from memory.
type sliceSource struct {
	frames []*l2frames.Frame
	pos    int
}

func (s *sliceSource) Next(ctx context.Context) (*l2frames.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos == len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

func collect(results *[]*FrameResult) ResultSink {
	return SinkFunc(func(_ context.Context, res *FrameResult) error {
		*results = append(*results, res)
		return nil
	})
}

func TestRunner_Run(t *testing.T) {
	quietLogs(t)
	src := &sliceSource{frames: []*l2frames.Frame{
		syntheticFrame(0),
		{Seq: 1, Points: []l2frames.Point{{X: 1}}}, // no plane
		syntheticFrame(2),
	}}

	var got []*FrameResult
	r := &Runner{Source: src, Processor: testProcessor(), Sinks: []ResultSink{collect(&got)}}
	stats, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Frames)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 4, stats.Clusters)
	assert.Equal(t, 2, stats.Highlighted)
	assert.Equal(t, 0, stats.OverBudget)
	require.Len(t, got, 2)
	assert.Equal(t, []int64{0, 2}, []int64{got[0].Seq, got[1].Seq})
}

func TestRunner_MaxFramesAndBudget(t *testing.T) {
	quietLogs(t)
	src := &sliceSource{frames: []*l2frames.Frame{syntheticFrame(0), syntheticFrame(1), syntheticFrame(2)}}

	var got []*FrameResult
	r := &Runner{
		Source:      src,
		Processor:   testProcessor(),
		Sinks:       []ResultSink{collect(&got)},
		MaxFrames:   2,
		FrameBudget: time.Nanosecond,
	}
	stats, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Frames)
	assert.Equal(t, 2, stats.OverBudget)
	for _, res := range got {
		assert.True(t, res.OverBudget)
	}
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &sliceSource{frames: []*l2frames.Frame{syntheticFrame(0), syntheticFrame(1)}}

	r := &Runner{
		Source:    src,
		Processor: testProcessor(),
		Sinks: []ResultSink{SinkFunc(func(context.Context, *FrameResult) error {
			cancel()
			return nil
		})},
	}
	stats, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, stats.Frames)
}

func TestRunner_PaceHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &Runner{Pace: true, FrameBudget: time.Hour}
	assert.ErrorIs(t, r.pace(ctx, 0), context.Canceled)

	r.Pace = false
	assert.NoError(t, r.pace(ctx, 0))
}

func TestRunner_PaceWaitsOutBudget(t *testing.T) {
	clock := timeutil.NewManualClock(time.Unix(0, 0))
	r := &Runner{Pace: true, FrameBudget: 100 * time.Millisecond, Clock: clock}

	done := make(chan error, 1)
	go func() { done <- r.pace(context.Background(), 30*time.Millisecond) }()

	require.Eventually(t, func() bool { return clock.Pending() == 1 }, time.Second, time.Millisecond)
	select {
	case <-done:
		t.Fatal("pace returned before the budget elapsed")
	default:
	}
	clock.Advance(70 * time.Millisecond)
	require.NoError(t, <-done)
	assert.Equal(t, []time.Duration{70 * time.Millisecond}, clock.Timers())

	// Over budget: no wait at all.
	assert.NoError(t, r.pace(context.Background(), 150*time.Millisecond))
	assert.Len(t, clock.Timers(), 1)
}

func TestRunner_SinkError(t *testing.T) {
	boom := errors.New("disk full")
	r := &Runner{
		Source:    &sliceSource{frames: []*l2frames.Frame{syntheticFrame(0)}},
		Processor: testProcessor(),
		Sinks: []ResultSink{SinkFunc(func(context.Context, *FrameResult) error {
			return boom
		})},
	}
	_, err := r.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRunner_SourceError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeFile(filepath.Join(dir, "bad.pcd"), "VERSION 0.7\n"))
	src, err := l2frames.NewFrameSource(l2frames.FrameSourceConfig{Dir: dir})
	require.NoError(t, err)

	r := &Runner{Source: src, Processor: testProcessor()}
	_, err = r.Run(context.Background())
	assert.ErrorIs(t, err, l2frames.ErrUnsupportedPCD)
}

func TestSinks(t *testing.T) {
	quietLogs(t)
	dir := t.TempDir()

	store, err := sqlite.OpenDetectionStore(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	defer store.Close()
	run, err := store.StartRun("sensor-a", dir, nil)
	require.NoError(t, err)

	plotter, err := monitor.NewClusterPlotter(filepath.Join(dir, "plots"))
	require.NoError(t, err)
	plotter.Size = 150
	report := monitor.NewRunReport("test", 0)

	r := &Runner{
		Source:    &sliceSource{frames: []*l2frames.Frame{syntheticFrame(0), syntheticFrame(1), syntheticFrame(2)}},
		Processor: testProcessor(),
		Sinks: []ResultSink{
			&StoreSink{Store: store, RunID: run.RunID},
			&PlotSink{Plotter: plotter, Every: 2},
			&ReportSink{Report: report},
		},
	}
	_, err = r.Run(context.Background())
	require.NoError(t, err)

	clusters, err := store.ListClusters(run.RunID, 1)
	require.NoError(t, err)
	require.Len(t, clusters, 2)
	assert.True(t, clusters[0].Highlighted)

	sum, err := store.RunSummary(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Frames)
	assert.Equal(t, 6, sum.Clusters)
	assert.Equal(t, 3, sum.HighlightedClusters)

	assert.Equal(t, 2, plotter.PlotCount(), "frames 0 and 2")
	assert.Equal(t, 3, report.FrameCount())
}
