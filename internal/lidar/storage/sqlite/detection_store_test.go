package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/obstacles/internal/lidar/l4perception"
	"github.com/banshee-data/obstacles/internal/monitoring"
)

func setupDetectionStore(t *testing.T) *DetectionStore {
	t.Helper()
	orig := monitoring.Logf
	monitoring.SetLogger(t.Logf)
	t.Cleanup(func() { monitoring.SetLogger(orig) })

	store, err := OpenDetectionStore(filepath.Join(t.TempDir(), "detections.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testClusters() []l4perception.WorldCluster {
	return []l4perception.WorldCluster{
		{
			ClusterID:   1,
			SensorID:    "sensor-a",
			TSUnixNanos: 42,
			PointsCount: 120,
			Centroid:    r3.Vector{X: 8, Y: 1, Z: 0.5},
			Bounds:      l4perception.Box{Min: r3.Vector{X: 7, Y: 0, Z: 0}, Max: r3.Vector{X: 9, Y: 2, Z: 1}},
			DistanceM:   8.06,
			Highlighted: true,
		},
		{
			ClusterID:   2,
			SensorID:    "sensor-a",
			TSUnixNanos: 42,
			PointsCount: 60,
			Centroid:    r3.Vector{X: -12, Y: 3, Z: 0.2},
			Bounds:      l4perception.Box{Min: r3.Vector{X: -13, Y: 2, Z: 0}, Max: r3.Vector{X: -11, Y: 4, Z: 0.4}},
			DistanceM:   12.37,
		},
	}
}

func TestMigrateVersion(t *testing.T) {
	store := setupDetectionStore(t)

	version, dirty, err := MigrateVersion(store.DB())
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// Re-running is a no-op.
	require.NoError(t, MigrateUp(store.DB()))

	require.NoError(t, MigrateDown(store.DB()))
	version, _, err = MigrateVersion(store.DB())
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
}

func TestDetectionStore_RunLifecycle(t *testing.T) {
	store := setupDetectionStore(t)

	run, err := store.StartRun("sensor-a", "/data/capture", map[string]float64{"cluster_tolerance": 0.2})
	require.NoError(t, err)
	require.NotEmpty(t, run.RunID)
	assert.Equal(t, RunStatusRunning, run.Status)

	plane := &l4perception.PlaneModel{C: 1, D: 1.7}
	require.NoError(t, store.RecordFrame(&FrameRecord{
		RunID:           run.RunID,
		Seq:             0,
		Path:            "/data/capture/0000.pcd",
		TSUnixNanos:     42,
		InputPoints:     1000,
		FilteredPoints:  400,
		GroundPoints:    220,
		ObjectPoints:    180,
		Plane:           plane,
		ProcessingNanos: 4_000_000,
	}, testClusters()))
	require.NoError(t, store.RecordFrame(&FrameRecord{
		RunID:           run.RunID,
		Seq:             1,
		Path:            "/data/capture/0001.pcd",
		ProcessingNanos: 12_000_000,
		OverBudget:      true,
	}, nil))

	clusters, err := store.ListClusters(run.RunID, 0)
	require.NoError(t, err)
	require.Len(t, clusters, 2)
	assert.Equal(t, int64(1), clusters[0].ClusterID)
	assert.Equal(t, 120, clusters[0].PointsCount)
	assert.Equal(t, 8.0, clusters[0].CentroidX)
	assert.Equal(t, 9.0, clusters[0].MaxX)
	assert.True(t, clusters[0].Highlighted)
	assert.False(t, clusters[1].Highlighted)
	assert.Equal(t, "sensor-a", clusters[1].SensorID)

	empty, err := store.ListClusters(run.RunID, 1)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for seq, want := range []int{2, 0} {
		var stored int
		require.NoError(t, store.DB().QueryRow(
			`SELECT cluster_count FROM lidar_frames WHERE run_id = ? AND frame_seq = ?`,
			run.RunID, seq).Scan(&stored))
		assert.Equal(t, want, stored, "frame %d cluster_count", seq)
	}

	require.NoError(t, store.FinishRun(run.RunID, RunStatusCompleted))

	sum, err := store.RunSummary(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, sum.Status)
	assert.Equal(t, 2, sum.Frames)
	assert.Equal(t, 2, sum.Clusters)
	assert.Equal(t, 1, sum.HighlightedClusters)
	assert.Equal(t, 1, sum.OverBudgetFrames)
	assert.InDelta(t, 1.0, sum.MeanClustersPerFrame, 1e-9)
	assert.InDelta(t, 8.0, sum.MeanProcessingMs, 1e-9)
	assert.InDelta(t, 12.0, sum.MaxProcessingMs, 1e-9)

	got, err := store.GetRun(run.RunID)
	require.NoError(t, err)
	require.NotNil(t, got.FinishedAt)
	assert.JSONEq(t, `{"cluster_tolerance":0.2}`, got.ParamsJSON)
}

func TestDetectionStore_DuplicateFrameRollsBack(t *testing.T) {
	store := setupDetectionStore(t)
	run, err := store.StartRun("sensor-a", "/data", nil)
	require.NoError(t, err)

	frame := &FrameRecord{RunID: run.RunID, Seq: 3}
	require.NoError(t, store.RecordFrame(frame, testClusters()[:1]))
	assert.Error(t, store.RecordFrame(frame, testClusters()))

	clusters, err := store.ListClusters(run.RunID, 3)
	require.NoError(t, err)
	assert.Len(t, clusters, 1, "failed insert must not leave partial clusters")
}

func TestDetectionStore_FrameRequiresRun(t *testing.T) {
	store := setupDetectionStore(t)
	err := store.RecordFrame(&FrameRecord{RunID: "no-such-run"}, nil)
	assert.Error(t, err, "foreign keys should reject frames for unknown runs")
}

func TestDetectionStore_UnknownRun(t *testing.T) {
	store := setupDetectionStore(t)

	_, err := store.GetRun("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = store.RunSummary("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	assert.ErrorIs(t, store.FinishRun("missing", RunStatusFailed), ErrRunNotFound)
}

func TestDetectionStore_EmptyRunSummary(t *testing.T) {
	store := setupDetectionStore(t)
	run, err := store.StartRun("sensor-a", "/data", nil)
	require.NoError(t, err)

	sum, err := store.RunSummary(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Frames)
	assert.Equal(t, 0.0, sum.MeanClustersPerFrame)
	assert.Equal(t, 0.0, sum.MeanProcessingMs)
	assert.Equal(t, "{}", run.ParamsJSON)
}
