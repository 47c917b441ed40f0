package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/obstacles/internal/lidar/l4perception"
)

// Run statuses stored in lidar_runs.status.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusCancelled = "cancelled"
	RunStatusFailed    = "failed"
)

// ErrRunNotFound is returned when a run ID has no row in lidar_runs.
var ErrRunNotFound = errors.New("run not found")

// Run is one pass of the pipeline over a capture directory.
type Run struct {
	RunID      string `json:"run_id"`
	SensorID   string `json:"sensor_id"`
	DataDir    string `json:"data_dir"`
	ParamsJSON string `json:"params_json"`
	Status     string `json:"status"`
	StartedAt  int64  `json:"started_at"`
	FinishedAt *int64 `json:"finished_at,omitempty"`
}

// FrameRecord is the per-frame summary stored in lidar_frames. The stored
// cluster_count is taken from the clusters passed to RecordFrame.
type FrameRecord struct {
	RunID           string                   `json:"run_id"`
	Seq             int64                    `json:"frame_seq"`
	Path            string                   `json:"path"`
	TSUnixNanos     int64                    `json:"ts_unix_nanos"`
	InputPoints     int                      `json:"input_points"`
	FilteredPoints  int                      `json:"filtered_points"`
	GroundPoints    int                      `json:"ground_points"`
	ObjectPoints    int                      `json:"object_points"`
	Plane           *l4perception.PlaneModel `json:"plane,omitempty"`
	ProcessingNanos int64                    `json:"processing_nanos"`
	OverBudget      bool                     `json:"over_budget"`
}

// ClusterRecord is one stored cluster.
type ClusterRecord struct {
	RunID       string  `json:"run_id"`
	FrameSeq    int64   `json:"frame_seq"`
	ClusterID   int64   `json:"cluster_id"`
	SensorID    string  `json:"sensor_id"`
	TSUnixNanos int64   `json:"ts_unix_nanos"`
	PointsCount int     `json:"points_count"`
	CentroidX   float64 `json:"centroid_x"`
	CentroidY   float64 `json:"centroid_y"`
	CentroidZ   float64 `json:"centroid_z"`
	MinX        float64 `json:"min_x"`
	MinY        float64 `json:"min_y"`
	MinZ        float64 `json:"min_z"`
	MaxX        float64 `json:"max_x"`
	MaxY        float64 `json:"max_y"`
	MaxZ        float64 `json:"max_z"`
	DistanceM   float64 `json:"distance_m"`
	Highlighted bool    `json:"highlighted"`
}

// RunSummary aggregates the stored frames and clusters of one run.
type RunSummary struct {
	RunID                string  `json:"run_id"`
	Status               string  `json:"status"`
	Frames               int     `json:"frames"`
	Clusters             int     `json:"clusters"`
	HighlightedClusters  int     `json:"highlighted_clusters"`
	OverBudgetFrames     int     `json:"over_budget_frames"`
	MeanClustersPerFrame float64 `json:"mean_clusters_per_frame"`
	MeanProcessingMs     float64 `json:"mean_processing_ms"`
	MaxProcessingMs      float64 `json:"max_processing_ms"`
}

// DetectionStore persists detection runs, frame summaries and clusters.
type DetectionStore struct {
	db *sql.DB
}

// NewDetectionStore wraps an open, migrated database.
func NewDetectionStore(db *sql.DB) *DetectionStore {
	return &DetectionStore{db: db}
}

// OpenDetectionStore opens (creating if needed) the database at path and
// applies pending migrations.
func OpenDetectionStore(path string) (*DetectionStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open detection db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open detection db: %w", err)
	}
	if err := MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return NewDetectionStore(db), nil
}

// DB returns the underlying handle.
func (s *DetectionStore) DB() *sql.DB { return s.db }

// Close closes the underlying database.
func (s *DetectionStore) Close() error { return s.db.Close() }

// StartRun inserts a running run. params is stored as JSON for later
// comparison of tuning across runs; nil stores "{}".
func (s *DetectionStore) StartRun(sensorID, dataDir string, params interface{}) (*Run, error) {
	paramsJSON := []byte("{}")
	if params != nil {
		var err error
		if paramsJSON, err = json.Marshal(params); err != nil {
			return nil, fmt.Errorf("marshal run params: %w", err)
		}
	}

	run := &Run{
		RunID:      uuid.New().String(),
		SensorID:   sensorID,
		DataDir:    dataDir,
		ParamsJSON: string(paramsJSON),
		Status:     RunStatusRunning,
		StartedAt:  time.Now().UnixNano(),
	}
	_, err := s.db.Exec(`
		INSERT INTO lidar_runs (run_id, sensor_id, data_dir, params_json, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.RunID, run.SensorID, run.DataDir, run.ParamsJSON, run.Status, run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// GetRun loads a run by ID.
func (s *DetectionStore) GetRun(runID string) (*Run, error) {
	var run Run
	var finished sql.NullInt64
	err := s.db.QueryRow(`
		SELECT run_id, sensor_id, data_dir, params_json, status, started_at, finished_at
		FROM lidar_runs WHERE run_id = ?
	`, runID).Scan(&run.RunID, &run.SensorID, &run.DataDir, &run.ParamsJSON, &run.Status, &run.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if finished.Valid {
		run.FinishedAt = &finished.Int64
	}
	return &run, nil
}

// RecordFrame stores a frame summary and its clusters in one transaction.
func (s *DetectionStore) RecordFrame(frame *FrameRecord, clusters []l4perception.WorldCluster) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin record frame: %w", err)
	}
	defer tx.Rollback()

	var a, b, c, d sql.NullFloat64
	if frame.Plane != nil {
		a = sql.NullFloat64{Float64: frame.Plane.A, Valid: true}
		b = sql.NullFloat64{Float64: frame.Plane.B, Valid: true}
		c = sql.NullFloat64{Float64: frame.Plane.C, Valid: true}
		d = sql.NullFloat64{Float64: frame.Plane.D, Valid: true}
	}
	_, err = tx.Exec(`
		INSERT INTO lidar_frames (
			run_id, frame_seq, path, ts_unix_nanos,
			input_points, filtered_points, ground_points, object_points, cluster_count,
			plane_a, plane_b, plane_c, plane_d,
			processing_nanos, over_budget
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		frame.RunID, frame.Seq, frame.Path, frame.TSUnixNanos,
		frame.InputPoints, frame.FilteredPoints, frame.GroundPoints, frame.ObjectPoints, len(clusters),
		a, b, c, d,
		frame.ProcessingNanos, frame.OverBudget,
	)
	if err != nil {
		return fmt.Errorf("insert frame %d: %w", frame.Seq, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO lidar_clusters (
			run_id, frame_seq, cluster_id, sensor_id, ts_unix_nanos, points_count,
			centroid_x, centroid_y, centroid_z,
			min_x, min_y, min_z, max_x, max_y, max_z,
			distance_m, highlighted
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert cluster: %w", err)
	}
	defer stmt.Close()

	for _, wc := range clusters {
		_, err := stmt.Exec(
			frame.RunID, frame.Seq, wc.ClusterID, wc.SensorID, wc.TSUnixNanos, wc.PointsCount,
			wc.Centroid.X, wc.Centroid.Y, wc.Centroid.Z,
			wc.Bounds.Min.X, wc.Bounds.Min.Y, wc.Bounds.Min.Z,
			wc.Bounds.Max.X, wc.Bounds.Max.Y, wc.Bounds.Max.Z,
			wc.DistanceM, wc.Highlighted,
		)
		if err != nil {
			return fmt.Errorf("insert cluster %d of frame %d: %w", wc.ClusterID, frame.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit frame %d: %w", frame.Seq, err)
	}
	return nil
}

// FinishRun marks a run with a terminal status.
func (s *DetectionStore) FinishRun(runID, status string) error {
	res, err := s.db.Exec(`
		UPDATE lidar_runs SET status = ?, finished_at = ? WHERE run_id = ?
	`, status, time.Now().UnixNano(), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// ListClusters returns the clusters of one frame ordered by cluster ID.
func (s *DetectionStore) ListClusters(runID string, frameSeq int64) ([]ClusterRecord, error) {
	rows, err := s.db.Query(`
		SELECT run_id, frame_seq, cluster_id, sensor_id, ts_unix_nanos, points_count,
			centroid_x, centroid_y, centroid_z,
			min_x, min_y, min_z, max_x, max_y, max_z,
			distance_m, highlighted
		FROM lidar_clusters
		WHERE run_id = ? AND frame_seq = ?
		ORDER BY cluster_id
	`, runID, frameSeq)
	if err != nil {
		return nil, fmt.Errorf("query clusters: %w", err)
	}
	defer rows.Close()

	var out []ClusterRecord
	for rows.Next() {
		var r ClusterRecord
		if err := rows.Scan(
			&r.RunID, &r.FrameSeq, &r.ClusterID, &r.SensorID, &r.TSUnixNanos, &r.PointsCount,
			&r.CentroidX, &r.CentroidY, &r.CentroidZ,
			&r.MinX, &r.MinY, &r.MinZ, &r.MaxX, &r.MaxY, &r.MaxZ,
			&r.DistanceM, &r.Highlighted,
		); err != nil {
			return nil, fmt.Errorf("scan cluster: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunSummary aggregates a run's frames and clusters.
func (s *DetectionStore) RunSummary(runID string) (*RunSummary, error) {
	run, err := s.GetRun(runID)
	if err != nil {
		return nil, err
	}
	sum := &RunSummary{RunID: runID, Status: run.Status}

	var meanNanos, maxNanos sql.NullFloat64
	err = s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(cluster_count), 0), COALESCE(SUM(over_budget), 0),
			AVG(processing_nanos), MAX(processing_nanos)
		FROM lidar_frames WHERE run_id = ?
	`, runID).Scan(&sum.Frames, &sum.Clusters, &sum.OverBudgetFrames, &meanNanos, &maxNanos)
	if err != nil {
		return nil, fmt.Errorf("summarise frames: %w", err)
	}

	err = s.db.QueryRow(`
		SELECT COUNT(*) FROM lidar_clusters WHERE run_id = ? AND highlighted = 1
	`, runID).Scan(&sum.HighlightedClusters)
	if err != nil {
		return nil, fmt.Errorf("summarise clusters: %w", err)
	}

	if sum.Frames > 0 {
		sum.MeanClustersPerFrame = float64(sum.Clusters) / float64(sum.Frames)
	}
	sum.MeanProcessingMs = meanNanos.Float64 / float64(time.Millisecond)
	sum.MaxProcessingMs = maxNanos.Float64 / float64(time.Millisecond)
	return sum, nil
}
