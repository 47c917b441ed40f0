package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/obstacles/internal/lidar/l2frames"
	"github.com/banshee-data/obstacles/internal/lidar/l4perception"
)

// StageTimings records wall time spent in each perception stage.
type StageTimings struct {
	Voxel   time.Duration
	Crop    time.Duration
	Ground  time.Duration
	Cluster time.Duration
	Total   time.Duration
}

// FrameResult is the output of one processed frame.
type FrameResult struct {
	Seq       int64
	Path      string
	SensorID  string
	Timestamp time.Time

	InputPoints    int // points read from the file
	FilteredPoints int // after voxel grid and crop box
	Plane          l4perception.PlaneModel
	Ground         []l4perception.WorldPoint
	Objects        []l4perception.WorldPoint
	Clusters       []l4perception.WorldCluster // Indices refer into Objects

	Timings    StageTimings
	OverBudget bool // set by the Runner
}

// FrameProcessor runs the perception stages over a single frame.
// Process is not safe for concurrent use when Clusterer is not.
type FrameProcessor struct {
	VoxelLeafSize float64 // <= 0 disables downsampling
	Crop          *l4perception.CropBox
	Ground        l4perception.GroundRemover
	Clusterer     l4perception.ClustererInterface
}

// NewDefaultFrameProcessor returns a processor with production defaults.
func NewDefaultFrameProcessor() *FrameProcessor {
	crop := l4perception.DefaultCropBox()
	return &FrameProcessor{
		VoxelLeafSize: l4perception.DefaultVoxelLeafSize,
		Crop:          &crop,
		Ground:        l4perception.NewRANSACPlaneSegmenter(),
		Clusterer:     l4perception.NewDefaultEuclideanClusterer(),
	}
}

// ToWorldPoints converts a frame's sensor points for perception.
func ToWorldPoints(frame *l2frames.Frame) []l4perception.WorldPoint {
	out := make([]l4perception.WorldPoint, len(frame.Points))
	for i, p := range frame.Points {
		out[i] = l4perception.WorldPoint{
			X:         p.X,
			Y:         p.Y,
			Z:         p.Z,
			Intensity: p.Intensity,
			Timestamp: frame.Timestamp,
			SensorID:  frame.SensorID,
		}
	}
	return out
}

// Process runs voxel grid, crop box, ground segmentation and clustering.
// A frame where no ground plane can be fitted returns an error wrapping
// l4perception.ErrNoPlane; callers skip such frames.
func (fp *FrameProcessor) Process(frame *l2frames.Frame) (*FrameResult, error) {
	if fp.Ground == nil || fp.Clusterer == nil {
		return nil, errors.New("frame processor needs a ground remover and a clusterer")
	}

	start := time.Now()
	res := &FrameResult{
		Seq:         frame.Seq,
		Path:        frame.Path,
		SensorID:    frame.SensorID,
		Timestamp:   frame.Timestamp,
		InputPoints: len(frame.Points),
	}
	points := ToWorldPoints(frame)

	// Stage 1: Voxel grid downsampling
	stageStart := time.Now()
	if fp.VoxelLeafSize > 0 {
		points = l4perception.VoxelGrid(points, fp.VoxelLeafSize)
	}
	res.Timings.Voxel = time.Since(stageStart)
	tracef("[Frame %d] Voxel downsample: %d -> %d (leaf=%.3fm)", frame.Seq, res.InputPoints, len(points), fp.VoxelLeafSize)

	// Stage 2: Region of interest
	stageStart = time.Now()
	if fp.Crop != nil {
		points = fp.Crop.Filter(points)
	}
	res.Timings.Crop = time.Since(stageStart)
	res.FilteredPoints = len(points)

	// Stage 3: Ground segmentation
	stageStart = time.Now()
	ground, err := fp.Ground.Segment(points)
	res.Timings.Ground = time.Since(stageStart)
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", frame.Seq, err)
	}
	res.Plane = ground.Plane
	res.Ground = l4perception.ExtractIndices(points, ground.Inliers, false)
	res.Objects = l4perception.ExtractIndices(points, ground.Inliers, true)
	tracef("[Frame %d] Ground: %d inliers, %d object points, plane=(%.3f, %.3f, %.3f, %.3f)",
		frame.Seq, len(res.Ground), len(res.Objects), res.Plane.A, res.Plane.B, res.Plane.C, res.Plane.D)

	// Stage 4: Euclidean clustering and cluster metrics
	stageStart = time.Now()
	clusters, err := fp.Clusterer.Cluster(res.Objects, frame.SensorID, frame.Timestamp)
	res.Timings.Cluster = time.Since(stageStart)
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", frame.Seq, err)
	}
	res.Clusters = clusters

	res.Timings.Total = time.Since(start)
	return res, nil
}

// HighlightedCount returns the number of highlighted clusters.
func (r *FrameResult) HighlightedCount() int {
	n := 0
	for _, c := range r.Clusters {
		if c.Highlighted {
			n++
		}
	}
	return n
}
