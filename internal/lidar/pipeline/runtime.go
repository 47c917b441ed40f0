package pipeline

import (
	"fmt"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/obstacles/internal/config"
	"github.com/banshee-data/obstacles/internal/lidar/l4perception"
)

// ClusterParamsFromConfig maps the tuning config onto clustering parameters.
func ClusterParamsFromConfig(cfg *config.TuningConfig) (l4perception.ClusterParams, error) {
	overflow, ok := l4perception.ParseOverflowPolicy(cfg.GetClusterOverflow())
	if !ok {
		return l4perception.ClusterParams{}, fmt.Errorf("%w: cluster_overflow %q", l4perception.ErrInvalidParameter, cfg.GetClusterOverflow())
	}
	params := l4perception.ClusterParams{
		Radius:   cfg.GetClusterTolerance(),
		MinSize:  cfg.GetMinClusterSize(),
		MaxSize:  cfg.GetMaxClusterSize(),
		Overflow: overflow,
		Balanced: cfg.GetBalancedIndex(),
	}
	if err := params.Validate(); err != nil {
		return l4perception.ClusterParams{}, err
	}
	return params, nil
}

// NewFrameProcessorFromConfig builds a processor from the tuning config.
func NewFrameProcessorFromConfig(cfg *config.TuningConfig) (*FrameProcessor, error) {
	params, err := ClusterParamsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	lo, hi := cfg.GetCropMin(), cfg.GetCropMax()
	crop := l4perception.NewCropBox(
		r3.Vector{X: lo[0], Y: lo[1], Z: lo[2]},
		r3.Vector{X: hi[0], Y: hi[1], Z: hi[2]},
	)

	ground := l4perception.NewRANSACPlaneSegmenter()
	ground.DistanceThreshold = cfg.GetGroundDistanceThreshold()
	ground.MaxIterations = cfg.GetGroundMaxIterations()
	ground.Seed = cfg.GetGroundSeed()

	clusterer := l4perception.NewEuclideanClusterer(params)
	clusterer.HighlightDistance = cfg.GetHighlightDistance()

	diagf("[Config] leaf=%.3f crop=%v..%v ground=%.2fm/%d iter cluster=%.2fm [%d, %d] overflow=%s balanced=%v",
		cfg.GetVoxelLeafSize(), lo, hi, ground.DistanceThreshold, ground.MaxIterations,
		params.Radius, params.MinSize, params.MaxSize, params.Overflow, params.Balanced)

	return &FrameProcessor{
		VoxelLeafSize: cfg.GetVoxelLeafSize(),
		Crop:          &crop,
		Ground:        ground,
		Clusterer:     clusterer,
	}, nil
}
