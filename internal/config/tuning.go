package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// Cluster overflow policies accepted by cluster_overflow.
const (
	OverflowFragment = "fragment"
	OverflowTruncate = "truncate"
)

// TuningConfig represents the root configuration for the obstacle pipeline.
// Every field is optional; the Get* methods supply the built-in default for
// anything the JSON leaves out, so partial configs are safe.
type TuningConfig struct {
	// Downsampling and region of interest
	VoxelLeafSize *float64    `json:"voxel_leaf_size,omitempty"`
	CropMin       *[3]float64 `json:"crop_min,omitempty"`
	CropMax       *[3]float64 `json:"crop_max,omitempty"`

	// Ground segmentation
	GroundDistanceThreshold *float64 `json:"ground_distance_threshold,omitempty"`
	GroundMaxIterations     *int     `json:"ground_max_iterations,omitempty"`
	GroundSeed              *int64   `json:"ground_seed,omitempty"`

	// Euclidean clustering
	ClusterTolerance *float64 `json:"cluster_tolerance,omitempty"`
	MinClusterSize   *int     `json:"min_cluster_size,omitempty"`
	MaxClusterSize   *int     `json:"max_cluster_size,omitempty"`
	ClusterOverflow  *string  `json:"cluster_overflow,omitempty"` // "fragment" or "truncate"
	BalancedIndex    *bool    `json:"balanced_index,omitempty"`

	// Reporting
	HighlightDistance *float64 `json:"highlight_distance,omitempty"`

	// Frame loop
	FrameBudget *string `json:"frame_budget,omitempty"` // duration string like "100ms"
	LoopFrames  *bool   `json:"loop_frames,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/lidar/pipeline/
		"../../../../" + DefaultConfigPath, // from internal/lidar/storage/sqlite/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.VoxelLeafSize != nil && *c.VoxelLeafSize < 0 {
		return fmt.Errorf("voxel_leaf_size must be non-negative, got %f", *c.VoxelLeafSize)
	}

	if c.CropMin != nil || c.CropMax != nil {
		lo, hi := c.GetCropMin(), c.GetCropMax()
		for axis := 0; axis < 3; axis++ {
			if lo[axis] > hi[axis] {
				return fmt.Errorf("crop_min exceeds crop_max on axis %d: %f > %f", axis, lo[axis], hi[axis])
			}
		}
	}

	if c.GroundDistanceThreshold != nil && *c.GroundDistanceThreshold <= 0 {
		return fmt.Errorf("ground_distance_threshold must be positive, got %f", *c.GroundDistanceThreshold)
	}
	if c.GroundMaxIterations != nil && *c.GroundMaxIterations <= 0 {
		return fmt.Errorf("ground_max_iterations must be positive, got %d", *c.GroundMaxIterations)
	}

	if c.ClusterTolerance != nil && *c.ClusterTolerance < 0 {
		return fmt.Errorf("cluster_tolerance must be non-negative, got %f", *c.ClusterTolerance)
	}
	if c.MinClusterSize != nil && *c.MinClusterSize < 0 {
		return fmt.Errorf("min_cluster_size must be non-negative, got %d", *c.MinClusterSize)
	}
	if c.MaxClusterSize != nil && *c.MaxClusterSize <= 0 {
		return fmt.Errorf("max_cluster_size must be positive, got %d", *c.MaxClusterSize)
	}
	if minSize, maxSize := c.GetMinClusterSize(), c.GetMaxClusterSize(); maxSize < minSize {
		return fmt.Errorf("max_cluster_size %d is below min_cluster_size %d", maxSize, minSize)
	}

	if c.ClusterOverflow != nil {
		switch *c.ClusterOverflow {
		case "", OverflowFragment, OverflowTruncate:
		default:
			return fmt.Errorf("cluster_overflow must be %q or %q, got %q", OverflowFragment, OverflowTruncate, *c.ClusterOverflow)
		}
	}

	if c.HighlightDistance != nil && *c.HighlightDistance < 0 {
		return fmt.Errorf("highlight_distance must be non-negative, got %f", *c.HighlightDistance)
	}

	if c.FrameBudget != nil && *c.FrameBudget != "" {
		if _, err := time.ParseDuration(*c.FrameBudget); err != nil {
			return fmt.Errorf("invalid frame_budget '%s': %w", *c.FrameBudget, err)
		}
	}

	return nil
}

// GetVoxelLeafSize returns the voxel_leaf_size value or the default.
func (c *TuningConfig) GetVoxelLeafSize() float64 {
	if c.VoxelLeafSize == nil {
		return 0.1
	}
	return *c.VoxelLeafSize
}

// GetCropMin returns the lower crop corner or the default.
func (c *TuningConfig) GetCropMin() [3]float64 {
	if c.CropMin == nil {
		return [3]float64{-20, -6, -2}
	}
	return *c.CropMin
}

// GetCropMax returns the upper crop corner or the default.
func (c *TuningConfig) GetCropMax() [3]float64 {
	if c.CropMax == nil {
		return [3]float64{30, 7, 5}
	}
	return *c.CropMax
}

// GetGroundDistanceThreshold returns the ground_distance_threshold value or the default.
func (c *TuningConfig) GetGroundDistanceThreshold() float64 {
	if c.GroundDistanceThreshold == nil {
		return 0.2
	}
	return *c.GroundDistanceThreshold
}

// GetGroundMaxIterations returns the ground_max_iterations value or the default.
func (c *TuningConfig) GetGroundMaxIterations() int {
	if c.GroundMaxIterations == nil {
		return 100
	}
	return *c.GroundMaxIterations
}

// GetGroundSeed returns the ground_seed value or the default.
func (c *TuningConfig) GetGroundSeed() int64 {
	if c.GroundSeed == nil {
		return 1
	}
	return *c.GroundSeed
}

// GetClusterTolerance returns the cluster_tolerance value or the default.
func (c *TuningConfig) GetClusterTolerance() float64 {
	if c.ClusterTolerance == nil {
		return 0.2
	}
	return *c.ClusterTolerance
}

// GetMinClusterSize returns the min_cluster_size value or the default.
func (c *TuningConfig) GetMinClusterSize() int {
	if c.MinClusterSize == nil {
		return 50
	}
	return *c.MinClusterSize
}

// GetMaxClusterSize returns the max_cluster_size value or the default.
func (c *TuningConfig) GetMaxClusterSize() int {
	if c.MaxClusterSize == nil {
		return 25000
	}
	return *c.MaxClusterSize
}

// GetClusterOverflow returns the cluster_overflow value or the default.
func (c *TuningConfig) GetClusterOverflow() string {
	if c.ClusterOverflow == nil || *c.ClusterOverflow == "" {
		return OverflowFragment
	}
	return *c.ClusterOverflow
}

// GetBalancedIndex returns the balanced_index value or the default.
func (c *TuningConfig) GetBalancedIndex() bool {
	if c.BalancedIndex == nil {
		return false // default: insertion-order tree
	}
	return *c.BalancedIndex
}

// GetHighlightDistance returns the highlight_distance value or the default.
func (c *TuningConfig) GetHighlightDistance() float64 {
	if c.HighlightDistance == nil {
		return 5.0
	}
	return *c.HighlightDistance
}

// GetFrameBudget parses and returns the FrameBudget as a time.Duration.
// Zero disables the budget check.
func (c *TuningConfig) GetFrameBudget() time.Duration {
	if c.FrameBudget == nil || *c.FrameBudget == "" {
		return 100 * time.Millisecond // one frame at 10 Hz
	}
	d, err := time.ParseDuration(*c.FrameBudget)
	if err != nil {
		return 100 * time.Millisecond // default on parse error
	}
	return d
}

// GetLoopFrames returns the loop_frames value or the default.
func (c *TuningConfig) GetLoopFrames() bool {
	if c.LoopFrames == nil {
		return false
	}
	return *c.LoopFrames
}
