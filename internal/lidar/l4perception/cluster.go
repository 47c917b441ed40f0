package l4perception

import "fmt"

// Defaults for Euclidean cluster extraction, tuned for a 0.1 m voxel grid.
const (
	// DefaultClusterTolerance is the proximity radius in meters.
	DefaultClusterTolerance = 0.2
	// DefaultMinClusterSize discards clusters with fewer points.
	DefaultMinClusterSize = 50
	// DefaultMaxClusterSize caps cluster growth.
	DefaultMaxClusterSize = 25000
)

// ClusterParams configures Euclidean cluster extraction.
type ClusterParams struct {
	Radius   float64        // Proximity tolerance in meters
	MinSize  int            // Clusters smaller than this are discarded
	MaxSize  int            // Growth stops at this size
	Overflow OverflowPolicy // Treatment of neighbours left when MaxSize is hit
	Balanced bool           // Build a median-split tree instead of insertion order
}

// DefaultClusterParams returns production-default clustering parameters.
func DefaultClusterParams() ClusterParams {
	return ClusterParams{
		Radius:  DefaultClusterTolerance,
		MinSize: DefaultMinClusterSize,
		MaxSize: DefaultMaxClusterSize,
	}
}

// Validate rejects parameters that cannot produce a meaningful extraction.
func (p ClusterParams) Validate() error {
	if p.Radius < 0 {
		return fmt.Errorf("%w: radius must be non-negative, got %g", ErrInvalidParameter, p.Radius)
	}
	if p.MinSize < 0 {
		return fmt.Errorf("%w: min size must be non-negative, got %d", ErrInvalidParameter, p.MinSize)
	}
	if p.MaxSize <= 0 {
		return fmt.Errorf("%w: max size must be positive, got %d", ErrInvalidParameter, p.MaxSize)
	}
	if p.MaxSize < p.MinSize {
		return fmt.Errorf("%w: max size %d is below min size %d", ErrInvalidParameter, p.MaxSize, p.MinSize)
	}
	return nil
}

// Extract grows a cluster from every point not yet visited, in index order,
// and keeps those whose size lies in [MinSize, MaxSize]. Discarded clusters
// stay visited. Clusters are returned in the order their seeds were reached.
//
// tree must index exactly points, by position in the slice.
func Extract(points []WorldPoint, tree *KDTree, params ClusterParams) ([]Cluster, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	clusters := []Cluster{}
	visited := NewVisitedSet(len(points))
	for i := range points {
		if visited[i] {
			continue
		}
		c := Grow(i, points, tree, params.Radius, visited, params.MaxSize, params.Overflow)
		if len(c) >= params.MinSize && len(c) <= params.MaxSize {
			clusters = append(clusters, c)
		}
	}
	return clusters, nil
}

// EuclideanCluster builds a k-d tree for points and extracts clusters from it.
func EuclideanCluster(points []WorldPoint, params ClusterParams) ([]Cluster, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	var tree *KDTree
	if params.Balanced {
		tree = BuildBalancedKDTree(points)
	} else {
		tree = BuildKDTree(points)
	}
	return Extract(points, tree, params)
}
