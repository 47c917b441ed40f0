package l4perception

import (
	"fmt"
	"time"
)

// EuclideanClusterer implements ClustererInterface with k-d tree region growing.
type EuclideanClusterer struct {
	params            ClusterParams
	HighlightDistance float64
}

// NewEuclideanClusterer creates a clusterer with the specified parameters.
func NewEuclideanClusterer(params ClusterParams) *EuclideanClusterer {
	return &EuclideanClusterer{
		params:            params,
		HighlightDistance: DefaultHighlightDistance,
	}
}

// NewDefaultEuclideanClusterer creates a clusterer with default parameters.
func NewDefaultEuclideanClusterer() *EuclideanClusterer {
	return NewEuclideanClusterer(DefaultClusterParams())
}

// Cluster extracts obstacle clusters and computes their geometry. Cluster IDs
// are 1-based in seed order. Points without a timestamp or sensor take
// timestamp and sensorID from the frame.
func (c *EuclideanClusterer) Cluster(points []WorldPoint, sensorID string, timestamp time.Time) ([]WorldCluster, error) {
	indices, err := EuclideanCluster(points, c.params)
	if err != nil {
		return nil, fmt.Errorf("euclidean clustering: %w", err)
	}

	clusters := make([]WorldCluster, 0, len(indices))
	for i, idx := range indices {
		wc := computeClusterMetrics(points, idx, int64(i+1), c.HighlightDistance)
		if wc.SensorID == "" {
			wc.SensorID = sensorID
		}
		if points[idx[0]].Timestamp.IsZero() {
			wc.TSUnixNanos = timestamp.UnixNano()
		}
		clusters = append(clusters, wc)
	}
	return clusters, nil
}

// GetParams returns the current clustering parameters.
func (c *EuclideanClusterer) GetParams() ClusterParams {
	return c.params
}

// SetParams updates the clustering parameters.
func (c *EuclideanClusterer) SetParams(params ClusterParams) {
	c.params = params
}

// Verify at compile time that *EuclideanClusterer implements ClustererInterface.
var _ ClustererInterface = (*EuclideanClusterer)(nil)
