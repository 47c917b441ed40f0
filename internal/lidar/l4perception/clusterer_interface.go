package l4perception

import "time"

// ClustererInterface abstracts the clustering implementation.
// This interface enables swapping clustering algorithms and testing with
// different clustering strategies without modifying the frame pipeline.
type ClustererInterface interface {
	// Cluster performs clustering on obstacle points.
	// Clusters are returned in seed order, which is deterministic for a
	// given input order and parameters.
	Cluster(points []WorldPoint, sensorID string, timestamp time.Time) ([]WorldCluster, error)

	// GetParams returns the current clustering parameters.
	GetParams() ClusterParams

	// SetParams updates the clustering parameters.
	// This allows runtime tuning of clustering behaviour.
	SetParams(params ClusterParams)
}
