package l4perception

import (
	"math"

	"github.com/golang/geo/r3"
)

// DefaultHighlightDistance is the planar range in meters inside which every
// cluster is flagged, regardless of bearing.
const DefaultHighlightDistance = 5.0

// ComputeCentroid returns the mean position of the indexed points.
// An empty index set yields the zero vector.
func ComputeCentroid(points []WorldPoint, indices []int) r3.Vector {
	if len(indices) == 0 {
		return r3.Vector{}
	}
	var sum r3.Vector
	for _, i := range indices {
		sum = sum.Add(points[i].Vector())
	}
	return sum.Mul(1 / float64(len(indices)))
}

// ComputeAABB returns the axis-aligned bounds of the indexed points.
func ComputeAABB(points []WorldPoint, indices []int) Box {
	if len(indices) == 0 {
		return Box{}
	}
	first := points[indices[0]].Vector()
	b := Box{Min: first, Max: first}
	for _, i := range indices[1:] {
		p := points[i]
		b.Min.X = math.Min(b.Min.X, p.X)
		b.Min.Y = math.Min(b.Min.Y, p.Y)
		b.Min.Z = math.Min(b.Min.Z, p.Z)
		b.Max.X = math.Max(b.Max.X, p.X)
		b.Max.Y = math.Max(b.Max.Y, p.Y)
		b.Max.Z = math.Max(b.Max.Z, p.Z)
	}
	return b
}

// PlanarDistance is the ground-plane range of v from the sensor origin.
func PlanarDistance(v r3.Vector) float64 {
	return math.Hypot(v.X, v.Y)
}

// Highlight reports whether a cluster centred at centroid needs attention:
// anything ahead of the sensor (positive X), or anything within
// thresholdM meters in the ground plane.
func Highlight(centroid r3.Vector, thresholdM float64) bool {
	return centroid.X > 0 || PlanarDistance(centroid) <= thresholdM
}

// computeClusterMetrics builds the WorldCluster record for one cluster.
func computeClusterMetrics(points []WorldPoint, indices Cluster, clusterID int64, highlightM float64) WorldCluster {
	centroid := ComputeCentroid(points, indices)

	var tsUnixNanos int64
	var sensorID string
	if len(indices) > 0 {
		first := points[indices[0]]
		tsUnixNanos = first.Timestamp.UnixNano()
		sensorID = first.SensorID
	}

	return WorldCluster{
		ClusterID:   clusterID,
		SensorID:    sensorID,
		TSUnixNanos: tsUnixNanos,
		Indices:     indices,
		PointsCount: len(indices),
		Centroid:    centroid,
		Bounds:      ComputeAABB(points, indices),
		DistanceM:   PlanarDistance(centroid),
		Highlighted: Highlight(centroid, highlightM),
	}
}
