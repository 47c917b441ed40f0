package l4perception

import (
	"time"

	"github.com/golang/geo/r3"
)

// WorldPoint represents a point in Cartesian world coordinates (sensor frame
// for a static sensor). Points are identified by their index in the frame slice;
// nothing in this package mutates their coordinates.
type WorldPoint struct {
	X, Y, Z   float64   // World frame position (meters)
	Intensity uint8     // Laser return intensity
	Timestamp time.Time // Acquisition time
	SensorID  string    // Source sensor
}

// Vector returns the point position as an r3.Vector.
func (p WorldPoint) Vector() r3.Vector {
	return r3.Vector{X: p.X, Y: p.Y, Z: p.Z}
}

// Cluster is the set of point indices grown from a single seed.
type Cluster []int

// Box is an axis-aligned bounding box.
type Box struct {
	Min r3.Vector
	Max r3.Vector
}

// Size returns the box extent along each axis.
func (b Box) Size() r3.Vector {
	return b.Max.Sub(b.Min)
}

// Contains reports whether v lies inside the box, bounds inclusive.
func (b Box) Contains(v r3.Vector) bool {
	return v.X >= b.Min.X && v.X <= b.Max.X &&
		v.Y >= b.Min.Y && v.Y <= b.Max.Y &&
		v.Z >= b.Min.Z && v.Z <= b.Max.Z
}

// WorldCluster is a detected obstacle: the clustered point indices plus the
// per-cluster geometry consumed by storage and visualisation.
type WorldCluster struct {
	ClusterID   int64
	SensorID    string
	TSUnixNanos int64
	Indices     Cluster
	PointsCount int
	Centroid    r3.Vector
	Bounds      Box
	DistanceM   float64 // planar distance of the centroid from the sensor
	Highlighted bool
}
