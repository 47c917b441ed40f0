package l4perception

import (
	"math"

	"github.com/golang/geo/r3"
)

// DefaultVoxelLeafSize is the voxel edge length in meters.
const DefaultVoxelLeafSize = 0.1

type voxelKey struct {
	x, y, z int64
}

type voxelAccum struct {
	sum     r3.Vector
	members []int
}

// VoxelGrid downsamples points by keeping, for every occupied cubic voxel of
// edge leafSize, the input point closest to the centroid of that voxel's
// points. Output preserves the order in which voxels were first occupied.
// A non-positive leaf size returns the input unchanged.
func VoxelGrid(points []WorldPoint, leafSize float64) []WorldPoint {
	if len(points) == 0 {
		return nil
	}
	if leafSize <= 0 {
		return points
	}

	voxels := make(map[voxelKey]*voxelAccum)
	order := make([]voxelKey, 0, len(points)/EstimatedPointsPerVoxel+1)
	for i, p := range points {
		k := voxelKey{
			x: int64(math.Floor(p.X / leafSize)),
			y: int64(math.Floor(p.Y / leafSize)),
			z: int64(math.Floor(p.Z / leafSize)),
		}
		acc, ok := voxels[k]
		if !ok {
			acc = &voxelAccum{}
			voxels[k] = acc
			order = append(order, k)
		}
		acc.sum = acc.sum.Add(p.Vector())
		acc.members = append(acc.members, i)
	}

	out := make([]WorldPoint, 0, len(order))
	for _, k := range order {
		acc := voxels[k]
		centroid := acc.sum.Mul(1 / float64(len(acc.members)))
		best := acc.members[0]
		bestD2 := math.Inf(1)
		for _, i := range acc.members {
			if d2 := points[i].Vector().Sub(centroid).Norm2(); d2 < bestD2 {
				best, bestD2 = i, d2
			}
		}
		out = append(out, points[best])
	}
	return out
}

// EstimatedPointsPerVoxel is used for initial output capacity estimation.
const EstimatedPointsPerVoxel = 4
