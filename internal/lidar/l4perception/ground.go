package l4perception

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Ground segmentation defaults.
const (
	DefaultGroundDistanceThreshold = 0.2
	DefaultGroundMaxIterations     = 100
	DefaultGroundSeed              = 1
)

// ErrNoPlane is returned when no planar model can be estimated for a frame.
var ErrNoPlane = errors.New("could not estimate a planar model")

// planeDegenerateEpsilon is the minimum normal length for a sampled triple to
// count as non-collinear.
const planeDegenerateEpsilon = 1e-9

// PlaneModel is the plane A·x + B·y + C·z + D = 0 with a unit normal.
type PlaneModel struct {
	A, B, C, D float64
}

// Normal returns the plane's unit normal.
func (m PlaneModel) Normal() r3.Vector {
	return r3.Vector{X: m.A, Y: m.B, Z: m.C}
}

// Distance returns the unsigned distance from v to the plane.
func (m PlaneModel) Distance(v r3.Vector) float64 {
	return math.Abs(m.Normal().Dot(v) + m.D)
}

// planeThrough returns the plane through a point with the given normal,
// normalising the normal. ok is false for a degenerate normal.
func planeThrough(p, normal r3.Vector) (PlaneModel, bool) {
	n := normal.Norm()
	if n < planeDegenerateEpsilon {
		return PlaneModel{}, false
	}
	u := normal.Mul(1 / n)
	return PlaneModel{A: u.X, B: u.Y, C: u.Z, D: -u.Dot(p)}, true
}

// GroundResult is the outcome of ground segmentation for one frame.
type GroundResult struct {
	Plane   PlaneModel
	Inliers []int // indices of ground points, ascending
}

// GroundRemover separates ground returns from obstacle candidates.
type GroundRemover interface {
	// Segment returns the indices of ground points in points.
	Segment(points []WorldPoint) (GroundResult, error)
}

// RANSACPlaneSegmenter fits the dominant plane with random sample consensus.
// Sampling uses a fixed seed so repeated runs over a frame agree.
type RANSACPlaneSegmenter struct {
	DistanceThreshold    float64
	MaxIterations        int
	Seed                 int64
	OptimizeCoefficients bool
}

// NewRANSACPlaneSegmenter returns a segmenter with production defaults.
func NewRANSACPlaneSegmenter() *RANSACPlaneSegmenter {
	return &RANSACPlaneSegmenter{
		DistanceThreshold:    DefaultGroundDistanceThreshold,
		MaxIterations:        DefaultGroundMaxIterations,
		Seed:                 DefaultGroundSeed,
		OptimizeCoefficients: true,
	}
}

// Segment runs RANSAC and, when OptimizeCoefficients is set, refits the plane
// to the consensus set by least squares before selecting the final inliers.
func (s *RANSACPlaneSegmenter) Segment(points []WorldPoint) (GroundResult, error) {
	n := len(points)
	if n < 3 {
		return GroundResult{}, fmt.Errorf("%w: %d points", ErrNoPlane, n)
	}

	rng := rand.New(rand.NewSource(s.Seed))
	var best PlaneModel
	bestCount := 0
	for iter := 0; iter < s.MaxIterations; iter++ {
		i, j, k := sampleTriple(rng, n)
		a, b, c := points[i].Vector(), points[j].Vector(), points[k].Vector()
		model, ok := planeThrough(a, b.Sub(a).Cross(c.Sub(a)))
		if !ok {
			continue
		}
		if count := countInliers(points, model, s.DistanceThreshold); count > bestCount {
			best, bestCount = model, count
		}
	}
	if bestCount == 0 {
		return GroundResult{}, ErrNoPlane
	}

	inliers := selectInliers(points, best, s.DistanceThreshold)
	if s.OptimizeCoefficients {
		if refined, ok := refinePlane(points, inliers); ok {
			if refinedInliers := selectInliers(points, refined, s.DistanceThreshold); len(refinedInliers) > 0 {
				best, inliers = refined, refinedInliers
			}
		}
	}
	return GroundResult{Plane: best, Inliers: inliers}, nil
}

// sampleTriple draws three distinct indices in [0, n).
func sampleTriple(rng *rand.Rand, n int) (int, int, int) {
	i := rng.Intn(n)
	j := rng.Intn(n - 1)
	if j >= i {
		j++
	}
	k := rng.Intn(n - 2)
	lo, hi := i, j
	if lo > hi {
		lo, hi = hi, lo
	}
	if k >= lo {
		k++
	}
	if k >= hi {
		k++
	}
	return i, j, k
}

func countInliers(points []WorldPoint, m PlaneModel, threshold float64) int {
	count := 0
	for _, p := range points {
		if m.Distance(p.Vector()) <= threshold {
			count++
		}
	}
	return count
}

func selectInliers(points []WorldPoint, m PlaneModel, threshold float64) []int {
	var inliers []int
	for i, p := range points {
		if m.Distance(p.Vector()) <= threshold {
			inliers = append(inliers, i)
		}
	}
	return inliers
}

// refinePlane fits a total-least-squares plane to the indexed points: the
// normal is the right singular vector of the centred coordinates with the
// smallest singular value.
func refinePlane(points []WorldPoint, indices []int) (PlaneModel, bool) {
	if len(indices) < 3 {
		return PlaneModel{}, false
	}
	centroid := ComputeCentroid(points, indices)
	data := make([]float64, 0, len(indices)*3)
	for _, i := range indices {
		d := points[i].Vector().Sub(centroid)
		data = append(data, d.X, d.Y, d.Z)
	}

	var svd mat.SVD
	if !svd.Factorize(mat.NewDense(len(indices), 3, data), mat.SVDThin) {
		return PlaneModel{}, false
	}
	var v mat.Dense
	svd.VTo(&v)
	normal := r3.Vector{X: v.At(0, 2), Y: v.At(1, 2), Z: v.At(2, 2)}
	return planeThrough(centroid, normal)
}

// HeightBandFilter treats everything outside a vertical band as ground or
// overhead structure. It suits level street scenes where the sensor height
// is known and RANSAC is unnecessary.
type HeightBandFilter struct {
	// FloorHeightM is the lower bound; points below it are road surface.
	FloorHeightM float64
	// CeilingHeightM is the upper bound; points above it are overhead
	// structures (signs, bridges, trees).
	CeilingHeightM float64
}

// NewHeightBandFilter constructs a vertical filter with floor and ceiling bounds.
func NewHeightBandFilter(floorM, ceilingM float64) *HeightBandFilter {
	return &HeightBandFilter{
		FloorHeightM:   floorM,
		CeilingHeightM: ceilingM,
	}
}

// Segment reports every point outside [FloorHeightM, CeilingHeightM] as
// ground. The plane is the horizontal floor.
func (f *HeightBandFilter) Segment(points []WorldPoint) (GroundResult, error) {
	var out []int
	for i, p := range points {
		if p.Z < f.FloorHeightM || p.Z > f.CeilingHeightM {
			out = append(out, i)
		}
	}
	return GroundResult{
		Plane:   PlaneModel{C: 1, D: -f.FloorHeightM},
		Inliers: out,
	}, nil
}

// Verify at compile time that both segmenters implement GroundRemover.
var (
	_ GroundRemover = (*RANSACPlaneSegmenter)(nil)
	_ GroundRemover = (*HeightBandFilter)(nil)
)
