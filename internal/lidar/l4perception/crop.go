package l4perception

import "github.com/golang/geo/r3"

// CropBox keeps only points inside an axis-aligned region of interest.
type CropBox struct {
	Box
}

// NewCropBox returns a crop region spanning min to max, bounds inclusive.
func NewCropBox(min, max r3.Vector) CropBox {
	return CropBox{Box{Min: min, Max: max}}
}

// DefaultCropBox covers 20 m behind to 30 m ahead of the sensor, 6 m right to
// 7 m left, and 2 m below to 5 m above.
func DefaultCropBox() CropBox {
	return NewCropBox(r3.Vector{X: -20, Y: -6, Z: -2}, r3.Vector{X: 30, Y: 7, Z: 5})
}

// Filter returns the points inside the box, in input order.
func (c CropBox) Filter(points []WorldPoint) []WorldPoint {
	if len(points) == 0 {
		return nil
	}
	out := make([]WorldPoint, 0, len(points))
	for _, p := range points {
		if c.Contains(p.Vector()) {
			out = append(out, p)
		}
	}
	return out
}

// ExtractIndices splits points by index set. With negative false it returns
// the indexed points; with negative true it returns every other point.
// Both preserve input order. indices come from a segmenter run over points,
// so one outside the slice panics with *IndexIntegrityError.
func ExtractIndices(points []WorldPoint, indices []int, negative bool) []WorldPoint {
	selected := make([]bool, len(points))
	for _, i := range indices {
		if i < 0 || i >= len(points) {
			panic(&IndexIntegrityError{Index: i, N: len(points)})
		}
		selected[i] = true
	}
	out := make([]WorldPoint, 0, len(points))
	for i, p := range points {
		if selected[i] != negative {
			out = append(out, p)
		}
	}
	return out
}
