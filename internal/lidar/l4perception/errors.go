package l4perception

import (
	"errors"
	"fmt"
)

// ErrInvalidParameter is returned (wrapped) when clustering parameters are
// rejected before any work begins. Values are never clamped.
var ErrInvalidParameter = errors.New("invalid clustering parameter")

// IndexIntegrityError reports a point index outside the frame, returned by
// the spatial index or a ground segmenter. It is raised with panic: it means
// an upstream stage is corrupt, not that the input was bad.
type IndexIntegrityError struct {
	Index int
	N     int
}

func (e *IndexIntegrityError) Error() string {
	return fmt.Sprintf("point index %d outside [0, %d)", e.Index, e.N)
}
