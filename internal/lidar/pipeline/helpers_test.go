package pipeline

import (
	"os"

	"github.com/golang/geo/r3"
)

func r3Vec(x, y, z float64) r3.Vector { return r3.Vector{X: x, Y: y, Z: z} }

func writeFile(path, body string) error {
	return os.WriteFile(path, []byte(body), 0644)
}
