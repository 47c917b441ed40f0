package l2frames

import "time"

// Point is a single Cartesian return in the sensor frame.
type Point struct {
	X, Y, Z   float64
	Intensity uint8
}

// Frame is one complete point cloud read from the capture.
type Frame struct {
	Seq       int64     // position in the stream, 0-based; keeps counting when looping
	Path      string    // file the frame was read from
	SensorID  string    // sensor that produced the capture
	Timestamp time.Time // file modification time
	Points    []Point
}
