// Package pipeline is the composition root of the obstacle detector.
//
// It runs each frame through the perception stages (voxel grid, crop box,
// ground segmentation, Euclidean clustering) and fans the result out to
// sinks such as the SQLite store, the PNG plotter and the HTML report.
// The pipeline owns no domain logic; it delegates to l2frames,
// l4perception, storage/sqlite and monitor, none of which import it.
package pipeline
