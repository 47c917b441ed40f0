// Package l2frames owns Layer 2 (Frames) of the obstacle pipeline.
//
// Responsibilities: decoding PCD point clouds and replaying a capture
// directory as an ordered stream of frames.
// Key types: Point, Frame, FrameSource.
//
// Dependency rule: L2 never depends on perception (L4) or the pipeline.
package l2frames
