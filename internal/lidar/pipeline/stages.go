package pipeline

import (
	"context"

	"github.com/banshee-data/obstacles/internal/lidar/l2frames"
)

// FrameSource supplies frames in order. Next returns io.EOF when the stream
// is exhausted. *l2frames.FrameSource satisfies it.
type FrameSource interface {
	Next(ctx context.Context) (*l2frames.Frame, error)
}

// ResultSink consumes processed frames. Sinks run sequentially on the
// runner's goroutine, in registration order.
type ResultSink interface {
	HandleFrame(ctx context.Context, result *FrameResult) error
}

// SinkFunc adapts a function to ResultSink.
type SinkFunc func(ctx context.Context, result *FrameResult) error

// HandleFrame calls f.
func (f SinkFunc) HandleFrame(ctx context.Context, result *FrameResult) error {
	return f(ctx, result)
}

var _ FrameSource = (*l2frames.FrameSource)(nil)
