package l2frames

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/banshee-data/obstacles/internal/monitoring"
	"github.com/banshee-data/obstacles/internal/security"
)

// ErrNoFrames is returned when a capture directory holds no .pcd files.
var ErrNoFrames = errors.New("no .pcd frames found")

// FrameSourceConfig configures a FrameSource.
type FrameSourceConfig struct {
	Dir      string // directory holding one .pcd file per frame
	SensorID string // stamped on every frame
	Loop     bool   // restart from the first file after the last
}

// FrameSource replays a directory of PCD files as a frame stream. Files are
// ordered lexically, which matches the timestamped names sensors write.
type FrameSource struct {
	sensorID string
	loop     bool

	mu    sync.Mutex
	paths []string
	pos   int
	seq   int64
}

// NewFrameSource lists the .pcd files in cfg.Dir.
func NewFrameSource(cfg FrameSourceConfig) (*FrameSource, error) {
	entries, err := os.ReadDir(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pcd") {
			continue
		}
		path := filepath.Join(cfg.Dir, e.Name())
		if err := security.ValidatePathWithinDirectory(path, cfg.Dir); err != nil {
			monitoring.Logf("[frames] skipping %s: %v", e.Name(), err)
			continue
		}
		paths = append(paths, path)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFrames, cfg.Dir)
	}
	sort.Strings(paths)

	monitoring.Logf("[frames] %d frames in %s (loop=%v)", len(paths), cfg.Dir, cfg.Loop)
	return &FrameSource{
		sensorID: cfg.SensorID,
		loop:     cfg.Loop,
		paths:    paths,
	}, nil
}

// Len returns the number of files in one pass over the directory.
func (s *FrameSource) Len() int { return len(s.paths) }

// Paths returns the ordered file list.
func (s *FrameSource) Paths() []string {
	out := make([]string, len(s.paths))
	copy(out, s.paths)
	return out
}

// Next loads the next frame. It returns io.EOF after the last file unless the
// source loops, and ctx.Err() once the context is done.
func (s *FrameSource) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.pos == len(s.paths) {
		if !s.loop {
			s.mu.Unlock()
			return nil, io.EOF
		}
		s.pos = 0
	}
	path := s.paths[s.pos]
	seq := s.seq
	s.pos++
	s.seq++
	s.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat frame: %w", err)
	}
	points, err := LoadPCDFile(path)
	if err != nil {
		return nil, err
	}
	return &Frame{
		Seq:       seq,
		Path:      path,
		SensorID:  s.sensorID,
		Timestamp: info.ModTime(),
		Points:    points,
	}, nil
}
