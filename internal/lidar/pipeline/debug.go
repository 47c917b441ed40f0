package pipeline

import (
	"io"
	"log"

	"github.com/banshee-data/obstacles/internal/monitoring"
)

var (
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures the diag and trace streams for the pipeline
// package. Pass nil for either writer to disable that stream. The ops
// stream always goes to monitoring.Logf.
func SetLogWriters(diag, trace io.Writer) {
	diagLogger = newLogger("[pipeline] ", diag)
	traceLogger = newLogger("[pipeline] ", trace)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// opsf logs actionable warnings and errors.
func opsf(format string, args ...interface{}) {
	monitoring.Logf("[pipeline] "+format, args...)
}

// diagf logs per-frame summaries and tuning context.
func diagf(format string, args ...interface{}) {
	if diagLogger != nil {
		diagLogger.Printf(format, args...)
	}
}

// tracef logs per-stage telemetry.
func tracef(format string, args ...interface{}) {
	if traceLogger != nil {
		traceLogger.Printf(format, args...)
	}
}
