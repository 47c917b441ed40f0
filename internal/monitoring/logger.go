// Package monitoring holds the process-wide diagnostic logger used by the
// frame pipeline, storage and tooling.
package monitoring

import (
	"log"
	"time"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Prefixed returns a logger that tags every line with "[prefix] ". The
// returned function resolves Logf on each call, so later SetLogger calls
// still take effect.
func Prefixed(prefix string) func(format string, v ...interface{}) {
	tag := "[" + prefix + "] "
	return func(format string, v ...interface{}) {
		Logf(tag+format, v...)
	}
}

// LogSlow reports a stage that ran longer than budget. A non-positive
// budget disables the check. It returns true when the budget was exceeded.
func LogSlow(stage string, elapsed, budget time.Duration) bool {
	if budget <= 0 || elapsed <= budget {
		return false
	}
	Logf("[%s] took %v, over budget of %v", stage, elapsed.Round(time.Microsecond), budget)
	return true
}
