package monitoring

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestSetLogger(t *testing.T) {
	// Save original logger
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	// Now set to nil and verify it doesn't call our logger
	called = false
	SetLogger(nil)
	Logf("test")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestPrefixed(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var lines []string
	logf := Prefixed("store")
	// Installed after Prefixed: the prefixed logger must still pick it up.
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})

	logf("opened %s", "runs.db")
	if len(lines) != 1 || lines[0] != "[store] opened runs.db" {
		t.Errorf("unexpected log lines: %q", lines)
	}
}

func TestLogSlow(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})

	if LogSlow("cluster", 5*time.Millisecond, 10*time.Millisecond) {
		t.Error("within budget reported as slow")
	}
	if LogSlow("cluster", time.Second, 0) {
		t.Error("zero budget should disable the check")
	}
	if !LogSlow("cluster", 20*time.Millisecond, 10*time.Millisecond) {
		t.Error("over budget not reported")
	}
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "[cluster] took 20ms") {
		t.Errorf("unexpected log lines: %q", lines)
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Error("Logf should not be nil by default")
	}
}
