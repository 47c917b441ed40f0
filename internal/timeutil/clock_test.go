package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealClock(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	assert.False(t, now.Before(before))
	assert.GreaterOrEqual(t, clock.Since(now.Add(-time.Second)), time.Second)

	timer := clock.NewTimer(5 * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C():
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestManualClock_Advance(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewManualClock(start)

	short := clock.NewTimer(50 * time.Millisecond)
	long := clock.NewTimer(time.Second)
	assert.Equal(t, 2, clock.Pending())

	clock.Advance(60 * time.Millisecond)
	assert.Equal(t, start.Add(60*time.Millisecond), clock.Now())
	assert.Equal(t, 60*time.Millisecond, clock.Since(start))

	select {
	case got := <-short.C():
		assert.Equal(t, start.Add(60*time.Millisecond), got)
	default:
		t.Fatal("short timer should have fired")
	}
	select {
	case <-long.C():
		t.Fatal("long timer fired early")
	default:
	}

	assert.True(t, long.Stop())
	assert.False(t, long.Stop())
	clock.Advance(time.Hour)
	select {
	case <-long.C():
		t.Fatal("stopped timer fired")
	default:
	}
	assert.Equal(t, 0, clock.Pending())
	assert.Equal(t, []time.Duration{50 * time.Millisecond, time.Second}, clock.Timers())
}

func TestManualClock_ImmediateTimer(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	timer := clock.NewTimer(0)
	select {
	case <-timer.C():
	default:
		require.Fail(t, "zero-duration timer should fire immediately")
	}
	assert.False(t, timer.Stop())
}
