package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountdownReconcile(t *testing.T) {
	c := NewCountdown(DefaultTolerance)

	assert.True(t, c.Reconcile(3, true), "first value is always taken")
	assert.Equal(t, 3, c.Remaining())

	assert.False(t, c.Reconcile(7, true), "drift within tolerance is kept")
	assert.Equal(t, 3, c.Remaining())

	assert.True(t, c.Reconcile(9, true))
	assert.Equal(t, 9, c.Remaining())

	assert.True(t, c.Reconcile(-4, true))
	assert.Equal(t, 0, c.Remaining())
}

func TestCountdownStrict(t *testing.T) {
	c := NewCountdown(0)
	c.Reconcile(100, true)
	c.Tick()
	assert.True(t, c.Reconcile(100, true), "master display follows every difference")
	assert.Equal(t, 100, c.Remaining())
}

func TestCountdownTakesServerZero(t *testing.T) {
	c := NewCountdown(DefaultTolerance)
	c.Reconcile(3, true)

	// the round ended between heartbeats
	assert.True(t, c.Reconcile(0, false))
	assert.Equal(t, 0, c.Remaining())

	c = NewCountdown(DefaultTolerance)
	c.Reconcile(3, true)
	assert.True(t, c.Reconcile(0, true), "zero is taken even while running")
	assert.Equal(t, 0, c.Remaining())
}

func TestCountdownTakesStoppedValue(t *testing.T) {
	c := NewCountdown(DefaultTolerance)
	c.Reconcile(600, true)
	c.Tick()
	c.Tick()

	// paused: the frozen server value is exact
	assert.True(t, c.Reconcile(600, false))
	assert.Equal(t, 600, c.Remaining())

	assert.False(t, c.Reconcile(600, false), "an equal value is not a replacement")
}

func TestCountdownTick(t *testing.T) {
	c := NewCountdown(DefaultTolerance)
	c.Reconcile(2, true)

	assert.False(t, c.Tick())
	assert.Equal(t, 1, c.Remaining())
	assert.False(t, c.NeedsConfirmation())

	assert.True(t, c.Tick(), "reaching zero asks for confirmation")
	assert.True(t, c.NeedsConfirmation())

	assert.False(t, c.Tick(), "ticks at zero do nothing")
	assert.Equal(t, 0, c.Remaining())

	c.Reconcile(0, false)
	assert.False(t, c.NeedsConfirmation())
}

func TestCountdownServerWinsAfterLocalZero(t *testing.T) {
	c := NewCountdown(DefaultTolerance)
	c.Reconcile(1, true)
	assert.True(t, c.Tick())

	// the server says the round was extended by a resume
	assert.True(t, c.Reconcile(120, true))
	assert.Equal(t, 120, c.Remaining())
	assert.False(t, c.NeedsConfirmation())
}
