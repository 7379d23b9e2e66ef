package reconcile

import "sync"

const DefaultTolerance = 5

// Countdown is the local, advisory copy of a server countdown. It only
// smooths the display between heartbeats; the server value wins whenever the
// two drift apart by more than the tolerance.
type Countdown struct {
	mu            sync.Mutex
	remaining     int
	tolerance     int
	synced        bool
	zeroedLocally bool
}

// NewCountdown creates a countdown. The master display uses tolerance 0.
func NewCountdown(tolerance int) *Countdown {
	if tolerance < 0 {
		tolerance = 0
	}
	return &Countdown{tolerance: tolerance}
}

func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Tick advances one second. It returns true exactly when this tick took the
// local value to zero: the caller should confirm with one more heartbeat.
func (c *Countdown) Tick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.remaining <= 0 {
		return false
	}
	c.remaining--
	if c.remaining == 0 {
		c.zeroedLocally = true
		return true
	}
	return false
}

// Reconcile applies an authoritative value and reports whether the local
// value was replaced. The first value is always taken, as is any value for a
// clock that is stopped or at zero.
func (c *Countdown) Reconcile(server int, running bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.zeroedLocally = false
	if server < 0 {
		server = 0
	}
	diff := c.remaining - server
	if diff < 0 {
		diff = -diff
	}
	if !c.synced || diff > c.tolerance || (diff != 0 && (server == 0 || !running)) {
		c.synced = true
		c.remaining = server
		return true
	}
	return false
}

// NeedsConfirmation is true while the local value reached zero on its own
// and no heartbeat has answered since.
func (c *Countdown) NeedsConfirmation() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zeroedLocally
}
