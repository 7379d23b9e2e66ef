package clock

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/escaperoom/go/internal/models"
)

// Snapshot is everything a heartbeat reports about time, computed from the
// stored anchors at a single instant.
type Snapshot struct {
	RemainingSeconds     int       `json:"remainingSeconds"`
	GameRemainingSeconds int       `json:"gameRemainingSeconds"`
	GameActive           bool      `json:"gameActive"`
	GamePaused           bool      `json:"gamePaused"`
	Expired              bool      `json:"expired"`
	ServerTime           time.Time `json:"serverTime"`
}

// Authority is the only place remaining time is computed. It never accepts a
// client-reported countdown.
type Authority struct {
	clock clockwork.Clock
}

// NewAuthority creates an Authority. Pass clockwork.NewRealClock() in
// production and a FakeClock in tests.
func NewAuthority(c clockwork.Clock) *Authority {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	return &Authority{clock: c}
}

// Now returns the authoritative current time in UTC.
func (a *Authority) Now() time.Time {
	return a.clock.Now().UTC()
}

// Clock exposes the underlying clock for timers.
func (a *Authority) Clock() clockwork.Clock {
	return a.clock
}

// ComputeRemaining returns the whole seconds left in the session window,
// clamped at zero.
func (a *Authority) ComputeRemaining(s *models.Session) int {
	return secondsUntil(s.ExpiresAt, a.Now())
}

// TickGameTimer returns the seconds left in the round. A paused round returns
// its frozen value and does not advance.
func (a *Authority) TickGameTimer(s *models.Session) int {
	if s.Game.Running() {
		return secondsUntil(*s.Game.EndsAt, a.Now())
	}
	if s.Game.RemainingSeconds < 0 {
		return 0
	}
	return s.Game.RemainingSeconds
}

// Expired reports whether the session can no longer be used.
func (a *Authority) Expired(s *models.Session) bool {
	return !s.IsActive || a.ComputeRemaining(s) == 0
}

// Snapshot recomputes both timers. An expired session forces the round off.
func (a *Authority) Snapshot(s *models.Session) Snapshot {
	now := a.Now()
	snap := Snapshot{
		RemainingSeconds: secondsUntil(s.ExpiresAt, now),
		ServerTime:       now,
	}
	snap.Expired = !s.IsActive || snap.RemainingSeconds == 0
	if snap.Expired {
		snap.RemainingSeconds = 0
		return snap
	}

	switch {
	case s.Game.Running():
		snap.GameRemainingSeconds = secondsUntil(*s.Game.EndsAt, now)
		snap.GameActive = snap.GameRemainingSeconds > 0
	case s.Game.Paused():
		snap.GameRemainingSeconds = s.Game.RemainingSeconds
		snap.GamePaused = true
	}
	return snap
}

// StartGame returns the anchors of a round starting now.
func (a *Authority) StartGame(d time.Duration) models.GameTimer {
	now := a.Now()
	ends := now.Add(d)
	return models.GameTimer{
		StartedAt:        &now,
		EndsAt:           &ends,
		RemainingSeconds: int(d / time.Second),
		LastActivityAt:   &now,
	}
}

// PauseGame freezes the remaining seconds and drops the running anchor.
func (a *Authority) PauseGame(g models.GameTimer) (models.GameTimer, error) {
	if !g.Running() {
		return g, fmt.Errorf("%w: game is not running", models.ErrInvalidState)
	}
	remaining := secondsUntil(*g.EndsAt, a.Now())
	if remaining == 0 {
		return g, fmt.Errorf("%w: game already ended", models.ErrInvalidState)
	}
	g.EndsAt = nil
	g.RemainingSeconds = remaining
	return g, nil
}

// ResumeGame re-anchors a paused round from its frozen value.
func (a *Authority) ResumeGame(g models.GameTimer) (models.GameTimer, error) {
	if !g.Paused() {
		return g, fmt.Errorf("%w: game is not paused", models.ErrInvalidState)
	}
	ends := a.Now().Add(time.Duration(g.RemainingSeconds) * time.Second)
	g.EndsAt = &ends
	return g, nil
}

// StoppedGame is a round that is neither running nor paused.
func StoppedGame() models.GameTimer {
	return models.GameTimer{}
}

// BlockUntil returns the lockout end for a penalty applied now.
func (a *Authority) BlockUntil(d time.Duration) time.Time {
	return a.Now().Add(d)
}

// BlockRemaining returns the whole seconds left in a lockout.
func (a *Authority) BlockRemaining(until *time.Time) int {
	if until == nil {
		return 0
	}
	return secondsUntil(*until, a.Now())
}

// NextDeadline returns when the session next changes on its own.
func NextDeadline(s *models.Session) time.Time {
	if s.Game.Running() && s.Game.EndsAt.Before(s.ExpiresAt) {
		return *s.Game.EndsAt
	}
	return s.ExpiresAt
}

// secondsUntil rounds up so a countdown shows 1 until the deadline has
// actually passed.
func secondsUntil(deadline, now time.Time) int {
	d := deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
