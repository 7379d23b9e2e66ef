package reconcile

import (
	"errors"
	"sync"

	"github.com/mcdev12/escaperoom/go/internal/models"
)

const DefaultMaxMissed = 2

// Machine applies server answers to the client state. Only an explicit expiry
// or an authoritative error moves an active client out of its state; transport
// failures are counted and tolerated up to maxMissed in a row.
type Machine struct {
	mu        sync.Mutex
	state     State
	previous  State
	verifying bool
	missed    int
	maxMissed int
	master    bool
}

func NewMachine(maxMissed int) *Machine {
	if maxMissed <= 0 {
		maxMissed = DefaultMaxMissed
	}
	return &Machine{state: StateLoading, maxMissed: maxMissed}
}

// NewMasterMachine is a Machine whose login opens a session, so it never
// waits in no-session.
func NewMasterMachine(maxMissed int) *Machine {
	m := NewMachine(maxMissed)
	m.master = true
	return m
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Verifying reports whether a stored token is waiting for its first heartbeat.
func (m *Machine) Verifying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verifying
}

// Missed is the number of consecutive transient heartbeat failures.
func (m *Machine) Missed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.missed
}

// ProbeResult applies the session-existence probe. With a stored token the
// machine stays in loading until a heartbeat verifies it.
func (m *Machine) ProbeResult(sessionActive, hasToken bool) Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Active() {
		return m.stay()
	}
	switch {
	case !sessionActive && !m.master:
		m.verifying = false
		return m.move(StateNoSession, false)
	case hasToken:
		m.verifying = true
		return m.move(StateLoading, false)
	default:
		m.verifying = false
		return m.move(StateLogin, false)
	}
}

// Joined applies a successful join or login.
func (m *Machine) Joined(gameActive bool) Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.verifying = false
	m.missed = 0
	if gameActive {
		return m.move(StatePlaying, false)
	}
	return m.move(StateWaitingGame, false)
}

// Heartbeat applies a successful heartbeat.
func (m *Machine) Heartbeat(obs Observation) Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.missed = 0
	from := m.state

	if obs.Expired {
		m.verifying = false
		if from == StateLoading || from == StateLogin || from == StateNoSession {
			// a stale stored token: drop it and ask for a fresh join
			return m.move(StateLogin, true)
		}
		return m.move(StateExpired, true)
	}

	current := from
	if current == StateDisconnected {
		current = m.previous
	}

	switch {
	case m.verifying && current == StateLoading:
		m.verifying = false
		if obs.GameActive {
			return m.move(StatePlaying, false)
		}
		return m.move(StateWaitingGame, false)
	case current == StateWaitingGame && obs.GameActive:
		return m.move(StatePlaying, false)
	case current == StatePlaying && !obs.GameActive && !obs.GamePaused:
		return m.move(StateGameEnded, false)
	}
	return m.move(current, false)
}

// HeartbeatFailed applies a failed heartbeat.
func (m *Machine) HeartbeatFailed(err error) Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case errors.Is(err, models.ErrSessionInactive), errors.Is(err, models.ErrSessionExpired):
		m.verifying = false
		m.missed = 0
		if !m.state.Active() {
			return m.move(StateLogin, true)
		}
		return m.move(StateExpired, true)
	case errors.Is(err, models.ErrAuth):
		m.verifying = false
		m.missed = 0
		return m.move(StateLogin, true)
	}

	m.missed++
	if m.missed < m.maxMissed || !m.state.Active() || m.state == StateDisconnected {
		return m.stay()
	}
	m.previous = m.state
	return m.move(StateDisconnected, false)
}

// Reset returns the machine to loading, e.g. after a manual reconnect.
func (m *Machine) Reset() Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.verifying = false
	m.missed = 0
	return m.move(StateLoading, false)
}

func (m *Machine) move(to State, discard bool) Transition {
	t := Transition{From: m.state, To: to, DiscardToken: discard}
	m.state = to
	return t
}

func (m *Machine) stay() Transition {
	return Transition{From: m.state, To: m.state}
}
