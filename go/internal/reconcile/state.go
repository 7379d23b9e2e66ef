package reconcile

// State is where a client believes it is in the session lifecycle.
type State string

const (
	StateLoading      State = "loading"
	StateNoSession    State = "no-session"
	StateLogin        State = "login"
	StateWaitingGame  State = "waiting-game"
	StatePlaying      State = "playing"
	StateGameEnded    State = "game-ended"
	StateExpired      State = "expired"
	StateDisconnected State = "disconnected"
)

// Active reports whether the client holds a credential it is heartbeating with.
func (s State) Active() bool {
	switch s {
	case StateWaitingGame, StatePlaying, StateGameEnded, StateDisconnected:
		return true
	}
	return false
}

// Observation is one authoritative answer from the server. RemainingSeconds
// is the session clock and is only reported to the master.
type Observation struct {
	RemainingSeconds     int
	GameActive           bool
	GamePaused           bool
	GameRemainingSeconds int
	Expired              bool
}

// Transition records a state change and whether the stored token must go.
type Transition struct {
	From         State
	To           State
	DiscardToken bool
}

// Changed reports whether the transition moved the machine.
func (t Transition) Changed() bool {
	return t.From != t.To
}
