package models

import "fmt"

// Phase is where a player currently is in the game flow.
type Phase string

const (
	PhaseWaiting         Phase = "waiting"
	PhaseEnvelopes       Phase = "envelopes"
	PhaseEnigma          Phase = "enigma"
	PhasePuzzleReward    Phase = "puzzle-reward"
	PhaseRoulette        Phase = "roulette"
	PhaseFinalPuzzle     Phase = "final-puzzle"
	PhaseFinalEnigma     Phase = "final-enigma"
	PhaseCongratulations Phase = "congratulations"
)

var validPhases = map[Phase]bool{
	PhaseWaiting:         true,
	PhaseEnvelopes:       true,
	PhaseEnigma:          true,
	PhasePuzzleReward:    true,
	PhaseRoulette:        true,
	PhaseFinalPuzzle:     true,
	PhaseFinalEnigma:     true,
	PhaseCongratulations: true,
}

// ParsePhase validates a phase name sent by a client.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !validPhases[p] {
		return "", fmt.Errorf("%w: unknown phase %q", ErrInvalidArgument, s)
	}
	return p, nil
}
