package models

import "time"

// Rules are the tunable game constants shared by the server components.
type Rules struct {
	SessionDuration         time.Duration `yaml:"session_duration"`
	PlayerHeartbeatInterval time.Duration `yaml:"player_heartbeat_interval"`
	MasterHeartbeatInterval time.Duration `yaml:"master_heartbeat_interval"`
	StaleAfter              time.Duration `yaml:"stale_after"`
	BlockDuration           time.Duration `yaml:"block_duration"`
	TotalEnigmas            int           `yaml:"total_enigmas"`
	PointsPerEnigma         int           `yaml:"points_per_enigma"`
	FinalBonus              int           `yaml:"final_bonus"`
	MaxGameMinutes          int           `yaml:"max_game_minutes"`
	DefaultMaxPlayers       int           `yaml:"default_max_players"`
	SingleActiveSession     bool          `yaml:"single_active_session"`
}

// StaleHeartbeats is how many player heartbeats may be missed before the
// player shows as stale.
const StaleHeartbeats = 2

// DefaultRules returns the rules the game ships with.
func DefaultRules() Rules {
	r := Rules{
		SessionDuration:         5 * time.Hour,
		PlayerHeartbeatInterval: 5 * time.Second,
		MasterHeartbeatInterval: 10 * time.Second,
		BlockDuration:           180 * time.Second,
		TotalEnigmas:            10,
		PointsPerEnigma:         100,
		FinalBonus:              500,
		MaxGameMinutes:          300,
		DefaultMaxPlayers:       6,
		SingleActiveSession:     true,
	}
	r.DeriveStaleAfter()
	return r
}

// DeriveStaleAfter sets StaleAfter from the player heartbeat interval unless
// it was configured.
func (r *Rules) DeriveStaleAfter() {
	if r.StaleAfter <= 0 {
		r.StaleAfter = StaleHeartbeats * r.PlayerHeartbeatInterval
	}
}

// Score is derived from solved-puzzle count, so it only moves with the solve log.
func (r Rules) Score(solved int, finalSolved bool) int {
	score := solved * r.PointsPerEnigma
	if finalSolved {
		score += r.FinalBonus
	}
	return score
}
