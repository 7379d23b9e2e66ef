package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/mcdev12/escaperoom/go/internal/models"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Game models.Rules `yaml:"game"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// loadConfig overlays the yaml file on the default rules. A missing file is
// not an error.
func loadConfig(path string) (*Config, error) {
	config := Config{Game: models.DefaultRules()}
	config.Game.StaleAfter = 0

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.Game.SessionDuration = getEnvAsDuration("SESSION_DURATION", config.Game.SessionDuration)
	config.Game.TotalEnigmas = getEnvAsInt("TOTAL_ENIGMAS", config.Game.TotalEnigmas)
	config.Game.PlayerHeartbeatInterval = getEnvAsDuration("PLAYER_HEARTBEAT_INTERVAL", config.Game.PlayerHeartbeatInterval)
	config.Game.DeriveStaleAfter()

	if err := validateRules(config.Game); err != nil {
		return nil, err
	}
	return &config, nil
}

func validateRules(r models.Rules) error {
	switch {
	case r.SessionDuration <= 0:
		return fmt.Errorf("session_duration must be positive")
	case r.PlayerHeartbeatInterval <= 0 || r.MasterHeartbeatInterval <= 0:
		return fmt.Errorf("heartbeat intervals must be positive")
	case r.StaleAfter < r.PlayerHeartbeatInterval:
		return fmt.Errorf("stale_after must be at least player_heartbeat_interval")
	case r.BlockDuration <= 0:
		return fmt.Errorf("block_duration must be positive")
	case r.TotalEnigmas <= 0:
		return fmt.Errorf("total_enigmas must be positive")
	case r.MaxGameMinutes <= 0:
		return fmt.Errorf("max_game_minutes must be positive")
	case r.DefaultMaxPlayers <= 0:
		return fmt.Errorf("default_max_players must be positive")
	}
	return nil
}
