package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/escaperoom/go/internal/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDerivesStaleAfter(t *testing.T) {
	config, err := loadConfig(writeConfig(t, "game:\n  player_heartbeat_interval: 3s\n"))
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, config.Game.PlayerHeartbeatInterval)
	assert.Equal(t, 6*time.Second, config.Game.StaleAfter)
	assert.Equal(t, models.DefaultRules().MasterHeartbeatInterval, config.Game.MasterHeartbeatInterval)
}

func TestLoadConfigKeepsExplicitStaleAfter(t *testing.T) {
	config, err := loadConfig(writeConfig(t, "game:\n  stale_after: 30s\n"))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, config.Game.StaleAfter)
}

func TestLoadConfigMissingFile(t *testing.T) {
	config, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, models.DefaultRules(), config.Game)
	assert.Equal(t, models.StaleHeartbeats*config.Game.PlayerHeartbeatInterval, config.Game.StaleAfter)
}

func TestLoadConfigRejectsShortStaleAfter(t *testing.T) {
	_, err := loadConfig(writeConfig(t, "game:\n  player_heartbeat_interval: 5s\n  stale_after: 1s\n"))
	assert.Error(t, err)
}
