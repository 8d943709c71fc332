package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadManagerDefaults(t *testing.T) {
	cfg, err := LoadManager()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.ServerPort)
	assert.Equal(t, "http://localhost:8000/mcp", cfg.PublicEndpoint)
	assert.Equal(t, "even_odd", cfg.GameType)
	assert.Equal(t, "2.1.0", cfg.RequiredProtocolVersion)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 2*time.Second, cfg.RetryDelay)
	assert.Equal(t, 3, cfg.WinPoints)
	assert.Equal(t, 1, cfg.DrawPoints)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.False(t, cfg.R2Enabled())
	assert.False(t, cfg.EmailEnabled())
}

func TestLoadManagerValidation(t *testing.T) {
	t.Run("bad port", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "70000")
		_, err := LoadManager()
		assert.Error(t, err)
	})
	t.Run("sql store needs dsn", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "postgres")
		t.Setenv("DATABASE_URL", "")
		_, err := LoadManager()
		assert.Error(t, err)
	})
	t.Run("unknown store", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "redis")
		_, err := LoadManager()
		assert.Error(t, err)
	})
}

func TestLoadRefereeListsGameTypes(t *testing.T) {
	t.Setenv("GAME_TYPES", "even_odd,tic_tac_toe")

	cfg, err := LoadReferee()
	require.NoError(t, err)
	assert.Equal(t, []string{"even_odd", "tic_tac_toe"}, cfg.GameTypes)
	assert.Equal(t, 8001, cfg.ServerPort)
	assert.Equal(t, 3, cfg.ChoiceAttempts)
}

func TestSlogLevel(t *testing.T) {
	c := Common{LogLevel: "DEBUG"}
	assert.Equal(t, slog.LevelDebug, c.SlogLevel())
	c.LogLevel = "nonsense"
	assert.Equal(t, slog.LevelInfo, c.SlogLevel())
}
