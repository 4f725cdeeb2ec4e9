package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amd-treatment-sim/internal/domain"
)

func TestNewManager_Defaults(t *testing.T) {
	manager, err := NewManager()
	require.NoError(t, err)
	require.NoError(t, manager.Validate())

	cfg := manager.GetConfig()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "data/simulations.db", cfg.Store.SQLitePath)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 1000, cfg.Simulation.DefaultPatients)
	assert.Equal(t, 5.0, cfg.Simulation.DefaultDurationYears)
	assert.Equal(t, int64(42), cfg.Simulation.DefaultSeed)
	assert.True(t, cfg.Resources.Enabled)
	assert.Equal(t, 816.0, cfg.Resources.DrugCost)
	assert.Equal(t, 2, cfg.Resources.SessionsPerDay)
}

func TestNewManager_EnvOverride(t *testing.T) {
	t.Setenv("AMD_SIM_SERVER_PORT", "9090")
	t.Setenv("AMD_SIM_LOGGING_LEVEL", "debug")

	manager, err := NewManager()
	require.NoError(t, err)

	cfg := manager.GetConfig()
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestManager_Validate_BadPort(t *testing.T) {
	manager, err := NewManager()
	require.NoError(t, err)

	manager.GetConfig().Server.Port = 0
	assert.ErrorIs(t, manager.Validate(), domain.ErrInvalidConfig)
}

func TestManager_Validate_UnknownBackend(t *testing.T) {
	manager, err := NewManager()
	require.NoError(t, err)

	manager.GetConfig().Store.Backend = "mysql"
	assert.ErrorIs(t, manager.Validate(), domain.ErrInvalidConfig)
}

func TestManager_Validate_PostgresNeedsURL(t *testing.T) {
	manager, err := NewManager()
	require.NoError(t, err)

	cfg := manager.GetConfig()
	cfg.Store.Backend = "postgres"
	cfg.Store.PostgresURL = ""
	assert.ErrorIs(t, manager.Validate(), domain.ErrInvalidConfig)
}

func TestManager_Validate_BadLogLevel(t *testing.T) {
	manager, err := NewManager()
	require.NoError(t, err)

	manager.GetConfig().Logging.Level = "verbose"
	assert.ErrorIs(t, manager.Validate(), domain.ErrInvalidConfig)
}
