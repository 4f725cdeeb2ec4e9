// Package config loads application configuration and protocol
// specifications via Viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/amd-treatment-sim/internal/domain"
)

// Manager loads and validates the application configuration.
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from file, environment and defaults.
func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/amd-treatment-sim/")

	viper.SetEnvPrefix("AMD_SIM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults and env vars cover the rest.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values.
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "300s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.simulate_rate_limit", 1.0)
	viper.SetDefault("server.simulate_burst", 2)
	viper.SetDefault("server.result_cache_size", 16)

	// Database defaults (postgres run repository)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "amd_treatment_sim")
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_conns", 10)
	viper.SetDefault("database.min_conns", 2)
	viper.SetDefault("database.conn_max_lifetime", "30m")
	viper.SetDefault("database.conn_max_idle_time", "5m")
	viper.SetDefault("database.migrations_path", "migrations")

	// Results store defaults
	viper.SetDefault("store.backend", "sqlite")
	viper.SetDefault("store.sqlite_path", "data/simulations.db")

	// Cache defaults
	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.redis_url", "redis://localhost:6379")
	viper.SetDefault("cache.default_ttl", "24h")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")

	// Simulation defaults
	viper.SetDefault("simulation.protocol_path", "protocols/eylea_treat_and_extend.yaml")
	viper.SetDefault("simulation.default_patients", 1000)
	viper.SetDefault("simulation.default_duration_years", 5.0)
	viper.SetDefault("simulation.default_seed", 42)
	viper.SetDefault("simulation.start_date", "2024-01-01")

	// Resource tracking defaults
	viper.SetDefault("resources.enabled", true)
	viper.SetDefault("resources.drug_cost", 816.0)
	viper.SetDefault("resources.injection_cost", 134.0)
	viper.SetDefault("resources.consultation_cost", 75.0)
	viper.SetDefault("resources.oct_cost", 45.0)
	viper.SetDefault("resources.injection_capacity_per_session", 14)
	viper.SetDefault("resources.assessment_capacity_per_session", 12)
	viper.SetDefault("resources.sessions_per_day", 2)
}

// GetConfig returns the complete configuration.
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns the HTTP server configuration.
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetDatabaseConfig returns the postgres configuration.
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// Validate validates the configuration.
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid server port %d", domain.ErrInvalidConfig, config.Server.Port)
	}

	switch config.Store.Backend {
	case "sqlite":
		if config.Store.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite backend requires store.sqlite_path", domain.ErrInvalidConfig)
		}
	case "postgres":
		if config.Store.PostgresURL == "" {
			return fmt.Errorf("%w: postgres backend requires store.postgres_url", domain.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q", domain.ErrInvalidConfig, config.Store.Backend)
	}

	if config.Simulation.DefaultPatients <= 0 {
		return fmt.Errorf("%w: simulation.default_patients must be positive", domain.ErrInvalidConfig)
	}
	if config.Simulation.DefaultDurationYears <= 0 {
		return fmt.Errorf("%w: simulation.default_duration_years must be positive", domain.ErrInvalidConfig)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("%w: invalid log level %q", domain.ErrInvalidConfig, config.Logging.Level)
	}

	return nil
}
