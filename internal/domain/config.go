package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Store      StoreConfig      `mapstructure:"store"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Resources  ResourcesConfig  `mapstructure:"resources"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`

	// Token-bucket limit on simulation launches per second.
	SimulateRateLimit float64 `mapstructure:"simulate_rate_limit"`
	SimulateBurst     int     `mapstructure:"simulate_burst"`

	// Number of recent in-memory results retained for the API.
	ResultCacheSize int `mapstructure:"result_cache_size"`
}

// DatabaseConfig represents PostgreSQL connection configuration for the
// run-metadata repository.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// StoreConfig selects and configures the results store backend.
type StoreConfig struct {
	// Backend is "sqlite" or "postgres".
	Backend string `mapstructure:"backend"`
	// SQLitePath is the database file path for the sqlite backend.
	SQLitePath string `mapstructure:"sqlite_path"`
	// PostgresURL is the connection URL for the postgres backend.
	PostgresURL string `mapstructure:"postgres_url"`
}

// CacheConfig represents the optional Redis results cache.
type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	RedisURL   string        `mapstructure:"redis_url"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// SimulationConfig carries the default run parameters and the protocol
// specification location.
type SimulationConfig struct {
	ProtocolPath         string  `mapstructure:"protocol_path"`
	DefaultPatients      int     `mapstructure:"default_patients"`
	DefaultDurationYears float64 `mapstructure:"default_duration_years"`
	DefaultSeed          int64   `mapstructure:"default_seed"`
	StartDate            string  `mapstructure:"start_date"`
}

// ResourcesConfig configures the workload and cost accounting layer.
type ResourcesConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Unit costs in the clinic's accounting currency.
	DrugCost         float64 `mapstructure:"drug_cost"`
	InjectionCost    float64 `mapstructure:"injection_cost"`
	ConsultationCost float64 `mapstructure:"consultation_cost"`
	OCTCost          float64 `mapstructure:"oct_cost"`

	// Staffing: visits one staff member of each role can handle per
	// session, and sessions available per day per role.
	InjectionCapacityPerSession  int `mapstructure:"injection_capacity_per_session"`
	AssessmentCapacityPerSession int `mapstructure:"assessment_capacity_per_session"`
	SessionsPerDay               int `mapstructure:"sessions_per_day"`
}
