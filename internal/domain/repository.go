package domain

import (
	"context"
	"time"
)

// Repository defines the interface for run artifact persistence.
// Saving a run replaces any previously stored artifacts for the same date.
type Repository interface {
	SaveRun(ctx context.Context, artifacts *RunArtifacts) error
	GetRun(ctx context.Context, date string) (*RunArtifacts, error)
	LatestRunDate(ctx context.Context) (string, error)
	ListRunDates(ctx context.Context, limit int) ([]string, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `yaml:"driver" mapstructure:"driver"`

	// SQLite specific
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`

	// PostgreSQL specific
	PostgresHost     string `yaml:"postgres_host" mapstructure:"postgres_host"`
	PostgresPort     int    `yaml:"postgres_port" mapstructure:"postgres_port"`
	PostgresUser     string `yaml:"postgres_user" mapstructure:"postgres_user"`
	PostgresPassword string `yaml:"postgres_password" mapstructure:"postgres_password"`
	PostgresDB       string `yaml:"postgres_db" mapstructure:"postgres_db"`
	PostgresSSLMode  string `yaml:"postgres_sslmode" mapstructure:"postgres_sslmode"`

	// Connection pool settings
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}
