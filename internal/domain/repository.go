// Package domain defines the core interfaces and types for Harrier.
package domain

import (
	"context"
	"time"
)

// Source loads a bounded batch of raw transactions from storage.
type Source interface {
	// LoadTransactions returns at most limit records. limit <= 0 means the
	// source default.
	LoadTransactions(ctx context.Context, limit int) ([]RawTransaction, error)

	// Lifecycle
	Close() error
}

// Repository is the SQL-backed store for transactions and risk rules.
type Repository interface {
	Source

	// Transaction operations
	SaveTransactions(ctx context.Context, txs []RawTransaction) error

	// Risk rule configuration operations
	SaveRiskRule(ctx context.Context, rule *RiskRule) error
	ListRiskRules(ctx context.Context) ([]*RiskRule, error)

	// Health check
	Ping(ctx context.Context) error
}

// SourceConfig selects and configures the transaction source.
type SourceConfig struct {
	// Type is the source type: "sql", "mongo" or "csv"
	Type string `yaml:"type"`

	// Limit caps the number of records loaded at startup
	Limit int `yaml:"limit"`

	// CSV specific
	CSVPath string `yaml:"csvPath"`

	// MongoDB specific
	MongoURI        string `yaml:"mongoUri"`
	MongoDatabase   string `yaml:"mongoDatabase"`
	MongoCollection string `yaml:"mongoCollection"`
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `yaml:"driver"`

	// SQLite specific
	SQLitePath string `yaml:"sqlitePath"`

	// PostgreSQL specific
	PostgresHost     string `yaml:"postgresHost"`
	PostgresPort     int    `yaml:"postgresPort"`
	PostgresUser     string `yaml:"postgresUser"`
	PostgresPassword string `yaml:"postgresPassword"`
	PostgresDB       string `yaml:"postgresDb"`
	PostgresSSLMode  string `yaml:"postgresSslMode"`

	// Connection pool settings
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}
