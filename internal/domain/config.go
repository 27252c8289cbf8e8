package domain

import "time"

// Config holds the complete Harrier configuration.
type Config struct {
	// Server settings
	Server ServerConfig `yaml:"server"`

	// Component configurations
	Source     SourceConfig     `yaml:"source"`
	Repository RepositoryConfig `yaml:"repository"`
	Cache      CacheConfig      `yaml:"cache"`
	EventBus   EventBusConfig   `yaml:"eventBus"`
	Mail       MailConfig       `yaml:"mail"`
	Report     ReportConfig     `yaml:"report"`

	// Risk rules seeded when the repository holds none
	Rules []RiskRule `yaml:"rules"`

	// Scoring concurrency
	ScoringWorkers int `yaml:"scoringWorkers"`

	// Observability
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`  // seconds
	WriteTimeout int    `yaml:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultSourceLimit is the number of records loaded when no limit is configured.
const DefaultSourceLimit = 10000

// DefaultConfig returns a configuration that runs entirely in-process:
// SQLite source, LRU cache and channel bus.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8050,
			ReadTimeout:  30,
			WriteTimeout: 60,
		},
		Source: SourceConfig{
			Type:            "sql",
			Limit:           DefaultSourceLimit,
			MongoDatabase:   "transactions",
			MongoCollection: "transactions",
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./harrier.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 1000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 100,
		},
		Mail: MailConfig{
			SMTPServer: "smtp.gmail.com",
			SMTPPort:   587,
			FromName:   "Dashboard de Seguridad",
		},
		Report: ReportConfig{
			MaxPerHour: 20,
			ResultTTL:  24 * time.Hour,
		},
		ScoringWorkers: 8,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
