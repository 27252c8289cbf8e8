// Package config loads the Harrier configuration from defaults, an optional
// YAML file, a .env file and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/opensource-finance/harrier/internal/domain"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment are used.
func Load(path string) (*domain.Config, error) {
	cfg := domain.DefaultConfig()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	// A missing .env file is fine
	_ = godotenv.Load()

	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *domain.Config) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml)", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// Validate rejects configurations that cannot start.
func Validate(cfg *domain.Config) error {
	var errs []error

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d out of range", cfg.Server.Port))
	}

	switch cfg.Source.Type {
	case "sql":
	case "csv":
		if cfg.Source.CSVPath == "" {
			errs = append(errs, errors.New("csv source requires csvPath"))
		}
	case "mongo":
		if cfg.Source.MongoURI == "" {
			errs = append(errs, errors.New("mongo source requires mongoUri"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported source type: %q", cfg.Source.Type))
	}
	if cfg.Source.Limit < 0 {
		errs = append(errs, errors.New("source limit must not be negative"))
	}

	switch cfg.Repository.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver: %q", cfg.Repository.Driver))
	}

	switch cfg.Cache.Type {
	case "memory":
	case "redis":
		if cfg.Cache.RedisAddr == "" {
			errs = append(errs, errors.New("redis cache requires redisAddr"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported cache type: %q", cfg.Cache.Type))
	}

	switch cfg.EventBus.Type {
	case "channel":
	case "nats":
		if cfg.EventBus.NATSUrl == "" {
			errs = append(errs, errors.New("nats bus requires natsUrl"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported event bus type: %q", cfg.EventBus.Type))
	}

	if cfg.Mail.SMTPPort <= 0 || cfg.Mail.SMTPPort > 65535 {
		errs = append(errs, fmt.Errorf("smtp port %d out of range", cfg.Mail.SMTPPort))
	}
	if cfg.Report.MaxPerHour < 0 {
		errs = append(errs, errors.New("report maxPerHour must not be negative"))
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unsupported log level: %q", cfg.Logging.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
