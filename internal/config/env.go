package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// LookupFunc reports the value of an environment variable.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg with the environment variables that are set.
func ApplyEnv(cfg *domain.Config, lookup LookupFunc) error {
	e := envReader{lookup: lookup}

	// Server
	e.setString("HARRIER_HOST", &cfg.Server.Host)
	e.setInt("HARRIER_PORT", &cfg.Server.Port)
	e.setString("HARRIER_LOG_LEVEL", &cfg.Logging.Level)
	e.setString("HARRIER_LOG_FORMAT", &cfg.Logging.Format)
	e.setInt("HARRIER_SCORING_WORKERS", &cfg.ScoringWorkers)

	// Source
	e.setString("HARRIER_SOURCE", &cfg.Source.Type)
	e.setInt("HARRIER_SOURCE_LIMIT", &cfg.Source.Limit)
	e.setString("HARRIER_CSV_PATH", &cfg.Source.CSVPath)
	e.setString("MONGODB_URI", &cfg.Source.MongoURI)
	e.setString("DB_NAME", &cfg.Source.MongoDatabase)
	e.setString("COLLECTION_NAME", &cfg.Source.MongoCollection)

	// Repository
	e.setString("HARRIER_DB_DRIVER", &cfg.Repository.Driver)
	e.setString("HARRIER_SQLITE_PATH", &cfg.Repository.SQLitePath)
	e.setString("HARRIER_PG_HOST", &cfg.Repository.PostgresHost)
	e.setInt("HARRIER_PG_PORT", &cfg.Repository.PostgresPort)
	e.setString("HARRIER_PG_USER", &cfg.Repository.PostgresUser)
	e.setString("HARRIER_PG_PASSWORD", &cfg.Repository.PostgresPassword)
	e.setString("HARRIER_PG_DB", &cfg.Repository.PostgresDB)
	e.setString("HARRIER_PG_SSLMODE", &cfg.Repository.PostgresSSLMode)

	// Cache
	e.setString("HARRIER_CACHE", &cfg.Cache.Type)
	e.setString("HARRIER_REDIS_ADDR", &cfg.Cache.RedisAddr)
	e.setString("HARRIER_REDIS_PASSWORD", &cfg.Cache.RedisPassword)
	e.setDuration("HARRIER_CACHE_TTL", &cfg.Cache.LocalTTL)

	// Event bus
	e.setString("HARRIER_BUS", &cfg.EventBus.Type)
	e.setString("HARRIER_NATS_URL", &cfg.EventBus.NATSUrl)
	e.setString("HARRIER_NATS_TOKEN", &cfg.EventBus.NATSToken)

	// Mail
	e.setString("EMAIL_SMTP_SERVER", &cfg.Mail.SMTPServer)
	e.setInt("EMAIL_SMTP_PORT", &cfg.Mail.SMTPPort)
	e.setString("EMAIL_ADDRESS", &cfg.Mail.Address)
	e.setString("EMAIL_PASSWORD", &cfg.Mail.Password)
	e.setString("EMAIL_FROM_NAME", &cfg.Mail.FromName)

	// Report
	e.setList("HARRIER_REPORT_RECIPIENTS", &cfg.Report.Recipients)
	e.setInt("HARRIER_REPORT_MAX_PER_HOUR", &cfg.Report.MaxPerHour)
	e.setBool("HARRIER_REPORT_WORKER", &cfg.Report.Worker)

	return e.err
}

// envReader records the first parse error and skips later assignments.
type envReader struct {
	lookup LookupFunc
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	v, ok := e.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) setString(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) setInt(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.err = fmt.Errorf("%s: invalid integer %q", key, v)
			return
		}
		*dst = n
	}
}

func (e *envReader) setBool(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.err = fmt.Errorf("%s: invalid boolean %q", key, v)
			return
		}
		*dst = b
	}
}

func (e *envReader) setDuration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.err = fmt.Errorf("%s: invalid duration %q", key, v)
			return
		}
		*dst = d
	}
}

func (e *envReader) setList(key string, dst *[]string) {
	if v, ok := e.get(key); ok {
		var out []string
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		*dst = out
	}
}
