package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config is the service configuration read from the environment.
type Config struct {
	Port        string `env:"PORT"         envDefault:"8000"`
	DatabaseURL string `env:"DATABASE_URL"`
	DBPath      string `env:"DB_PATH"      envDefault:"data/app.db"`
	SeedPath    string `env:"SEED_PATH"    envDefault:"data/seeds/waypoints.json"`

	FailureRate   float64 `env:"FAILURE_RATE"    envDefault:"0.3"`
	RetryAfterMin int     `env:"RETRY_AFTER_MIN" envDefault:"1"`
	RetryAfterMax int     `env:"RETRY_AFTER_MAX" envDefault:"3"`

	EnforceAdjacent       bool `env:"ENFORCE_ADJACENT"         envDefault:"true"`
	AllowResetWithoutLock bool `env:"ALLOW_RESET_WITHOUT_LOCK" envDefault:"true"`
}

// Load parses the environment and normalizes out-of-range values:
// the failure rate is clamped to [0,1] and the Retry-After range is ordered.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("load config: parse env: %w", err)
	}

	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.FailureRate = min(max(cfg.FailureRate, 0), 1)
	cfg.RetryAfterMin = max(cfg.RetryAfterMin, 0)
	if cfg.RetryAfterMax < cfg.RetryAfterMin {
		cfg.RetryAfterMax = cfg.RetryAfterMin
	}

	return cfg, nil
}

// UsePostgres reports whether DATABASE_URL selects the Postgres store.
func (c Config) UsePostgres() bool { return c.DatabaseURL != "" }

// RedactedDatabaseURL returns the database location safe for display.
func (c Config) RedactedDatabaseURL() string {
	if !c.UsePostgres() {
		return "sqlite:" + c.DBPath
	}
	u, err := url.Parse(c.DatabaseURL)
	if err != nil || u.Scheme == "" {
		return "postgres:<redacted>"
	}
	return u.Redacted()
}

// Get returns the environment value for key, or fallback when unset or blank.
func Get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
