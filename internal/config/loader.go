package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/example/activity-store/internal/logging"
	"github.com/example/activity-store/internal/persistence/sqlite"
)

// Config captures environment driven configuration values for the activity store.
type Config struct {
	// DatabaseURL is the SQLite file location. Empty selects an in-memory database.
	DatabaseURL    string
	PoolSize       int
	BusyTimeout    time.Duration
	AcquireTimeout time.Duration
	LogLevel       slog.Level
	LogFormat      string
	SeedTestUser   bool
}

// Load parses configuration values from the current process environment.
//
// Optional values fall back to defaults. Every malformed value is collected
// and reported in a single error.
func Load() (Config, error) {
	defaults := sqlite.DefaultSQLiteConfig("")
	cfg := Config{
		PoolSize:    defaults.MaxOpenConns,
		BusyTimeout: defaults.BusyTimeout,
		LogLevel:    slog.LevelInfo,
		LogFormat:   logging.FormatJSON,
	}

	invalid := make([]string, 0, 4)

	if url := strings.TrimSpace(os.Getenv("ACTIVITY_DATABASE_URL")); url != "" {
		cfg.DatabaseURL = normalizeDatabaseURL(url)
	} else if url := strings.TrimSpace(os.Getenv("DATABASE_URL")); url != "" {
		cfg.DatabaseURL = normalizeDatabaseURL(url)
	}

	if sizeValue := strings.TrimSpace(os.Getenv("ACTIVITY_POOL_SIZE")); sizeValue != "" {
		size, err := strconv.Atoi(sizeValue)
		if err != nil || size <= 0 {
			invalid = append(invalid, "ACTIVITY_POOL_SIZE")
		} else {
			cfg.PoolSize = size
		}
	}

	if busyValue := strings.TrimSpace(os.Getenv("ACTIVITY_BUSY_TIMEOUT")); busyValue != "" {
		busy, err := time.ParseDuration(busyValue)
		if err != nil || busy < 0 {
			invalid = append(invalid, "ACTIVITY_BUSY_TIMEOUT")
		} else {
			cfg.BusyTimeout = busy
		}
	}

	if acquireValue := strings.TrimSpace(os.Getenv("ACTIVITY_ACQUIRE_TIMEOUT")); acquireValue != "" {
		acquire, err := time.ParseDuration(acquireValue)
		if err != nil || acquire < 0 {
			invalid = append(invalid, "ACTIVITY_ACQUIRE_TIMEOUT")
		} else {
			cfg.AcquireTimeout = acquire
		}
	}

	if levelValue := strings.TrimSpace(os.Getenv("ACTIVITY_LOG_LEVEL")); levelValue != "" {
		level, err := logging.ParseLevel(levelValue)
		if err != nil {
			invalid = append(invalid, "ACTIVITY_LOG_LEVEL")
		} else {
			cfg.LogLevel = level
		}
	}

	if formatValue := strings.ToLower(strings.TrimSpace(os.Getenv("ACTIVITY_LOG_FORMAT"))); formatValue != "" {
		if formatValue != logging.FormatJSON && formatValue != logging.FormatText {
			invalid = append(invalid, "ACTIVITY_LOG_FORMAT")
		} else {
			cfg.LogFormat = formatValue
		}
	}

	if seedValue := strings.TrimSpace(os.Getenv("ACTIVITY_SEED_TEST_USER")); seedValue != "" {
		seed, err := strconv.ParseBool(seedValue)
		if err != nil {
			invalid = append(invalid, "ACTIVITY_SEED_TEST_USER")
		} else {
			cfg.SeedTestUser = seed
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// SQLiteConfig maps the loaded values onto a pool configuration. An empty
// DatabaseURL yields an in-memory configuration; the pool size does not
// apply there because the in-memory pool always holds one connection.
func (c Config) SQLiteConfig() sqlite.SQLiteConfig {
	var out sqlite.SQLiteConfig
	if c.DatabaseURL == "" {
		out = sqlite.InMemorySQLiteConfig()
	} else {
		out = sqlite.DefaultSQLiteConfig(c.DatabaseURL)
		if c.PoolSize > 0 {
			out.MaxOpenConns = c.PoolSize
			if out.MaxIdleConns > c.PoolSize {
				out.MaxIdleConns = c.PoolSize
			}
		}
	}
	if c.BusyTimeout > 0 {
		out.BusyTimeout = c.BusyTimeout
	}
	out.AcquireTimeout = c.AcquireTimeout
	return out
}

// normalizeDatabaseURL strips a sqlite:// scheme so URLs written for other
// tooling can be used unchanged.
func normalizeDatabaseURL(raw string) string {
	for _, prefix := range []string{"sqlite://", "sqlite:"} {
		if strings.HasPrefix(raw, prefix) {
			return strings.TrimPrefix(raw, prefix)
		}
	}
	return raw
}
