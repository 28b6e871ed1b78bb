package sqlite

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MemoryDSN selects a private in-memory database.
const MemoryDSN = ":memory:"

// SQLiteConfig holds SQLite-specific database configuration
type SQLiteConfig struct {
	// DSN is the database file path. Empty or ":memory:" selects an
	// in-memory database that lives as long as the pool.
	DSN string

	// BusyTimeout sets how long to wait for database locks
	BusyTimeout time.Duration

	// EnableForeignKeys enables foreign key constraint checking
	EnableForeignKeys bool

	// JournalMode sets the SQLite journal mode (WAL, DELETE, TRUNCATE, etc.)
	JournalMode string

	// Synchronous sets the synchronous mode (FULL, NORMAL, OFF)
	Synchronous string

	// CacheSize sets the page cache size in KB (negative for pages)
	CacheSize int

	// MaxOpenConns bounds the number of connections handed out at once
	MaxOpenConns int

	// MaxIdleConns sets the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime sets the maximum lifetime of connections
	ConnMaxLifetime time.Duration

	// AcquireTimeout bounds how long Acquire waits for a free connection.
	// Zero waits until the caller's context is done.
	AcquireTimeout time.Duration
}

// IsInMemory reports whether the configuration selects an in-memory
// database: empty, ":memory:", "file::memory:" with or without parameters,
// or a "file:" URI carrying mode=memory.
func (c SQLiteConfig) IsInMemory() bool {
	dsn := strings.TrimSpace(c.DSN)
	switch {
	case dsn == "", strings.HasPrefix(dsn, MemoryDSN):
		return true
	case strings.HasPrefix(dsn, "file:"+MemoryDSN):
		return true
	case strings.HasPrefix(dsn, "file:"):
		_, query, ok := strings.Cut(dsn, "?")
		if !ok {
			return false
		}
		values, err := url.ParseQuery(query)
		return err == nil && values.Get("mode") == "memory"
	}
	return false
}

// Validate validates the SQLite configuration
func (c SQLiteConfig) Validate() error {
	if c.BusyTimeout < 0 {
		return fmt.Errorf("BusyTimeout cannot be negative")
	}

	validJournalModes := map[string]bool{
		"DELETE":   true,
		"TRUNCATE": true,
		"PERSIST":  true,
		"MEMORY":   true,
		"WAL":      true,
		"OFF":      true,
	}
	if c.JournalMode != "" && !validJournalModes[strings.ToUpper(c.JournalMode)] {
		return fmt.Errorf("invalid journal mode: %s", c.JournalMode)
	}

	validSyncModes := map[string]bool{
		"OFF":    true,
		"NORMAL": true,
		"FULL":   true,
		"EXTRA":  true,
	}
	if c.Synchronous != "" && !validSyncModes[strings.ToUpper(c.Synchronous)] {
		return fmt.Errorf("invalid synchronous mode: %s", c.Synchronous)
	}

	if c.MaxOpenConns < 0 {
		return fmt.Errorf("MaxOpenConns cannot be negative")
	}
	if c.MaxIdleConns < 0 {
		return fmt.Errorf("MaxIdleConns cannot be negative")
	}
	if c.ConnMaxLifetime < 0 {
		return fmt.Errorf("ConnMaxLifetime cannot be negative")
	}
	if c.AcquireTimeout < 0 {
		return fmt.Errorf("AcquireTimeout cannot be negative")
	}

	return nil
}

// dataSourceName renders the DSN handed to the driver. Pragmas travel as
// _pragma query parameters so that every connection the pool opens applies
// them, not only the first one.
func (c SQLiteConfig) dataSourceName() string {
	dsn := strings.TrimSpace(c.DSN)
	if c.IsInMemory() && dsn == "" {
		dsn = MemoryDSN
	}

	params := url.Values{}
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	if c.JournalMode != "" {
		params.Add("_pragma", fmt.Sprintf("journal_mode(%s)", strings.ToUpper(c.JournalMode)))
	}
	if c.Synchronous != "" {
		params.Add("_pragma", fmt.Sprintf("synchronous(%s)", strings.ToUpper(c.Synchronous)))
	}
	if c.EnableForeignKeys {
		params.Add("_pragma", "foreign_keys(1)")
	} else {
		params.Add("_pragma", "foreign_keys(0)")
	}
	if c.CacheSize != 0 {
		params.Add("_pragma", fmt.Sprintf("cache_size(%d)", c.CacheSize))
	}
	params.Set("_txlock", "immediate")

	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + params.Encode()
}

// createDatabaseDir creates the parent directory of a file-backed database.
func (c SQLiteConfig) createDatabaseDir() error {
	if c.IsInMemory() {
		return nil
	}

	path := strings.TrimPrefix(c.DSN, "file:")
	if idx := strings.Index(path, "?"); idx >= 0 {
		path = path[:idx]
	}

	dbDir := filepath.Dir(path)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
	}
	return nil
}

// DefaultSQLiteConfig returns a SQLite configuration with sensible defaults
func DefaultSQLiteConfig(databasePath string) SQLiteConfig {
	return SQLiteConfig{
		DSN:               databasePath,
		BusyTimeout:       30 * time.Second,
		EnableForeignKeys: true,
		JournalMode:       "WAL",
		Synchronous:       "NORMAL",
		CacheSize:         -2000, // 2000 pages
		MaxOpenConns:      8,
		MaxIdleConns:      4,
		ConnMaxLifetime:   5 * time.Minute,
	}
}

// InMemorySQLiteConfig returns a configuration for a private in-memory
// database. The pool keeps a single connection open for its whole life.
func InMemorySQLiteConfig() SQLiteConfig {
	return SQLiteConfig{
		DSN:               MemoryDSN,
		BusyTimeout:       5 * time.Second,
		EnableForeignKeys: true,
		JournalMode:       "MEMORY",
		Synchronous:       "OFF",
		CacheSize:         -1000,
		MaxOpenConns:      1,
		MaxIdleConns:      1,
	}
}

// TempFileTestSQLiteConfig returns a SQLite configuration for temporary file-based testing
func TempFileTestSQLiteConfig(tempFilePath string) SQLiteConfig {
	return SQLiteConfig{
		DSN:               tempFilePath,
		BusyTimeout:       5 * time.Second,
		EnableForeignKeys: true,
		JournalMode:       "WAL",
		Synchronous:       "OFF",
		CacheSize:         -1000,
		MaxOpenConns:      4,
		MaxIdleConns:      2,
		ConnMaxLifetime:   time.Minute,
	}
}
