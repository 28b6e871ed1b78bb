package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/example/activity-store/internal/persistence"
)

// ConnectionPool manages a bounded set of connections to one SQLite database.
//
// ConnectionPool is safe for concurrent use. A Conn is not: each goroutine
// acquires its own and releases it when done.
type ConnectionPool struct {
	db     *sql.DB
	config SQLiteConfig
	logger *slog.Logger
}

// NewConnectionPool opens the database described by config. An in-memory
// configuration is logged as a warning and pinned to a single connection
// that is never recycled, since the database disappears with it.
func NewConnectionPool(config SQLiteConfig, logger *slog.Logger) (*ConnectionPool, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := config.Validate(); err != nil {
		return nil, &persistence.PoolError{Op: "open", Err: fmt.Errorf("invalid SQLite configuration: %w", err)}
	}

	if config.IsInMemory() {
		logger.Warn("using in-memory database, data is lost when the pool closes", "dsn", config.DSN)
		config.MaxOpenConns = 1
		config.MaxIdleConns = 1
		config.ConnMaxLifetime = 0
	}

	if err := config.createDatabaseDir(); err != nil {
		return nil, &persistence.PoolError{Op: "open", Err: err}
	}

	db, err := sql.Open("sqlite", config.dataSourceName())
	if err != nil {
		return nil, &persistence.PoolError{Op: "open", Err: fmt.Errorf("failed to open SQLite database: %w", err)}
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &persistence.PoolError{Op: "open", Err: fmt.Errorf("failed to ping SQLite database: %w", err)}
	}

	logger.Info("sqlite pool opened",
		"path", config.DSN,
		"in_memory", config.IsInMemory(),
		"max_open_conns", config.MaxOpenConns,
	)

	return &ConnectionPool{
		db:     db,
		config: config,
		logger: logger,
	}, nil
}

// Config returns the effective configuration of the pool.
func (cp *ConnectionPool) Config() SQLiteConfig {
	return cp.config
}

// Stats returns pool usage statistics.
func (cp *ConnectionPool) Stats() sql.DBStats {
	return cp.db.Stats()
}

// Close closes the connection pool
func (cp *ConnectionPool) Close() error {
	if cp == nil || cp.db == nil {
		return nil
	}
	if err := cp.db.Close(); err != nil {
		cp.logger.Error("sqlite pool close error", "path", cp.config.DSN, "error", err)
		return fmt.Errorf("closing %s: %w", cp.config.DSN, err)
	}
	cp.logger.Info("sqlite pool closed", "path", cp.config.DSN)
	return nil
}

// Ping tests the database connection
func (cp *ConnectionPool) Ping(ctx context.Context) error {
	return cp.db.PingContext(ctx)
}

// Acquire borrows an exclusive connection, blocking until one is free. The
// wait ends with a *persistence.PoolError when ctx is done or the configured
// AcquireTimeout elapses. The caller must Release the connection, typically
// via defer:
//
//	conn, err := pool.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer conn.Release()
func (cp *ConnectionPool) Acquire(ctx context.Context) (*Conn, error) {
	acquireCtx := ctx
	if cp.config.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, cp.config.AcquireTimeout)
		defer cancel()
	}

	conn, err := cp.db.Conn(acquireCtx)
	if err != nil {
		return nil, &persistence.PoolError{Op: "acquire", Err: err}
	}
	return &Conn{conn: conn}, nil
}

// WithConn acquires a connection, runs fn and releases the connection on
// every exit path, panics included.
func (cp *ConnectionPool) WithConn(ctx context.Context, fn func(conn *Conn) error) error {
	conn, err := cp.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	return fn(conn)
}

// Conn is a connection held exclusively by one caller.
type Conn struct {
	conn *sql.Conn
	once sync.Once
}

// Release returns the connection to the pool. Calling it more than once is
// a no-op.
func (c *Conn) Release() {
	c.once.Do(func() {
		_ = c.conn.Close()
	})
}

// ExecContext executes a statement that doesn't return rows
func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.conn.ExecContext(ctx, query, args...)
}

// QueryContext executes a query that returns multiple rows
func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.conn.QueryContext(ctx, query, args...)
}

// QueryRowContext executes a query that returns a single row
func (c *Conn) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.conn.QueryRowContext(ctx, query, args...)
}

// TransactionFunc represents a function that executes within a transaction
type TransactionFunc func(tx *sql.Tx) error

// WithTransaction executes fn within a transaction on the held connection.
// If fn returns an error or panics, the transaction is rolled back;
// otherwise it is committed.
func (c *Conn) WithTransaction(ctx context.Context, fn TransactionFunc) error {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ErrorMapper maps SQLite errors to persistence layer errors
type ErrorMapper struct{}

// NewErrorMapper creates a new error mapper
func NewErrorMapper() *ErrorMapper {
	return &ErrorMapper{}
}

// MapError maps SQLite-specific errors to persistence layer errors. Errors
// that are already classified pass through unchanged.
func (em *ErrorMapper) MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}

	var poolErr *persistence.PoolError
	var decodeErr *persistence.DecodeError
	if errors.As(err, &poolErr) || errors.As(err, &decodeErr) {
		return err
	}
	for _, known := range []error{
		persistence.ErrNotFound,
		persistence.ErrDuplicate,
		persistence.ErrForeignKeyViolation,
		persistence.ErrConstraintViolation,
		persistence.ErrInvalidBlob,
	} {
		if errors.Is(err, known) {
			return err
		}
	}

	if errors.Is(err, sql.ErrConnDone) {
		return &persistence.PoolError{Op: "use", Err: err}
	}

	var sqliteErr *sqlitedriver.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%w: %v", persistence.ErrForeignKeyViolation, err)
		}
		if sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
		}
	}

	// Fall back to the message for errors that lost their driver type.
	errStr := err.Error()
	switch {
	case containsAny(errStr, []string{"UNIQUE constraint failed"}):
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	case containsAny(errStr, []string{"FOREIGN KEY constraint failed"}):
		return fmt.Errorf("%w: %v", persistence.ErrForeignKeyViolation, err)
	case containsAny(errStr, []string{"CHECK constraint failed", "NOT NULL constraint failed"}):
		return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	}

	return err
}

// containsAny checks if the string contains any of the given substrings
func containsAny(s string, substrings []string) bool {
	for _, substr := range substrings {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
