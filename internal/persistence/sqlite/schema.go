package sqlite

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// Tables lists the tables created by EnsureSchema.
var Tables = []string{"user", "device", "ruleset", "activity"}

// EnsureSchema creates the activity store tables and indexes when they are
// absent. It is safe to call on every startup and never alters existing
// tables.
func EnsureSchema(ctx context.Context, pool *ConnectionPool) error {
	return pool.WithConn(ctx, func(conn *Conn) error {
		if _, err := conn.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		return nil
	})
}

// tableExists reports whether a table with the given name exists.
func tableExists(ctx context.Context, conn *Conn, name string) (bool, error) {
	var count int
	err := conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MissingTables returns the tables from Tables that do not exist yet.
func MissingTables(ctx context.Context, pool *ConnectionPool) ([]string, error) {
	var missing []string
	err := pool.WithConn(ctx, func(conn *Conn) error {
		for _, table := range Tables {
			ok, err := tableExists(ctx, conn, table)
			if err != nil {
				return fmt.Errorf("inspect table %s: %w", table, err)
			}
			if !ok {
				missing = append(missing, table)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return missing, nil
}
