package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/example/activity-store/internal/persistence"
)

// RulesetRepository implements persistence.RulesetRepository using SQLite.
// Rulesets are insert-only.
type RulesetRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewRulesetRepository creates a new SQLite ruleset repository
func NewRulesetRepository(pool *ConnectionPool) *RulesetRepository {
	return &RulesetRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
	}
}

// CreateRuleset encodes the rules and inserts a ruleset owned by an existing
// user, returning the assigned ID.
func (r *RulesetRepository) CreateRuleset(ctx context.Context, ruleset persistence.Ruleset) (int64, error) {
	if strings.TrimSpace(ruleset.Name) == "" {
		return 0, persistence.ErrConstraintViolation
	}

	blob, err := EncodeRules(ruleset.Rules)
	if err != nil {
		return 0, err
	}

	var id int64
	err = r.pool.WithConn(ctx, func(conn *Conn) error {
		return conn.WithTransaction(ctx, func(tx *sql.Tx) error {
			ok, err := userExists(ctx, tx, ruleset.UserID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("user %d: %w", ruleset.UserID, persistence.ErrNotFound)
			}

			result, err := tx.ExecContext(ctx,
				"INSERT INTO ruleset (user_id, name, rules) VALUES (?, ?, ?)",
				ruleset.UserID, ruleset.Name, blob,
			)
			if err != nil {
				return err
			}
			id, err = result.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to get last insert id: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return 0, r.mapper.MapError(err)
	}
	return id, nil
}

// GetRuleset retrieves a ruleset by ID
func (r *RulesetRepository) GetRuleset(ctx context.Context, id int64) (persistence.Ruleset, error) {
	var ruleset persistence.Ruleset
	err := r.pool.WithConn(ctx, func(conn *Conn) error {
		var err error
		ruleset, err = scanRuleset(conn.QueryRowContext(ctx,
			"SELECT id, user_id, name, rules FROM ruleset WHERE id = ?", id,
		))
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Ruleset{}, persistence.ErrNotFound
		}
		return persistence.Ruleset{}, r.mapper.MapError(err)
	}
	return ruleset, nil
}

// ListRulesetsForUser returns the user's rulesets in creation order
func (r *RulesetRepository) ListRulesetsForUser(ctx context.Context, userID int64) ([]persistence.Ruleset, error) {
	query := `
		SELECT id, user_id, name, rules
		FROM ruleset
		WHERE user_id = ?
		ORDER BY id ASC
	`

	var rulesets []persistence.Ruleset
	err := r.pool.WithConn(ctx, func(conn *Conn) error {
		rows, err := conn.QueryContext(ctx, query, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			ruleset, err := scanRuleset(rows)
			if err != nil {
				return err
			}
			rulesets = append(rulesets, ruleset)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	return rulesets, nil
}

func scanRuleset(row rowScanner) (persistence.Ruleset, error) {
	var (
		ruleset persistence.Ruleset
		blob    []byte
	)
	if err := row.Scan(&ruleset.ID, &ruleset.UserID, &ruleset.Name, &blob); err != nil {
		return persistence.Ruleset{}, err
	}

	rules, err := DecodeRules(blob)
	if err != nil {
		return persistence.Ruleset{}, &persistence.DecodeError{Table: "ruleset", RowID: ruleset.ID, Err: err}
	}
	ruleset.Rules = rules
	return ruleset, nil
}

// rulesetExists reports whether a ruleset with the given ID exists.
func rulesetExists(ctx context.Context, tx *sql.Tx, id int64) (bool, error) {
	var exists int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM ruleset WHERE id = ?", id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
