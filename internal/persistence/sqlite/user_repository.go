package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/example/activity-store/internal/persistence"
)

// UserRepository implements persistence.UserRepository using SQLite
type UserRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewUserRepository creates a new SQLite user repository
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
	}
}

// CreateUser inserts a new user and returns its assigned ID
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) (int64, error) {
	if strings.TrimSpace(user.Username) == "" || strings.TrimSpace(user.Email) == "" {
		return 0, persistence.ErrConstraintViolation
	}
	if user.PasswordHash == "" {
		return 0, persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO user (username, email, password)
		VALUES (?, ?, ?)
	`

	var id int64
	err := r.pool.WithConn(ctx, func(conn *Conn) error {
		result, err := conn.ExecContext(ctx, query,
			user.Username,
			normalizeEmail(user.Email),
			user.PasswordHash,
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
	if err != nil {
		return 0, r.mapper.MapError(err)
	}

	return id, nil
}

// GetUser retrieves a user by ID
func (r *UserRepository) GetUser(ctx context.Context, id int64) (persistence.User, error) {
	query := `
		SELECT id, username, email, password
		FROM user
		WHERE id = ?
	`
	return r.getOne(ctx, query, id)
}

// GetUserByUsername retrieves a user by username
func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (persistence.User, error) {
	if username == "" {
		return persistence.User{}, persistence.ErrNotFound
	}

	query := `
		SELECT id, username, email, password
		FROM user
		WHERE username = ?
	`
	return r.getOne(ctx, query, username)
}

// ListUsers returns all users ordered by ID
func (r *UserRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	query := `
		SELECT id, username, email, password
		FROM user
		ORDER BY id ASC
	`

	var users []persistence.User
	err := r.pool.WithConn(ctx, func(conn *Conn) error {
		rows, err := conn.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			user, err := scanUser(rows)
			if err != nil {
				return err
			}
			users = append(users, user)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, r.mapper.MapError(err)
	}

	return users, nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (persistence.User, error) {
	var user persistence.User
	err := r.pool.WithConn(ctx, func(conn *Conn) error {
		var err error
		user, err = scanUser(conn.QueryRowContext(ctx, query, arg))
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.User{}, persistence.ErrNotFound
		}
		return persistence.User{}, r.mapper.MapError(err)
	}
	return user, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (persistence.User, error) {
	var user persistence.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
	)
	return user, err
}

// userExists reports whether a user with the given ID exists.
func userExists(ctx context.Context, tx *sql.Tx, id int64) (bool, error) {
	var exists int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM user WHERE id = ?", id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// normalizeEmail normalizes email addresses for consistent storage and lookup
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
