package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/example/activity-store/internal/persistence"
)

// DeviceRepository implements persistence.DeviceRepository using SQLite
type DeviceRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewDeviceRepository creates a new SQLite device repository
func NewDeviceRepository(pool *ConnectionPool) *DeviceRepository {
	return &DeviceRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
	}
}

// CreateDevice registers a device under an existing user. The device ID is
// the primary key, so an ID already registered by any user is rejected with
// persistence.ErrDuplicate.
func (r *DeviceRepository) CreateDevice(ctx context.Context, device persistence.Device) error {
	if device.ID == uuid.Nil || strings.TrimSpace(device.Name) == "" {
		return persistence.ErrConstraintViolation
	}

	err := r.pool.WithConn(ctx, func(conn *Conn) error {
		return conn.WithTransaction(ctx, func(tx *sql.Tx) error {
			ok, err := userExists(ctx, tx, device.UserID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("user %d: %w", device.UserID, persistence.ErrNotFound)
			}

			_, err = tx.ExecContext(ctx,
				"INSERT INTO device (id, user_id, name) VALUES (?, ?, ?)",
				device.ID.String(), device.UserID, device.Name,
			)
			return err
		})
	})
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// GetDevice retrieves a device by ID. LastSeen is left nil.
func (r *DeviceRepository) GetDevice(ctx context.Context, id uuid.UUID) (persistence.Device, error) {
	var device persistence.Device
	err := r.pool.WithConn(ctx, func(conn *Conn) error {
		var err error
		device, err = scanDevice(conn.QueryRowContext(ctx,
			"SELECT id, user_id, name FROM device WHERE id = ?", id.String(),
		))
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Device{}, persistence.ErrNotFound
		}
		return persistence.Device{}, r.mapper.MapError(err)
	}
	return device, nil
}

// ListDevicesForUser returns the user's devices ordered by name. LastSeen is
// left nil.
func (r *DeviceRepository) ListDevicesForUser(ctx context.Context, userID int64) ([]persistence.Device, error) {
	query := `
		SELECT id, user_id, name
		FROM device
		WHERE user_id = ?
		ORDER BY name ASC, id ASC
	`

	var devices []persistence.Device
	err := r.pool.WithConn(ctx, func(conn *Conn) error {
		rows, err := conn.QueryContext(ctx, query, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			device, err := scanDevice(rows)
			if err != nil {
				return err
			}
			devices = append(devices, device)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	return devices, nil
}

func scanDevice(row rowScanner) (persistence.Device, error) {
	var (
		device persistence.Device
		rawID  string
	)
	if err := row.Scan(&rawID, &device.UserID, &device.Name); err != nil {
		return persistence.Device{}, err
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return persistence.Device{}, fmt.Errorf("%w: device id %q: %v", persistence.ErrInvalidBlob, rawID, err)
	}
	device.ID = id
	return device, nil
}

// deviceExists reports whether a device with the given ID exists.
func deviceExists(ctx context.Context, tx *sql.Tx, id uuid.UUID) (bool, error) {
	var exists int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM device WHERE id = ?", id.String()).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
