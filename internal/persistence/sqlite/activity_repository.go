package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/activity-store/internal/persistence"
)

// ActivityRepository implements persistence.ActivityRepository using SQLite.
// Rows are only ever inserted.
type ActivityRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewActivityRepository creates a new SQLite activity repository
func NewActivityRepository(pool *ConnectionPool) *ActivityRepository {
	return &ActivityRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
	}
}

// AppendActivity inserts one hour bucket. The timestamp must sit exactly on
// a UTC hour boundary. The device and ruleset are checked in the same
// transaction as the insert; when either is missing the result wraps
// persistence.ErrNotFound. Existing rows for the same hour are left alone.
func (r *ActivityRepository) AppendActivity(ctx context.Context, activity persistence.Activity) (int64, error) {
	if !activity.Timestamp.Equal(activity.Timestamp.Truncate(time.Hour)) {
		return 0, fmt.Errorf("%w: activity timestamp %s is not on the hour",
			persistence.ErrConstraintViolation, activity.Timestamp.Format(time.RFC3339Nano))
	}

	blob, err := EncodeEvents(activity.Events)
	if err != nil {
		return 0, err
	}

	var id int64
	err = r.pool.WithConn(ctx, func(conn *Conn) error {
		return conn.WithTransaction(ctx, func(tx *sql.Tx) error {
			ok, err := deviceExists(ctx, tx, activity.DeviceID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("device %s: %w", activity.DeviceID, persistence.ErrNotFound)
			}

			ok, err = rulesetExists(ctx, tx, activity.RulesetID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("ruleset %d: %w", activity.RulesetID, persistence.ErrNotFound)
			}

			result, err := tx.ExecContext(ctx,
				"INSERT INTO activity (timestamp, device_id, data, ruleset_id) VALUES (?, ?, ?, ?)",
				activity.Timestamp.Unix(), activity.DeviceID.String(), blob, activity.RulesetID,
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

// ListActivityForDevice returns every row for the device ordered by hour
// and insertion, with events decoded. An unknown device yields an empty
// list. A row that fails to decode aborts the listing with a
// *persistence.DecodeError naming the row.
func (r *ActivityRepository) ListActivityForDevice(ctx context.Context, deviceID uuid.UUID) ([]persistence.Activity, error) {
	query := `
		SELECT id, timestamp, device_id, data, ruleset_id
		FROM activity
		WHERE device_id = ?
		ORDER BY timestamp ASC, id ASC
	`

	var activities []persistence.Activity
	err := r.pool.WithConn(ctx, func(conn *Conn) error {
		rows, err := conn.QueryContext(ctx, query, deviceID.String())
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			activity, err := scanActivity(rows)
			if err != nil {
				return err
			}
			activities = append(activities, activity)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	return activities, nil
}

func scanActivity(row rowScanner) (persistence.Activity, error) {
	var (
		activity  persistence.Activity
		timestamp int64
		rawID     string
		blob      []byte
	)
	if err := row.Scan(&activity.ID, &timestamp, &rawID, &blob, &activity.RulesetID); err != nil {
		return persistence.Activity{}, err
	}

	deviceID, err := uuid.Parse(rawID)
	if err != nil {
		return persistence.Activity{}, &persistence.DecodeError{Table: "activity", RowID: activity.ID, Err: err}
	}
	events, err := DecodeEvents(blob)
	if err != nil {
		return persistence.Activity{}, &persistence.DecodeError{Table: "activity", RowID: activity.ID, Err: err}
	}

	activity.Timestamp = time.Unix(timestamp, 0).UTC()
	activity.DeviceID = deviceID
	activity.Events = events
	return activity, nil
}
