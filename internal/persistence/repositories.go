package persistence

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository stores user accounts.
type UserRepository interface {
	// CreateUser inserts the user and returns the assigned ID.
	CreateUser(ctx context.Context, user User) (int64, error)
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// DeviceRepository stores device registrations. LastSeen is never persisted.
type DeviceRepository interface {
	CreateDevice(ctx context.Context, device Device) error
	GetDevice(ctx context.Context, id uuid.UUID) (Device, error)
	ListDevicesForUser(ctx context.Context, userID int64) ([]Device, error)
}

// RulesetRepository stores immutable rulesets.
type RulesetRepository interface {
	CreateRuleset(ctx context.Context, ruleset Ruleset) (int64, error)
	GetRuleset(ctx context.Context, id int64) (Ruleset, error)
	ListRulesetsForUser(ctx context.Context, userID int64) ([]Ruleset, error)
}

// ActivityRepository is the append-only activity log.
type ActivityRepository interface {
	// AppendActivity inserts a new row after confirming that the device and
	// ruleset exist. It returns ErrNotFound when either is missing.
	AppendActivity(ctx context.Context, activity Activity) (int64, error)
	ListActivityForDevice(ctx context.Context, deviceID uuid.UUID) ([]Activity, error)
}
