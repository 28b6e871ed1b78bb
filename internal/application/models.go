package application

import (
	"time"

	"github.com/google/uuid"

	"github.com/example/activity-store/internal/persistence"
)

// CreateUserParams wraps the data required to create a user.
type CreateUserParams struct {
	Username string
	Email    string
	Password string
}

// CreateRulesetParams wraps the data required to create a ruleset.
type CreateRulesetParams struct {
	UserID int64
	Name   string
	Rules  []persistence.Rule
}

// RegisterDeviceParams wraps the data required to register a device.
type RegisterDeviceParams struct {
	UserID   int64
	DeviceID uuid.UUID
	Name     string
}

// ReportActivityParams wraps one hour of events reported by a device.
type ReportActivityParams struct {
	DeviceID  uuid.UUID
	RulesetID int64
	Hour      time.Time
	Events    []persistence.Event
}

// PasswordHasher derives a storable digest from a plaintext password.
type PasswordHasher func(password string) (string, error)

// PasswordVerifier compares a stored digest with a candidate password.
type PasswordVerifier func(password, digest string) (bool, error)
