package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/activity-store/internal/persistence"
)

// StoreDeps captures the repositories and collaborators behind a Store.
type StoreDeps struct {
	Users    UserRepository
	Devices  DeviceRepository
	Rulesets RulesetRepository
	Activity ActivityRepository

	// HashPassword and VerifyPassword default to the credential package.
	HashPassword   PasswordHasher
	VerifyPassword PasswordVerifier

	Logger *slog.Logger
}

// Store is the boundary consumed by the web layer. Each method delegates to
// the service owning the entity.
type Store struct {
	Users    *UserService
	Devices  *DeviceService
	Rulesets *RulesetService
	Activity *ActivityService
}

// NewStore wires the services over the supplied repositories.
func NewStore(deps StoreDeps) *Store {
	activity := NewActivityService(deps.Activity, deps.Logger)
	return &Store{
		Users:    NewUserService(deps.Users, deps.HashPassword, deps.VerifyPassword, deps.Logger),
		Devices:  NewDeviceService(deps.Devices, activity, deps.Logger),
		Rulesets: NewRulesetService(deps.Rulesets, deps.Logger),
		Activity: activity,
	}
}

// CreateUser registers a new account.
func (s *Store) CreateUser(ctx context.Context, username, email, password string) error {
	_, err := s.Users.CreateUser(ctx, CreateUserParams{Username: username, Email: email, Password: password})
	return err
}

// VerifyCredentials checks a username and password pair.
func (s *Store) VerifyCredentials(ctx context.Context, username, password string) (bool, error) {
	return s.Users.VerifyCredentials(ctx, username, password)
}

// GetUser looks a user up by username.
func (s *Store) GetUser(ctx context.Context, username string) (persistence.User, error) {
	return s.Users.GetUser(ctx, username)
}

// ListUsers returns every user ordered by ID.
func (s *Store) ListUsers(ctx context.Context) ([]persistence.User, error) {
	return s.Users.ListUsers(ctx)
}

// RegisterDevice adds a device for a user.
func (s *Store) RegisterDevice(ctx context.Context, userID int64, deviceID uuid.UUID, name string) error {
	return s.Devices.RegisterDevice(ctx, RegisterDeviceParams{UserID: userID, DeviceID: deviceID, Name: name})
}

// ListDevices returns the user's devices with LastSeen derived.
func (s *Store) ListDevices(ctx context.Context, userID int64) ([]persistence.Device, error) {
	return s.Devices.ListDevices(ctx, userID)
}

// GetDevice returns one device with LastSeen derived.
func (s *Store) GetDevice(ctx context.Context, deviceID uuid.UUID) (persistence.Device, error) {
	return s.Devices.GetDevice(ctx, deviceID)
}

// CreateRuleset stores a named rule list and returns its ID.
func (s *Store) CreateRuleset(ctx context.Context, userID int64, name string, rules []persistence.Rule) (int64, error) {
	return s.Rulesets.CreateRuleset(ctx, CreateRulesetParams{UserID: userID, Name: name, Rules: rules})
}

// GetRuleset returns a ruleset by ID.
func (s *Store) GetRuleset(ctx context.Context, id int64) (persistence.Ruleset, error) {
	return s.Rulesets.GetRuleset(ctx, id)
}

// ListRulesets returns the user's rulesets.
func (s *Store) ListRulesets(ctx context.Context, userID int64) ([]persistence.Ruleset, error) {
	return s.Rulesets.ListRulesets(ctx, userID)
}

// ReportActivity appends one hour of events for a device.
func (s *Store) ReportActivity(ctx context.Context, deviceID uuid.UUID, rulesetID int64, hour time.Time, events []persistence.Event) error {
	return s.Activity.ReportActivity(ctx, ReportActivityParams{
		DeviceID:  deviceID,
		RulesetID: rulesetID,
		Hour:      hour,
		Events:    events,
	})
}

// FetchActivity returns every stored hour bucket for a device.
func (s *Store) FetchActivity(ctx context.Context, deviceID uuid.UUID) ([]persistence.Activity, error) {
	return s.Activity.FetchActivity(ctx, deviceID)
}
