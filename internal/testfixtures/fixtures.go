package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/example/activity-store/internal/persistence"
)

var (
	userCounter   uint64
	deviceCounter uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceHour returns the hour bucket containing ReferenceTime.
func ReferenceHour() time.Time {
	return referenceTime.Truncate(time.Hour)
}

// ----------------------------- User fixtures -----------------------------

// UserFixture holds the plaintext inputs for creating a user.
type UserFixture struct {
	Username string
	Email    string
	Password string
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a unique user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	username := fmt.Sprintf("user%03d", idx)
	fixture := UserFixture{
		Username: username,
		Email:    username + "@example.com",
		Password: "password-" + username,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUsername overrides the generated username.
func WithUsername(username string) UserOption {
	return func(f *UserFixture) {
		f.Username = username
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithUserPassword overrides the generated password.
func WithUserPassword(password string) UserOption {
	return func(f *UserFixture) {
		f.Password = password
	}
}

// ---------------------------- Device fixtures ----------------------------

// DeviceFixture describes a device to register.
type DeviceFixture struct {
	ID   uuid.UUID
	Name string
}

// NewDeviceFixture returns a device with a deterministic UUIDv5 derived from
// its name. Without a name, a unique one is generated.
func NewDeviceFixture(name string) DeviceFixture {
	if name == "" {
		name = fmt.Sprintf("device%03d", atomic.AddUint64(&deviceCounter, 1))
	}
	return DeviceFixture{ID: DeviceID(name), Name: name}
}

// ----------------------------- Rule fixtures -----------------------------

// DefaultRules returns a small ordered rule list covering common categories.
func DefaultRules() []persistence.Rule {
	return []persistence.Rule{
		{Names: []string{"Work", "Programming"}, Pattern: "(?i)(vim|code|terminal)"},
		{Names: []string{"Comms"}, Pattern: "(?i)(slack|mail)"},
		{Names: []string{"Media"}, Pattern: "(?i)(youtube|spotify)"},
	}
}

// CatchAllRules returns a single rule matching everything.
func CatchAllRules(category string) []persistence.Rule {
	return []persistence.Rule{{Names: []string{category}, Pattern: ".*"}}
}

// ----------------------------- Event fixtures ----------------------------

var eventCategories = []string{"Work", "Comms", "Media", "Uncategorized"}

// EventBatch returns n events inside hour, spaced evenly, with whole-second
// durations that never overlap the next event. Categories cycle through a
// fixed list so batches are reproducible.
func EventBatch(hour time.Time, n int) []persistence.Event {
	if n <= 0 {
		return nil
	}
	step := time.Hour / time.Duration(n)
	duration := (step / 2).Truncate(time.Second)

	events := make([]persistence.Event, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, persistence.Event{
			Timestamp: hour.Add(time.Duration(i) * step).Truncate(time.Second),
			Duration:  duration,
			Category:  eventCategories[i%len(eventCategories)],
		})
	}
	return events
}

// LatestEvent returns the greatest event timestamp in events.
func LatestEvent(events []persistence.Event) time.Time {
	var latest time.Time
	for _, event := range events {
		if event.Timestamp.After(latest) {
			latest = event.Timestamp
		}
	}
	return latest
}
