package persistence

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
}

// Device represents a tracked machine owned by exactly one user. The ID is
// generated by the client that registers the device.
type Device struct {
	ID     uuid.UUID
	UserID int64
	Name   string

	// LastSeen is derived from the device's activity on every read and is
	// nil when no activity has been reported.
	LastSeen *time.Time
}

// Rule maps a pattern to one or more category labels.
type Rule struct {
	Names   []string
	Pattern string
}

// Ruleset is a named, ordered and immutable list of rules owned by a user.
type Ruleset struct {
	ID     int64
	UserID int64
	Name   string
	Rules  []Rule
}

// Event is one categorized unit of device activity.
type Event struct {
	Timestamp time.Time
	Duration  time.Duration
	Category  string
}

// Activity is one hour bucket of events for a device. Several rows may exist
// for the same device and hour.
type Activity struct {
	ID        int64
	Timestamp time.Time
	DeviceID  uuid.UUID
	Events    []Event
	RulesetID int64
}

// LastEventTime returns the latest event timestamp in the activity and false
// when it holds no events.
func (a Activity) LastEventTime() (time.Time, bool) {
	var latest time.Time
	found := false
	for _, event := range a.Events {
		if !found || event.Timestamp.After(latest) {
			latest = event.Timestamp
			found = true
		}
	}
	return latest, found
}
