package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/example/activity-store/internal/persistence"
)

var testHour = time.Date(2024, time.January, 2, 15, 0, 0, 0, time.UTC)

func newTestPool(t *testing.T) *ConnectionPool {
	t.Helper()

	dir := t.TempDir()
	pool, err := NewConnectionPool(TempFileTestSQLiteConfig(filepath.Join(dir, "activity.db")), nil)
	if err != nil {
		t.Fatalf("failed to open pool: %v", err)
	}
	t.Cleanup(func() {
		_ = pool.Close()
	})

	if err := EnsureSchema(context.Background(), pool); err != nil {
		t.Fatalf("failed to ensure schema: %v", err)
	}
	return pool
}

func newTestRepositories(t *testing.T) (Repositories, *ConnectionPool) {
	t.Helper()
	pool := newTestPool(t)
	return NewRepositories(pool), pool
}

func mustCreateUser(t *testing.T, repos Repositories, username string) int64 {
	t.Helper()
	id, err := repos.Users.CreateUser(context.Background(), persistence.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return id
}

func mustCreateDevice(t *testing.T, repos Repositories, userID int64, name string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if err := repos.Devices.CreateDevice(context.Background(), persistence.Device{ID: id, UserID: userID, Name: name}); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}
	return id
}

func mustCreateRuleset(t *testing.T, repos Repositories, userID int64) int64 {
	t.Helper()
	id, err := repos.Rulesets.CreateRuleset(context.Background(), persistence.Ruleset{
		UserID: userID,
		Name:   "default",
		Rules:  []persistence.Rule{{Names: []string{"Work"}, Pattern: ".*"}},
	})
	if err != nil {
		t.Fatalf("CreateRuleset failed: %v", err)
	}
	return id
}

func sampleEvents(hour time.Time) []persistence.Event {
	return []persistence.Event{
		{Timestamp: hour.Add(5 * time.Minute), Duration: 10 * time.Minute, Category: "Work"},
		{Timestamp: hour.Add(20 * time.Minute), Duration: 90 * time.Second, Category: "Comms"},
		{Timestamp: hour.Add(20 * time.Minute), Duration: 0, Category: "Uncategorized"},
	}
}

func activityFor(deviceID uuid.UUID, rulesetID int64, hour time.Time, events []persistence.Event) persistence.Activity {
	return persistence.Activity{
		Timestamp: hour,
		DeviceID:  deviceID,
		Events:    events,
		RulesetID: rulesetID,
	}
}
