package sqlite

import (
	"context"
	"path/filepath"
	"testing"
)

func TestEnsureSchema_Idempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "activity.db")

	pool, err := NewConnectionPool(TempFileTestSQLiteConfig(path), nil)
	if err != nil {
		t.Fatalf("NewConnectionPool failed: %v", err)
	}
	defer pool.Close()

	missing, err := MissingTables(ctx, pool)
	if err != nil {
		t.Fatalf("MissingTables failed: %v", err)
	}
	if len(missing) != len(Tables) {
		t.Fatalf("expected all tables missing before EnsureSchema, got %v", missing)
	}

	for i := 0; i < 3; i++ {
		if err := EnsureSchema(ctx, pool); err != nil {
			t.Fatalf("EnsureSchema call %d failed: %v", i+1, err)
		}
	}

	missing, err = MissingTables(ctx, pool)
	if err != nil {
		t.Fatalf("MissingTables failed: %v", err)
	}
	if len(missing) != 0 {
		t.Fatalf("expected no missing tables, got %v", missing)
	}
}

func TestEnsureSchema_PreservesData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "activity.db")

	pool, err := NewConnectionPool(TempFileTestSQLiteConfig(path), nil)
	if err != nil {
		t.Fatalf("NewConnectionPool failed: %v", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	repos := NewRepositories(pool)
	userID := mustCreateUser(t, repos, "alice")
	deviceID := mustCreateDevice(t, repos, userID, "laptop")
	rulesetID := mustCreateRuleset(t, repos, userID)
	events := sampleEvents(testHour)
	if _, err := repos.Activity.AppendActivity(ctx, activityFor(deviceID, rulesetID, testHour, events)); err != nil {
		t.Fatalf("AppendActivity failed: %v", err)
	}
	if err := pool.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Reopen as a restarted process would.
	reopened, err := NewConnectionPool(TempFileTestSQLiteConfig(path), nil)
	if err != nil {
		t.Fatalf("NewConnectionPool failed: %v", err)
	}
	defer reopened.Close()
	if err := EnsureSchema(ctx, reopened); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}

	activities, err := NewActivityRepository(reopened).ListActivityForDevice(ctx, deviceID)
	if err != nil {
		t.Fatalf("ListActivityForDevice failed: %v", err)
	}
	if len(activities) != 1 || len(activities[0].Events) != len(events) {
		t.Fatalf("expected stored activity to survive restart, got %#v", activities)
	}
}
