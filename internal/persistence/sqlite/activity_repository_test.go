package sqlite

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/example/activity-store/internal/persistence"
)

func TestActivityRepository_AppendAndList(t *testing.T) {
	repos, _ := newTestRepositories(t)
	ctx := context.Background()

	userID := mustCreateUser(t, repos, "alice")
	deviceID := mustCreateDevice(t, repos, userID, "laptop")
	rulesetID := mustCreateRuleset(t, repos, userID)

	later := testHour.Add(2 * time.Hour)
	if _, err := repos.Activity.AppendActivity(ctx, activityFor(deviceID, rulesetID, later, sampleEvents(later))); err != nil {
		t.Fatalf("AppendActivity failed: %v", err)
	}
	if _, err := repos.Activity.AppendActivity(ctx, activityFor(deviceID, rulesetID, testHour, sampleEvents(testHour))); err != nil {
		t.Fatalf("AppendActivity failed: %v", err)
	}

	activities, err := repos.Activity.ListActivityForDevice(ctx, deviceID)
	if err != nil {
		t.Fatalf("ListActivityForDevice failed: %v", err)
	}
	if len(activities) != 2 {
		t.Fatalf("expected 2 activity rows, got %d", len(activities))
	}
	if !activities[0].Timestamp.Equal(testHour) || !activities[1].Timestamp.Equal(later) {
		t.Fatalf("expected rows ordered by hour, got %s then %s", activities[0].Timestamp, activities[1].Timestamp)
	}
	for _, activity := range activities {
		if activity.DeviceID != deviceID {
			t.Errorf("unexpected device id %s", activity.DeviceID)
		}
		if activity.RulesetID != rulesetID {
			t.Errorf("unexpected ruleset id %d", activity.RulesetID)
		}
		if !reflect.DeepEqual(activity.Events, sampleEvents(activity.Timestamp)) {
			t.Errorf("events mismatch for %s:\n got %#v", activity.Timestamp, activity.Events)
		}
	}
}

func TestActivityRepository_RejectsUnalignedHour(t *testing.T) {
	repos, _ := newTestRepositories(t)
	ctx := context.Background()

	userID := mustCreateUser(t, repos, "alice")
	deviceID := mustCreateDevice(t, repos, userID, "laptop")
	rulesetID := mustCreateRuleset(t, repos, userID)

	unaligned := testHour.Add(30 * time.Minute)
	_, err := repos.Activity.AppendActivity(ctx, activityFor(deviceID, rulesetID, unaligned, sampleEvents(testHour)))
	if !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}

	activities, err := repos.Activity.ListActivityForDevice(ctx, deviceID)
	if err != nil {
		t.Fatalf("ListActivityForDevice failed: %v", err)
	}
	if len(activities) != 0 {
		t.Fatalf("expected nothing persisted, got %d rows", len(activities))
	}
}

func TestActivityRepository_DuplicateHoursAreKept(t *testing.T) {
	repos, _ := newTestRepositories(t)
	ctx := context.Background()

	userID := mustCreateUser(t, repos, "alice")
	deviceID := mustCreateDevice(t, repos, userID, "laptop")
	rulesetID := mustCreateRuleset(t, repos, userID)

	first, err := repos.Activity.AppendActivity(ctx, activityFor(deviceID, rulesetID, testHour, sampleEvents(testHour)))
	if err != nil {
		t.Fatalf("AppendActivity failed: %v", err)
	}
	second, err := repos.Activity.AppendActivity(ctx, activityFor(deviceID, rulesetID, testHour, sampleEvents(testHour)[:1]))
	if err != nil {
		t.Fatalf("AppendActivity failed: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct row ids, got %d twice", first)
	}

	activities, err := repos.Activity.ListActivityForDevice(ctx, deviceID)
	if err != nil {
		t.Fatalf("ListActivityForDevice failed: %v", err)
	}
	if len(activities) != 2 {
		t.Fatalf("expected both rows for the same hour, got %d", len(activities))
	}
	if activities[0].ID != first || activities[1].ID != second {
		t.Fatalf("expected insertion order within an hour, got %d then %d", activities[0].ID, activities[1].ID)
	}
	if len(activities[0].Events) != 3 || len(activities[1].Events) != 1 {
		t.Fatalf("expected earlier row untouched, got %d and %d events", len(activities[0].Events), len(activities[1].Events))
	}
}

func TestActivityRepository_UnknownReferences(t *testing.T) {
	repos, _ := newTestRepositories(t)
	ctx := context.Background()

	userID := mustCreateUser(t, repos, "alice")
	deviceID := mustCreateDevice(t, repos, userID, "laptop")
	rulesetID := mustCreateRuleset(t, repos, userID)

	tests := []struct {
		name     string
		activity persistence.Activity
	}{
		{name: "unknown device", activity: activityFor(uuid.New(), rulesetID, testHour, sampleEvents(testHour))},
		{name: "unknown ruleset", activity: activityFor(deviceID, rulesetID+100, testHour, sampleEvents(testHour))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := repos.Activity.AppendActivity(ctx, tt.activity); !errors.Is(err, persistence.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}

	activities, err := repos.Activity.ListActivityForDevice(ctx, deviceID)
	if err != nil {
		t.Fatalf("ListActivityForDevice failed: %v", err)
	}
	if len(activities) != 0 {
		t.Fatalf("expected nothing persisted, got %d rows", len(activities))
	}
}

func TestActivityRepository_EmptyBatchRejected(t *testing.T) {
	repos, _ := newTestRepositories(t)
	ctx := context.Background()

	userID := mustCreateUser(t, repos, "alice")
	deviceID := mustCreateDevice(t, repos, userID, "laptop")
	rulesetID := mustCreateRuleset(t, repos, userID)

	if _, err := repos.Activity.AppendActivity(ctx, activityFor(deviceID, rulesetID, testHour, nil)); !errors.Is(err, persistence.ErrInvalidBlob) {
		t.Fatalf("expected ErrInvalidBlob, got %v", err)
	}
}

func TestActivityRepository_UnknownDeviceListsEmpty(t *testing.T) {
	repos, _ := newTestRepositories(t)

	activities, err := repos.Activity.ListActivityForDevice(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("ListActivityForDevice failed: %v", err)
	}
	if len(activities) != 0 {
		t.Fatalf("expected no rows, got %d", len(activities))
	}
}

func TestActivityRepository_CorruptRow(t *testing.T) {
	repos, pool := newTestRepositories(t)
	ctx := context.Background()

	userID := mustCreateUser(t, repos, "alice")
	deviceID := mustCreateDevice(t, repos, userID, "laptop")
	rulesetID := mustCreateRuleset(t, repos, userID)

	id, err := repos.Activity.AppendActivity(ctx, activityFor(deviceID, rulesetID, testHour, sampleEvents(testHour)))
	if err != nil {
		t.Fatalf("AppendActivity failed: %v", err)
	}
	err = pool.WithConn(ctx, func(conn *Conn) error {
		_, err := conn.ExecContext(ctx, "UPDATE activity SET data = ? WHERE id = ?", []byte("not cbor"), id)
		return err
	})
	if err != nil {
		t.Fatalf("corrupting activity failed: %v", err)
	}

	_, err = repos.Activity.ListActivityForDevice(ctx, deviceID)
	var decodeErr *persistence.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected *persistence.DecodeError, got %v", err)
	}
	if decodeErr.Table != "activity" || decodeErr.RowID != id {
		t.Fatalf("unexpected decode error: %#v", decodeErr)
	}
	if !errors.Is(err, persistence.ErrInvalidBlob) {
		t.Fatalf("expected decode error to wrap ErrInvalidBlob, got %v", err)
	}
}

func TestActivityRepository_ConcurrentAppends(t *testing.T) {
	repos, _ := newTestRepositories(t)
	ctx := context.Background()

	userID := mustCreateUser(t, repos, "alice")
	deviceID := mustCreateDevice(t, repos, userID, "laptop")
	rulesetID := mustCreateRuleset(t, repos, userID)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			hour := testHour.Add(time.Duration(i) * time.Hour)
			if _, err := repos.Activity.AppendActivity(ctx, activityFor(deviceID, rulesetID, hour, sampleEvents(hour))); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent AppendActivity failed: %v", err)
	}

	activities, err := repos.Activity.ListActivityForDevice(ctx, deviceID)
	if err != nil {
		t.Fatalf("ListActivityForDevice failed: %v", err)
	}
	if len(activities) != writers {
		t.Fatalf("expected %d rows, got %d", writers, len(activities))
	}
	for i, activity := range activities {
		want := testHour.Add(time.Duration(i) * time.Hour)
		if !activity.Timestamp.Equal(want) {
			t.Errorf("row %d: expected hour %s, got %s", i, want, activity.Timestamp)
		}
	}
}
