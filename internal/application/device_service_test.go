package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/example/activity-store/internal/persistence"
)

func TestDeviceService_RegisterDevice(t *testing.T) {
	t.Run("validates input", func(t *testing.T) {
		svc := NewDeviceService(&deviceRepoStub{}, nil, nil)

		err := svc.RegisterDevice(context.Background(), RegisterDeviceParams{UserID: 1, DeviceID: uuid.Nil, Name: " "})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["device_id"]; !ok {
			t.Fatalf("expected device_id validation error, got %v", vErr.FieldErrors)
		}
		if _, ok := vErr.FieldErrors["name"]; !ok {
			t.Fatalf("expected name validation error, got %v", vErr.FieldErrors)
		}
	})

	t.Run("maps duplicate ids to ErrAlreadyExists", func(t *testing.T) {
		svc := NewDeviceService(&deviceRepoStub{}, nil, nil)
		ctx := context.Background()
		id := uuid.New()

		if err := svc.RegisterDevice(ctx, RegisterDeviceParams{UserID: 1, DeviceID: id, Name: "laptop"}); err != nil {
			t.Fatalf("RegisterDevice failed: %v", err)
		}
		err := svc.RegisterDevice(ctx, RegisterDeviceParams{UserID: 2, DeviceID: id, Name: "other"})
		if !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("maps unknown user to ErrNotFound", func(t *testing.T) {
		svc := NewDeviceService(&deviceRepoStub{createErr: fmt.Errorf("user 5: %w", persistence.ErrNotFound)}, nil, nil)
		err := svc.RegisterDevice(context.Background(), RegisterDeviceParams{UserID: 5, DeviceID: uuid.New(), Name: "laptop"})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestDeviceService_ListDevices(t *testing.T) {
	ctx := context.Background()
	devices := &deviceRepoStub{}
	activity := &activityRepoStub{}
	activitySvc := NewActivityService(activity, nil)
	svc := NewDeviceService(devices, activitySvc, nil)

	quiet := uuid.New()
	busy := uuid.New()
	for _, params := range []RegisterDeviceParams{
		{UserID: 1, DeviceID: busy, Name: "laptop"},
		{UserID: 1, DeviceID: quiet, Name: "phone"},
		{UserID: 2, DeviceID: uuid.New(), Name: "tablet"},
	} {
		if err := svc.RegisterDevice(ctx, params); err != nil {
			t.Fatalf("RegisterDevice failed: %v", err)
		}
	}

	listed, err := svc.ListDevices(ctx, 1)
	if err != nil {
		t.Fatalf("ListDevices failed: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(listed))
	}
	for _, device := range listed {
		if device.LastSeen != nil {
			t.Fatalf("expected no last_seen before any report, got %s", device.LastSeen)
		}
	}

	latest := testHour.Add(time.Hour + 42*time.Minute)
	reports := []ReportActivityParams{
		{DeviceID: busy, RulesetID: 1, Hour: testHour.Add(time.Hour), Events: []persistence.Event{
			{Timestamp: latest, Duration: time.Minute, Category: "Work"},
			{Timestamp: testHour.Add(time.Hour + 3*time.Minute), Duration: time.Minute, Category: "Work"},
		}},
		{DeviceID: busy, RulesetID: 1, Hour: testHour, Events: []persistence.Event{
			{Timestamp: testHour.Add(10 * time.Minute), Duration: time.Minute, Category: "Work"},
		}},
	}
	for _, report := range reports {
		if err := activitySvc.ReportActivity(ctx, report); err != nil {
			t.Fatalf("ReportActivity failed: %v", err)
		}
	}

	listed, err = svc.ListDevices(ctx, 1)
	if err != nil {
		t.Fatalf("ListDevices failed: %v", err)
	}
	for _, device := range listed {
		switch device.ID {
		case busy:
			if device.LastSeen == nil || !device.LastSeen.Equal(latest) {
				t.Fatalf("expected last_seen %s, got %v", latest, device.LastSeen)
			}
		case quiet:
			if device.LastSeen != nil {
				t.Fatalf("expected quiet device to have no last_seen")
			}
		}
	}

	got, err := svc.GetDevice(ctx, busy)
	if err != nil {
		t.Fatalf("GetDevice failed: %v", err)
	}
	if got.LastSeen == nil || !got.LastSeen.Equal(latest) {
		t.Fatalf("expected GetDevice to derive last_seen, got %v", got.LastSeen)
	}
	if _, err := svc.GetDevice(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeviceService_ListDevicesPropagatesDecodeErrors(t *testing.T) {
	ctx := context.Background()
	devices := &deviceRepoStub{devices: []persistence.Device{{ID: uuid.New(), UserID: 1, Name: "laptop"}}}
	decodeErr := &persistence.DecodeError{Table: "activity", RowID: 3, Err: persistence.ErrInvalidBlob}
	svc := NewDeviceService(devices, NewActivityService(&activityRepoStub{listErr: decodeErr}, nil), nil)

	_, err := svc.ListDevices(ctx, 1)
	var gotDecode *persistence.DecodeError
	if !errors.As(err, &gotDecode) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	var sErr *StoreError
	if !errors.As(err, &sErr) || sErr.Op != "fetch activity" {
		t.Fatalf("expected a single StoreError layer, got %v", err)
	}
}

func TestLastSeen(t *testing.T) {
	t.Parallel()

	if LastSeen(nil) != nil {
		t.Fatalf("expected nil for no activity")
	}
	if LastSeen([]persistence.Activity{{Timestamp: testHour}}) != nil {
		t.Fatalf("expected nil for rows without events")
	}

	peak := testHour.Add(59 * time.Minute)
	got := LastSeen([]persistence.Activity{
		{Events: []persistence.Event{{Timestamp: testHour.Add(time.Minute)}, {Timestamp: peak}}},
		{Events: []persistence.Event{{Timestamp: testHour.Add(30 * time.Minute)}}},
	})
	if got == nil || !got.Equal(peak) {
		t.Fatalf("expected %s, got %v", peak, got)
	}
}
