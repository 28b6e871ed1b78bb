package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/activity-store/internal/persistence"
)

// ActivityRepository captures the persistence operations needed by the activity service.
type ActivityRepository interface {
	AppendActivity(ctx context.Context, activity persistence.Activity) (int64, error)
	ListActivityForDevice(ctx context.Context, deviceID uuid.UUID) ([]persistence.Activity, error)
}

// ActivityService validates and appends hour buckets of usage events.
type ActivityService struct {
	activity ActivityRepository
	logger   *slog.Logger
}

// NewActivityService constructs an activity service.
func NewActivityService(activity ActivityRepository, logger *slog.Logger) *ActivityService {
	return &ActivityService{activity: activity, logger: defaultLogger(logger)}
}

func (s *ActivityService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ActivityService", operation, attrs...)
}

// ReportActivity appends one batch of events for the hour starting at
// params.Hour. The hour is checked before anything else; a misaligned hour
// never reaches the store.
func (s *ActivityService) ReportActivity(ctx context.Context, params ReportActivityParams) (err error) {
	if s == nil {
		return fmt.Errorf("ActivityService is nil")
	}

	logger := s.loggerWith(ctx, "ReportActivity",
		"device_id", params.DeviceID,
		"ruleset_id", params.RulesetID,
		"hour", params.Hour,
		"event_count", len(params.Events),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to report activity", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "activity reported")
	}()

	if !IsHourAligned(params.Hour) {
		err = invalidField("hour", "hour must be on the hour")
		return
	}

	events, vErr := normalizeEvents(params.Events)
	if params.DeviceID == uuid.Nil {
		vErr.add("device_id", "device id is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if s.activity == nil {
		err = fmt.Errorf("activity repository not configured")
		return
	}

	_, err = s.activity.AppendActivity(ctx, persistence.Activity{
		Timestamp: params.Hour.UTC(),
		DeviceID:  params.DeviceID,
		Events:    events,
		RulesetID: params.RulesetID,
	})
	err = mapRepoError("report activity", err)
	return
}

// FetchActivity returns every stored hour bucket for the device, oldest
// first. An unknown device has no activity and yields an empty list.
func (s *ActivityService) FetchActivity(ctx context.Context, deviceID uuid.UUID) (activities []persistence.Activity, err error) {
	if s == nil {
		return nil, fmt.Errorf("ActivityService is nil")
	}
	if s.activity == nil {
		return nil, nil
	}

	activities, err = s.activity.ListActivityForDevice(ctx, deviceID)
	if err != nil {
		err = mapRepoError("fetch activity", err)
		s.loggerWith(ctx, "FetchActivity", "device_id", deviceID).
			ErrorContext(ctx, "failed to fetch activity", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	return activities, nil
}

// IsHourAligned reports whether t is non-zero and falls exactly on a UTC
// hour boundary.
func IsHourAligned(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	utc := t.UTC()
	return utc.Equal(utc.Truncate(time.Hour))
}

// normalizeEvents converts timestamps to UTC with second precision and
// durations to whole seconds. Categories are stored as given. The returned
// validation error is never nil.
func normalizeEvents(events []persistence.Event) ([]persistence.Event, *ValidationError) {
	vErr := &ValidationError{}
	if len(events) == 0 {
		vErr.add("events", "at least one event is required")
		return nil, vErr
	}

	out := make([]persistence.Event, 0, len(events))
	for i, event := range events {
		vErr.merge(validateEvent(fmt.Sprintf("events[%d]", i), event))
		out = append(out, persistence.Event{
			Timestamp: event.Timestamp.UTC().Truncate(time.Second),
			Duration:  event.Duration.Truncate(time.Second),
			Category:  event.Category,
		})
	}
	return out, vErr
}

// validateEvent checks one event, keying field errors under prefix.
func validateEvent(prefix string, event persistence.Event) *ValidationError {
	vErr := &ValidationError{}
	if event.Timestamp.IsZero() {
		vErr.add(prefix+".timestamp", "timestamp is required")
	}
	if event.Duration < 0 {
		vErr.add(prefix+".duration", "duration must not be negative")
	}
	if strings.TrimSpace(event.Category) == "" {
		vErr.add(prefix+".category", "category is required")
	}
	return vErr
}
