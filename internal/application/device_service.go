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

// DeviceRepository captures the persistence operations needed by the device service.
type DeviceRepository interface {
	CreateDevice(ctx context.Context, device persistence.Device) error
	GetDevice(ctx context.Context, id uuid.UUID) (persistence.Device, error)
	ListDevicesForUser(ctx context.Context, userID int64) ([]persistence.Device, error)
}

// ActivityFetcher returns the decoded activity of one device.
type ActivityFetcher interface {
	FetchActivity(ctx context.Context, deviceID uuid.UUID) ([]persistence.Activity, error)
}

// DeviceService registers devices and derives their last_seen time from
// stored activity.
type DeviceService struct {
	devices  DeviceRepository
	activity ActivityFetcher
	logger   *slog.Logger
}

// NewDeviceService constructs a device service. A nil activity fetcher
// leaves LastSeen unset on every device.
func NewDeviceService(devices DeviceRepository, activity ActivityFetcher, logger *slog.Logger) *DeviceService {
	return &DeviceService{devices: devices, activity: activity, logger: defaultLogger(logger)}
}

func (s *DeviceService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "DeviceService", operation, attrs...)
}

// RegisterDevice stores a client generated device ID under an existing user.
func (s *DeviceService) RegisterDevice(ctx context.Context, params RegisterDeviceParams) (err error) {
	if s == nil {
		return fmt.Errorf("DeviceService is nil")
	}
	if s.devices == nil {
		return fmt.Errorf("device repository not configured")
	}

	name := strings.TrimSpace(params.Name)
	logger := s.loggerWith(ctx, "RegisterDevice",
		"user_id", params.UserID,
		"device_id", params.DeviceID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register device", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "device registered")
	}()

	vErr := &ValidationError{}
	if params.DeviceID == uuid.Nil {
		vErr.add("device_id", "device id is required")
	}
	if name == "" {
		vErr.add("name", "name is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.devices.CreateDevice(ctx, persistence.Device{
		ID:     params.DeviceID,
		UserID: params.UserID,
		Name:   name,
	})
	err = mapRepoError("register device", err)
	return
}

// ListDevices returns the user's devices ordered by name, each with LastSeen
// set to its latest event timestamp or nil when it has never reported.
func (s *DeviceService) ListDevices(ctx context.Context, userID int64) (devices []persistence.Device, err error) {
	if s == nil {
		return nil, fmt.Errorf("DeviceService is nil")
	}
	if s.devices == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListDevices", "user_id", userID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list devices", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "devices listed", "device_count", len(devices))
	}()

	devices, err = s.devices.ListDevicesForUser(ctx, userID)
	if err != nil {
		err = mapRepoError("list devices", err)
		return nil, err
	}

	// The device listing has released its connection by now; each fetch
	// below takes its own.
	for i := range devices {
		devices[i].LastSeen, err = s.lastSeen(ctx, devices[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return devices, nil
}

// GetDevice returns one device with LastSeen derived.
func (s *DeviceService) GetDevice(ctx context.Context, deviceID uuid.UUID) (persistence.Device, error) {
	if s == nil {
		return persistence.Device{}, fmt.Errorf("DeviceService is nil")
	}
	if s.devices == nil {
		return persistence.Device{}, fmt.Errorf("device repository not configured")
	}

	device, err := s.devices.GetDevice(ctx, deviceID)
	if err != nil {
		return persistence.Device{}, mapRepoError("get device", err)
	}
	device.LastSeen, err = s.lastSeen(ctx, device.ID)
	if err != nil {
		return persistence.Device{}, err
	}
	return device, nil
}

func (s *DeviceService) lastSeen(ctx context.Context, deviceID uuid.UUID) (*time.Time, error) {
	if s.activity == nil {
		return nil, nil
	}
	activities, err := s.activity.FetchActivity(ctx, deviceID)
	if err != nil {
		return nil, mapRepoError("fetch activity", err)
	}
	return LastSeen(activities), nil
}

// LastSeen folds activity rows into the latest event timestamp, or nil when
// there are no events.
func LastSeen(activities []persistence.Activity) *time.Time {
	var (
		latest time.Time
		found  bool
	)
	for _, activity := range activities {
		ts, ok := activity.LastEventTime()
		if !ok {
			continue
		}
		if !found || ts.After(latest) {
			latest = ts
			found = true
		}
	}
	if !found {
		return nil
	}
	return &latest
}
