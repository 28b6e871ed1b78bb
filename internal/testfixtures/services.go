package testfixtures

import (
	"io"
	"log/slog"

	"github.com/example/activity-store/internal/application"
	"github.com/example/activity-store/internal/credential"
)

// FastHashParams keeps argon2id cheap enough for test suites. Never use it
// outside tests.
var FastHashParams = credential.Params{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// FastHash hashes with FastHashParams. Its digests verify with credential.Verify.
func FastHash(password string) (string, error) {
	return credential.HashWithParams(password, FastHashParams)
}

// ServiceFactory assists tests with constructing a Store using cheap
// password hashing and a discarding logger.
type ServiceFactory struct {
	Clock    *Clock
	DeviceID *DeviceIDGenerator
	Logger   *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:    NewClock(ReferenceTime()),
		DeviceID: NewDeviceIDGenerator("device"),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(ReferenceTime())
	}
	if factory.DeviceID == nil {
		factory.DeviceID = NewDeviceIDGenerator("device")
	}
	if factory.Logger == nil {
		factory.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithDeviceIDGenerator overrides the device ID generator used by the factory.
func WithDeviceIDGenerator(generator *DeviceIDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.DeviceID = generator
	}
}

// WithLogger overrides the logger handed to services.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

// NewStore builds a Store over deps, filling the password hasher and logger
// from the factory when they are unset.
func (f *ServiceFactory) NewStore(deps application.StoreDeps) *application.Store {
	if deps.HashPassword == nil {
		deps.HashPassword = FastHash
	}
	if deps.Logger == nil {
		deps.Logger = f.Logger
	}
	return application.NewStore(deps)
}
