package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/example/activity-store/internal/application"
	"github.com/example/activity-store/internal/persistence"
	"github.com/example/activity-store/internal/persistence/sqlite"
)

// SQLiteHarness provides repository and Store access backed by a temporary
// SQLite file for integration-style tests.
type SQLiteHarness struct {
	Pool     *sqlite.ConnectionPool
	Users    persistence.UserRepository
	Devices  persistence.DeviceRepository
	Rulesets persistence.RulesetRepository
	Activity persistence.ActivityRepository
	Store    *application.Store
	Factory  *ServiceFactory

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file whose
// schema is created automatically. Callers may optionally invoke Close, but
// the helper also registers a cleanup callback with tb.
func NewSQLiteHarness(tb testing.TB, opts ...ServiceFactoryOption) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "activity.db")
	return newHarness(tb, sqlite.TempFileTestSQLiteConfig(path), opts...)
}

// NewInMemorySQLiteHarness is NewSQLiteHarness over a private in-memory
// database holding a single connection.
func NewInMemorySQLiteHarness(tb testing.TB, opts ...ServiceFactoryOption) *SQLiteHarness {
	tb.Helper()
	return newHarness(tb, sqlite.InMemorySQLiteConfig(), opts...)
}

func newHarness(tb testing.TB, config sqlite.SQLiteConfig, opts ...ServiceFactoryOption) *SQLiteHarness {
	tb.Helper()

	factory := NewServiceFactory(opts...)
	pool, err := sqlite.NewConnectionPool(config, factory.Logger)
	if err != nil {
		tb.Fatalf("failed to open pool: %v", err)
	}

	if err := sqlite.EnsureSchema(context.Background(), pool); err != nil {
		_ = pool.Close()
		tb.Fatalf("failed to ensure schema: %v", err)
	}

	repos := sqlite.NewRepositories(pool)
	harness := &SQLiteHarness{
		Pool:     pool,
		Users:    repos.Users,
		Devices:  repos.Devices,
		Rulesets: repos.Rulesets,
		Activity: repos.Activity,
		Factory:  factory,
		Store: factory.NewStore(application.StoreDeps{
			Users:    repos.Users,
			Devices:  repos.Devices,
			Rulesets: repos.Rulesets,
			Activity: repos.Activity,
		}),
		cleanup: func() {
			_ = pool.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// MustCreateUser creates the fixture user through the Store and returns it.
func (h *SQLiteHarness) MustCreateUser(tb testing.TB, fixture UserFixture) persistence.User {
	tb.Helper()
	ctx := context.Background()
	if err := h.Store.CreateUser(ctx, fixture.Username, fixture.Email, fixture.Password); err != nil {
		tb.Fatalf("CreateUser(%s) failed: %v", fixture.Username, err)
	}
	user, err := h.Store.GetUser(ctx, fixture.Username)
	if err != nil {
		tb.Fatalf("GetUser(%s) failed: %v", fixture.Username, err)
	}
	return user
}

// MustRegisterDevice registers a device for userID with the next generated ID.
func (h *SQLiteHarness) MustRegisterDevice(tb testing.TB, userID int64, name string) uuid.UUID {
	tb.Helper()
	id := h.Factory.DeviceID.Next()
	if err := h.Store.RegisterDevice(context.Background(), userID, id, name); err != nil {
		tb.Fatalf("RegisterDevice(%s) failed: %v", name, err)
	}
	return id
}

// MustCreateRuleset stores rules for userID and returns the ruleset ID.
func (h *SQLiteHarness) MustCreateRuleset(tb testing.TB, userID int64, rules []persistence.Rule) int64 {
	tb.Helper()
	id, err := h.Store.CreateRuleset(context.Background(), userID, "default", rules)
	if err != nil {
		tb.Fatalf("CreateRuleset failed: %v", err)
	}
	return id
}
