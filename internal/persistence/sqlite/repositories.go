package sqlite

import "github.com/example/activity-store/internal/persistence"

var (
	_ persistence.UserRepository     = (*UserRepository)(nil)
	_ persistence.DeviceRepository   = (*DeviceRepository)(nil)
	_ persistence.RulesetRepository  = (*RulesetRepository)(nil)
	_ persistence.ActivityRepository = (*ActivityRepository)(nil)
)

// Repositories bundles every repository backed by one connection pool.
type Repositories struct {
	Users    *UserRepository
	Devices  *DeviceRepository
	Rulesets *RulesetRepository
	Activity *ActivityRepository
}

// NewRepositories constructs all repositories over the same pool.
func NewRepositories(pool *ConnectionPool) Repositories {
	return Repositories{
		Users:    NewUserRepository(pool),
		Devices:  NewDeviceRepository(pool),
		Rulesets: NewRulesetRepository(pool),
		Activity: NewActivityRepository(pool),
	}
}
