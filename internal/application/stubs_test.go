package application

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/example/activity-store/internal/persistence"
)

func stubHash(password string) (string, error) {
	return "hashed:" + password, nil
}

func stubVerify(password, digest string) (bool, error) {
	if !strings.HasPrefix(digest, "hashed:") {
		return false, fmt.Errorf("stub: %q", digest)
	}
	return digest == "hashed:"+password, nil
}

type userRepoStub struct {
	mu     sync.Mutex
	users  []persistence.User
	err    error
	lookup int
}

func (r *userRepoStub) CreateUser(ctx context.Context, user persistence.User) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	for _, existing := range r.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return 0, persistence.ErrDuplicate
		}
	}
	user.ID = int64(len(r.users) + 1)
	r.users = append(r.users, user)
	return user.ID, nil
}

func (r *userRepoStub) GetUser(ctx context.Context, id int64) (persistence.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return persistence.User{}, r.err
	}
	for _, user := range r.users {
		if user.ID == id {
			return user, nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

func (r *userRepoStub) GetUserByUsername(ctx context.Context, username string) (persistence.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookup++
	if r.err != nil {
		return persistence.User{}, r.err
	}
	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

func (r *userRepoStub) ListUsers(ctx context.Context) ([]persistence.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make([]persistence.User, len(r.users))
	copy(out, r.users)
	return out, nil
}

type rulesetRepoStub struct {
	created []persistence.Ruleset
	err     error
}

func (r *rulesetRepoStub) CreateRuleset(ctx context.Context, ruleset persistence.Ruleset) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	ruleset.ID = int64(len(r.created) + 1)
	r.created = append(r.created, ruleset)
	return ruleset.ID, nil
}

func (r *rulesetRepoStub) GetRuleset(ctx context.Context, id int64) (persistence.Ruleset, error) {
	for _, ruleset := range r.created {
		if ruleset.ID == id {
			return ruleset, nil
		}
	}
	return persistence.Ruleset{}, persistence.ErrNotFound
}

func (r *rulesetRepoStub) ListRulesetsForUser(ctx context.Context, userID int64) ([]persistence.Ruleset, error) {
	var out []persistence.Ruleset
	for _, ruleset := range r.created {
		if ruleset.UserID == userID {
			out = append(out, ruleset)
		}
	}
	return out, nil
}

type deviceRepoStub struct {
	devices   []persistence.Device
	createErr error
}

func (r *deviceRepoStub) CreateDevice(ctx context.Context, device persistence.Device) error {
	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.devices {
		if existing.ID == device.ID {
			return persistence.ErrDuplicate
		}
	}
	r.devices = append(r.devices, device)
	return nil
}

func (r *deviceRepoStub) GetDevice(ctx context.Context, id uuid.UUID) (persistence.Device, error) {
	for _, device := range r.devices {
		if device.ID == id {
			return device, nil
		}
	}
	return persistence.Device{}, persistence.ErrNotFound
}

func (r *deviceRepoStub) ListDevicesForUser(ctx context.Context, userID int64) ([]persistence.Device, error) {
	var out []persistence.Device
	for _, device := range r.devices {
		if device.UserID == userID {
			out = append(out, device)
		}
	}
	return out, nil
}

type activityRepoStub struct {
	mu       sync.Mutex
	appended []persistence.Activity
	err      error
	listErr  error
}

func (r *activityRepoStub) AppendActivity(ctx context.Context, activity persistence.Activity) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	activity.ID = int64(len(r.appended) + 1)
	r.appended = append(r.appended, activity)
	return activity.ID, nil
}

func (r *activityRepoStub) ListActivityForDevice(ctx context.Context, deviceID uuid.UUID) ([]persistence.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []persistence.Activity
	for _, activity := range r.appended {
		if activity.DeviceID == deviceID {
			out = append(out, activity)
		}
	}
	return out, nil
}
