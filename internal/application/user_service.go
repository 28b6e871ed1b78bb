package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/example/activity-store/internal/credential"
	"github.com/example/activity-store/internal/persistence"
)

// Credentials of the account seeded by EnsureTestUser.
const (
	TestUsername = "test"
	TestEmail    = "test@example.com"
	TestPassword = "test"
)

// UserRepository captures the persistence operations needed by the user service.
type UserRepository interface {
	CreateUser(ctx context.Context, user persistence.User) (int64, error)
	GetUser(ctx context.Context, id int64) (persistence.User, error)
	GetUserByUsername(ctx context.Context, username string) (persistence.User, error)
	ListUsers(ctx context.Context) ([]persistence.User, error)
}

// UserService validates, hashes and stores user accounts.
type UserService struct {
	users  UserRepository
	hash   PasswordHasher
	verify PasswordVerifier
	logger *slog.Logger
}

// NewUserService wires dependencies for the user service. Nil hash and verify
// functions default to the credential package.
func NewUserService(users UserRepository, hash PasswordHasher, verify PasswordVerifier, logger *slog.Logger) *UserService {
	if hash == nil {
		hash = credential.Hash
	}
	if verify == nil {
		verify = credential.Verify
	}
	return &UserService{users: users, hash: hash, verify: verify, logger: defaultLogger(logger)}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// CreateUser validates input, hashes the password and persists a new user.
func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (user persistence.User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}

	username := strings.TrimSpace(params.Username)
	email := strings.ToLower(strings.TrimSpace(params.Email))

	logger := s.loggerWith(ctx, "CreateUser", "username", username)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "user created")
	}()

	if vErr := validateUserInput(username, email, params.Password); vErr.HasErrors() {
		err = vErr
		return
	}

	var digest string
	digest, err = s.hash(params.Password)
	if err != nil {
		err = fmt.Errorf("hash password: %w", err)
		return
	}

	user = persistence.User{Username: username, Email: email, PasswordHash: digest}
	user.ID, err = s.users.CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			err = fmt.Errorf("%w: %s", ErrUserAlreadyExists, username)
		} else {
			err = mapRepoError("create user", err)
		}
		user = persistence.User{}
		return
	}
	return
}

// VerifyCredentials reports whether password matches the stored digest of
// username. An unknown user yields false without an error so callers cannot
// tell it apart from a wrong password. A malformed digest is an error.
func (s *UserService) VerifyCredentials(ctx context.Context, username, password string) (ok bool, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}

	username = strings.TrimSpace(username)
	logger := s.loggerWith(ctx, "VerifyCredentials", "username", username)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "credential verification failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "credentials checked", "match", ok)
	}()

	if username == "" || password == "" {
		return
	}

	var user persistence.User
	user, err = s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = nil
			return
		}
		err = mapRepoError("verify credentials", err)
		return
	}

	ok, err = s.verify(password, user.PasswordHash)
	if err != nil {
		ok = false
		err = fmt.Errorf("user %d: %w", user.ID, err)
	}
	return
}

// GetUser looks a user up by username.
func (s *UserService) GetUser(ctx context.Context, username string) (persistence.User, error) {
	if s == nil {
		return persistence.User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return persistence.User{}, fmt.Errorf("user repository not configured")
	}

	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return persistence.User{}, mapRepoError("get user", err)
	}
	return user, nil
}

// GetUserByID looks a user up by numeric ID.
func (s *UserService) GetUserByID(ctx context.Context, id int64) (persistence.User, error) {
	if s == nil {
		return persistence.User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return persistence.User{}, fmt.Errorf("user repository not configured")
	}

	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		return persistence.User{}, mapRepoError("get user", err)
	}
	return user, nil
}

// ListUsers returns all users ordered by ID.
func (s *UserService) ListUsers(ctx context.Context) ([]persistence.User, error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return nil, nil
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, mapRepoError("list users", err)
	}
	return users, nil
}

// EnsureTestUser creates the well-known test account when it is missing and
// reports whether it did.
func (s *UserService) EnsureTestUser(ctx context.Context) (bool, error) {
	_, err := s.GetUser(ctx, TestUsername)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	_, err = s.CreateUser(ctx, CreateUserParams{
		Username: TestUsername,
		Email:    TestEmail,
		Password: TestPassword,
	})
	if errors.Is(err, ErrUserAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func validateUserInput(username, email, password string) *ValidationError {
	vErr := &ValidationError{}

	if username == "" {
		vErr.add("username", "username is required")
	} else if strings.ContainsAny(username, " \t\r\n") {
		vErr.add("username", "username must not contain whitespace")
	}

	if email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		vErr.add("email", "email is invalid")
	}

	if password == "" {
		vErr.add("password", "password is required")
	}

	return vErr
}
