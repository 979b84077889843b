package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/isdelr/user-api/internal/apperr"
	"github.com/isdelr/user-api/internal/models"
	"github.com/isdelr/user-api/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// HashCost is the bcrypt work factor applied to stored passwords.
const HashCost = 12

// Stable messages returned to API callers.
const (
	MsgInvalidID          = "Invalid user ID provided"
	MsgInvalidEmailLookup = "Invalid email format provided"
	MsgInvalidEmail       = "Invalid email format"
	MsgCredentialsMissing = "Email and password are required"
	MsgPasswordTooShort   = "Password must be at least 6 characters long"
	MsgPasswordTooLong    = "Password must be at most 72 bytes long"
	MsgNoFieldsToUpdate   = "At least one field (email or password) must be provided"
	MsgUserNotFound       = "User not found"
	MsgEmailExists        = "User with this email already exists"
	MsgEmailTaken         = "Email already exists for another user"
	MsgInvalidCredentials = "Invalid email or password"
)

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	GetAllUsers(ctx context.Context) ([]models.User, error)
	GetUserByID(ctx context.Context, id string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	CreateUser(ctx context.Context, email, password string) (models.User, error)
	UpdateUser(ctx context.Context, id string, email, password *string) (models.User, error)
	DeleteUser(ctx context.Context, id string) (models.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (models.User, error)
}

// UserService provides business logic for user management. All input is
// validated before the repository is contacted.
type UserService struct {
	repo     repository.UserRepository
	events   EventServiceProvider
	hashCost int

	dummyOnce sync.Once
	dummyHash []byte
}

// UserServiceOption customises a UserService.
type UserServiceOption func(*UserService)

// WithHashCost overrides the bcrypt work factor.
func WithHashCost(cost int) UserServiceOption {
	return func(s *UserService) { s.hashCost = cost }
}

// WithEvents records user lifecycle events through events.
func WithEvents(events EventServiceProvider) UserServiceOption {
	return func(s *UserService) { s.events = events }
}

// NewUserService creates a new UserService.
func NewUserService(repo repository.UserRepository, opts ...UserServiceOption) *UserService {
	s := &UserService{repo: repo, hashCost: HashCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetAllUsers returns every stored user.
func (s *UserService) GetAllUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Internal("Failed to fetch users", err)
	}
	return users, nil
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(ctx context.Context, id string) (models.User, error) {
	if !ValidID(id) {
		return models.User{}, apperr.InvalidInput(MsgInvalidID)
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return models.User{}, lookupError(err, "Failed to fetch user")
	}
	return user, nil
}

// GetUserByEmail retrieves a single user by their email.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	if !ValidEmail(email) {
		return models.User{}, apperr.InvalidInput(MsgInvalidEmailLookup)
	}
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return models.User{}, lookupError(err, "Failed to fetch user")
	}
	return user, nil
}

// CreateUser creates a new user, hashing their password.
func (s *UserService) CreateUser(ctx context.Context, email, password string) (models.User, error) {
	if email == "" || password == "" {
		return models.User{}, apperr.InvalidInput(MsgCredentialsMissing)
	}
	if !ValidEmail(email) {
		return models.User{}, apperr.InvalidInput(MsgInvalidEmail)
	}
	if err := checkPassword(password); err != nil {
		return models.User{}, err
	}

	hash, err := s.hash(password)
	if err != nil {
		return models.User{}, apperr.Internal("Failed to create user", err)
	}

	user, err := s.repo.Create(ctx, email, hash)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return models.User{}, apperr.Conflict(MsgEmailExists)
		}
		return models.User{}, apperr.Internal("Failed to create user", err)
	}

	recordEvent(ctx, s.events, models.EventUserCreated, models.LevelInfo,
		fmt.Sprintf("User '%s' created.", user.Email), &user.ID)
	return user, nil
}

// UpdateUser changes the email and/or password of a user. Nil or empty
// fields are left untouched.
func (s *UserService) UpdateUser(ctx context.Context, id string, email, password *string) (models.User, error) {
	if !ValidID(id) {
		return models.User{}, apperr.InvalidInput(MsgInvalidID)
	}

	hasEmail := email != nil && *email != ""
	hasPassword := password != nil && *password != ""
	if !hasEmail && !hasPassword {
		return models.User{}, apperr.InvalidInput(MsgNoFieldsToUpdate)
	}

	var upd models.UserUpdate
	if hasEmail {
		if !ValidEmail(*email) {
			return models.User{}, apperr.InvalidInput(MsgInvalidEmail)
		}
		upd.Email = email
	}
	if hasPassword {
		if err := checkPassword(*password); err != nil {
			return models.User{}, err
		}
		hash, err := s.hash(*password)
		if err != nil {
			return models.User{}, apperr.Internal("Failed to update user", err)
		}
		upd.PasswordHash = &hash
	}

	user, err := s.repo.Update(ctx, id, upd)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return models.User{}, apperr.NotFound(MsgUserNotFound)
		case errors.Is(err, repository.ErrConflict):
			return models.User{}, apperr.Conflict(MsgEmailTaken)
		default:
			return models.User{}, apperr.Internal("Failed to update user", err)
		}
	}

	recordEvent(ctx, s.events, models.EventUserUpdated, models.LevelInfo,
		fmt.Sprintf("User '%s' updated.", user.Email), &user.ID)
	return user, nil
}

// DeleteUser removes a user and returns the deleted record.
func (s *UserService) DeleteUser(ctx context.Context, id string) (models.User, error) {
	if !ValidID(id) {
		return models.User{}, apperr.InvalidInput(MsgInvalidID)
	}

	user, err := s.repo.Delete(ctx, id)
	if err != nil {
		return models.User{}, lookupError(err, "Failed to delete user")
	}

	recordEvent(ctx, s.events, models.EventUserDeleted, models.LevelInfo,
		fmt.Sprintf("User '%s' deleted.", user.Email), &user.ID)
	return user, nil
}

// AuthenticateUser verifies a user's credentials. An unknown email and a
// wrong password produce the same error.
func (s *UserService) AuthenticateUser(ctx context.Context, email, password string) (models.User, error) {
	if email == "" || password == "" {
		return models.User{}, apperr.InvalidInput(MsgCredentialsMissing)
	}
	if !ValidEmail(email) {
		return models.User{}, apperr.InvalidInput(MsgInvalidEmail)
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Burn the same hashing time as a real comparison.
			_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
			return models.User{}, apperr.Unauthorized(MsgInvalidCredentials)
		}
		return models.User{}, apperr.Internal("Login failed", err)
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return models.User{}, apperr.Unauthorized(MsgInvalidCredentials)
		}
		return models.User{}, apperr.Internal("Login failed", err)
	}

	recordEvent(ctx, s.events, models.EventUserLogin, models.LevelInfo,
		fmt.Sprintf("User '%s' logged in.", user.Email), &user.ID)
	return user, nil
}

func (s *UserService) hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func (s *UserService) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password"), s.hashCost)
	})
	return s.dummyHash
}

func checkPassword(password string) error {
	if !ValidPassword(password) {
		return apperr.InvalidInput(MsgPasswordTooShort)
	}
	// bcrypt only accepts 72 bytes of input.
	if len(password) > MaxPasswordBytes {
		return apperr.InvalidInput(MsgPasswordTooLong)
	}
	return nil
}

// lookupError maps repository errors for single-record reads and deletes.
func lookupError(err error, internalMsg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(MsgUserNotFound)
	}
	return apperr.Internal(internalMsg, err)
}
