package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
	cardsRepo "github.com/mrlokans/librarian/internal/database/cards"
	"github.com/mrlokans/librarian/internal/database/users"
	"github.com/mrlokans/librarian/internal/entities"
)

var userIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,64}$`)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrAuthRequired       = errors.New("authentication required")
	ErrForbidden          = errors.New("insufficient permissions")
	ErrRateLimited        = errors.New("too many login attempts")
	ErrUserIDRequired     = errors.New("user id is required")
	ErrUserIDInvalid      = errors.New("user id must be 3-64 characters: letters, digits, dot, underscore or hyphen")
	ErrPasswordRequired   = errors.New("password is required")
	ErrCardNoRequired     = errors.New("card number is required")
)

// Service authenticates desk administrators and patrons.
type Service struct {
	users  *users.Repository
	cards  *cardsRepo.Repository
	config config.Auth
	now    func() time.Time
}

// NewService creates a new authentication service.
func NewService(db *gorm.DB, cfg config.Auth) *Service {
	return &Service{
		users:  users.NewRepository(db),
		cards:  cardsRepo.NewRepository(db),
		config: cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateAdmin registers an administrator with a bcrypt-hashed password.
func (s *Service) CreateAdmin(userID, name, contact, password string) (*entities.User, error) {
	userID = strings.TrimSpace(userID)
	switch {
	case userID == "":
		return nil, ErrUserIDRequired
	case !userIDPattern.MatchString(userID):
		return nil, ErrUserIDInvalid
	case password == "":
		return nil, ErrPasswordRequired
	}

	if _, err := s.users.GetUserByID(userID); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	passwordHash, err := HashPassword(password, s.config.BcryptCost)
	if err != nil {
		return nil, err
	}

	user, err := s.users.CreateUser(userID, passwordHash, strings.TrimSpace(name), strings.TrimSpace(contact))
	if err != nil {
		if database.IsDuplicate(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Authenticate checks an administrator's credentials. Unknown ids and wrong
// passwords both report ErrInvalidCredentials.
func (s *Service) Authenticate(userID, password string) (*entities.User, error) {
	user, err := s.users.GetUserByID(strings.TrimSpace(userID))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := CheckPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, ErrInvalidPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := s.now()
	if err := s.users.UpdateLastLogin(user.UserID, now); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	user.LastLoginAt = &now
	return user, nil
}

// AuthenticatePatron logs a patron in by card number alone.
func (s *Service) AuthenticatePatron(ctx context.Context, cardNo string) (*entities.Card, error) {
	cardNo = strings.TrimSpace(cardNo)
	if cardNo == "" {
		return nil, ErrCardNoRequired
	}
	card, err := s.cards.GetByNo(ctx, cardNo)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find card: %w", err)
	}
	return card, nil
}

// GetUser retrieves an administrator by id.
func (s *Service) GetUser(userID string) (*entities.User, error) {
	user, err := s.users.GetUserByID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// ChangePassword replaces an administrator's password after verifying the old one.
func (s *Service) ChangePassword(userID, oldPassword, newPassword string) error {
	user, err := s.GetUser(userID)
	if err != nil {
		return err
	}
	if err := CheckPassword(oldPassword, user.PasswordHash); err != nil {
		return err
	}

	newHash, err := HashPassword(newPassword, s.config.BcryptCost)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(user.UserID, newHash)
}

// HasUsers returns true if any administrator exists.
func (s *Service) HasUsers() (bool, error) {
	count, err := s.users.CountUsers()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// IsAuthEnabled returns true if authentication is required.
func (s *Service) IsAuthEnabled() bool {
	return s.config.Mode == config.AuthModeLocal
}

// GetAuthMode returns the current authentication mode.
func (s *Service) GetAuthMode() config.AuthMode {
	return s.config.Mode
}
