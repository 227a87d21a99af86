// Package users provides database operations for administrator accounts.
//
// # Usage
//
//	repo := users.NewRepository(db)
//	user, err := repo.GetUserByID("desk")
package users

import (
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/entities"
)

// Repository handles all user database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new users repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateUser stores a new administrator. The password must already be hashed.
func (r *Repository) CreateUser(userID, passwordHash, name, contact string) (*entities.User, error) {
	user := &entities.User{
		UserID:       userID,
		PasswordHash: passwordHash,
		Name:         name,
		Contact:      contact,
	}

	if err := r.db.Create(user).Error; err != nil {
		return nil, err
	}

	return user, nil
}

// GetUserByID retrieves a user by login id.
func (r *Repository) GetUserByID(userID string) (*entities.User, error) {
	var user entities.User
	err := r.db.Where("user_id = ?", userID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdatePassword replaces the stored password hash.
func (r *Repository) UpdatePassword(userID, passwordHash string) error {
	result := r.db.Model(&entities.User{}).Where("user_id = ?", userID).Update("password_hash", passwordHash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateLastLogin records a successful login.
func (r *Repository) UpdateLastLogin(userID string, at time.Time) error {
	return r.db.Model(&entities.User{}).Where("user_id = ?", userID).Update("last_login_at", at).Error
}

// CountUsers returns the number of administrator accounts.
func (r *Repository) CountUsers() (int64, error) {
	var count int64
	err := r.db.Model(&entities.User{}).Count(&count).Error
	return count, err
}
