package entities

import "time"

// User is a library administrator who operates the circulation desk.
type User struct {
	UserID       string     `gorm:"primaryKey;size:64" json:"user_id"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	Name         string     `gorm:"size:128" json:"name"`
	Contact      string     `gorm:"size:256" json:"contact,omitempty"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
