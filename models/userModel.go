package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is both the identity record and the public profile. Username is
// not unique.
type User struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email         string    `gorm:"unique;not null"`
	PasswordHash  string
	EmailVerified bool   `gorm:"default:false"`
	Username      string `gorm:"index"`
	FirstName     string
	LastName      string
	CreatedAt     time.Time
	UpdatedAt     time.Time

	GoogleID *string `gorm:"uniqueIndex" json:"google_id,omitempty"`
	Provider *string `json:"provider,omitempty"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Profile is the view of a User that is safe to hand to any caller.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	CreatedAt string    `json:"createdAt"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		CreatedAt: FormatTimestamp(u.CreatedAt),
	}
}
