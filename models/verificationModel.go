package models

import (
	"time"

	"github.com/google/uuid"
)

type EmailVerification struct {
	Token     string    `gorm:"primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;index"`
	ExpiresAt time.Time
	CreatedAt time.Time
}
