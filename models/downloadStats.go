package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DownloadEvent struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	FileID    uuid.UUID `gorm:"type:uuid;index"`
	File      File      `gorm:"foreignKey:FileID"`
	IPAddress string
	UserAgent string
	UserID    *uuid.UUID `gorm:"type:uuid"`
	CreatedAt time.Time
}

func (e *DownloadEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
