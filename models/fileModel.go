package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TimestampLayout is the ISO-8601 form stored in File.Date. Fixed width so
// that lexical order on the column matches chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

type File struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string     `gorm:"not null;index" json:"name"`
	Category       string     `gorm:"not null;index" json:"category"`
	Type           string     `json:"type"`
	Description    string     `json:"description"`
	Size           string     `json:"size"`
	Uploader       string     `json:"uploader"`
	UploaderID     *uuid.UUID `gorm:"type:uuid;index" json:"uploaderUid,omitempty"`
	DownloadURL    string     `gorm:"not null" json:"downloadUrl"`
	StorageKey     string     `json:"-"`
	IsExternalLink bool       `gorm:"default:false" json:"isExternalLink"`
	Date           string     `gorm:"index" json:"date"`
	Downloads      int64      `gorm:"not null;default:0" json:"downloads"`
}

func (f *File) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.Date == "" {
		f.Date = FormatTimestamp(time.Now())
	}
	return nil
}

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
