package models

import "time"

// OrphanBlob is a stored object with no file record pointing at it.
type OrphanBlob struct {
	Key       string `gorm:"column:blob_key;primaryKey"`
	Attempts  int    `gorm:"default:0"`
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}
