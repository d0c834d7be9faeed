package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rrepohub/rrepohub-backend/models"
)

var downloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "rrepohub_downloads_total",
	Help: "Recorded downloads.",
})

type DownloadRecorder interface {
	IncrementDownloads(ctx context.Context, id uuid.UUID, event models.DownloadEvent) (*models.File, error)
}

// Actor describes who triggered a download.
type Actor struct {
	UserID    *uuid.UUID
	IPAddress string
	UserAgent string
}

type Downloads struct {
	files DownloadRecorder
	cache *FileCache
}

func NewDownloads(files DownloadRecorder, cache *FileCache) *Downloads {
	return &Downloads{files: files, cache: cache}
}

// Record counts one download of id and returns the updated record.
func (s *Downloads) Record(ctx context.Context, id uuid.UUID, who Actor) (*models.File, error) {
	f, err := s.files.IncrementDownloads(ctx, id, models.DownloadEvent{
		UserID:    who.UserID,
		IPAddress: who.IPAddress,
		UserAgent: who.UserAgent,
	})
	if err != nil {
		return nil, err
	}
	s.cache.Delete(id)
	downloadsTotal.Inc()
	return f, nil
}
