package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rrepohub/rrepohub-backend/blob"
	"github.com/rrepohub/rrepohub-backend/models"
)

// sweepBatch bounds how many orphans a single tick retries.
const sweepBatch = 100

type OrphanQueue interface {
	List(ctx context.Context, limit int) ([]models.OrphanBlob, error)
	Remove(ctx context.Context, key string) error
	MarkFailed(ctx context.Context, key, reason string) error
}

// StartCleanupJob retries deletion of blobs whose upload was rolled back but
// could not be removed at the time. It stops when ctx is cancelled; the
// returned channel is closed once the goroutine has exited.
func StartCleanupJob(ctx context.Context, interval time.Duration, orphans OrphanQueue, blobs blob.Store, log *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepOrphans(ctx, orphans, blobs, log)
			}
		}
	}()
	return done
}

func sweepOrphans(ctx context.Context, orphans OrphanQueue, blobs blob.Store, log *zap.Logger) {
	pending, err := orphans.List(ctx, sweepBatch)
	if err != nil {
		log.Error("error listing orphaned blobs", zap.Error(err))
		return
	}

	for _, o := range pending {
		if err := blobs.Delete(ctx, o.Key); err != nil {
			log.Warn("orphaned blob still not deleted", zap.String("key", o.Key), zap.Int("attempts", o.Attempts+1), zap.Error(err))
			if err := orphans.MarkFailed(ctx, o.Key, err.Error()); err != nil {
				log.Error("error recording orphan failure", zap.Error(err))
			}
			continue
		}
		if err := orphans.Remove(ctx, o.Key); err != nil {
			log.Error("error removing orphan record", zap.String("key", o.Key), zap.Error(err))
			continue
		}
		log.Info("deleted orphaned blob", zap.String("key", o.Key))
	}
}
