package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rrepohub/rrepohub-backend/models"
)

type OrphanStore struct {
	db *gorm.DB
}

func NewOrphanStore(db *gorm.DB) *OrphanStore {
	return &OrphanStore{db: db}
}

// Add records key as orphaned. Re-adding a known key is a no-op.
func (s *OrphanStore) Add(ctx context.Context, key, reason string) error {
	o := models.OrphanBlob{Key: key, LastError: reason}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&o).Error; err != nil {
		return fmt.Errorf("add orphan %s: %w", key, err)
	}
	return nil
}

func (s *OrphanStore) List(ctx context.Context, limit int) ([]models.OrphanBlob, error) {
	var out []models.OrphanBlob
	tx := s.db.WithContext(ctx).Order("created_at ASC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list orphans: %w", err)
	}
	return out, nil
}

func (s *OrphanStore) Remove(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Delete(&models.OrphanBlob{}, "blob_key = ?", key).Error; err != nil {
		return fmt.Errorf("remove orphan %s: %w", key, err)
	}
	return nil
}

func (s *OrphanStore) MarkFailed(ctx context.Context, key, reason string) error {
	err := s.db.WithContext(ctx).Model(&models.OrphanBlob{}).Where("blob_key = ?", key).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + ?", 1),
			"last_error": reason,
		}).Error
	if err != nil {
		return fmt.Errorf("mark orphan %s: %w", key, err)
	}
	return nil
}
