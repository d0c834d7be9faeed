package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rrepohub/rrepohub-backend/catalog"
	"github.com/rrepohub/rrepohub-backend/models"
)

// FileQuery narrows a listing. Zero values disable each predicate. Name
// search is not a store predicate: SQL case folding differs by engine and
// collation, so callers apply catalog.Filter to the rows returned.
type FileQuery struct {
	Category   string
	UploaderID *uuid.UUID
	Limit      int
}

type FileStore struct {
	db *gorm.DB
}

func NewFileStore(db *gorm.DB) *FileStore {
	return &FileStore{db: db}
}

func (s *FileStore) Create(ctx context.Context, f *models.File) error {
	if err := s.db.WithContext(ctx).Create(f).Error; err != nil {
		return fmt.Errorf("create file: %w", translate(err))
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, id uuid.UUID) (*models.File, error) {
	var f models.File
	if err := s.db.WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("get file %s: %w", id, translate(err))
	}
	return &f, nil
}

// List returns records newest first with the query predicates applied in
// SQL.
func (s *FileStore) List(ctx context.Context, q FileQuery) ([]models.File, error) {
	tx := s.db.WithContext(ctx).Model(&models.File{})
	if q.Category != "" && q.Category != catalog.All {
		tx = tx.Where("category = ?", q.Category)
	}
	if q.UploaderID != nil {
		tx = tx.Where("uploader_id = ?", *q.UploaderID)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var files []models.File
	if err := tx.Order("date DESC").Find(&files).Error; err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

// IncrementDownloads bumps the counter by one and logs the download event
// in the same transaction.
func (s *FileStore) IncrementDownloads(ctx context.Context, id uuid.UUID, event models.DownloadEvent) (*models.File, error) {
	var f models.File
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.File{}).Where("id = ?", id).
			UpdateColumn("downloads", gorm.Expr("downloads + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		event.FileID = id
		if err := tx.Omit(clause.Associations).Create(&event).Error; err != nil {
			return err
		}
		return tx.First(&f, "id = ?", id).Error
	})
	if err != nil {
		return nil, fmt.Errorf("record download of %s: %w", id, translate(err))
	}
	return &f, nil
}

func (s *FileStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.File{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count files: %w", err)
	}
	return n, nil
}
