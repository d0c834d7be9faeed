package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rrepohub/rrepohub-backend/models"
)

type VerificationStore struct {
	db *gorm.DB
}

func NewVerificationStore(db *gorm.DB) *VerificationStore {
	return &VerificationStore{db: db}
}

func (s *VerificationStore) Create(ctx context.Context, v *models.EmailVerification) error {
	if err := s.db.WithContext(ctx).Create(v).Error; err != nil {
		return fmt.Errorf("create verification: %w", translate(err))
	}
	return nil
}

// Consume deletes the token and returns the user it belonged to. Expired
// tokens are deleted too but reported as ErrNotFound.
func (s *VerificationStore) Consume(ctx context.Context, token string, now time.Time) (uuid.UUID, error) {
	var v models.EmailVerification
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&v, "token = ?", token).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.EmailVerification{}, "token = ?", token)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("consume verification: %w", translate(err))
	}
	if now.After(v.ExpiresAt) {
		return uuid.Nil, fmt.Errorf("consume verification: expired: %w", ErrNotFound)
	}
	return v.UserID, nil
}

// DeleteForUser drops any outstanding tokens for a user.
func (s *VerificationStore) DeleteForUser(ctx context.Context, userID uuid.UUID) error {
	if err := s.db.WithContext(ctx).Delete(&models.EmailVerification{}, "user_id = ?", userID).Error; err != nil {
		return fmt.Errorf("delete verifications: %w", err)
	}
	return nil
}
