package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rrepohub/rrepohub-backend/models"
)

// ProfileUpdate is a partial profile edit. Nil fields are left untouched.
type ProfileUpdate struct {
	Username  *string
	FirstName *string
	LastName  *string
}

type ProfileStore struct {
	db *gorm.DB
}

func NewProfileStore(db *gorm.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func (s *ProfileStore) Create(ctx context.Context, u *models.User) error {
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("create user: %w", translate(err))
	}
	return nil
}

func (s *ProfileStore) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, translate(err))
	}
	return &u, nil
}

func (s *ProfileStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, fmt.Errorf("get user by email: %w", translate(err))
	}
	return &u, nil
}

func (s *ProfileStore) GetByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("google_id = ?", googleID).First(&u).Error; err != nil {
		return nil, fmt.Errorf("get user by google id: %w", translate(err))
	}
	return &u, nil
}

// Merge writes only the fields set in upd and returns the updated user.
func (s *ProfileStore) Merge(ctx context.Context, id uuid.UUID, upd ProfileUpdate) (*models.User, error) {
	updates := map[string]interface{}{}
	if upd.Username != nil {
		updates["username"] = *upd.Username
	}
	if upd.FirstName != nil {
		updates["first_name"] = *upd.FirstName
	}
	if upd.LastName != nil {
		updates["last_name"] = *upd.LastName
	}
	return s.update(ctx, id, updates)
}

func (s *ProfileStore) MarkVerified(ctx context.Context, id uuid.UUID) error {
	_, err := s.update(ctx, id, map[string]interface{}{"email_verified": true})
	return err
}

// LinkGoogle attaches a Google account to an existing user and marks the
// email verified. If the account was still unverified, nobody had proven
// ownership of the password on it, so the password is cleared and any
// pending verification links are revoked.
func (s *ProfileStore) LinkGoogle(ctx context.Context, id uuid.UUID, googleID string) (*models.User, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u models.User
		if err := tx.First(&u, "id = ?", id).Error; err != nil {
			return translate(err)
		}
		updates := map[string]interface{}{
			"google_id":      googleID,
			"provider":       "google",
			"email_verified": true,
		}
		if !u.EmailVerified {
			updates["password_hash"] = ""
			if err := tx.Where("user_id = ?", id).Delete(&models.EmailVerification{}).Error; err != nil {
				return err
			}
		}
		return translate(tx.Model(&models.User{}).Where("id = ?", id).Updates(updates).Error)
	})
	if err != nil {
		return nil, fmt.Errorf("link google to user %s: %w", id, err)
	}
	return s.Get(ctx, id)
}

// Delete removes a user together with its pending verification links.
func (s *ProfileStore) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.EmailVerification{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, "id = ?", id).Error
	})
	if err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	return nil
}

func (s *ProfileStore) update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (*models.User, error) {
	db := s.db.WithContext(ctx)
	if len(updates) > 0 {
		res := db.Model(&models.User{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, fmt.Errorf("update user %s: %w", id, translate(res.Error))
		}
		if res.RowsAffected == 0 {
			return nil, fmt.Errorf("update user %s: %w", id, ErrNotFound)
		}
	}
	return s.Get(ctx, id)
}

// List returns up to limit users in creation order.
func (s *ProfileStore) List(ctx context.Context, limit int) ([]models.User, error) {
	var users []models.User
	tx := s.db.WithContext(ctx).Order("created_at ASC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *ProfileStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
