package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/house-claims/internal/domain"
)

// CreateUser adds username to the allow-list.
// ErrDuplicate is returned when the username is already present.
func CreateUser(ctx context.Context, db *gorm.DB, username string) (*domain.AllowedUser, error) {
	u := &domain.AllowedUser{
		ID:        uuid.NewString(),
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return u, nil
}

// GetUserByUsername looks up an allow-list entry by exact, case-sensitive
// username.
func GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.AllowedUser, error) {
	var u domain.AllowedUser
	if err := db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// CountUsers returns the size of the allow-list.
func CountUsers(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.AllowedUser{}).Count(&n).Error
	return n, err
}

// ListUsersPage returns a page of allow-list entries ordered by username.
func ListUsersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.AllowedUser, error) {
	var out []domain.AllowedUser
	err := db.WithContext(ctx).
		Order("username ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
