package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/house-claims/internal/domain"
)

// CreateBot inserts a bot with the given slug id and display name.
// ErrDuplicate is returned when the slug is already taken.
func CreateBot(ctx context.Context, db *gorm.DB, id, name string) (*domain.Bot, error) {
	b := &domain.Bot{
		ID:        id,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(b).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return b, nil
}

// GetBot fetches a bot by exact id.
func GetBot(ctx context.Context, db *gorm.DB, id string) (*domain.Bot, error) {
	var b domain.Bot
	if err := db.WithContext(ctx).Where("id = ?", id).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBots returns every bot, newest first.
func ListBots(ctx context.Context, db *gorm.DB) ([]domain.Bot, error) {
	var out []domain.Bot
	err := db.WithContext(ctx).
		Order("created_at DESC").
		Order("id ASC").
		Find(&out).Error
	return out, err
}
