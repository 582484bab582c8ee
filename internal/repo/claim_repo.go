package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/house-claims/internal/domain"
)

// CreateClaim appends a claim record for userID made through botID.
func CreateClaim(ctx context.Context, db *gorm.DB, userID, botID string, houseKey *string, at time.Time) (*domain.HouseClaim, error) {
	hc := &domain.HouseClaim{
		ID:        uuid.NewString(),
		UserID:    userID,
		BotID:     botID,
		HouseKey:  houseKey,
		ClaimedAt: at,
	}
	if err := db.WithContext(ctx).Omit("User").Create(hc).Error; err != nil {
		return nil, err
	}
	return hc, nil
}

// CountClaims returns the number of claims ever recorded for userID.
func CountClaims(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.HouseClaim{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

// ListClaimsPage returns a page of claims for userID, newest first.
func ListClaimsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.HouseClaim, error) {
	var out []domain.HouseClaim
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("claimed_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
