package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/house-claims/internal/domain"
)

// ClaimsStats returns how many claims userID has and when the latest was
// made (nil with no claims). The admin claim listing derives its ETag from it.
func ClaimsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, lastClaimedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.HouseClaim{}).Where("user_id = ?", userID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// MAX(claimed_at) comes back as TEXT from sqlite.
	var row struct {
		ClaimedAt time.Time
	}
	if err = q.Select("claimed_at").Order("claimed_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.ClaimedAt, nil
}
