package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/house-claims/internal/domain"
	"github.com/tbourn/house-claims/internal/quota"
)

// ErrStale is returned by SaveStateIfVersion when the row no longer carries
// the expected version.
var ErrStale = errors.New("credit state version changed")

// GetState returns the credit state of userID without locking.
// ErrNotFound is returned when the user has never claimed or set a priority.
func GetState(ctx context.Context, db *gorm.DB, userID string) (*domain.CreditWindowState, error) {
	var st domain.CreditWindowState
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&st).Error; err != nil {
		return nil, err
	}
	return &st, nil
}

// EnsureState inserts the default state for userID (full credits, no window,
// bound to botID) unless one exists. Concurrent callers never fail on the
// unique user_id index; the loser's insert is a no-op.
func EnsureState(ctx context.Context, db *gorm.DB, userID, botID string) error {
	now := time.Now().UTC()
	st := &domain.CreditWindowState{
		ID:               uuid.NewString(),
		UserID:           userID,
		CreditsRemaining: quota.MaxCredits,
		BoundBotID:       botID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(st).Error
}

// LockState reads the state of userID for update. On PostgreSQL and MySQL the
// row is locked until the surrounding transaction ends; SQLite already holds
// the database write lock once the transaction has written.
func LockState(ctx context.Context, tx *gorm.DB, userID string) (*domain.CreditWindowState, error) {
	q := tx.WithContext(ctx)
	if supportsRowLocks(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var st domain.CreditWindowState
	if err := q.Where("user_id = ?", userID).First(&st).Error; err != nil {
		return nil, err
	}
	return &st, nil
}

// SaveStateIfVersion writes the credit columns of next when the stored row
// still has version expected, and bumps the version. ErrStale is returned
// when no row matched.
func SaveStateIfVersion(ctx context.Context, tx *gorm.DB, next *domain.CreditWindowState, expected int64, now time.Time) error {
	res := tx.WithContext(ctx).
		Model(&domain.CreditWindowState{}).
		Where("id = ? AND version = ?", next.ID, expected).
		Updates(map[string]any{
			"credits_remaining": next.CreditsRemaining,
			"window_started_at": nullable(next.WindowStartedAt),
			"bound_bot_id":      next.BoundBotID,
			"version":           expected + 1,
			"updated_at":        now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	next.Version = expected + 1
	next.UpdatedAt = now
	return nil
}

// UpdatePriority stores both priority columns (nil clears) and rebinds the
// state to botID. Credits, window and version are left untouched.
func UpdatePriority(ctx context.Context, tx *gorm.DB, userID, botID string, ghibli, sanrio *int, now time.Time) error {
	res := tx.WithContext(ctx).
		Model(&domain.CreditWindowState{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"priority_ghibli": nullable(ghibli),
			"priority_sanrio": nullable(sanrio),
			"bound_bot_id":    botID,
			"updated_at":      now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// nullable turns a nil pointer into an untyped nil so map updates write NULL
// on every driver.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
