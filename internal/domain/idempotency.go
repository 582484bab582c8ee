package domain

import "time"

// Idempotency records the outcome of a completed claim request, keyed by
// (scope, key). A retried request carrying the same Idempotency-Key replays
// Body instead of consuming another credit.
type Idempotency struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	Scope     string    `gorm:"type:varchar(300);not null;uniqueIndex:ux_idem_scope_key,priority:1"`
	IdemKey   string    `gorm:"type:varchar(200);not null;uniqueIndex:ux_idem_scope_key,priority:2"`
	ClaimID   string    `gorm:"type:char(36);not null"`
	Status    int       `gorm:"not null"`
	Body      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
