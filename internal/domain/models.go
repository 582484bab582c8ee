// Package domain defines the persistence models for bots, allowed users,
// per-user credit windows, and issued house claims. These types are mapped
// with GORM and form the core data layer of the claim service.
package domain

import "time"

// Bot is a named external actor that grants claims on behalf of users.
//
// Fields:
//   - ID: lowercase slug derived from Name once, at creation time.
//   - Name: display name as entered by the administrator.
//   - CreatedAt: timestamp managed by GORM.
type Bot struct {
	ID        string    `json:"id"        gorm:"type:varchar(64);primaryKey"`
	Name      string    `json:"name"      gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"index"`
}

// TableName returns the database table name for Bot.
func (Bot) TableName() string { return "bots" }

// AllowedUser is an entry of the allow-list. Only allowed users may check,
// claim, or set priorities.
type AllowedUser struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	Username  string    `json:"username"  gorm:"type:varchar(255);not null;uniqueIndex:ux_allowed_users_username"`
	CreatedAt time.Time `json:"createdAt" gorm:"index"`
}

// TableName returns the database table name for AllowedUser.
func (AllowedUser) TableName() string { return "allowed_users" }

// CreditWindowState is the single credit record of an allowed user.
//
// Fields:
//   - UserID: owning user; unique, so a user never has two windows.
//   - CreditsRemaining: credits left inside the active window, in [0,3].
//     Only meaningful while WindowStartedAt is set.
//   - WindowStartedAt: start of the active window; nil means full credits.
//   - BoundBotID: last bot this state was used through (last writer wins).
//   - PriorityGhibli / PrioritySanrio: optional category weights; both nil
//     means no priority. Their sum never exceeds 3 when written.
//   - Version: bumped by every credit mutation; claim writes are guarded by it.
type CreditWindowState struct {
	ID               string     `json:"id"               gorm:"type:char(36);primaryKey"`
	UserID           string     `json:"userId"           gorm:"type:char(36);not null;uniqueIndex:ux_credit_state_user"`
	CreditsRemaining int        `json:"creditsRemaining" gorm:"not null;default:3;check:chk_credit_state_credits,credits_remaining >= 0 AND credits_remaining <= 3"`
	WindowStartedAt  *time.Time `json:"windowStartedAt"`
	BoundBotID       string     `json:"boundBotId"       gorm:"type:varchar(64);not null;index"`
	PriorityGhibli   *int       `json:"priorityGhibli"`
	PrioritySanrio   *int       `json:"prioritySanrio"`
	Version          int64      `json:"-"                gorm:"not null;default:0"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`

	// User is the owning allow-list entry. The state is removed with it.
	User AllowedUser `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for CreditWindowState.
func (CreditWindowState) TableName() string { return "credit_window_states" }

// HouseClaim is the append-only record of one successful claim.
type HouseClaim struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"userId"    gorm:"type:char(36);not null;index:idx_claims_user,priority:1"`
	BotID     string    `json:"botId"     gorm:"type:varchar(64);not null;index"`
	HouseKey  *string   `json:"houseKey"  gorm:"type:varchar(255)"`
	ClaimedAt time.Time `json:"claimedAt" gorm:"not null;index:idx_claims_user,priority:2"`

	// User is the claimant.
	User AllowedUser `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for HouseClaim.
func (HouseClaim) TableName() string { return "house_claims" }
