// Package services defines the business logic for the bot registry, the
// allow-list, credit windows, claims and priorities. This file centralizes
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// Translation into user-facing reasons or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/tbourn/house-claims/internal/quota"
)

// Registry errors.
var (
	// ErrBotNotFound indicates that no bot is registered under the given id.
	ErrBotNotFound = errors.New("bot not found")

	// ErrUserNotAllowed indicates that the username is not on the allow-list.
	ErrUserNotAllowed = errors.New("username not allowed")
)

// Claim and priority errors.
var (
	// ErrMaxReached is returned (wrapped in *QuotaError) when the user has no
	// credits left in the active window.
	ErrMaxReached = errors.New("max claims reached for the current window")

	// ErrStateConflict is returned when the credit row changed underneath a
	// claim transaction. The caller may retry the whole request.
	ErrStateConflict = errors.New("credit state changed concurrently")

	// ErrIdempotencyKeyReused is returned when an Idempotency-Key is already
	// bound to another request.
	ErrIdempotencyKeyReused = errors.New("idempotency key already used")

	// ErrInvalidPriority is returned for priority values that are not
	// non-negative integers.
	ErrInvalidPriority = quota.ErrPriorityNotInteger

	// ErrPriorityTooHigh is returned when ghibli + sanrio exceeds the quota.
	ErrPriorityTooHigh = quota.ErrPriorityTotal
)

// Admin errors.
var (
	// ErrInvalidBotName is returned when a bot name is empty or yields an
	// empty slug.
	ErrInvalidBotName = errors.New("bot name is required and must contain letters or digits")

	// ErrBotExists is returned when the derived slug is already registered.
	ErrBotExists = errors.New("bot already exists")

	// ErrInvalidUsername is returned when a username is empty after trimming.
	ErrInvalidUsername = errors.New("username is required")

	// ErrUserExists is returned when the username is already allowed.
	ErrUserExists = errors.New("username already allowed")
)

// QuotaError carries the credit snapshot observed when a claim was denied.
// It matches ErrMaxReached under errors.Is.
type QuotaError struct {
	WindowStartedAt *time.Time
	ResetAt         *time.Time
}

func (e *QuotaError) Error() string {
	if e.ResetAt == nil {
		return ErrMaxReached.Error()
	}
	return fmt.Sprintf("%s (resets at %s)", ErrMaxReached, e.ResetAt.UTC().Format(time.RFC3339))
}

// Unwrap exposes ErrMaxReached.
func (e *QuotaError) Unwrap() error { return ErrMaxReached }

// CreditsRemaining is always zero for a denied claim.
func (e *QuotaError) CreditsRemaining() int { return 0 }
