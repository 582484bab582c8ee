// Package quota holds the pure credit-window rules: how many credits a user
// effectively has at a given instant, when the window resets, and how a claim
// transforms the stored state. Nothing in this package touches storage; the
// claim coordinator in package services persists what PlanClaim decides.
package quota

import (
	"time"

	"github.com/tbourn/house-claims/internal/domain"
)

const (
	// MaxCredits is the number of claims available per window.
	MaxCredits = 3
	// WindowDuration is the lifetime of a window, measured from its first claim.
	WindowDuration = 3 * time.Hour
)

// Result is the read-only evaluation of a credit state at one instant.
type Result struct {
	EffectiveCredits int
	WindowActive     bool
	WindowStartedAt  *time.Time // nil unless WindowActive
	ResetAt          *time.Time // nil unless WindowActive
	Expired          bool       // a stored window has elapsed but is not yet materialized
}

// Allowed reports whether at least one credit is available.
func (r Result) Allowed() bool { return r.EffectiveCredits > 0 }

// Evaluate applies the window rules to st at now. A nil state, or one without
// a window, has full credits. An elapsed window is reported as expired with
// full credits; the stored row is left as is.
func Evaluate(st *domain.CreditWindowState, now time.Time) Result {
	if st == nil || st.WindowStartedAt == nil {
		return Result{EffectiveCredits: MaxCredits}
	}

	resetAt := st.WindowStartedAt.Add(WindowDuration)
	if !now.Before(resetAt) {
		return Result{EffectiveCredits: MaxCredits, Expired: true}
	}

	started := *st.WindowStartedAt
	return Result{
		EffectiveCredits: st.CreditsRemaining,
		WindowActive:     true,
		WindowStartedAt:  &started,
		ResetAt:          &resetAt,
	}
}

// ResetAt returns the reset instant of a window started at startedAt, or nil.
func ResetAt(startedAt *time.Time) *time.Time {
	if startedAt == nil {
		return nil
	}
	t := startedAt.Add(WindowDuration)
	return &t
}

// Transition names one state change applied while planning a claim.
type Transition string

const (
	// TransitionBotRebound: the state moved to the requesting bot.
	TransitionBotRebound Transition = "bot_rebound"
	// TransitionWindowReset: an elapsed window was materialized back to full credits.
	TransitionWindowReset Transition = "window_reset"
	// TransitionWindowOpened: the first credit of a fresh window was consumed.
	TransitionWindowOpened Transition = "window_opened"
	// TransitionCreditConsumed: one credit was consumed inside an open window.
	TransitionCreditConsumed Transition = "credit_consumed"
)

// ClaimPlan is the outcome of PlanClaim.
//
// When Denied is true Next must not be persisted: the caller aborts with no
// mutation and reports Snapshot. Otherwise Next is the state to store and
// ClaimNumber is the 1-based ordinal of the claim inside its window.
type ClaimPlan struct {
	Denied      bool
	Next        domain.CreditWindowState
	Transitions []Transition
	ClaimNumber int
	Snapshot    Result
}

// Has reports whether tr was applied.
func (p ClaimPlan) Has(tr Transition) bool {
	for _, t := range p.Transitions {
		if t == tr {
			return true
		}
	}
	return false
}

// PlanClaim computes the effect of consuming one credit from st on behalf of
// botID at now. The input is not modified.
func PlanClaim(st domain.CreditWindowState, botID string, now time.Time) ClaimPlan {
	next := st
	var trs []Transition

	if next.BoundBotID != botID {
		next.BoundBotID = botID
		trs = append(trs, TransitionBotRebound)
	}

	if next.WindowStartedAt != nil && !now.Before(next.WindowStartedAt.Add(WindowDuration)) {
		next.CreditsRemaining = MaxCredits
		next.WindowStartedAt = nil
		trs = append(trs, TransitionWindowReset)
	}

	effective := MaxCredits
	if next.WindowStartedAt != nil {
		effective = next.CreditsRemaining
	}

	if effective <= 0 {
		return ClaimPlan{
			Denied:      true,
			Next:        st,
			Transitions: trs,
			Snapshot: Result{
				EffectiveCredits: 0,
				WindowActive:     true,
				WindowStartedAt:  copyTime(next.WindowStartedAt),
				ResetAt:          ResetAt(next.WindowStartedAt),
			},
		}
	}

	if next.WindowStartedAt == nil {
		started := now
		next.WindowStartedAt = &started
		next.CreditsRemaining = MaxCredits - 1
		trs = append(trs, TransitionWindowOpened)
	} else {
		next.CreditsRemaining--
		trs = append(trs, TransitionCreditConsumed)
	}

	return ClaimPlan{
		Next:        next,
		Transitions: trs,
		ClaimNumber: MaxCredits - next.CreditsRemaining,
		Snapshot: Result{
			EffectiveCredits: next.CreditsRemaining,
			WindowActive:     true,
			WindowStartedAt:  copyTime(next.WindowStartedAt),
			ResetAt:          ResetAt(next.WindowStartedAt),
		},
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
