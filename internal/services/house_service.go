// Package services – HouseService
//
// This file implements the bot-facing credit operations: Check, a read-only
// evaluation of a user's window, and Claim, which consumes one credit and
// records the claim atomically.
//
// Claims for the same user are serialized twice: by an in-process mutex per
// user, and by the store (row lock on PostgreSQL/MySQL, database write lock
// on SQLite) plus a version compare-and-swap on the credit row. A claim that
// is denied leaves no trace: lazy creation, rebind and window reset are all
// rolled back together.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"gorm.io/gorm"

	"github.com/tbourn/house-claims/internal/domain"
	"github.com/tbourn/house-claims/internal/quota"
	"github.com/tbourn/house-claims/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CheckResult is the outcome of HouseService.Check.
type CheckResult struct {
	Allowed          bool
	Username         string
	CreditsRemaining int
	WindowStartedAt  *time.Time
	ResetAt          *time.Time
	Priority         *quota.Priority
	// Expired is set when a stored window has elapsed; credits are
	// effectively full although the row has not been rewritten yet.
	Expired bool
}

// ClaimResult is the outcome of a successful HouseService.Claim.
type ClaimResult struct {
	ClaimID          string
	Username         string
	BotID            string
	ClaimNumber      int
	CreditsRemaining int
	WindowStartedAt  *time.Time
	ResetAt          *time.Time
	Transitions      []quota.Transition
}

// IdempotentClaim binds a claim to a client-supplied key.
type IdempotentClaim struct {
	Scope string
	Key   string
	TTL   time.Duration
	// Encode renders the response stored for replays; nil stores the
	// ClaimResult as JSON.
	Encode func(*ClaimResult) ([]byte, error)
}

// errReplayed rolls back a claim transaction that found a stored response.
var errReplayed = errors.New("idempotent replay")

// HouseService evaluates and consumes credits.
type HouseService struct {
	DB       *gorm.DB
	Registry *Registry

	// TxTimeout bounds a single claim transaction. Zero means no extra bound.
	TxTimeout time.Duration
	// Now is the clock; tests replace it.
	Now func() time.Time

	locksOnce sync.Once
	locks     *xsync.MapOf[string, *sync.Mutex]
}

// NewHouseService wires a HouseService with the wall clock.
func NewHouseService(db *gorm.DB, reg *Registry, txTimeout time.Duration) *HouseService {
	return &HouseService{
		DB:        db,
		Registry:  reg,
		TxTimeout: txTimeout,
		Now:       time.Now,
	}
}

func (s *HouseService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// userLock returns the mutex of userID. Entries are never evicted; the map is
// bounded by the allow-list.
func (s *HouseService) userLock(userID string) *sync.Mutex {
	s.locksOnce.Do(func() { s.locks = xsync.NewMapOf[string, *sync.Mutex]() })
	mu, _ := s.locks.LoadOrCompute(userID, func() *sync.Mutex { return &sync.Mutex{} })
	return mu
}

// Check reports whether username may claim through botID right now.
// It never writes, even when the stored window has expired.
func (s *HouseService) Check(ctx context.Context, username, botID string) (*CheckResult, error) {
	tr := otel.Tracer("services/HouseService")
	ctx, span := tr.Start(ctx, "Check",
		trace.WithAttributes(
			attribute.String("bot.id", botID),
		),
	)
	defer span.End()

	if _, err := s.Registry.ResolveBot(ctx, botID); err != nil {
		return nil, err
	}
	user, err := s.Registry.ResolveUser(ctx, username)
	if err != nil {
		return nil, err
	}

	st, err := repo.GetState(ctx, s.DB, user.ID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("load credit state: %w", err)
		}
		st = nil
	}

	r := quota.Evaluate(st, s.now())
	out := &CheckResult{
		Allowed:          r.Allowed(),
		Username:         user.Username,
		CreditsRemaining: r.EffectiveCredits,
		WindowStartedAt:  r.WindowStartedAt,
		ResetAt:          r.ResetAt,
		Expired:          r.Expired,
	}
	if st != nil {
		out.Priority = quota.ProjectPriority(st.PriorityGhibli, st.PrioritySanrio)
	}
	span.SetAttributes(attribute.Int("credits.effective", r.EffectiveCredits))
	return out, nil
}

// Claim consumes one credit of username through botID and records the claim.
//
// Errors:
//   - ErrBotNotFound / ErrUserNotAllowed when the registry lookups fail.
//   - *QuotaError (errors.Is ErrMaxReached) when no credit is left.
//   - a wrapped store or timeout error otherwise; nothing is persisted. A
//     lost version check is reported this way too (errors.Is ErrStateConflict).
func (s *HouseService) Claim(ctx context.Context, username, botID string, houseKey *string) (*ClaimResult, error) {
	res, _, err := s.traceClaim(ctx, username, botID, houseKey, nil)
	return res, err
}

// ClaimIdempotent is Claim under a client key. The key lookup, the claim and
// the stored response share one transaction, so concurrent requests with
// the same key consume at most one credit. When the key already holds an
// unexpired response it is returned as replay and nothing is written.
// ErrIdempotencyKeyReused reports a key taken by a concurrent request of
// another user.
func (s *HouseService) ClaimIdempotent(ctx context.Context, username, botID string, houseKey *string, idem IdempotentClaim) (*ClaimResult, *domain.Idempotency, error) {
	return s.traceClaim(ctx, username, botID, houseKey, &idem)
}

func (s *HouseService) traceClaim(ctx context.Context, username, botID string, houseKey *string, idem *IdempotentClaim) (*ClaimResult, *domain.Idempotency, error) {
	tr := otel.Tracer("services/HouseService")
	ctx, span := tr.Start(ctx, "Claim",
		trace.WithAttributes(
			attribute.String("bot.id", botID),
		),
	)
	defer span.End()

	res, replay, err := s.claim(ctx, username, botID, houseKey, idem)
	outcome := claimOutcome(err)
	if replay != nil {
		outcome = outcomeReplayed
	}
	claimsTotal.WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.String("claim.outcome", outcome))
	if err != nil && outcome == outcomeError {
		span.RecordError(err)
		span.SetStatus(codes.Error, "claim failed")
	}
	return res, replay, err
}

func (s *HouseService) claim(ctx context.Context, username, botID string, houseKey *string, idem *IdempotentClaim) (*ClaimResult, *domain.Idempotency, error) {
	bot, err := s.Registry.ResolveBot(ctx, botID)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.Registry.ResolveUser(ctx, username)
	if err != nil {
		return nil, nil, err
	}

	mu := s.userLock(user.ID)
	mu.Lock()
	defer mu.Unlock()

	start := time.Now()
	defer func() { claimTxDuration.Observe(time.Since(start).Seconds()) }()

	txCtx := ctx
	if s.TxTimeout > 0 {
		var cancel context.CancelFunc
		txCtx, cancel = context.WithTimeout(ctx, s.TxTimeout)
		defer cancel()
	}

	now := s.now()
	var (
		out    *ClaimResult
		replay *domain.Idempotency
	)
	err = s.DB.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		if err := repo.EnsureState(txCtx, tx, user.ID, bot.ID); err != nil {
			return fmt.Errorf("ensure credit state: %w", err)
		}
		st, err := repo.LockState(txCtx, tx, user.ID)
		if err != nil {
			return fmt.Errorf("lock credit state: %w", err)
		}
		if idem != nil {
			rec, err := repo.GetIdempotency(txCtx, tx, idem.Scope, idem.Key, now)
			switch {
			case err == nil:
				replay = rec
				return errReplayed
			case !errors.Is(err, repo.ErrNotFound):
				return fmt.Errorf("load idempotency record: %w", err)
			}
		}

		plan := quota.PlanClaim(*st, bot.ID, now)
		if plan.Denied {
			return &QuotaError{
				WindowStartedAt: plan.Snapshot.WindowStartedAt,
				ResetAt:         plan.Snapshot.ResetAt,
			}
		}

		next := plan.Next
		if err := repo.SaveStateIfVersion(txCtx, tx, &next, st.Version, now); err != nil {
			if errors.Is(err, repo.ErrStale) {
				return ErrStateConflict
			}
			return fmt.Errorf("save credit state: %w", err)
		}

		hc, err := repo.CreateClaim(txCtx, tx, user.ID, bot.ID, houseKey, now)
		if err != nil {
			return fmt.Errorf("record claim: %w", err)
		}

		out = &ClaimResult{
			ClaimID:          hc.ID,
			Username:         user.Username,
			BotID:            bot.ID,
			ClaimNumber:      plan.ClaimNumber,
			CreditsRemaining: next.CreditsRemaining,
			WindowStartedAt:  plan.Snapshot.WindowStartedAt,
			ResetAt:          plan.Snapshot.ResetAt,
			Transitions:      plan.Transitions,
		}
		if idem != nil {
			return storeReplay(txCtx, tx, idem, out, now)
		}
		return nil
	})
	switch {
	case errors.Is(err, errReplayed):
		return nil, replay, nil
	case err != nil:
		return nil, nil, err
	}

	lg := loggerFor(ctx)
	for _, t := range out.Transitions {
		lg.Debug().
			Str("user_id", user.ID).
			Str("bot_id", bot.ID).
			Str("transition", string(t)).
			Int("credits_remaining", out.CreditsRemaining).
			Msg("credit state transition")
	}
	return out, nil, nil
}

func storeReplay(ctx context.Context, tx *gorm.DB, idem *IdempotentClaim, out *ClaimResult, now time.Time) error {
	encode := idem.Encode
	if encode == nil {
		encode = func(r *ClaimResult) ([]byte, error) { return json.Marshal(r) }
	}
	body, err := encode(out)
	if err != nil {
		return fmt.Errorf("encode idempotent response: %w", err)
	}
	_, err = repo.CreateIdempotency(ctx, tx, idem.Scope, idem.Key, out.ClaimID, http.StatusOK, body, idem.TTL, now)
	switch {
	case errors.Is(err, repo.ErrDuplicate):
		return ErrIdempotencyKeyReused
	case err != nil:
		return fmt.Errorf("store idempotency record: %w", err)
	}
	return nil
}

func claimOutcome(err error) string {
	switch {
	case err == nil:
		return outcomeClaimed
	case errors.Is(err, ErrMaxReached):
		return outcomeMaxReached
	case errors.Is(err, ErrBotNotFound):
		return outcomeBotNotFound
	case errors.Is(err, ErrUserNotAllowed):
		return outcomeUserNotAllowed
	case errors.Is(err, ErrStateConflict):
		return outcomeConflict
	case errors.Is(err, ErrIdempotencyKeyReused):
		return outcomeKeyReused
	default:
		return outcomeError
	}
}
