// Package services – Registry
//
// This file implements the registry lookups shared by every bot-facing
// operation: resolving a bot by id and an allowed user by username. Positive
// bot lookups are cached in a bounded LRU; bots are immutable once created so
// cached entries never go stale. Users are always read from the store so that
// allow-list changes take effect immediately.
package services

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"gorm.io/gorm"

	"github.com/tbourn/house-claims/internal/domain"
	"github.com/tbourn/house-claims/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Registry resolves bots and allowed users.
type Registry struct {
	DB   *gorm.DB
	bots *lru.Cache
}

// NewRegistry returns a Registry backed by db. cacheSize <= 0 disables the
// bot cache.
func NewRegistry(db *gorm.DB, cacheSize int) *Registry {
	r := &Registry{DB: db}
	if cacheSize > 0 {
		if c, err := lru.New(cacheSize); err == nil {
			r.bots = c
		}
	}
	return r
}

// ResolveBot returns the bot registered under exactly botID.
func (r *Registry) ResolveBot(ctx context.Context, botID string) (*domain.Bot, error) {
	if r.bots != nil {
		if v, ok := r.bots.Get(botID); ok {
			b := v.(domain.Bot)
			return &b, nil
		}
	}

	tr := otel.Tracer("services/Registry")
	ctx, span := tr.Start(ctx, "ResolveBot",
		trace.WithAttributes(attribute.String("bot.id", botID)),
	)
	defer span.End()

	if botID == "" {
		return nil, ErrBotNotFound
	}
	b, err := repo.GetBot(ctx, r.DB, botID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrBotNotFound
		}
		return nil, fmt.Errorf("resolve bot: %w", err)
	}
	if r.bots != nil {
		r.bots.Add(b.ID, *b)
	}
	return b, nil
}

// ResolveUser returns the allow-list entry for exactly username.
func (r *Registry) ResolveUser(ctx context.Context, username string) (*domain.AllowedUser, error) {
	if username == "" {
		return nil, ErrUserNotAllowed
	}
	u, err := repo.GetUserByUsername(ctx, r.DB, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotAllowed
		}
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	return u, nil
}
