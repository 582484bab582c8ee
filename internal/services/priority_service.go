// Package services – PriorityService
//
// This file implements the priority setter. Inputs are validated strictly
// before any lookup; the stored pair is read back leniently through
// quota.ProjectPriority.
package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/house-claims/internal/quota"
	"github.com/tbourn/house-claims/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PriorityService stores per-user category priorities.
type PriorityService struct {
	DB       *gorm.DB
	Registry *Registry
	Now      func() time.Time
}

// Set validates the decoded JSON values ghibli and sanrio and stores them on
// the credit state of username, creating the state with full credits when
// needed. A 0/0 pair clears the priority. The state is rebound to botID;
// credits, window and version are not touched.
//
// It returns the projected priority, nil when cleared.
func (s *PriorityService) Set(ctx context.Context, username, botID string, ghibli, sanrio any) (*quota.Priority, error) {
	tr := otel.Tracer("services/PriorityService")
	ctx, span := tr.Start(ctx, "Set",
		trace.WithAttributes(attribute.String("bot.id", botID)),
	)
	defer span.End()

	g, err := quota.ParsePriorityValue(ghibli)
	if err != nil {
		return nil, err
	}
	sn, err := quota.ParsePriorityValue(sanrio)
	if err != nil {
		return nil, err
	}
	if err := quota.ValidatePriority(g, sn); err != nil {
		return nil, err
	}

	bot, err := s.Registry.ResolveBot(ctx, botID)
	if err != nil {
		return nil, err
	}
	user, err := s.Registry.ResolveUser(ctx, username)
	if err != nil {
		return nil, err
	}

	var gp, sp *int
	if !quota.IsClear(g, sn) {
		gp, sp = &g, &sn
	}

	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.EnsureState(ctx, tx, user.ID, bot.ID); err != nil {
			return fmt.Errorf("ensure credit state: %w", err)
		}
		if err := repo.UpdatePriority(ctx, tx, user.ID, bot.ID, gp, sp, now); err != nil {
			return fmt.Errorf("update priority: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	loggerFor(ctx).Debug().
		Str("user_id", user.ID).
		Str("bot_id", bot.ID).
		Int("ghibli", g).
		Int("sanrio", sn).
		Msg("priority updated")

	return quota.ProjectPriority(gp, sp), nil
}
