// Package handlers exposes the HTTP endpoints of the claim service.
//
// Handlers are transport-thin: they validate and normalize input, call
// application services through the interfaces below, and translate results
// into HTTP responses (including conditional and replayed responses).
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/house-claims/internal/domain"
	"github.com/tbourn/house-claims/internal/quota"
	"github.com/tbourn/house-claims/internal/services"
	"github.com/tbourn/house-claims/internal/utils"
)

//
// Service contracts (context-aware)
//

// HouseService evaluates and consumes credits.
type HouseService interface {
	// Check reports the credit situation of username without writing.
	Check(ctx context.Context, username, botID string) (*services.CheckResult, error)
	// Claim consumes one credit and records the claim.
	Claim(ctx context.Context, username, botID string, houseKey *string) (*services.ClaimResult, error)
}

// IdempotentClaimer is implemented by house services that keep replayable
// responses per Idempotency-Key.
type IdempotentClaimer interface {
	// ClaimIdempotent claims at most once per key; a non-nil record is a
	// replay of an earlier response.
	ClaimIdempotent(ctx context.Context, username, botID string, houseKey *string, idem services.IdempotentClaim) (*services.ClaimResult, *domain.Idempotency, error)
}

// PriorityService stores category priorities.
type PriorityService interface {
	// Set validates and stores the decoded JSON values ghibli and sanrio.
	Set(ctx context.Context, username, botID string, ghibli, sanrio any) (*quota.Priority, error)
}

// AdminService manages bots and the allow-list.
type AdminService interface {
	CreateBot(ctx context.Context, name string) (*domain.Bot, error)
	ListBots(ctx context.Context) ([]domain.Bot, error)
	AddUser(ctx context.Context, username string) (*domain.AllowedUser, error)
	ListUsers(ctx context.Context, page, pageSize int) ([]domain.AllowedUser, int64, error)
	ListClaims(ctx context.Context, username string, page, pageSize int) ([]domain.HouseClaim, int64, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints. It depends on abstract service
// interfaces to keep transport concerns separate from business logic.
type Handlers struct {
	houseSvc HouseService
	prioSvc  PriorityService
	adminSvc AdminService

	// IdempotencyTTL is how long a successful claim can be replayed by its
	// Idempotency-Key.
	IdempotencyTTL time.Duration
	// Now is the clock used for Retry-After.
	Now func() time.Time
}

// New constructs a Handlers instance bound to the given services. adminSvc
// may be nil when the admin routes are not mounted.
func New(houseSvc HouseService, prioSvc PriorityService, adminSvc AdminService) *Handlers {
	return &Handlers{
		houseSvc:       houseSvc,
		prioSvc:        prioSvc,
		adminSvc:       adminSvc,
		IdempotencyTTL: 24 * time.Hour,
		Now:            time.Now,
	}
}

func (h *Handlers) now() time.Time {
	if h.Now == nil {
		return time.Now().UTC()
	}
	return h.Now().UTC()
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := utils.TotalPages(total, pageSize)
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination parses and bounds the page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	return utils.ClampPage(
		utils.AtoiDefault(c.Query("page"), 1),
		utils.AtoiDefault(c.Query("page_size"), utils.DefaultPageSize),
	)
}
