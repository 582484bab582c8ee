// Package services – AdminService
//
// This file implements the administrative registry use-cases: registering
// bots under a slug derived from their display name, growing the allow-list,
// and browsing users and their claim history with pagination.
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/house-claims/internal/domain"
	"github.com/tbourn/house-claims/internal/repo"
	"github.com/tbourn/house-claims/internal/utils"
)

// AdminRepo defines the repository contract required by AdminService.
type AdminRepo interface {
	// CreateBot inserts a bot; repo.ErrDuplicate when the id is taken.
	CreateBot(ctx context.Context, db *gorm.DB, id, name string) (*domain.Bot, error)
	// ListBots returns every bot, newest first.
	ListBots(ctx context.Context, db *gorm.DB) ([]domain.Bot, error)
	// CreateUser adds a username to the allow-list; repo.ErrDuplicate when present.
	CreateUser(ctx context.Context, db *gorm.DB, username string) (*domain.AllowedUser, error)
	// GetUserByUsername looks up an allow-list entry.
	GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.AllowedUser, error)
	// CountUsers returns the allow-list size.
	CountUsers(ctx context.Context, db *gorm.DB) (int64, error)
	// ListUsersPage returns a page of allow-list entries.
	ListUsersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.AllowedUser, error)
	// CountClaims returns the number of claims of a user.
	CountClaims(ctx context.Context, db *gorm.DB, userID string) (int64, error)
	// ListClaimsPage returns a page of a user's claims, newest first.
	ListClaimsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.HouseClaim, error)
}

// AdminService manages bots and the allow-list.
type AdminService struct {
	DB   *gorm.DB
	Repo AdminRepo
}

// NewAdminService constructs an AdminService.
func NewAdminService(db *gorm.DB, r AdminRepo) *AdminService {
	return &AdminService{DB: db, Repo: r}
}

var (
	slugDropRE  = regexp.MustCompile(`[^a-z0-9\s_-]`)
	slugSpaceRE = regexp.MustCompile(`\s+`)
	slugDashRE  = regexp.MustCompile(`-+`)

	slugLower = cases.Lower(language.Und)
)

// BotSlug derives the immutable bot id from a display name.
func BotSlug(name string) string {
	s := slugLower.String(strings.TrimSpace(name))
	s = slugDropRE.ReplaceAllString(s, "")
	s = slugSpaceRE.ReplaceAllString(s, "-")
	return slugDashRE.ReplaceAllString(s, "-")
}

// CreateBot registers a bot named name under its slug.
func (s *AdminService) CreateBot(ctx context.Context, name string) (*domain.Bot, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidBotName
	}
	id := BotSlug(name)
	if id == "" {
		return nil, ErrInvalidBotName
	}
	b, err := s.Repo.CreateBot(ctx, s.DB, id, name)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s", ErrBotExists, id)
		}
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return b, nil
}

// ListBots returns every bot, newest first.
func (s *AdminService) ListBots(ctx context.Context) ([]domain.Bot, error) {
	return s.Repo.ListBots(ctx, s.DB)
}

// AddUser puts username on the allow-list.
func (s *AdminService) AddUser(ctx context.Context, username string) (*domain.AllowedUser, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrInvalidUsername
	}
	u, err := s.Repo.CreateUser(ctx, s.DB, username)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("add user: %w", err)
	}
	return u, nil
}

// ListUsers returns a page of the allow-list and its total size.
func (s *AdminService) ListUsers(ctx context.Context, page, pageSize int) ([]domain.AllowedUser, int64, error) {
	pageSize, offset := normalizePage(page, pageSize)

	total, err := s.Repo.CountUsers(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.AllowedUser{}, 0, nil
	}
	items, err := s.Repo.ListUsersPage(ctx, s.DB, offset, pageSize)
	return items, total, err
}

// ListClaims returns a page of the claim history of username and its total.
func (s *AdminService) ListClaims(ctx context.Context, username string, page, pageSize int) ([]domain.HouseClaim, int64, error) {
	pageSize, offset := normalizePage(page, pageSize)

	u, err := s.Repo.GetUserByUsername(ctx, s.DB, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, 0, ErrUserNotAllowed
		}
		return nil, 0, err
	}

	total, err := s.Repo.CountClaims(ctx, s.DB, u.ID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.HouseClaim{}, 0, nil
	}
	items, err := s.Repo.ListClaimsPage(ctx, s.DB, u.ID, offset, pageSize)
	return items, total, err
}

// normalizePage returns the effective page size and row offset.
func normalizePage(page, pageSize int) (int, int) {
	page, pageSize = utils.ClampPage(page, pageSize)
	return pageSize, utils.Offset(page, pageSize)
}
