// Admin HTTP handlers.
//
// This file exposes the registry administration endpoints, mounted under
// /admin behind HTTP basic auth:
//   - POST /admin/bots                       (register a bot)
//   - GET  /admin/bots                       (list bots)
//   - POST /admin/users                      (allow a username)
//   - GET  /admin/users                      (list allowed users, paginated)
//   - GET  /admin/users/{username}/claims    (claim history, paginated, ETag)
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/house-claims/internal/domain"
	"github.com/tbourn/house-claims/internal/repo"
	"github.com/tbourn/house-claims/internal/services"
)

//
// DTOs
//

// CreateBotRequest is the JSON payload for registering a bot.
type CreateBotRequest struct {
	// Name is the display name; the id is derived from it once.
	Name string `json:"name" binding:"required" example:"Maisons Paris"`
}

// AddUserRequest is the JSON payload for allowing a username.
type AddUserRequest struct {
	Username string `json:"username" binding:"required" example:"alice"`
}

// ListBotsResponse wraps every registered bot.
type ListBotsResponse struct {
	Bots []domain.Bot `json:"bots"`
}

// ListUsersResponse wraps a page of allowed users and pagination information.
type ListUsersResponse struct {
	Users      []domain.AllowedUser `json:"users"`
	Pagination Pagination           `json:"pagination"`
}

// ListClaimsResponse wraps a page of claims and pagination information.
type ListClaimsResponse struct {
	Claims     []domain.HouseClaim `json:"claims"`
	Pagination Pagination          `json:"pagination"`
}

//
// Handlers
//

// CreateBot godoc
// @ID          createBot
// @Summary     Register a bot
// @Description Registers a bot; its id is the slug of the name (lowercase, [a-z0-9_-], spaces become dashes).
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BasicAuth
//
// @Param       body  body  handlers.CreateBotRequest  true  "Bot payload"
//
// @Success     201  {object}  domain.Bot
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid name"
// @Failure     401  {string}  string                  "Unauthorized"
// @Failure     409  {object}  handlers.ErrorResponse  "Bot already exists"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/bots [post]
func (h *Handlers) CreateBot(c *gin.Context) {
	var req CreateBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "bot name is required")
		return
	}

	b, err := h.adminSvc.CreateBot(c.Request.Context(), req.Name)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidBotName):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid bot name")
		case errors.Is(err, services.ErrBotExists):
			fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
		default:
			_ = c.Error(err)
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, "failed to create bot")
		}
		return
	}
	c.JSON(http.StatusCreated, b)
}

// ListBots godoc
// @ID          listBots
// @Summary     List bots
// @Tags        Admin
// @Produce     json
// @Security    BasicAuth
//
// @Success     200  {object}  handlers.ListBotsResponse
// @Failure     401  {string}  string                  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/bots [get]
func (h *Handlers) ListBots(c *gin.Context) {
	bots, err := h.adminSvc.ListBots(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "failed to list bots")
		return
	}
	if bots == nil {
		bots = []domain.Bot{}
	}
	c.JSON(http.StatusOK, ListBotsResponse{Bots: bots})
}

// AddUser godoc
// @ID          addUser
// @Summary     Allow a username
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BasicAuth
//
// @Param       body  body  handlers.AddUserRequest  true  "User payload"
//
// @Success     201  {object}  domain.AllowedUser
// @Failure     400  {object}  handlers.ErrorResponse  "Username required"
// @Failure     401  {string}  string                  "Unauthorized"
// @Failure     409  {object}  handlers.ErrorResponse  "User already allowed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/users [post]
func (h *Handlers) AddUser(c *gin.Context) {
	var req AddUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "username is required")
		return
	}

	u, err := h.adminSvc.AddUser(c.Request.Context(), req.Username)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidUsername):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "username is required")
		case errors.Is(err, services.ErrUserExists):
			fail(c, http.StatusConflict, ErrCodeConflict, "user already allowed")
		default:
			_ = c.Error(err)
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, "failed to add user")
		}
		return
	}
	c.JSON(http.StatusCreated, u)
}

// ListUsers godoc
// @ID          listUsers
// @Summary     List allowed users (paginated)
// @Tags        Admin
// @Produce     json
// @Security    BasicAuth
//
// @Param       page       query  int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListUsersResponse
// @Failure     401  {string}  string                  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/users [get]
func (h *Handlers) ListUsers(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.adminSvc.ListUsers(c.Request.Context(), page, pageSize)
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "failed to list users")
		return
	}
	c.JSON(http.StatusOK, ListUsersResponse{
		Users:      items,
		Pagination: newPagination(page, pageSize, total),
	})
}

// ListUserClaims godoc
// @ID          listUserClaims
// @Summary     Claim history of a user (paginated)
// @Description Returns the user's claims, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Admin
// @Produce     json
// @Security    BasicAuth
//
// @Param       username       path    string  true   "Allowed username"
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"  example(W/\"claims:alice:3:1700000000\")
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListClaimsResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string "Not Modified"
// @Failure     401  {string}  string                  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "User not allowed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/users/{username}/claims [get]
func (h *Handlers) ListUserClaims(c *gin.Context) {
	ctx := c.Request.Context()
	username := strings.TrimSpace(c.Param("username"))
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if svc, isConcrete := h.adminSvc.(*services.AdminService); isConcrete && svc.DB != nil {
		if u, err := repo.GetUserByUsername(ctx, svc.DB, username); err == nil {
			if count, last, err := repo.ClaimsStats(ctx, svc.DB, u.ID); err == nil {
				var ts int64
				if last != nil {
					ts = last.UnixNano()
				}
				etag := fmt.Sprintf(`W/"claims:%s:%d:%d:%d:%d"`, u.ID, count, ts, page, pageSize)
				c.Header("ETag", etag)
				if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
					c.Status(http.StatusNotModified)
					return
				}
			}
		}
	}

	items, total, err := h.adminSvc.ListClaims(ctx, username, page, pageSize)
	if err != nil {
		if errors.Is(err, services.ErrUserNotAllowed) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "user not allowed")
			return
		}
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "failed to list claims")
		return
	}
	c.JSON(http.StatusOK, ListClaimsResponse{
		Claims:     items,
		Pagination: newPagination(page, pageSize, total),
	})
}
