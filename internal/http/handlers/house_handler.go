// House HTTP handlers.
//
// This file exposes the bot-facing endpoints:
//   - GET  /houses/check     (read-only credit check)
//   - POST /houses/claim     (consume a credit; Idempotency-Key aware)
//   - POST /houses/priority  (set or clear category priorities)
//
// Bots identify themselves by botId (trimmed and lowercased here) and act on
// behalf of username (trimmed here, otherwise matched exactly).
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// claim with the same key exists, the stored response is replayed verbatim
// with `Idempotency-Replayed: true` and no credit is consumed.
package handlers

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/house-claims/internal/domain"
	"github.com/tbourn/house-claims/internal/http/middleware"
	"github.com/tbourn/house-claims/internal/quota"
	"github.com/tbourn/house-claims/internal/services"
)

// noteWindowExpired is attached to a check whose stored window has elapsed.
const noteWindowExpired = "window expired; credits effectively reset"

//
// DTOs
//

// CheckResponse is returned by GET /houses/check.
type CheckResponse struct {
	Success          bool            `json:"success" example:"true"`
	Allowed          bool            `json:"allowed" example:"true"`
	Username         string          `json:"username" example:"alice"`
	CreditsRemaining int             `json:"creditsRemaining" example:"2"`
	WindowStartedAt  *time.Time      `json:"windowStartedAt"`
	ResetAt          *time.Time      `json:"resetAt"`
	Priority         *quota.Priority `json:"priority"`
	Note             string          `json:"note,omitempty"`
}

// ClaimRequest is the JSON payload of POST /houses/claim.
type ClaimRequest struct {
	Username string  `json:"username" example:"alice"`
	BotID    string  `json:"botId" example:"maisons-paris"`
	HouseKey *string `json:"houseKey,omitempty" example:"house-42"`
}

// ClaimResponse is returned by a successful POST /houses/claim.
type ClaimResponse struct {
	Success          bool       `json:"success" example:"true"`
	Allowed          bool       `json:"allowed" example:"true"`
	Username         string     `json:"username" example:"alice"`
	BotID            string     `json:"botId" example:"maisons-paris"`
	ClaimID          string     `json:"claimId" example:"0b1c5a7e-3f7e-4d0b-9a51-2b1f0c8e7d11"`
	ClaimNumber      int        `json:"claimNumber" example:"1"`
	CreditsRemaining int        `json:"creditsRemaining" example:"2"`
	WindowStartedAt  *time.Time `json:"windowStartedAt"`
	ResetAt          *time.Time `json:"resetAt"`
}

// MaxReachedResponse is returned with 429 when no credit is left.
type MaxReachedResponse struct {
	Success          bool       `json:"success" example:"false"`
	Allowed          bool       `json:"allowed" example:"false"`
	Reason           string     `json:"reason" example:"MAX_REACHED"`
	CreditsRemaining int        `json:"creditsRemaining" example:"0"`
	WindowStartedAt  *time.Time `json:"windowStartedAt"`
	ResetAt          *time.Time `json:"resetAt"`
}

// PriorityRequest is the JSON payload of POST /houses/priority. Ghibli and
// Sanrio are kept as raw decoded values so that strings, booleans and
// fractions are rejected instead of coerced.
type PriorityRequest struct {
	Username string `json:"username" example:"alice"`
	BotID    string `json:"botId" example:"maisons-paris"`
	Ghibli   any    `json:"ghibli" swaggertype:"integer" example:"1"`
	Sanrio   any    `json:"sanrio" swaggertype:"integer" example:"2"`
}

// PriorityResponse is returned by POST /houses/priority.
type PriorityResponse struct {
	Success  bool            `json:"success" example:"true"`
	Priority *quota.Priority `json:"priority"`
}

//
// Helpers
//

func normalizeBotID(s string) string    { return strings.ToLower(strings.TrimSpace(s)) }
func normalizeUsername(s string) string { return strings.TrimSpace(s) }

// writeLookupError maps registry failures shared by every bot-facing route.
// It returns false when err is not a lookup failure.
func writeLookupError(c *gin.Context, err error, withAllowed bool) bool {
	var body BotResponse
	var status int
	switch {
	case errors.Is(err, services.ErrBotNotFound):
		status, body = http.StatusNotFound, denied(ReasonBotNotFound)
	case errors.Is(err, services.ErrUserNotAllowed):
		status, body = http.StatusForbidden, denied(ReasonUsernameNotAllowed)
	default:
		return false
	}
	if !withAllowed {
		body.Allowed = nil
	}
	botFail(c, status, body)
	return true
}

// retryAfterSeconds returns the whole seconds until resetAt, at least 1.
func retryAfterSeconds(resetAt *time.Time, now time.Time) int {
	if resetAt == nil {
		return 1
	}
	secs := int(math.Ceil(resetAt.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

func encodeClaim(res *services.ClaimResult) ([]byte, error) {
	return json.Marshal(ClaimResponse{
		Success:          true,
		Allowed:          true,
		Username:         res.Username,
		BotID:            res.BotID,
		ClaimID:          res.ClaimID,
		ClaimNumber:      res.ClaimNumber,
		CreditsRemaining: res.CreditsRemaining,
		WindowStartedAt:  res.WindowStartedAt,
		ResetAt:          res.ResetAt,
	})
}

//
// Handlers
//

// CheckHouse godoc
// @ID          checkHouse
// @Summary     Check claim availability
// @Description Reports whether the user may claim now, the credits left in the current window and the stored priority. Never writes.
// @Tags        Houses
// @Produce     json
//
// @Param       username  query  string  true  "Allowed username (exact match after trimming)"  example(alice)
// @Param       botId     query  string  true  "Bot id (case-insensitive)"                      example(maisons-paris)
//
// @Success     200  {object}  handlers.CheckResponse
// @Failure     400  {object}  handlers.BotResponse  "Missing username or botId"
// @Failure     403  {object}  handlers.BotResponse  "USERNAME_NOT_ALLOWED"
// @Failure     404  {object}  handlers.BotResponse  "BOT_NOT_FOUND"
// @Failure     500  {object}  handlers.BotResponse  "Internal error"
// @Router      /api/houses/check [get]
func (h *Handlers) CheckHouse(c *gin.Context) {
	username := normalizeUsername(c.Query("username"))
	botID := normalizeBotID(c.Query("botId"))
	if username == "" || botID == "" {
		botFail(c, http.StatusBadRequest, botError(msgRequired))
		return
	}

	res, err := h.houseSvc.Check(c.Request.Context(), username, botID)
	if err != nil {
		if writeLookupError(c, err, true) {
			return
		}
		_ = c.Error(err)
		botFail(c, http.StatusInternalServerError, botError(msgInternal))
		return
	}

	resp := CheckResponse{
		Success:          true,
		Allowed:          res.Allowed,
		Username:         res.Username,
		CreditsRemaining: res.CreditsRemaining,
		WindowStartedAt:  res.WindowStartedAt,
		ResetAt:          res.ResetAt,
		Priority:         res.Priority,
	}
	if res.Expired {
		resp.Note = noteWindowExpired
	}
	c.JSON(http.StatusOK, resp)
}

// ClaimHouse godoc
// @ID          claimHouse
// @Summary     Claim a house
// @Description Consumes one credit of the user's current window and records the claim. The first claim opens a 3h window.
// @Description Supports idempotency via the Idempotency-Key header (same key → same result, no extra credit, also for concurrent retries).
// @Tags        Houses
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.ClaimRequest  true  "Claim payload"
//
// @Success     200  {object}  handlers.ClaimResponse
// @Header      200  {string}  Idempotency-Replayed  "true when the response is a replay"
// @Failure     400  {object}  handlers.BotResponse         "Bad request"
// @Failure     403  {object}  handlers.BotResponse         "USERNAME_NOT_ALLOWED"
// @Failure     404  {object}  handlers.BotResponse         "BOT_NOT_FOUND"
// @Failure     409  {object}  handlers.BotResponse         "IDEMPOTENCY_KEY_REUSED"
// @Failure     429  {object}  handlers.MaxReachedResponse  "MAX_REACHED"
// @Header      429  {integer} Retry-After                  "Seconds until the window resets"
// @Failure     500  {object}  handlers.BotResponse         "Internal error"
// @Router      /api/houses/claim [post]
func (h *Handlers) ClaimHouse(c *gin.Context) {
	ctx := c.Request.Context()

	var req ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		botFail(c, http.StatusBadRequest, botError("invalid JSON body"))
		return
	}
	username := normalizeUsername(req.Username)
	botID := normalizeBotID(req.BotID)
	if username == "" || botID == "" {
		botFail(c, http.StatusBadRequest, botError(msgRequired))
		return
	}
	var houseKey *string
	if req.HouseKey != nil && *req.HouseKey != "" {
		hk := *req.HouseKey
		houseKey = &hk
	}

	var (
		res    *services.ClaimResult
		replay *domain.Idempotency
		err    error
	)
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if ic, ok := h.houseSvc.(IdempotentClaimer); ok && idemKey != "" {
		res, replay, err = ic.ClaimIdempotent(ctx, username, botID, houseKey, services.IdempotentClaim{
			Scope:  c.FullPath(),
			Key:    idemKey,
			TTL:    h.IdempotencyTTL,
			Encode: encodeClaim,
		})
	} else {
		res, err = h.houseSvc.Claim(ctx, username, botID, houseKey)
	}
	if replay != nil {
		var prev ClaimResponse
		if json.Unmarshal([]byte(replay.Body), &prev) != nil || prev.Username != username || prev.BotID != botID {
			botFail(c, http.StatusConflict, denied(ReasonIdempotencyKeyReused))
			return
		}
		c.Header(middleware.HeaderIdempotencyReplayed, "true")
		c.Data(replay.Status, "application/json; charset=utf-8", []byte(replay.Body))
		return
	}
	if err != nil {
		if writeLookupError(c, err, true) {
			return
		}
		var qe *services.QuotaError
		switch {
		case errors.As(err, &qe):
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(qe.ResetAt, h.now())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, MaxReachedResponse{
				Success:          false,
				Allowed:          false,
				Reason:           ReasonMaxReached,
				CreditsRemaining: qe.CreditsRemaining(),
				WindowStartedAt:  qe.WindowStartedAt,
				ResetAt:          qe.ResetAt,
			})
		case errors.Is(err, services.ErrIdempotencyKeyReused):
			botFail(c, http.StatusConflict, denied(ReasonIdempotencyKeyReused))
		default:
			_ = c.Error(err)
			botFail(c, http.StatusInternalServerError, botError(msgInternal))
		}
		return
	}

	body, err := encodeClaim(res)
	if err != nil {
		_ = c.Error(err)
		botFail(c, http.StatusInternalServerError, botError(msgInternal))
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// SetPriority godoc
// @ID          setPriority
// @Summary     Set category priorities
// @Description Stores how the user's claims should be split between ghibli and sanrio. Both must be non-negative integers with a sum of at most 3; 0/0 clears the priority. Credits are not affected.
// @Tags        Houses
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.PriorityRequest  true  "Priority payload"
//
// @Success     200  {object}  handlers.PriorityResponse
// @Failure     400  {object}  handlers.BotResponse  "Bad request"
// @Failure     403  {object}  handlers.BotResponse  "USERNAME_NOT_ALLOWED"
// @Failure     404  {object}  handlers.BotResponse  "BOT_NOT_FOUND"
// @Failure     500  {object}  handlers.BotResponse  "Internal error"
// @Router      /api/houses/priority [post]
func (h *Handlers) SetPriority(c *gin.Context) {
	var req PriorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		botFail(c, http.StatusBadRequest, botError("invalid JSON body"))
		return
	}
	username := normalizeUsername(req.Username)
	botID := normalizeBotID(req.BotID)
	if username == "" || botID == "" {
		botFail(c, http.StatusBadRequest, botError(msgRequired))
		return
	}

	p, err := h.prioSvc.Set(c.Request.Context(), username, botID, req.Ghibli, req.Sanrio)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidPriority), errors.Is(err, services.ErrPriorityTooHigh):
			botFail(c, http.StatusBadRequest, botError(err.Error()))
		case writeLookupError(c, err, false):
		default:
			_ = c.Error(err)
			botFail(c, http.StatusInternalServerError, botError(msgInternal))
		}
		return
	}
	c.JSON(http.StatusOK, PriorityResponse{Success: true, Priority: p})
}
