package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/house-claims/internal/http/middleware"
)

// ErrorResponse is the error body of the admin and operational routes.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	Code      string `json:"code" example:"not_found"`
	Message   string `json:"message" example:"resource not found"`
}

// BotResponse is the body of every non-success answer on /houses/*. Bots
// branch on Reason when present and show Error otherwise.
type BotResponse struct {
	Success bool   `json:"success" example:"false"`
	Allowed *bool  `json:"allowed,omitempty" example:"false"`
	Reason  string `json:"reason,omitempty" example:"USERNAME_NOT_ALLOWED"`
	Error   string `json:"error,omitempty" example:"username and botId are required"`
}

// Fail aborts with an ErrorResponse. The router uses it for 404 and 405.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Msg(msg)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: requestID(c),
		Code:      code,
		Message:   msg,
	})
}

func botFail(c *gin.Context, status int, body BotResponse) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("reason", body.Reason).
			Msg(body.Error)
	}
	c.AbortWithStatusJSON(status, body)
}

// denied is a rejection with allowed=false.
func denied(reason string) BotResponse {
	no := false
	return BotResponse{Allowed: &no, Reason: reason}
}

func botError(msg string) BotResponse {
	return BotResponse{Error: msg}
}

// requestID prefers the id stored by middleware.RequestID and falls back to
// the response header for handlers mounted without it.
func requestID(c *gin.Context) string {
	if id := middleware.RequestIDFrom(c); id != "" {
		return id
	}
	return c.Writer.Header().Get("X-Request-ID")
}
