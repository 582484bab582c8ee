// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file holds request correlation and panic recovery. RequestID runs
// first; RedactingLogger then builds the request-scoped logger that handlers
// fetch with LoggerFrom and services fetch with zerolog.Ctx.
package middleware

import (
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	loggerKey       = "logger"
	requestIDHeader = "X-Request-ID"

	// maxRequestIDLen bounds client-supplied correlation ids.
	maxRequestIDLen = 128
	// maxQueryLogLength caps the logged raw query, in bytes.
	maxQueryLogLength = 2048
)

// RequestID reuses a well-formed incoming X-Request-ID or generates a UUID,
// stores it in the Gin context and echoes it on the response. Malformed ids
// (too long, or with characters outside [A-Za-z0-9._:-]) are replaced so a
// bot cannot inject arbitrary text into logs and error bodies.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if !validRequestID(rid) {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

func validRequestID(s string) bool {
	if s == "" || len(s) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		case ch == '-', ch == '_', ch == '.', ch == ':':
		default:
			return false
		}
	}
	return true
}

// RequestIDFrom returns the correlation id set by RequestID, or "".
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// Recovery turns a panic into a logged stack trace and, when nothing has
// been written yet, a JSON 500 in the usual error envelope.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			rid := RequestIDFrom(c)
			c.Header(requestIDHeader, rid)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": rid,
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or the global logger when
// RedactingLogger did not run.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// maskedQueryParams never reach the logs.
var maskedQueryParams = []string{"username"}

// maskQuery replaces the values of the named parameters in a raw query with
// [REDACTED]. Everything else is kept byte for byte.
func maskQuery(raw string, names []string) string {
	if raw == "" || len(names) == 0 {
		return raw
	}
	parts := strings.Split(raw, "&")
	for i, kv := range parts {
		k, _, hasVal := strings.Cut(kv, "=")
		if !hasVal {
			continue
		}
		if key, err := url.QueryUnescape(k); err == nil {
			k = key
		}
		for _, n := range names {
			if strings.EqualFold(k, n) {
				parts[i] = kv[:strings.IndexByte(kv, '=')+1] + "[REDACTED]"
				break
			}
		}
	}
	return strings.Join(parts, "&")
}

func botIDOf(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(HeaderBotID)); id != "" {
		return id
	}
	return strings.TrimSpace(c.Query("botId"))
}

// truncate cuts s to max bytes plus an ellipsis; max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
