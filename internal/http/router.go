// Package httpapi wires the Gin engine: the middleware chain, the bot-facing
// claim API, the optional admin API and the operational endpoints.
//
// Admin routes exist only when ADMIN_PASSWORD is configured.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"path"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/house-claims/internal/config"
	"github.com/tbourn/house-claims/internal/domain"
	"github.com/tbourn/house-claims/internal/http/handlers"
	"github.com/tbourn/house-claims/internal/http/middleware"
	"github.com/tbourn/house-claims/internal/repo"
	"github.com/tbourn/house-claims/internal/services"
)

// adminRepoShim adapts the repository free functions to the
// services.AdminRepo interface expected by the AdminService.
type adminRepoShim struct{}

func (adminRepoShim) CreateBot(ctx context.Context, db *gorm.DB, id, name string) (*domain.Bot, error) {
	return repo.CreateBot(ctx, db, id, name)
}

func (adminRepoShim) ListBots(ctx context.Context, db *gorm.DB) ([]domain.Bot, error) {
	return repo.ListBots(ctx, db)
}

func (adminRepoShim) CreateUser(ctx context.Context, db *gorm.DB, username string) (*domain.AllowedUser, error) {
	return repo.CreateUser(ctx, db, username)
}

func (adminRepoShim) GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.AllowedUser, error) {
	return repo.GetUserByUsername(ctx, db, username)
}

func (adminRepoShim) CountUsers(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountUsers(ctx, db)
}

func (adminRepoShim) ListUsersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.AllowedUser, error) {
	return repo.ListUsersPage(ctx, db, offset, limit)
}

func (adminRepoShim) CountClaims(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountClaims(ctx, db, userID)
}

func (adminRepoShim) ListClaimsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.HouseClaim, error) {
	return repo.ListClaimsPage(ctx, db, userID, offset, limit)
}

// NewAdminRepo returns the repo-backed services.AdminRepo. The seed loader
// uses it to build an AdminService outside the HTTP stack.
func NewAdminRepo() services.AdminRepo { return adminRepoShim{} }

// corsHeaders are the request headers bots and admin clients may send.
var corsHeaders = []string{
	"Origin", "Content-Type", "Accept", "Authorization",
	"If-None-Match", middleware.HeaderBotID, middleware.HeaderIdempotencyKey,
}

var corsExposed = []string{
	"X-Request-ID", "Content-Length", "Retry-After", "ETag", middleware.HeaderIdempotencyReplayed,
}

// RegisterRoutes attaches the middleware chain and every endpoint to r.
//
// Middleware order:
//  1. OpenTelemetry
//  2. RequestID
//  3. RedactingLogger (request-scoped logger for services)
//  4. Recovery
//  5. body size limit
//  6. Metrics
//  7. gzip, /metrics excluded
//  8. IdempotencyValidator, ahead of the limiter so replays bypass it
//  9. rate limiter keyed by bot or IP
//  10. CORS and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(
		otelgin.Middleware(cfg.OTEL.ServiceName),
		middleware.RequestID(),
		middleware.RedactingLogger(middleware.RedactOptions{MaskHeaders: []string{"X-API-Key"}}),
		middleware.Recovery(),
		limitBody(64<<10), // bot payloads are tiny
		middleware.Metrics(),
	)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, idempotencyLookup(db)),
		middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByBotOrIP()).Handler(),
	)
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStorePaths: []string{path.Join("/", cfg.APIBasePath, "houses")},
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	reg := services.NewRegistry(db, cfg.DB.RegistryCacheSize)
	h := handlers.New(
		services.NewHouseService(db, reg, cfg.DB.TxTimeout),
		&services.PriorityService{DB: db, Registry: reg, Now: time.Now},
		services.NewAdminService(db, adminRepoShim{}),
	)
	if cfg.IdempotencyTTL > 0 {
		h.IdempotencyTTL = cfg.IdempotencyTTL
	}

	mountBotAPI(groupWithPrefix(r, cfg.APIBasePath), h)
	if cfg.Admin.Password != "" {
		mountAdminAPI(r.Group("/admin", gin.BasicAuth(gin.Accounts{cfg.Admin.Username: cfg.Admin.Password})), h)
	}
}

func mountBotAPI(g *gin.RouterGroup, h *handlers.Handlers) {
	g.GET("/houses/check", h.CheckHouse)
	g.POST("/houses/claim", h.ClaimHouse)
	g.POST("/houses/priority", h.SetPriority)
}

func mountAdminAPI(g *gin.RouterGroup, h *handlers.Handlers) {
	g.POST("/bots", h.CreateBot)
	g.GET("/bots", h.ListBots)
	g.POST("/users", h.AddUser)
	g.GET("/users", h.ListUsers)
	g.GET("/users/:username/claims", h.ListUserClaims)
}

// idempotencyLookup reports whether a live record exists for (scope, key).
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, scope, key string, now time.Time) (bool, error) {
		_, err := repo.GetIdempotency(ctx, db, scope, key, now)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return false, nil
		case err != nil:
			return false, err
		}
		return true, nil
	}
}

// corsMiddleware allows every origin when origins is empty. Bots are not
// browsers and rarely send Origin, so the wildcard is set up front as well.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     corsHeaders,
		ExposeHeaders:    corsExposed,
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cc.AllowAllOrigins = true
		return []gin.HandlerFunc{
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cc),
		}
	}

	cc.AllowOrigins = origins
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(cc),
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
