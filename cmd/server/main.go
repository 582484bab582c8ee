// Command server runs the house claims HTTP API.
//
// @title                      House Claims API
// @version                    1.0
// @description                Bot-facing house claim service with per-user credit windows.
// @BasePath                   /
// @securityDefinitions.basic  BasicAuth
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"gorm.io/gorm"

	_ "github.com/tbourn/house-claims/docs"
	"github.com/tbourn/house-claims/internal/config"
	httpapi "github.com/tbourn/house-claims/internal/http"
	"github.com/tbourn/house-claims/internal/observability"
	"github.com/tbourn/house-claims/internal/repo"
	"github.com/tbourn/house-claims/internal/seed"
	"github.com/tbourn/house-claims/internal/services"
	"github.com/tbourn/house-claims/internal/sysutil"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	shutdownTimeout = 10 * time.Second
	purgeInterval   = 15 * time.Minute
)

type options struct {
	envFile     string
	seedPath    string
	migrateOnly bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := pflag.NewFlagSet("server", pflag.ContinueOnError)
	fs.StringVar(&o.envFile, "env-file", "", "dotenv file to load before reading the environment (default .env if present)")
	fs.StringVar(&o.seedPath, "seed", "", "TOML or YAML file with bots and users to register at startup")
	fs.BoolVar(&o.migrateOnly, "migrate-only", false, "apply schema migrations (and the seed, if any) then exit")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	o.envFile = sysutil.FirstNonEmpty(o.envFile, os.Getenv("ENV_FILE"))
	o.seedPath = sysutil.FirstNonEmpty(o.seedPath, os.Getenv("SEED_FILE"))
	o.migrateOnly = o.migrateOnly || sysutil.IsTruthy(os.Getenv("MIGRATE_ONLY"))
	return o, nil
}

// loadEnvFile loads a dotenv file without overriding variables that are
// already set. An explicit path must exist; the implicit .env is optional.
func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load(".env")
	}
	return nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	if err := loadEnvFile(opts.envFile); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	sysutil.SetLogLevel(cfg.LogLevel)
	log.Logger = sysutil.NewLogger(os.Stdout, cfg.LogPretty, cfg.OTEL.ServiceName)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = log.Logger.WithContext(ctx)

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(c); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer closeDB(db)

	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info().Str("driver", cfg.DB.Driver).Msg("schema_ready")

	if opts.seedPath != "" {
		admin := services.NewAdminService(db, httpapi.NewAdminRepo())
		if _, err := seed.LoadAndApply(ctx, admin, opts.seedPath); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	if opts.migrateOnly {
		return nil
	}

	engine := gin.New()
	httpapi.RegisterRoutes(engine, db, cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go purgeIdempotency(ctx, db, purgeInterval)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("shutting_down")
	}

	c, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(c)
}

// purgeIdempotency deletes expired idempotency records every interval until
// ctx is done.
func purgeIdempotency(ctx context.Context, db *gorm.DB, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("purge idempotency")
				continue
			}
			if n > 0 {
				log.Debug().Int64("rows", n).Msg("idempotency_purged")
			}
		}
	}
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
