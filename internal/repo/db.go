// Package repo is the GORM persistence layer: connection setup, schema
// migration and one set of free functions per table. Functions take the
// *gorm.DB explicitly so callers can pass a transaction.
package repo

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/house-claims/internal/config"
	"github.com/tbourn/house-claims/internal/domain"
)

// sqlitePragmas are applied to every pooled connection through the DSN.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

const (
	sqliteMaxConns = 10
	serverMaxConns = 20
	slowQuery      = 200 * time.Millisecond
)

// gormWriter forwards gorm messages to zerolog at warn level.
type gormWriter struct{ l zerolog.Logger }

func (w gormWriter) Printf(format string, args ...any) { w.l.Warn().Msgf(format, args...) }

// newGormLogger reports slow queries and errors through w. Misses are
// answered with ErrNotFound and are not logged.
func newGormLogger(w logger.Writer) logger.Interface {
	return logger.New(w, logger.Config{
		SlowThreshold:             slowQuery,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// Open connects to the store named by cfg.Driver, sizes the pool and
// installs the OpenTelemetry tracing plugin.
func Open(cfg config.DBConfig) (*gorm.DB, error) {
	var (
		dial     gorm.Dialector
		maxConns = serverMaxConns
	)
	switch cfg.Driver {
	case "", "sqlite":
		if err := checkParentDir(cfg.Path); err != nil {
			return nil, err
		}
		dial, maxConns = sqlite.Open(sqliteDSN(cfg.Path)), sqliteMaxConns
	case "postgres":
		dial = postgres.Open(cfg.DSN)
	case "mysql":
		// DSN needs parseTime=true for DATETIME columns.
		dial = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("repo: unsupported driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dial, &gorm.Config{
		Logger:         newGormLogger(gormWriter{log.With().Str("component", "gorm").Logger()}),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("repo: open %s: %w", dial.Name(), err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Use(tracing.NewPlugin()); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("repo: tracing plugin: %w", err)
	}
	return db, nil
}

func sqliteDSN(path string) string {
	q := url.Values{"_pragma": sqlitePragmas}
	return path + "?" + q.Encode()
}

// checkParentDir fails fast on a missing directory; sqlite would otherwise
// report an unhelpful "out of memory" on some platforms.
func checkParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("repo: sqlite directory: %w", err)
	}
	return nil
}

// AutoMigrate creates or updates every table, parents first.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Bot{},
		&domain.AllowedUser{},
		&domain.CreditWindowState{},
		&domain.HouseClaim{},
		&domain.Idempotency{},
	)
}

// supportsRowLocks reports whether SELECT ... FOR UPDATE means anything.
// SQLite serializes writers for the whole file.
func supportsRowLocks(db *gorm.DB) bool {
	return db.Dialector.Name() != "sqlite"
}
