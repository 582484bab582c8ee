package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/house-claims/internal/config"
	"github.com/tbourn/house-claims/internal/domain"
)

func openFileDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(config.DBConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "claims.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestOpen_SQLiteMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", "claims.db")
	db, err := Open(config.DBConfig{Driver: "sqlite", Path: path})
	if err == nil || db != nil {
		t.Fatalf("Open(%q) = %v, %v", path, db, err)
	}
	if !strings.Contains(err.Error(), "sqlite directory") {
		t.Fatalf("err = %v", err)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(config.DBConfig{Driver: "oracle"})
	if err == nil || !strings.Contains(err.Error(), "oracle") {
		t.Fatalf("err = %v", err)
	}
}

func TestSQLiteDSN_CarriesPragmas(t *testing.T) {
	dsn := sqliteDSN("/var/lib/claims.db")
	path, query, ok := strings.Cut(dsn, "?")
	if !ok || path != "/var/lib/claims.db" {
		t.Fatalf("dsn = %q", dsn)
	}
	q, err := url.ParseQuery(query)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := q["_pragma"]; len(got) != len(sqlitePragmas) {
		t.Fatalf("pragmas = %v", got)
	}
}

// Pragmas must hold on every pooled connection, not only the first.
func TestOpen_PragmasOnEveryConnection(t *testing.T) {
	db := openFileDB(t)
	sqlDB, _ := db.DB()
	if n := sqlDB.Stats().MaxOpenConnections; n != sqliteMaxConns {
		t.Fatalf("MaxOpenConnections = %d", n)
	}

	// Hold two connections at once so the second is a fresh one.
	tx1 := db.Begin()
	tx2 := db.Begin()
	defer tx1.Rollback()
	defer tx2.Rollback()
	for i, tx := range []*gorm.DB{tx1, tx2} {
		var mode string
		var fk, busy int
		if err := tx.Raw("PRAGMA journal_mode").Row().Scan(&mode); err != nil {
			t.Fatalf("conn %d journal_mode: %v", i, err)
		}
		if err := tx.Raw("PRAGMA foreign_keys").Row().Scan(&fk); err != nil {
			t.Fatalf("conn %d foreign_keys: %v", i, err)
		}
		if err := tx.Raw("PRAGMA busy_timeout").Row().Scan(&busy); err != nil {
			t.Fatalf("conn %d busy_timeout: %v", i, err)
		}
		if strings.ToLower(mode) != "wal" || fk != 1 || busy != 5000 {
			t.Fatalf("conn %d: journal=%s fk=%d busy=%d", i, mode, fk, busy)
		}
	}
}

func TestAutoMigrate_CreatesSchema(t *testing.T) {
	db := openFileDB(t)
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	// second run is a no-op
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate again: %v", err)
	}
	m := db.Migrator()
	for _, model := range []any{&domain.Bot{}, &domain.AllowedUser{}, &domain.CreditWindowState{}, &domain.HouseClaim{}, &domain.Idempotency{}} {
		if !m.HasTable(model) {
			t.Errorf("no table for %T", model)
		}
	}
	if supportsRowLocks(db) {
		t.Fatal("sqlite has no row locks")
	}
}

func TestAutoMigrate_CreditsCheckConstraint(t *testing.T) {
	db := openFileDB(t)
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	u := seedUser(t, db, "alice")
	for _, credits := range []int{-1, 4} {
		st := &domain.CreditWindowState{ID: fmt.Sprintf("s%d", credits), UserID: u.ID, CreditsRemaining: credits, BoundBotID: "b1"}
		if err := db.Omit("User").Create(st).Error; err == nil {
			t.Errorf("credits_remaining=%d accepted", credits)
		}
	}
}

func TestGormLogger_SkipsRecordNotFound(t *testing.T) {
	var buf bytes.Buffer
	lg := newGormLogger(gormWriter{zerolog.New(&buf)})
	ctx := context.Background()
	sql := func() (string, int64) { return "SELECT * FROM bots WHERE id = 'x'", 0 }

	lg.Trace(ctx, time.Now(), sql, gorm.ErrRecordNotFound)
	lg.Trace(ctx, time.Now(), sql, fmt.Errorf("first: %w", gorm.ErrRecordNotFound))
	if buf.Len() != 0 {
		t.Fatalf("miss was logged: %s", buf.String())
	}

	lg.Trace(ctx, time.Now(), sql, errors.New("no such table: bots"))
	if !strings.Contains(buf.String(), "no such table") || !strings.Contains(buf.String(), `"level":"warn"`) {
		t.Fatalf("store error not logged: %q", buf.String())
	}

	buf.Reset()
	lg.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	if !strings.Contains(buf.String(), "SLOW SQL") {
		t.Fatalf("slow query not logged: %q", buf.String())
	}
}

func TestOpen_MissDoesNotLog(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	db := openFileDB(t)
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	if _, err := GetBot(context.Background(), db, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetBot = %v", err)
	}
	if strings.Contains(buf.String(), "record not found") {
		t.Fatalf("miss was logged: %s", buf.String())
	}
}

func TestIsDuplicate(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{gorm.ErrDuplicatedKey, true},
		{fmt.Errorf("create: %w", gorm.ErrDuplicatedKey), true},
		{errors.New("UNIQUE constraint failed: allowed_users.username"), true},
		{errors.New(`ERROR: duplicate key value violates unique constraint "idx_bots_name"`), true},
		{errors.New("Error 1062 (23000): Duplicate entry 'alice' for key 'ux_username'"), true},
		{errors.New("FOREIGN KEY constraint failed"), false},
		{gorm.ErrRecordNotFound, false},
	}
	for _, tc := range tests {
		if got := isDuplicate(tc.err); got != tc.want {
			t.Errorf("isDuplicate(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
