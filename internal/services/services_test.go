package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/house-claims/internal/domain"
	"github.com/tbourn/house-claims/internal/repo"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeClock is a settable clock for window tests.
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }
func newClock(at time.Time) *fakeClock       { return &fakeClock{now: at} }
func ptr[T any](v T) *T                      { return &v }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:housesvc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// One connection keeps the shared in-memory database free of
	// SQLITE_LOCKED between concurrent transactions.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fixture seeds bots b1, b2 and the allowed user alice.
type fixture struct {
	db    *gorm.DB
	clock *fakeClock
	reg   *Registry
	house *HouseService
	prio  *PriorityService
	alice *domain.AllowedUser
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	ctx := context.Background()
	for _, id := range []string{"b1", "b2"} {
		if _, err := repo.CreateBot(ctx, db, id, id); err != nil {
			t.Fatalf("seed bot: %v", err)
		}
	}
	alice, err := repo.CreateUser(ctx, db, "alice")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	clock := newClock(t0)
	reg := NewRegistry(db, 16)
	house := NewHouseService(db, reg, 5*time.Second)
	house.Now = clock.Now
	return &fixture{
		db:    db,
		clock: clock,
		reg:   reg,
		house: house,
		prio:  &PriorityService{DB: db, Registry: reg, Now: clock.Now},
		alice: alice,
	}
}

func (f *fixture) state(t *testing.T) *domain.CreditWindowState {
	t.Helper()
	st, err := repo.GetState(context.Background(), f.db, f.alice.ID)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	return st
}

func (f *fixture) claimCount(t *testing.T) int64 {
	t.Helper()
	n, err := repo.CountClaims(context.Background(), f.db, f.alice.ID)
	if err != nil {
		t.Fatalf("CountClaims: %v", err)
	}
	return n
}
