package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/house-claims/internal/domain"
)

func TestGetIdempotency_BlankKey_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})

	rec, err := GetIdempotency(context.Background(), db, "/api/houses/claim", "   ", time.Now())
	if rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for blank key, got (%v, %v)", rec, err)
	}
}

func TestGetIdempotency_ExpiredOrMissing_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	exp := &domain.Idempotency{
		ID:        "expired",
		Scope:     "s",
		IdemKey:   "k1",
		ClaimID:   "c1",
		Status:    200,
		Body:      "{}",
		CreatedAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
	}
	if err := db.Create(exp).Error; err != nil {
		t.Fatalf("seed expired: %v", err)
	}

	rec, err := GetIdempotency(context.Background(), db, "s", "k1", now)
	if rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for expired, got (%v, %v)", rec, err)
	}

	rec2, err2 := GetIdempotency(context.Background(), db, "s", "missing", now)
	if rec2 != nil || err2 != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for missing, got (%v, %v)", rec2, err2)
	}
}

func TestCreateIdempotency_SuccessReplayAndDuplicate(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()
	start := time.Now().UTC()

	rec, err := CreateIdempotency(ctx, db, "s", "k9", "c9", 200, []byte(`{"success":true}`), 90*time.Minute, start)
	if err != nil {
		t.Fatalf("CreateIdempotency error: %v", err)
	}
	if rec.ID == "" || rec.Scope != "s" || rec.IdemKey != "k9" || rec.ClaimID != "c9" || rec.Status != 200 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if !(rec.ExpiresAt.After(start) && rec.ExpiresAt.Before(start.Add(2*time.Hour))) {
		t.Fatalf("unexpected ExpiresAt: %v", rec.ExpiresAt)
	}

	got, err := GetIdempotency(ctx, db, "s", "k9", time.Now())
	if err != nil {
		t.Fatalf("GetIdempotency: %v", err)
	}
	if got.Body != `{"success":true}` || got.ClaimID != "c9" {
		t.Fatalf("unexpected stored record: %+v", got)
	}

	// Same key in another scope is independent.
	if _, err := CreateIdempotency(ctx, db, "other", "k9", "c10", 200, []byte("{}"), time.Hour, start); err != nil {
		t.Fatalf("different scope should not collide: %v", err)
	}

	if _, err := CreateIdempotency(ctx, db, "s", "k9", "c11", 200, []byte("{}"), time.Hour, start); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestCreateIdempotency_NoTable_ReturnsError(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	_, err := CreateIdempotency(context.Background(), db, "s", "k", "c", 200, nil, time.Minute, time.Now())
	if err == nil || err == ErrDuplicate {
		t.Fatalf("expected non-duplicate error, got %v", err)
	}
}

func TestCreateIdempotency_ReplacesExpiredRecord(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := CreateIdempotency(ctx, db, "s", "k", "c1", 200, []byte("{}"), time.Hour, now.Add(-2*time.Hour)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	rec, err := CreateIdempotency(ctx, db, "s", "k", "c2", 200, []byte("{}"), time.Hour, now)
	if err != nil {
		t.Fatalf("expired key must be reusable: %v", err)
	}
	got, err := GetIdempotency(ctx, db, "s", "k", now)
	if err != nil || got.ID != rec.ID || got.ClaimID != "c2" {
		t.Fatalf("GetIdempotency = %+v, %v", got, err)
	}
	var n int64
	db.Model(&domain.Idempotency{}).Count(&n)
	if n != 1 {
		t.Fatalf("rows = %d; want 1", n)
	}
}

func TestPurgeExpiredIdempotency(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()
	now := time.Now().UTC()

	for i, exp := range []time.Time{now.Add(-time.Minute), now.Add(time.Hour)} {
		rec := &domain.Idempotency{
			ID: string(rune('a' + i)), Scope: "s", IdemKey: string(rune('a' + i)),
			ClaimID: "c", Status: 200, Body: "{}", ExpiresAt: exp,
		}
		if err := db.Create(rec).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	n, err := PurgeExpiredIdempotency(ctx, db, now)
	if err != nil || n != 1 {
		t.Fatalf("PurgeExpiredIdempotency = (%d, %v); want (1, nil)", n, err)
	}
}
