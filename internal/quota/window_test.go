package quota

import (
	"testing"
	"time"

	"github.com/tbourn/house-claims/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func TestEvaluate_Rules(t *testing.T) {
	tests := []struct {
		name        string
		st          *domain.CreditWindowState
		now         time.Time
		wantCredits int
		wantActive  bool
		wantExpired bool
		wantResetAt *time.Time
	}{
		{"no state", nil, t0, 3, false, false, nil},
		{"no window", &domain.CreditWindowState{CreditsRemaining: 0}, t0, 3, false, false, nil},
		{"active window", &domain.CreditWindowState{CreditsRemaining: 1, WindowStartedAt: ptr(t0)}, t0.Add(time.Hour), 1, true, false, ptr(t0.Add(3 * time.Hour))},
		{"exhausted window", &domain.CreditWindowState{CreditsRemaining: 0, WindowStartedAt: ptr(t0)}, t0.Add(2 * time.Hour), 0, true, false, ptr(t0.Add(3 * time.Hour))},
		{"boundary is expired", &domain.CreditWindowState{CreditsRemaining: 0, WindowStartedAt: ptr(t0)}, t0.Add(3 * time.Hour), 3, false, true, nil},
		{"long expired", &domain.CreditWindowState{CreditsRemaining: 0, WindowStartedAt: ptr(t0)}, t0.Add(4 * time.Hour), 3, false, true, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(tc.st, tc.now)
			if got.EffectiveCredits != tc.wantCredits || got.WindowActive != tc.wantActive || got.Expired != tc.wantExpired {
				t.Fatalf("Evaluate = %+v", got)
			}
			if got.Allowed() != (tc.wantCredits > 0) {
				t.Fatalf("Allowed mismatch for %+v", got)
			}
			switch {
			case tc.wantResetAt == nil && got.ResetAt != nil:
				t.Fatalf("expected nil resetAt, got %v", got.ResetAt)
			case tc.wantResetAt != nil && (got.ResetAt == nil || !got.ResetAt.Equal(*tc.wantResetAt)):
				t.Fatalf("resetAt = %v; want %v", got.ResetAt, tc.wantResetAt)
			}
			if !tc.wantActive && got.WindowStartedAt != nil {
				t.Fatalf("inactive window must not report a start")
			}
		})
	}
}

func TestEvaluate_DoesNotMutate(t *testing.T) {
	st := &domain.CreditWindowState{CreditsRemaining: 0, WindowStartedAt: ptr(t0)}
	for i := 0; i < 3; i++ {
		_ = Evaluate(st, t0.Add(5*time.Hour))
	}
	if st.CreditsRemaining != 0 || st.WindowStartedAt == nil || !st.WindowStartedAt.Equal(t0) {
		t.Fatalf("state mutated: %+v", st)
	}
}

func TestPlanClaim_FullWindowSequence(t *testing.T) {
	st := domain.CreditWindowState{CreditsRemaining: 3, BoundBotID: "b1"}

	for n := 1; n <= 3; n++ {
		now := t0.Add(time.Duration(n) * time.Minute)
		p := PlanClaim(st, "b1", now)
		if p.Denied {
			t.Fatalf("claim %d denied", n)
		}
		if p.ClaimNumber != n || p.Next.CreditsRemaining != 3-n {
			t.Fatalf("claim %d: number=%d credits=%d", n, p.ClaimNumber, p.Next.CreditsRemaining)
		}
		if n == 1 && (!p.Has(TransitionWindowOpened) || !p.Next.WindowStartedAt.Equal(now)) {
			t.Fatalf("first claim must open the window at now: %+v", p)
		}
		if n > 1 && (!p.Has(TransitionCreditConsumed) || !p.Next.WindowStartedAt.Equal(t0.Add(time.Minute))) {
			t.Fatalf("claim %d must keep the window start: %+v", n, p)
		}
		if p.Snapshot.ResetAt == nil || !p.Snapshot.ResetAt.Equal(p.Next.WindowStartedAt.Add(WindowDuration)) {
			t.Fatalf("claim %d: bad resetAt %v", n, p.Snapshot.ResetAt)
		}
		st = p.Next
	}

	p := PlanClaim(st, "b1", t0.Add(10*time.Minute))
	if !p.Denied {
		t.Fatalf("fourth claim must be denied")
	}
	if p.Snapshot.EffectiveCredits != 0 || p.Snapshot.ResetAt == nil || !p.Snapshot.ResetAt.Equal(t0.Add(time.Minute+WindowDuration)) {
		t.Fatalf("denied snapshot unexpected: %+v", p.Snapshot)
	}
	if p.Next.CreditsRemaining != st.CreditsRemaining || p.Next.WindowStartedAt != st.WindowStartedAt {
		t.Fatalf("denied plan must carry the unchanged state")
	}
}

func TestPlanClaim_ExpiredWindowResetsThenOpens(t *testing.T) {
	st := domain.CreditWindowState{CreditsRemaining: 0, WindowStartedAt: ptr(t0.Add(-4 * time.Hour)), BoundBotID: "b1"}
	p := PlanClaim(st, "b1", t0)
	if p.Denied {
		t.Fatalf("expired window must allow a claim")
	}
	if !p.Has(TransitionWindowReset) || !p.Has(TransitionWindowOpened) {
		t.Fatalf("expected reset + opened, got %v", p.Transitions)
	}
	if p.ClaimNumber != 1 || p.Next.CreditsRemaining != 2 || !p.Next.WindowStartedAt.Equal(t0) {
		t.Fatalf("unexpected plan: %+v", p)
	}
	if st.CreditsRemaining != 0 {
		t.Fatalf("input state was modified")
	}
}

func TestPlanClaim_RebindIsNamedAndKeepsCredits(t *testing.T) {
	st := domain.CreditWindowState{CreditsRemaining: 1, WindowStartedAt: ptr(t0), BoundBotID: "old"}
	p := PlanClaim(st, "new", t0.Add(time.Hour))
	if !p.Has(TransitionBotRebound) || p.Next.BoundBotID != "new" {
		t.Fatalf("expected rebind, got %+v", p)
	}
	if p.ClaimNumber != 3 || p.Next.CreditsRemaining != 0 {
		t.Fatalf("rebind must not reset credits: %+v", p)
	}

	same := PlanClaim(st, "old", t0.Add(time.Hour))
	if same.Has(TransitionBotRebound) {
		t.Fatalf("same bot must not rebind")
	}
}

func TestPlanClaim_DeniedWithRebindStillDenied(t *testing.T) {
	st := domain.CreditWindowState{CreditsRemaining: 0, WindowStartedAt: ptr(t0), BoundBotID: "old"}
	p := PlanClaim(st, "new", t0.Add(time.Minute))
	if !p.Denied {
		t.Fatalf("exhausted window must deny regardless of bot")
	}
	if p.Next.BoundBotID != "old" {
		t.Fatalf("denied plan must not carry the rebind")
	}
}

func TestResetAt(t *testing.T) {
	if ResetAt(nil) != nil {
		t.Fatalf("nil start must give nil reset")
	}
	if got := ResetAt(ptr(t0)); !got.Equal(t0.Add(3 * time.Hour)) {
		t.Fatalf("ResetAt = %v", got)
	}
}
