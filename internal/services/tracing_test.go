package services

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	prev := otel.GetTracerProvider()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return rec
}

func spanAttr(s sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range s.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func endedSpan(t *testing.T, rec *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, s := range rec.Ended() {
		if s.Name() == name {
			return s
		}
	}
	t.Fatalf("no ended span %q", name)
	return nil
}

func TestClaim_SpanOutcomes(t *testing.T) {
	rec := recordSpans(t)
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, _ = f.house.Claim(ctx, "alice", "b1", nil)
	}

	var claimed, denied int
	for _, s := range rec.Ended() {
		if s.Name() != "Claim" {
			continue
		}
		if v, _ := spanAttr(s, "bot.id"); v.AsString() != "b1" {
			t.Fatalf("bot.id = %v", v)
		}
		out, _ := spanAttr(s, "claim.outcome")
		switch out.AsString() {
		case outcomeClaimed:
			claimed++
		case outcomeMaxReached:
			denied++
			if s.Status().Code == codes.Error {
				t.Fatal("quota denial is not a span error")
			}
		default:
			t.Fatalf("outcome = %q", out.AsString())
		}
	}
	if claimed != 3 || denied != 1 {
		t.Fatalf("claimed=%d denied=%d", claimed, denied)
	}
}

func TestClaim_StoreFailureMarksSpan(t *testing.T) {
	rec := recordSpans(t)
	f := newFixture(t)
	if err := f.db.Exec("DROP TABLE house_claims").Error; err != nil {
		t.Fatalf("drop: %v", err)
	}

	if _, err := f.house.Claim(context.Background(), "alice", "b1", nil); err == nil {
		t.Fatal("expected a store error")
	}
	s := endedSpan(t, rec, "Claim")
	if s.Status().Code != codes.Error {
		t.Fatalf("status = %v", s.Status())
	}
	if len(s.Events()) == 0 {
		t.Fatal("error not recorded on span")
	}
}

func TestCheck_SpanIsChildOfCaller(t *testing.T) {
	rec := recordSpans(t)
	f := newFixture(t)

	ctx, parent := otel.Tracer("test").Start(context.Background(), "GET /api/houses/check")
	if _, err := f.house.Check(ctx, "alice", "b1"); err != nil {
		t.Fatalf("Check: %v", err)
	}
	parent.End()

	s := endedSpan(t, rec, "Check")
	if s.Parent().SpanID() != parent.SpanContext().SpanID() {
		t.Fatal("Check span is not parented to the request span")
	}
	if v, ok := spanAttr(s, "credits.effective"); !ok || v.AsInt64() != 3 {
		t.Fatalf("credits.effective = %v", v)
	}
}
