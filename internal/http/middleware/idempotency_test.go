package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type idemSeen struct {
	key     string
	hasKey  bool
	replay  bool
	bypass  bool
	reached bool
}

func idemRouter(opts IdempotencyOptions, lookup IdempotencyLookup, seen *idemSeen) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), IdempotencyValidator(opts, lookup))
	h := func(c *gin.Context) {
		seen.reached = true
		seen.key, seen.hasKey = GetIdempotencyKey(c)
		seen.replay = IsReplay(c)
		seen.bypass = IsRateBypass(c)
		c.Status(http.StatusNoContent)
	}
	r.POST("/api/houses/claim", h)
	r.GET("/api/houses/check", h)
	return r
}

func sendIdem(r http.Handler, method, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotencyValidator_Keys(t *testing.T) {
	digits := regexp.MustCompile(`^[0-9]+$`)
	tests := []struct {
		name     string
		opts     IdempotencyOptions
		key      string
		wantCode int
		wantKey  string
	}{
		{"absent", IdempotencyOptions{}, "", http.StatusNoContent, ""},
		{"uuid-ish", IdempotencyOptions{}, "claim-7f3a:retry.1", http.StatusNoContent, "claim-7f3a:retry.1"},
		{"at default limit", IdempotencyOptions{}, strings.Repeat("k", 200), http.StatusNoContent, strings.Repeat("k", 200)},
		{"over default limit", IdempotencyOptions{}, strings.Repeat("k", 201), http.StatusBadRequest, ""},
		{"space", IdempotencyOptions{}, "two words", http.StatusBadRequest, ""},
		{"slash", IdempotencyOptions{}, "a/b", http.StatusBadRequest, ""},
		{"custom max", IdempotencyOptions{MaxLen: 4}, "abcde", http.StatusBadRequest, ""},
		{"custom pattern ok", IdempotencyOptions{Pattern: digits}, "12345", http.StatusNoContent, "12345"},
		{"custom pattern rejects", IdempotencyOptions{Pattern: digits}, "12a", http.StatusBadRequest, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var seen idemSeen
			w := sendIdem(idemRouter(tc.opts, nil, &seen), http.MethodPost, "/api/houses/claim", tc.key)
			if w.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantCode)
			}
			if tc.wantCode == http.StatusBadRequest {
				if seen.reached {
					t.Fatal("handler ran for a rejected key")
				}
				return
			}
			if seen.key != tc.wantKey || seen.hasKey != (tc.wantKey != "") {
				t.Fatalf("key = %q (%v), want %q", seen.key, seen.hasKey, tc.wantKey)
			}
			if seen.replay || seen.bypass {
				t.Fatal("no lookup means no replay")
			}
		})
	}
}

func TestIdempotencyValidator_RejectionEnvelope(t *testing.T) {
	var seen idemSeen
	w := sendIdem(idemRouter(IdempotencyOptions{}, nil, &seen), http.MethodPost, "/api/houses/claim", "bad key!")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["code"] != "bad_idempotency_key" || body["message"] == "" {
		t.Fatalf("body = %v", body)
	}
	if body["request_id"] == "" || body["request_id"] != w.Header().Get(requestIDHeader) {
		t.Fatalf("request_id = %q, header = %q", body["request_id"], w.Header().Get(requestIDHeader))
	}
}

func TestIdempotencyValidator_SafeMethodsIgnoreHeader(t *testing.T) {
	called := false
	lookup := func(context.Context, string, string, time.Time) (bool, error) {
		called = true
		return true, nil
	}
	var seen idemSeen
	w := sendIdem(idemRouter(IdempotencyOptions{}, lookup, &seen), http.MethodGet, "/api/houses/check", "not valid at all")
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if called || seen.hasKey || seen.replay {
		t.Fatalf("GET must not consult the store: called=%v seen=%+v", called, seen)
	}
}

func TestIdempotencyValidator_Lookup(t *testing.T) {
	stored := map[string]bool{"/api/houses/claim|k-9": true}

	tests := []struct {
		name       string
		key        string
		err        error
		wantReplay bool
	}{
		{"hit", "k-9", nil, true},
		{"miss", "k-10", nil, false},
		{"store error", "k-9", errors.New("database is locked"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var gotScope string
			var gotNow time.Time
			lookup := func(_ context.Context, scope, key string, now time.Time) (bool, error) {
				gotScope, gotNow = scope, now
				if tc.err != nil {
					return false, tc.err
				}
				return stored[scope+"|"+key], nil
			}
			var seen idemSeen
			w := sendIdem(idemRouter(IdempotencyOptions{}, lookup, &seen), http.MethodPost, "/api/houses/claim", tc.key)
			if w.Code != http.StatusNoContent {
				t.Fatalf("status = %d", w.Code)
			}
			if gotScope != "/api/houses/claim" {
				t.Fatalf("scope = %q", gotScope)
			}
			if gotNow.IsZero() || gotNow.Location() != time.UTC {
				t.Fatalf("now = %v, want UTC", gotNow)
			}
			if seen.replay != tc.wantReplay || seen.bypass != tc.wantReplay {
				t.Fatalf("replay=%v bypass=%v, want %v", seen.replay, seen.bypass, tc.wantReplay)
			}
			if seen.key != tc.key {
				t.Fatalf("key = %q", seen.key)
			}
		})
	}
}

func TestIdempotencyValidator_ScopeIsRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var scopes []string
	lookup := func(_ context.Context, scope, _ string, _ time.Time) (bool, error) {
		scopes = append(scopes, scope)
		return false, nil
	}
	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{}, lookup))
	r.POST("/bots/:id/claims", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	for _, p := range []string{"/bots/b1/claims", "/bots/b2/claims"} {
		if w := sendIdem(r, http.MethodPost, p, "same"); w.Code != http.StatusAccepted {
			t.Fatalf("%s: status = %d", p, w.Code)
		}
	}
	if len(scopes) != 2 || scopes[0] != "/bots/:id/claims" || scopes[1] != scopes[0] {
		t.Fatalf("scopes = %v", scopes)
	}
}
