package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/house-claims/internal/http/middleware"
)

// envelopeRouter mounts the real RequestID middleware plus a logger capture.
func envelopeRouter(logs *bytes.Buffer, routes map[string]gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	lg := zerolog.New(logs)
	r := gin.New()
	r.Use(middleware.RequestID(), func(c *gin.Context) {
		c.Set("logger", &lg)
		c.Next()
	})
	for p, h := range routes {
		r.GET(p, h)
	}
	return r
}

func get(r http.Handler, path, rid string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if rid != "" {
		req.Header.Set("X-Request-ID", rid)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestFail_Envelope(t *testing.T) {
	var logs bytes.Buffer
	r := envelopeRouter(&logs, map[string]gin.HandlerFunc{
		"/missing": func(c *gin.Context) { Fail(c, http.StatusNotFound, ErrCodeNotFound, "user not allowed") },
		"/broken": func(c *gin.Context) {
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, "failed to list bots")
		},
	})

	tests := []struct {
		path    string
		status  int
		code    string
		logged  bool
		message string
	}{
		{"/missing", http.StatusNotFound, ErrCodeNotFound, false, "user not allowed"},
		{"/broken", http.StatusInternalServerError, ErrCodeListFailed, true, "failed to list bots"},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			logs.Reset()
			w := get(r, tc.path, "ops-42")
			if w.Code != tc.status {
				t.Fatalf("status = %d", w.Code)
			}
			var body ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			want := ErrorResponse{RequestID: "ops-42", Code: tc.code, Message: tc.message}
			if body != want {
				t.Fatalf("body = %+v, want %+v", body, want)
			}
			if got := strings.Contains(logs.String(), `"level":"error"`); got != tc.logged {
				t.Fatalf("logged = %v, logs: %s", got, logs.String())
			}
		})
	}
}

func TestFail_GeneratedRequestID(t *testing.T) {
	var logs bytes.Buffer
	r := envelopeRouter(&logs, map[string]gin.HandlerFunc{
		"/x": func(c *gin.Context) { Fail(c, http.StatusBadRequest, ErrCodeBadRequest, "bot name is required") },
	})
	w := get(r, "/x", "")
	m := map[string]string{}
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	if m["request_id"] == "" || m["request_id"] != w.Header().Get("X-Request-ID") {
		t.Fatalf("request_id %q vs header %q", m["request_id"], w.Header().Get("X-Request-ID"))
	}
}

func TestBotFail_Envelopes(t *testing.T) {
	var logs bytes.Buffer
	r := envelopeRouter(&logs, map[string]gin.HandlerFunc{
		"/denied": func(c *gin.Context) { botFail(c, http.StatusForbidden, denied(ReasonUsernameNotAllowed)) },
		"/bad":    func(c *gin.Context) { botFail(c, http.StatusBadRequest, botError(msgRequired)) },
		"/boom":   func(c *gin.Context) { botFail(c, http.StatusInternalServerError, botError(msgInternal)) },
	})

	tests := []struct {
		path   string
		status int
		body   string
		logged bool
	}{
		{"/denied", http.StatusForbidden, `{"success":false,"allowed":false,"reason":"USERNAME_NOT_ALLOWED"}`, false},
		{"/bad", http.StatusBadRequest, `{"success":false,"error":"username and botId are required"}`, false},
		{"/boom", http.StatusInternalServerError, `{"success":false,"error":"` + msgInternal + `"}`, true},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			logs.Reset()
			w := get(r, tc.path, "")
			if w.Code != tc.status || w.Body.String() != tc.body {
				t.Fatalf("got %d %s", w.Code, w.Body.String())
			}
			if got := logs.Len() > 0; got != tc.logged {
				t.Fatalf("logged = %v: %s", got, logs.String())
			}
		})
	}
}

func TestDenied_IsFreshPointer(t *testing.T) {
	a, b := denied(ReasonMaxReached), denied(ReasonMaxReached)
	if a.Allowed == b.Allowed {
		t.Fatal("denied must not share the allowed pointer")
	}
	*a.Allowed = true
	if *b.Allowed {
		t.Fatal("mutation leaked across responses")
	}
}
