package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"invoice-agent/internal/app"
	"invoice-agent/internal/core"
	"invoice-agent/internal/metrics"
)

type fakeService struct {
	app.ApplicationService
	got app.ChatRequest
	err error
}

func (f *fakeService) HandleMessage(_ context.Context, req app.ChatRequest) (*app.ChatResponse, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &app.ChatResponse{
		Success: true,
		Messages: []app.Message{
			{ID: "m1", Role: app.RoleUser, Content: req.Message},
			{ID: "m2", Role: app.RoleAssistant, Content: "Created invoice INV-001."},
		},
		Thread: app.Thread{ID: "t1", UserID: req.UserID},
	}, nil
}

func (f *fakeService) NextNumber(_ context.Context, req app.NextNumberRequest) (string, error) {
	if req.Kind == core.KindEstimate {
		return "EST-004", nil
	}
	return "INV-004", nil
}

func post(t *testing.T, h http.Handler, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := NewHandler(&fakeService{}, Options{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("health = %d %s", rec.Code, rec.Body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}

func TestChatMessage(t *testing.T) {
	svc := &fakeService{}
	h := NewHandler(svc, Options{})

	rec := post(t, h, "/api/chat", `{"message":"Invoice Acme 500 for design","userId":"u1","history":[{"role":"user","content":"hi"}],"userContext":{"currency":"EUR"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp app.ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || len(resp.Messages) != 2 || resp.Thread.UserID != "u1" {
		t.Errorf("response = %+v", resp)
	}
	if len(svc.got.History) != 1 || svc.got.UserContext == nil || svc.got.UserContext.Currency != "EUR" {
		t.Errorf("request reached the service as %+v", svc.got)
	}
}

func TestChatErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"malformed json", `{"message":`, nil, http.StatusBadRequest, "BAD_REQUEST"},
		{"missing user", `{"message":"hi"}`, nil, http.StatusBadRequest, "BAD_REQUEST"},
		{"invalid input", `{"message":" ","userId":"u1"}`, fmt.Errorf("%w: message is required", core.ErrInvalidInput), http.StatusBadRequest, "BAD_REQUEST"},
		{"internal", `{"message":"hi","userId":"u1"}`, fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"too large", `{"message":"` + strings.Repeat("a", maxBodyBytes) + `","userId":"u1"}`, nil, http.StatusRequestEntityTooLarge, "REQUEST_TOO_LARGE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&fakeService{err: tt.err}, Options{})
			rec := post(t, h, "/api/chat", tt.body, "X-Request-ID", "req-42")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body)
			}
			var body errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Code != tt.code || body.RequestID != "req-42" {
				t.Errorf("body = %+v", body)
			}
			if tt.status == http.StatusInternalServerError && strings.Contains(body.Error, "boom") {
				t.Error("internal error leaked to the caller")
			}
		})
	}
}

func TestBearerAuth(t *testing.T) {
	const secret = "s3cret"
	token, err := SignToken(secret, "u1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	expired, err := SignToken(secret, "u1", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	foreign, err := SignToken("other", "u1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		auth   string
		body   string
		status int
		user   string
	}{
		{"no token", "", `{"message":"hi","userId":"u1"}`, http.StatusUnauthorized, ""},
		{"expired", "Bearer " + expired, `{"message":"hi","userId":"u1"}`, http.StatusUnauthorized, ""},
		{"wrong key", "Bearer " + foreign, `{"message":"hi","userId":"u1"}`, http.StatusUnauthorized, ""},
		{"other user", "Bearer " + token, `{"message":"hi","userId":"u2"}`, http.StatusForbidden, ""},
		{"matching user", "Bearer " + token, `{"message":"hi","userId":"u1"}`, http.StatusOK, "u1"},
		{"user from token", "Bearer " + token, `{"message":"hi"}`, http.StatusOK, "u1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			h := NewHandler(svc, Options{JWTSecret: secret})
			var rec *httptest.ResponseRecorder
			if tt.auth == "" {
				rec = post(t, h, "/api/chat", tt.body)
			} else {
				rec = post(t, h, "/api/chat", tt.body, "Authorization", tt.auth)
			}
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body)
			}
			if svc.got.UserID != tt.user {
				t.Errorf("service saw user %q, want %q", svc.got.UserID, tt.user)
			}
		})
	}
}

func TestRateLimitIsPerUser(t *testing.T) {
	h := NewHandler(&fakeService{}, Options{RateLimitRPS: 0.001, RateLimitBurst: 2})
	for i := 0; i < 2; i++ {
		if rec := post(t, h, "/api/chat", `{"message":"hi","userId":"u1"}`); rec.Code != http.StatusOK {
			t.Fatalf("request %d = %d", i, rec.Code)
		}
	}
	rec := post(t, h, "/api/chat", `{"message":"hi","userId":"u1"}`)
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("third request = %d", rec.Code)
	}
	if rec := post(t, h, "/api/chat", `{"message":"hi","userId":"u2"}`); rec.Code != http.StatusOK {
		t.Fatalf("other user throttled: %d", rec.Code)
	}
}

func TestNextNumberRoute(t *testing.T) {
	h := NewHandler(&fakeService{}, Options{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/numbers/next?userId=u1&kind=Estimate", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "EST-004") {
		t.Fatalf("next number = %d %s", rec.Code, rec.Body)
	}
}

func TestCORS(t *testing.T) {
	h := NewHandler(&fakeService{}, Options{AllowedOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Fatalf("preflight = %d %v", rec.Code, rec.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unknown origin was allowed")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	h := NewHandler(&fakeService{}, Options{Metrics: m})
	post(t, h, "/api/chat", `{"message":"hi","userId":"u1"}`)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `route="/api/chat"`) {
		t.Errorf("chat request not counted:\n%s", rec.Body)
	}
}

func TestLimiterDropsIdleBuckets(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	l := newUserLimiter(1, 1)
	l.now = func() time.Time { return now }

	l.Allow("u1")
	l.Allow("u2")
	now = now.Add(limiterIdleTTL + time.Second)
	l.Allow("u3")

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.buckets) != 1 {
		t.Fatalf("buckets = %d, want only the fresh one", len(l.buckets))
	}
}

func TestLimiterDisabled(t *testing.T) {
	l := newUserLimiter(0, 0)
	for i := 0; i < 100; i++ {
		if !l.Allow("u1") {
			t.Fatal("disabled limiter rejected a request")
		}
	}
}
