package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_AllowBurstThenDeny(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 3, CleanupInterval: time.Hour})
	defer rl.Stop()

	now := time.Now()
	for i := 0; i < 3; i++ {
		if !rl.allowAt("1.2.3.4", now) {
			t.Fatalf("request %d denied within burst", i+1)
		}
	}
	if rl.allowAt("1.2.3.4", now) {
		t.Fatal("request beyond burst allowed")
	}
	if !rl.allowAt("5.6.7.8", now) {
		t.Fatal("other client should have its own bucket")
	}

	// One token is refilled every 20s at 3 per minute.
	if !rl.allowAt("1.2.3.4", now.Add(21*time.Second)) {
		t.Fatal("token not refilled")
	}

	m := rl.GetMetrics()
	if m.TotalHits != 1 {
		t.Errorf("TotalHits = %d, want 1", m.TotalHits)
	}
	if m.ClientCount != 2 {
		t.Errorf("ClientCount = %d, want 2", m.ClientCount)
	}
}

func TestLimiter_CleanupStaleEntries(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 10, CleanupInterval: time.Minute})
	defer rl.Stop()

	now := time.Now()
	rl.allowAt("old", now.Add(-10*time.Minute))
	rl.allowAt("new", now)

	if removed := rl.cleanupStaleEntries(now); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if got := rl.ActiveClients(); got != 1 {
		t.Errorf("ActiveClients = %d, want 1", got)
	}
}

func TestLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewLimiter(DefaultConfig())
	rl.Stop()
	rl.Stop()
}

func TestMiddleware_OnlyLimitsListedMethods(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 1, CleanupInterval: time.Hour})
	defer rl.Stop()

	handler := rl.Middleware(
		func(*http.Request) string { return "client" },
		nil,
		http.MethodPost,
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		method string
		want   int
	}{
		{http.MethodPost, http.StatusNoContent},
		{http.MethodPost, http.StatusTooManyRequests},
		{http.MethodGet, http.StatusNoContent},
		{http.MethodGet, http.StatusNoContent},
	}
	for i, tt := range tests {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(tt.method, "/api/expenses", nil))
		if rec.Code != tt.want {
			t.Errorf("request %d (%s): status = %d, want %d", i, tt.method, rec.Code, tt.want)
		}
	}
}

func TestMiddleware_OnLimitCallback(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 1, CleanupInterval: time.Hour})
	defer rl.Stop()

	called := 0
	handler := rl.Middleware(
		func(*http.Request) string { return "client" },
		func(w http.ResponseWriter, r *http.Request) {
			called++
			w.WriteHeader(http.StatusServiceUnavailable)
		},
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}
	if called != 1 {
		t.Errorf("onLimit called %d times, want 1", called)
	}
}
