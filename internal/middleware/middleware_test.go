package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterThrottlesWrites(t *testing.T) {
	limiter := NewRateLimiter(1, 2, nil)
	handler := limiter.Handler(okHandler())

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "10.1.2.3:5555"
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		codes = append(codes, resp.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("burst requests rejected: %v", codes)
	}
	if codes[3] != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once burst exhausted, got %v", codes)
	}
}

func TestRateLimiterIgnoresReads(t *testing.T) {
	limiter := NewRateLimiter(1, 1, nil)
	handler := limiter.Handler(okHandler())

	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.1.2.3:5555"
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("read %d throttled with %d", i, resp.Code)
		}
	}
}

func TestRateLimiterKeysByClient(t *testing.T) {
	limiter := NewRateLimiter(1, 1, nil)
	handler := limiter.Handler(okHandler())

	first := httptest.NewRequest(http.MethodPost, "/", nil)
	first.RemoteAddr = "10.0.0.1:1000"
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, first)
	if resp.Code != http.StatusOK {
		t.Fatalf("first client rejected: %d", resp.Code)
	}

	second := httptest.NewRequest(http.MethodPost, "/", nil)
	second.RemoteAddr = "10.0.0.2:1000"
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, second)
	if resp.Code != http.StatusOK {
		t.Fatalf("second client throttled by first client's budget: %d", resp.Code)
	}
}

func TestRequestIDAssigned(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	header := resp.Header().Get(RequestIDHeader)
	if header == "" || header != seen {
		t.Fatalf("request id header %q, context %q", header, seen)
	}
}

func TestRequestIDEchoesClientValue(t *testing.T) {
	handler := RequestID(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "client-supplied")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if got := resp.Header().Get(RequestIDHeader); got != "client-supplied" {
		t.Fatalf("request id = %q, want client-supplied", got)
	}
}
