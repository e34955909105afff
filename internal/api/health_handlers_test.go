package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubChecker struct {
	err error
}

func (c *stubChecker) HealthCheck(ctx context.Context) error { return c.err }

func TestHealth(t *testing.T) {
	h := NewHealthHandlers(HealthHandlersConfig{})

	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "healthy" || resp.Checks["runtime"] != "ok" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	h := NewHealthHandlers(HealthHandlersConfig{})

	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodPost, "/health", nil))

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rr.Code)
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		config     HealthHandlersConfig
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "all checkers nil",
			config:     HealthHandlersConfig{},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"database": "ok", "engine": "ok", "index": "ok", "redis": "ok"},
		},
		{
			name: "all healthy",
			config: HealthHandlersConfig{
				DBChecker:     &stubChecker{},
				EngineChecker: &stubChecker{},
				IndexChecker:  &stubChecker{},
				RedisChecker:  &stubChecker{},
			},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"database": "ok", "engine": "ok", "index": "ok", "redis": "ok"},
		},
		{
			name: "database down is critical",
			config: HealthHandlersConfig{
				DBChecker: &stubChecker{err: errors.New("connection refused")},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": "error", "engine": "ok", "index": "ok", "redis": "ok"},
		},
		{
			name: "engine and index down are not critical",
			config: HealthHandlersConfig{
				DBChecker:     &stubChecker{},
				EngineChecker: &stubChecker{err: errors.New("502")},
				IndexChecker:  &stubChecker{err: errors.New("timeout")},
			},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"database": "ok", "engine": "error", "index": "error", "redis": "ok"},
		},
		{
			name: "redis down is not critical",
			config: HealthHandlersConfig{
				DBChecker:    &stubChecker{},
				RedisChecker: &stubChecker{err: errors.New("no route")},
			},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"database": "ok", "engine": "ok", "index": "ok", "redis": "error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandlers(tt.config)

			rr := httptest.NewRecorder()
			h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			for name, want := range tt.wantChecks {
				if got := resp.Checks[name]; got != want {
					t.Errorf("check %q = %q, want %q", name, got, want)
				}
			}
		})
	}
}
