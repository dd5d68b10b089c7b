package app_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bdobrica/turbobot/internal/turbobot/app"
)

type fakeStatus struct{ bindings, sessions int }

func (f fakeStatus) BindingCount() int   { return f.bindings }
func (f fakeStatus) ActiveSessions() int { return f.sessions }

func TestHealthServer_Health(t *testing.T) {
	hs := app.NewHealthServer("127.0.0.1:0", fakeStatus{}, nil)

	w := httptest.NewRecorder()
	hs.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %v", resp["status"])
	}
}

func TestHealthServer_Status(t *testing.T) {
	hs := app.NewHealthServer("127.0.0.1:0", fakeStatus{bindings: 5, sessions: 2}, nil)

	w := httptest.NewRecorder()
	hs.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if int(resp["bindings"].(float64)) != 5 || int(resp["active_sessions"].(float64)) != 2 {
		t.Errorf("status = %v", resp)
	}
}

func TestHealthServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "turbobot_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	hs := app.NewHealthServer("127.0.0.1:0", fakeStatus{}, reg)
	w := httptest.NewRecorder()
	hs.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "turbobot_test_total 1") {
		t.Fatalf("metrics = %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	hs.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/health", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /health = %d", w.Code)
	}
}
