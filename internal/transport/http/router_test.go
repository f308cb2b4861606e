package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"quakescope/internal/handler"
	"quakescope/internal/repository"
	"quakescope/internal/service"
)

func newTestRouter(t *testing.T, cfg RouterConfig) http.Handler {
	store := repository.NewRegistrationStore(
		repository.NewFileBackend(filepath.Join(t.TempDir(), "device_tokens.json")), 100, nil)
	alerts := service.NewAlertService(store, service.NewDispatcher(nil, 1, nil), nil)
	cfg.AlertHandler = handler.NewAlertHandler(alerts, nil)
	return NewRouter(cfg)
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(t, RouterConfig{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]bool
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || !body["ok"] {
		t.Errorf("unexpected body %q", rr.Body.String())
	}

	t.Log("✓ Health check responds")
}

func TestRouter_RegisterAndList(t *testing.T) {
	router := newTestRouter(t, RouterConfig{})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/alerts/device-token", strings.NewReader(`{"fcmToken":"tok-1"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("register: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/alerts/tokens", nil))
	var list struct {
		OK     bool     `json:"ok"`
		Count  int      `json:"count"`
		Tokens []string `json:"tokens"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if !list.OK || list.Count != 1 || list.Tokens[0] != "tok-1" {
		t.Errorf("unexpected list %+v", list)
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router := newTestRouter(t, RouterConfig{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/alerts/device-token", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rr.Code)
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter(t, RouterConfig{CORSAllowOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/alerts/device-token", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("unexpected Access-Control-Allow-Origin %q", got)
	}

	t.Log("✓ CORS preflight allowed for configured origin")
}

func TestRouter_RateLimitOnAlerts(t *testing.T) {
	router := newTestRouter(t, RouterConfig{
		RateLimitEnabled:  true,
		RateLimitRequests: 2,
		RateLimitWindow:   time.Minute,
	})

	// burst of 1
	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/alerts/tokens", nil))
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("unexpected status codes %v", codes)
	}

	// health is outside the limited group
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("health should not be limited, got %d", rr.Code)
	}
}
