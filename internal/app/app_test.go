package app

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"quakescope/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		FCMAPIURL:           "http://127.0.0.1:0/v1",
		FCMTimeout:          time.Second,
		PushGateway:         config.PushGatewayHTTP,
		DispatchConcurrency: 1,
		StoreBackend:        config.StoreBackendFile,
		DeviceTokensPath:    filepath.Join(t.TempDir(), "device_tokens.json"),
		DeliveryHistoryCap:  100,
	}
}

func TestNew_FileBackend(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.Close()

	ctx := context.Background()
	if _, err := a.Alerts.RegisterDevice(ctx, "tok-1", nil); err != nil {
		t.Fatalf("RegisterDevice failed: %v", err)
	}
	tokens, err := a.Store.ListTokens(ctx)
	if err != nil {
		t.Fatalf("ListTokens failed: %v", err)
	}
	if len(tokens) != 1 || tokens[0] != "tok-1" {
		t.Errorf("unexpected tokens %v", tokens)
	}

	t.Log("✓ File-backed pipeline is wired")
}

func TestNew_FirebaseGateway(t *testing.T) {
	cfg := testConfig(t)
	cfg.PushGateway = config.PushGatewayFirebase

	a, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	a.Close()
}

func TestNew_UnknownSettings(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreBackend = "mongo"
	if _, err := New(context.Background(), cfg, nil); err == nil || !strings.Contains(err.Error(), "STORE_BACKEND") {
		t.Errorf("expected STORE_BACKEND error, got %v", err)
	}

	cfg = testConfig(t)
	cfg.PushGateway = "apns"
	if _, err := New(context.Background(), cfg, nil); err == nil || !strings.Contains(err.Error(), "PUSH_GATEWAY") {
		t.Errorf("expected PUSH_GATEWAY error, got %v", err)
	}
}

func TestNew_BackendsNeedConnectionSettings(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreBackend = config.StoreBackendRedis
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Error("expected error for redis backend without REDIS_URL")
	}

	cfg = testConfig(t)
	cfg.StoreBackend = config.StoreBackendPostgres
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Error("expected error for postgres backend without DATABASE_URL")
	}
}

func TestRedis_RequiresURL(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.Close()

	if _, err := a.Redis(context.Background()); err == nil {
		t.Error("expected error without REDIS_URL")
	}
}
