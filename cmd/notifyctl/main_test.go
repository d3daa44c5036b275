package main

import (
	"testing"

	"github.com/nezunotify/notifyctl/internal/config"
)

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("LINE_NOTIFY_TOKEN", " notify-token ")
	t.Setenv("LINE_CSRF_TOKEN", "csrf")
	t.Setenv("LINE_COOKIE", "ses=abc")
	t.Setenv("RELAY_API_KEYS", "k1, k2,,k1")
	t.Setenv("OBJECTSTORE_ENDPOINT", "http://minio.local:9000/")
	t.Setenv("OBJECTSTORE_BUCKET", "sessions")
	t.Setenv("PGSTORE_DSN", "postgres://localhost/notify")

	cfg := &config.Config{}
	applyEnvOverrides(cfg)

	if cfg.NotifyToken != "notify-token" {
		t.Fatalf("NotifyToken = %q", cfg.NotifyToken)
	}
	if cfg.CSRF != "csrf" || cfg.Cookie != "ses=abc" {
		t.Fatalf("csrf/cookie = %q/%q", cfg.CSRF, cfg.Cookie)
	}
	if len(cfg.Relay.APIKeys) != 2 || cfg.Relay.APIKeys[0] != "k1" || cfg.Relay.APIKeys[1] != "k2" {
		t.Fatalf("APIKeys = %v", cfg.Relay.APIKeys)
	}
	if cfg.ObjectStore.Endpoint != "minio.local:9000" || cfg.ObjectStore.UseSSL {
		t.Fatalf("object store = %+v", cfg.ObjectStore)
	}
	if cfg.ObjectStore.Bucket != "sessions" {
		t.Fatalf("Bucket = %q", cfg.ObjectStore.Bucket)
	}
	if !cfg.PGStore.Enabled() {
		t.Fatal("expected pg store to be enabled")
	}
}

func TestApplyEnvOverridesIgnoresBlank(t *testing.T) {
	t.Setenv("LINE_NOTIFY_TOKEN", "   ")
	cfg := &config.Config{}
	cfg.NotifyToken = "from-file"
	applyEnvOverrides(cfg)
	if cfg.NotifyToken != "from-file" {
		t.Fatalf("NotifyToken = %q, want from-file", cfg.NotifyToken)
	}
}

func TestSplitEndpoint(t *testing.T) {
	cases := []struct {
		raw      string
		endpoint string
		ssl      bool
	}{
		{"https://s3.example.com", "s3.example.com", true},
		{"HTTP://minio:9000", "minio:9000", false},
		{"minio:9000", "minio:9000", true},
	}
	for _, tc := range cases {
		endpoint, ssl := splitEndpoint(tc.raw)
		if endpoint != tc.endpoint || ssl != tc.ssl {
			t.Errorf("splitEndpoint(%q) = %q, %v; want %q, %v", tc.raw, endpoint, ssl, tc.endpoint, tc.ssl)
		}
	}
}
