package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nezunotify/notifyctl/internal/config"
	"github.com/nezunotify/notifyctl/internal/notify"
	"github.com/nezunotify/notifyctl/internal/transport"
	"github.com/tidwall/gjson"
)

type fakeNotifier struct {
	mu     sync.Mutex
	token  string
	sent   []notify.Message
	err    error
	status *notify.Status
}

func (f *fakeNotifier) Send(_ context.Context, m notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if err := m.Validate(); err != nil {
		return err
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeNotifier) Status(context.Context) (*notify.Status, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.status, nil
}

func newTestServer(t *testing.T, cfg *config.Config, notifiers map[string]*fakeNotifier) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return NewServer(cfg, WithNotifierFactory(func(cfg *config.Config) Notifier {
		if n, ok := notifiers[cfg.NotifyToken]; ok {
			return n
		}
		return nil
	}))
}

func relayConfig(token string, keys ...string) *config.Config {
	cfg := &config.Config{NotifyToken: token}
	cfg.Relay.APIKeys = keys
	return cfg
}

func doRequest(s *Server, method, path, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	recorder := httptest.NewRecorder()
	s.Handler().ServeHTTP(recorder, req)
	return recorder
}

func TestNotifyRelaysMessage(t *testing.T) {
	fake := &fakeNotifier{}
	s := newTestServer(t, relayConfig("tok", "key"), map[string]*fakeNotifier{"tok": fake})

	recorder := doRequest(s, http.MethodPost, "/v1/notify", "key",
		`{"message":"deploy finished","sticker_package_id":446,"sticker_id":1988}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body.String())
	}
	id := gjson.Get(recorder.Body.String(), "id").String()
	if id == "" || recorder.Header().Get("X-Message-Id") != id {
		t.Fatalf("message id missing or mismatched: body %s header %q", recorder.Body.String(), recorder.Header().Get("X-Message-Id"))
	}
	if len(fake.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(fake.sent))
	}
	got := fake.sent[0]
	if got.Text != "deploy finished" || got.StickerPackageID != 446 || got.StickerID != 1988 {
		t.Fatalf("forwarded message = %+v", got)
	}
}

func TestNotifyRejectsBadInput(t *testing.T) {
	fake := &fakeNotifier{}
	s := newTestServer(t, relayConfig("tok", "key"), map[string]*fakeNotifier{"tok": fake})

	tests := []struct {
		name string
		body string
	}{
		{name: "missing message", body: `{"image_url":"https://example.com/a.png"}`},
		{name: "not json", body: `message=hi`},
		{name: "bad url", body: `{"message":"hi","image_url":"not a url"}`},
		{name: "half sticker", body: `{"message":"hi","sticker_id":3}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := doRequest(s, http.MethodPost, "/v1/notify", "key", tt.body)
			if recorder.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (%s)", recorder.Code, recorder.Body.String())
			}
			if kind := gjson.Get(recorder.Body.String(), "error.type").String(); kind != "invalid_request" {
				t.Fatalf("error.type = %q", kind)
			}
		})
	}
	if len(fake.sent) != 0 {
		t.Fatalf("invalid requests reached the notifier: %+v", fake.sent)
	}
}

func TestNotifyMapsUpstreamErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		kind string
	}{
		{name: "rate limited", err: &notify.RateLimitError{Limit: 1000}, want: http.StatusTooManyRequests, kind: "rate_limited"},
		{name: "upstream 401", err: &transport.Error{Method: "POST", URL: "x", StatusCode: 401}, want: http.StatusBadGateway, kind: "upstream_error"},
		{name: "unreachable", err: &transport.Error{Method: "POST", URL: "x", Cause: errors.New("refused")}, want: http.StatusBadGateway, kind: "upstream_unreachable"},
		{name: "other", err: errors.New("boom"), want: http.StatusInternalServerError, kind: "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, relayConfig("tok", "key"), map[string]*fakeNotifier{"tok": {err: tt.err}})
			recorder := doRequest(s, http.MethodPost, "/v1/notify", "key", `{"message":"hi"}`)
			if recorder.Code != tt.want {
				t.Fatalf("status = %d, want %d", recorder.Code, tt.want)
			}
			if kind := gjson.Get(recorder.Body.String(), "error.type").String(); kind != tt.kind {
				t.Fatalf("error.type = %q, want %q", kind, tt.kind)
			}
		})
	}
}

func TestRelayRequiresKeyAndToken(t *testing.T) {
	s := newTestServer(t, relayConfig("", "key"), nil)

	if recorder := doRequest(s, http.MethodGet, "/v1/status", "", ""); recorder.Code != http.StatusUnauthorized {
		t.Fatalf("no key: status = %d", recorder.Code)
	}
	if recorder := doRequest(s, http.MethodGet, "/v1/status", "wrong", ""); recorder.Code != http.StatusForbidden {
		t.Fatalf("wrong key: status = %d", recorder.Code)
	}
	if recorder := doRequest(s, http.MethodGet, "/v1/status", "key", ""); recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("no token: status = %d", recorder.Code)
	}
	if recorder := doRequest(s, http.MethodGet, "/healthz", "", ""); recorder.Code != http.StatusOK {
		t.Fatalf("healthz: status = %d", recorder.Code)
	}
}

func TestStatusAndHotReload(t *testing.T) {
	reset := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	first := &fakeNotifier{status: &notify.Status{TargetType: "USER", Target: "me", Limit: 1000, Remaining: 999, Reset: reset}}
	second := &fakeNotifier{status: &notify.Status{TargetType: "GROUP", Target: "ops", Limit: 1000, Remaining: 10}}
	notifiers := map[string]*fakeNotifier{"one": first, "two": second}
	s := newTestServer(t, relayConfig("one", "old"), notifiers)

	recorder := doRequest(s, http.MethodGet, "/v1/status", "old", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	body := recorder.Body.String()
	if gjson.Get(body, "target").String() != "me" || gjson.Get(body, "remaining").Int() != 999 {
		t.Fatalf("status body = %s", body)
	}
	if gjson.Get(body, "reset").String() != "2026-01-02T03:04:05Z" {
		t.Fatalf("reset = %s", gjson.Get(body, "reset").String())
	}

	s.UpdateConfig(relayConfig("two", "new"))

	if recorder = doRequest(s, http.MethodGet, "/v1/status", "old", ""); recorder.Code != http.StatusForbidden {
		t.Fatalf("old key after reload: status = %d", recorder.Code)
	}
	recorder = doRequest(s, http.MethodGet, "/v1/status", "new", "")
	if got := gjson.Get(recorder.Body.String(), "target").String(); got != "ops" {
		t.Fatalf("target after reload = %q", got)
	}
	if gjson.Get(recorder.Body.String(), "reset").Exists() {
		t.Fatal("zero reset should be omitted")
	}
}

func TestRelayAddr(t *testing.T) {
	if got := relayAddr(config.RelayConfig{Host: "127.0.0.1", Port: 9000}); got != "127.0.0.1:9000" {
		t.Fatalf("relayAddr = %q", got)
	}
	if got := relayAddr(config.RelayConfig{}); got != ":8317" {
		t.Fatalf("default relayAddr = %q", got)
	}
}
