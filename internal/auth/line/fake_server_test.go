package line

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/nezunotify/notifyctl/internal/config"
)

const (
	fakeLoginCSRF  = "csrf-login"
	fakeMyPageCSRF = "csrf-my"
	fakeQRCode     = "abc123"
	fakeQRImage    = "\x89PNG fake image"
)

// fakeLine serves the notify-bot and access.line.me endpoints from one host.
type fakeLine struct {
	t *testing.T

	mu        sync.Mutex
	hits      map[string]int
	queries   map[string]url.Values
	cookies   map[string]map[string]string
	forms     map[string]url.Values
	qrWait    func(w http.ResponseWriter, r *http.Request)
	pinWait   func(w http.ResponseWriter, r *http.Request)
	groupPage func(w http.ResponseWriter, r *http.Request, page int)
	authorize func(w http.ResponseWriter, r *http.Request)
	issue     func(w http.ResponseWriter, r *http.Request)

	srv *httptest.Server
}

func newFakeLine(t *testing.T) *fakeLine {
	t.Helper()
	f := &fakeLine{
		t:       t,
		hits:    make(map[string]int),
		queries: make(map[string]url.Values),
		cookies: make(map[string]map[string]string),
		forms:   make(map[string]url.Values),
	}
	f.qrWait = writeJSON(`{"redirectPath":"/my","errorCode":null}`)
	f.pinWait = writeJSON(`{"redirectPath":"/my","errorCode":null,"error":null}`)
	f.groupPage = func(w http.ResponseWriter, r *http.Request, page int) {
		_, _ = io.WriteString(w, `{"status":200,"results":[]}`)
	}
	f.issue = writeJSON(`{"token":"issued-token"}`)

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		http.Redirect(w, r, "/oauth2/v2.1/login?loginChannelId=ch1&loginState=st1&returnUri=%2Fmy", http.StatusFound)
	})
	mux.HandleFunc("/oauth2/v2.1/login", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		_, _ = fmt.Fprintf(w, `<html><head><meta name="__csrf" content="%s"></head><body>login</body></html>`, fakeLoginCSRF)
	})
	mux.HandleFunc("/qrlogin/v1/session", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		_, _ = fmt.Fprintf(w, `{"qrCodePath":"/qrlogin/v1/qr/%s"}`, fakeQRCode)
	})
	mux.HandleFunc("/qrlogin/v1/qr/"+fakeQRCode, func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.Header().Set("Content-Type", "image/png")
		_, _ = io.WriteString(w, fakeQRImage)
	})
	mux.HandleFunc("/qrlogin/v1/qr/wait", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.qrWait(w, r)
	})
	mux.HandleFunc("/qrlogin/v1/pin/wait", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		http.SetCookie(w, &http.Cookie{Name: "cert", Value: "cert-new", Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: "qrPinCert", Value: "pin-cert", Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: "unrelated", Value: "x", Path: "/"})
		f.pinWait(w, r)
	})
	mux.HandleFunc("/my", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if r.URL.Query().Get("__csrf") != "" {
			if f.authorize != nil {
				f.authorize(w, r)
				return
			}
			http.SetCookie(w, &http.Cookie{Name: "ses", Value: "live", Path: "/"})
		}
		_, _ = fmt.Fprintf(w, `<html><body><form action="/my/personalAccessToken"><input type="hidden" name="_csrf" value="%s"></form></body></html>`, fakeMyPageCSRF)
	})
	mux.HandleFunc("/my/personalAccessToken", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.issue(w, r)
	})
	mux.HandleFunc("/api/groupList", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if c, err := r.Cookie("ses"); err != nil || c.Value != "live" {
			http.Error(w, `{"status":401}`, http.StatusUnauthorized)
			return
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		f.groupPage(w, r, page)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeLine) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := r.URL.Path
	f.hits[key]++
	f.queries[key] = r.URL.Query()
	jar := make(map[string]string)
	for _, c := range r.Cookies() {
		jar[c.Name] = c.Value
	}
	f.cookies[key] = jar
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err == nil {
			f.forms[key] = r.PostForm
		}
	}
}

func (f *fakeLine) hitCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func (f *fakeLine) lastQuery(path string) url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[path]
}

func (f *fakeLine) lastCookies(path string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cookies[path]
}

func (f *fakeLine) lastForm(path string) url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forms[path]
}

func (f *fakeLine) config(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		SessionDir:     t.TempDir(),
		SessionName:    "test",
		TmpDir:         t.TempDir(),
		QRWaitSeconds:  5,
		PINWaitSeconds: 5,
	}
}

func (f *fakeLine) manager(t *testing.T, cfg *config.Config) *SessionManager {
	t.Helper()
	m, err := New(Options{
		Config:     cfg,
		Endpoints:  Endpoints{NotifyBot: f.srv.URL, Access: f.srv.URL},
		HTTPClient: f.srv.Client(),
		Out:        io.Discard,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m
}

func writeJSON(body string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func groupsJSON(groups ...Group) string {
	data, _ := json.Marshal(map[string]any{"status": 200, "results": groups})
	return string(data)
}
