package line

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

type recordingMirror struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingMirror) PersistSessionFiles(_ context.Context, paths ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, paths...)
	return nil
}

func TestCookieStoreRoundTrip(t *testing.T) {
	t.Parallel()

	mirror := &recordingMirror{}
	store, err := NewCookieStore(t.TempDir(), "alpha", mirror)
	if err != nil {
		t.Fatalf("NewCookieStore() error = %v", err)
	}
	if filepath.Base(store.Dir()) != "alpha" {
		t.Fatalf("Dir() = %s", store.Dir())
	}

	if _, ok, err := store.LoadCookies(); ok || err != nil {
		t.Fatalf("LoadCookies() on empty store = %v, %v", ok, err)
	}

	ctx := context.Background()
	if err = store.SaveCookies(ctx, Cookies{"ses": "1", "cert": "c"}); err != nil {
		t.Fatalf("SaveCookies() error = %v", err)
	}
	cookies, ok, err := store.LoadCookies()
	if err != nil || !ok || cookies["ses"] != "1" || cookies["cert"] != "c" {
		t.Fatalf("LoadCookies() = %v, %v, %v", cookies, ok, err)
	}
	if len(mirror.paths) != 1 || mirror.paths[0] != store.CookiePath() {
		t.Fatalf("mirror paths = %v", mirror.paths)
	}
}

func TestCookieStoreCertSubset(t *testing.T) {
	t.Parallel()

	store, err := NewCookieStore(t.TempDir(), "beta", nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err = store.SaveCert(ctx, Cookies{"cert": "c1", "qrPinCert": "p1", "ses": "secret"}); err != nil {
		t.Fatalf("SaveCert() error = %v", err)
	}
	cert, err := store.LoadCert()
	if err != nil {
		t.Fatalf("LoadCert() error = %v", err)
	}
	if len(cert) != 2 || cert["cert"] != "c1" || cert["qrPinCert"] != "p1" {
		t.Fatalf("LoadCert() = %v", cert)
	}
}

func TestCookieStoreCorruptFile(t *testing.T) {
	t.Parallel()

	store, err := NewCookieStore(t.TempDir(), "gamma", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err = os.WriteFile(store.CookiePath(), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err = store.LoadCookies(); err == nil {
		t.Fatal("expected parse error")
	}
}
