package line

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nezunotify/notifyctl/internal/transport"
)

func TestLoginSkipsPINWhenRedirectArrives(t *testing.T) {
	t.Parallel()

	f := newFakeLine(t)
	cfg := f.config(t)
	m := f.manager(t, cfg)

	if err := m.Login(context.Background()); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if m.State() != StateAuthorized {
		t.Fatalf("State() = %s, want authorized", m.State())
	}
	if got := f.hitCount("/qrlogin/v1/pin/wait"); got != 0 {
		t.Fatalf("pin wait called %d times, want 0", got)
	}

	session := f.lastQuery("/qrlogin/v1/session")
	if session.Get("channelId") != "ch1" || session.Has("loginChannelId") || session.Has("loginState") {
		t.Fatalf("qr session query = %v", session)
	}

	final := f.lastQuery("/my")
	if final.Get("__csrf") != fakeLoginCSRF || final.Get("loginChannelId") != "ch1" || final.Get("loginState") != "st1" {
		t.Fatalf("final redirect query = %v", final)
	}

	image, err := os.ReadFile(filepath.Join(cfg.TmpDir, fakeQRCode+".png"))
	if err != nil || string(image) != fakeQRImage {
		t.Fatalf("qr image = %q, %v", image, err)
	}

	saved, ok, err := m.Store().LoadCookies()
	if err != nil || !ok {
		t.Fatalf("LoadCookies() = %v, %v", ok, err)
	}
	if saved["ses"] != "live" {
		t.Fatalf("cookie.json = %v", saved)
	}
}

func TestWaitQRTransitionsToPINPending(t *testing.T) {
	t.Parallel()

	f := newFakeLine(t)
	f.qrWait = writeJSON(`{"redirectPath": null, "errorCode": null, "error": null, "pinCode": "1234"}`)
	m := f.manager(t, f.config(t))
	ctx := context.Background()

	if _, err := m.StartQR(ctx); err != nil {
		t.Fatalf("StartQR() error = %v", err)
	}
	if m.State() != StateQRIssued {
		t.Fatalf("State() = %s, want qr-issued", m.State())
	}

	next, err := m.WaitQR(ctx)
	if err != nil {
		t.Fatalf("WaitQR() error = %v", err)
	}
	if next != StatePINPending || m.QR().PINCode != "1234" {
		t.Fatalf("WaitQR() = %s pin %q", next, m.QR().PINCode)
	}

	var shown string
	m.onPIN = func(pin string) { shown = pin }
	if next, err = m.WaitPIN(ctx); err != nil || next != StateAuthorized {
		t.Fatalf("WaitPIN() = %s, %v", next, err)
	}
	if shown != "1234" {
		t.Fatalf("OnPIN got %q", shown)
	}

	cert, err := m.Store().LoadCert()
	if err != nil {
		t.Fatalf("LoadCert() error = %v", err)
	}
	if len(cert) != 2 || cert["cert"] != "cert-new" || cert["qrPinCert"] != "pin-cert" {
		t.Fatalf("cert.json = %v", cert)
	}

	if err = m.Authorize(ctx); err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
}

func TestWaitQRSendsStoredCert(t *testing.T) {
	t.Parallel()

	f := newFakeLine(t)
	m := f.manager(t, f.config(t))
	ctx := context.Background()
	if err := m.Store().SaveCert(ctx, Cookies{"cert": "cert-old", "other": "dropped"}); err != nil {
		t.Fatal(err)
	}

	if err := m.LoginWithQR(ctx); err != nil {
		t.Fatalf("LoginWithQR() error = %v", err)
	}
	if got := f.lastCookies("/qrlogin/v1/qr/wait")["cert"]; got != "cert-old" {
		t.Fatalf("qr wait cert cookie = %q", got)
	}
}

func TestWaitQRRejected(t *testing.T) {
	t.Parallel()

	f := newFakeLine(t)
	f.qrWait = writeJSON(`{"redirectPath":null,"errorCode":4001,"error":"expired","pinCode":null}`)
	m := f.manager(t, f.config(t))

	err := m.LoginWithQR(context.Background())
	var waitErr *QRLoginWaitError
	if !errors.As(err, &waitErr) {
		t.Fatalf("expected QRLoginWaitError, got %v", err)
	}
	var authErr *AuthorizeError
	if !errors.As(err, &authErr) || authErr.Code != "4001" || authErr.Message != "expired" {
		t.Fatalf("AuthorizeError = %+v", authErr)
	}
	if m.State() != StateFailed {
		t.Fatalf("State() = %s, want failed", m.State())
	}
}

func TestWaitQRInvalidBodyIsValidationError(t *testing.T) {
	t.Parallel()

	f := newFakeLine(t)
	f.qrWait = writeJSON(`<html>oops</html>`)
	m := f.manager(t, f.config(t))

	err := m.LoginWithQR(context.Background())
	if !IsValidationError(err) || !IsAuthorizeError(err) {
		t.Fatalf("expected validation error inside authorize error, got %v", err)
	}
	if errors.Is(err, ErrWaitTimeout) {
		t.Fatal("validation failure reported as timeout")
	}
}

func TestWaitQRTimeout(t *testing.T) {
	t.Parallel()

	f := newFakeLine(t)
	f.qrWait = func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(10 * time.Second):
		}
	}
	cfg := f.config(t)
	cfg.QRWaitSeconds = 1
	m := f.manager(t, cfg)

	err := m.LoginWithQR(context.Background())
	var waitErr *QRLoginWaitError
	if !errors.As(err, &waitErr) {
		t.Fatalf("expected QRLoginWaitError, got %v", err)
	}
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("expected ErrWaitTimeout, got %v", err)
	}
}

func TestPINWaitWithoutRedirectFails(t *testing.T) {
	t.Parallel()

	f := newFakeLine(t)
	f.qrWait = writeJSON(`{"pinCode":"9999"}`)
	f.pinWait = writeJSON(`{"redirectPath":null,"errorCode":"PIN_TIMEOUT","error":"pin expired"}`)
	m := f.manager(t, f.config(t))

	err := m.LoginWithQR(context.Background())
	var pinErr *QRLoginPINWaitError
	if !errors.As(err, &pinErr) {
		t.Fatalf("expected QRLoginPINWaitError, got %v", err)
	}
	if pinErr.Err.Code != "PIN_TIMEOUT" {
		t.Fatalf("code = %q", pinErr.Err.Code)
	}
}

func TestPINWaitHTTPFailureWrapsAuthorizeError(t *testing.T) {
	t.Parallel()

	f := newFakeLine(t)
	f.qrWait = writeJSON(`{"pinCode":"1234"}`)
	f.pinWait = func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}
	m := f.manager(t, f.config(t))

	err := m.LoginWithQR(context.Background())
	var pinErr *QRLoginPINWaitError
	if !errors.As(err, &pinErr) {
		t.Fatalf("expected QRLoginPINWaitError, got %v", err)
	}
	var authErr *AuthorizeError
	if !errors.As(err, &authErr) || authErr != pinErr.Err {
		t.Fatalf("expected the wrapped AuthorizeError, got %v", err)
	}
	if transport.StatusCode(err) != http.StatusBadGateway {
		t.Fatalf("status = %d", transport.StatusCode(err))
	}
	if errors.Is(err, ErrWaitTimeout) {
		t.Fatal("an HTTP failure must not read as a wait timeout")
	}
	if m.State() != StateFailed {
		t.Fatalf("State() = %s", m.State())
	}
}

func TestAuthorizeRejectsNon2xx(t *testing.T) {
	t.Parallel()

	f := newFakeLine(t)
	f.authorize = func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}
	m := f.manager(t, f.config(t))

	err := m.LoginWithQR(context.Background())
	if !IsAuthorizeError(err) {
		t.Fatalf("expected AuthorizeError, got %v", err)
	}
	if transport.StatusCode(err) != http.StatusForbidden {
		t.Fatalf("status = %d", transport.StatusCode(err))
	}
	if m.State() != StateFailed {
		t.Fatalf("State() = %s", m.State())
	}
}

func TestEnsureLoginReusesWorkingCookie(t *testing.T) {
	t.Parallel()

	f := newFakeLine(t)
	m := f.manager(t, f.config(t))
	ctx := context.Background()
	if err := m.Store().SaveCookies(ctx, Cookies{"ses": "live"}); err != nil {
		t.Fatal(err)
	}

	if err := m.EnsureLogin(ctx); err != nil {
		t.Fatalf("EnsureLogin() error = %v", err)
	}
	if f.hitCount("/login") != 0 {
		t.Fatal("EnsureLogin logged in despite a working cookie")
	}
	if m.State() != StateAuthorized {
		t.Fatalf("State() = %s", m.State())
	}
}

func TestEnsureLoginReplacesRejectedCookie(t *testing.T) {
	t.Parallel()

	f := newFakeLine(t)
	m := f.manager(t, f.config(t))
	ctx := context.Background()
	if err := m.Store().SaveCookies(ctx, Cookies{"ses": "stale"}); err != nil {
		t.Fatal(err)
	}

	if err := m.EnsureLogin(ctx); err != nil {
		t.Fatalf("EnsureLogin() error = %v", err)
	}
	if f.hitCount("/login") != 1 {
		t.Fatalf("login hits = %d, want 1", f.hitCount("/login"))
	}
	saved, _, _ := m.Store().LoadCookies()
	if saved["ses"] != "live" {
		t.Fatalf("cookie.json = %v", saved)
	}
}

func TestLoginRejectsEmailCredentials(t *testing.T) {
	t.Parallel()

	f := newFakeLine(t)
	cfg := f.config(t)
	cfg.Email, cfg.Password = "me@example.com", "secret"
	m := f.manager(t, cfg)

	if err := m.Login(context.Background()); !errors.Is(err, ErrEmailLoginUnsupported) {
		t.Fatalf("Login() error = %v", err)
	}
	if f.hitCount("/login") != 0 {
		t.Fatal("email login touched the network")
	}
}

func TestStepsOutOfOrder(t *testing.T) {
	t.Parallel()

	f := newFakeLine(t)
	m := f.manager(t, f.config(t))
	if _, err := m.WaitQR(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("WaitQR() error = %v", err)
	}
	if err := m.Authorize(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Authorize() error = %v", err)
	}
}
