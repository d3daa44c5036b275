package line

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nezunotify/notifyctl/internal/config"
	"github.com/nezunotify/notifyctl/internal/console"
	"github.com/nezunotify/notifyctl/internal/logging"
	"github.com/nezunotify/notifyctl/internal/misc"
	"github.com/nezunotify/notifyctl/internal/scrape"
	"github.com/nezunotify/notifyctl/internal/transport"
	log "github.com/sirupsen/logrus"
)

// loginCSRFField is the field name the login page publishes its CSRF token under.
const loginCSRFField = "__csrf"

// State is a step of the QR login handshake.
type State int

const (
	StateAnonymous State = iota
	StateQRIssued
	StatePINPending
	StateAuthorized
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateQRIssued:
		return "qr-issued"
	case StatePINPending:
		return "pin-pending"
	case StateAuthorized:
		return "authorized"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// QRSession is the in-flight QR login. It is discarded once the login ends.
type QRSession struct {
	Code         string
	ImagePath    string
	PINCode      string
	RedirectPath string
	ErrorCode    string
	Error        string
}

// Options configures a SessionManager.
type Options struct {
	Config *config.Config
	// Endpoints overrides the LINE hosts; zero values use production.
	Endpoints Endpoints
	// HTTPClient replaces the proxy/fingerprint-aware client built from Config.
	HTTPClient *http.Client
	// Mirror receives every session file written.
	Mirror Mirror
	// Out receives prompts and the countdown. Defaults to os.Stdout.
	Out io.Writer
	// OpenImage shows the downloaded QR image when open-qr is enabled.
	OpenImage func(path string) error
	// OnPIN is called with the PIN before the PIN wait starts.
	OnPIN func(pin string)
}

// SessionManager owns one notify-bot web session. Its cookie jar is the only
// authentication state; it is not safe for concurrent use.
type SessionManager struct {
	cfg       *config.Config
	endpoints Endpoints
	client    *transport.Client
	store     *CookieStore
	out       io.Writer
	openImage func(string) error
	onPIN     func(string)

	state       State
	qr          *QRSession
	loginParams url.Values
	loginCSRF   string
}

// New builds a SessionManager without touching the network.
func New(opts Options) (*SessionManager, error) {
	cfg := opts.Config
	if cfg == nil {
		var err error
		if cfg, err = config.LoadConfigOptional("", true); err != nil {
			return nil, err
		}
	}
	endpoints := opts.Endpoints.withDefaults()

	clientOpts := transport.Options{CookieSeeds: endpoints.Seeds(), Browser: true, Timeout: cfg.Timeout()}
	var client *transport.Client
	if opts.HTTPClient != nil {
		client = transport.NewClientWithHTTP(opts.HTTPClient, clientOpts)
	} else {
		client = transport.NewClient(&cfg.SDKConfig, clientOpts)
	}

	store, err := NewCookieStore(cfg.SessionDir, cfg.SessionName, opts.Mirror)
	if err != nil {
		return nil, err
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &SessionManager{
		cfg:       cfg,
		endpoints: endpoints,
		client:    client,
		store:     store,
		out:       out,
		openImage: opts.OpenImage,
		onPIN:     opts.OnPIN,
		state:     StateAnonymous,
	}, nil
}

// NewSessionManager builds a SessionManager and makes sure it holds a working session,
// reusing cookie.json when it still works and logging in otherwise.
func NewSessionManager(ctx context.Context, opts Options) (*SessionManager, error) {
	m, err := New(opts)
	if err != nil {
		return nil, err
	}
	if err = m.EnsureLogin(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// State returns the current login state.
func (m *SessionManager) State() State { return m.state }

// QR returns the in-flight QR login, or nil.
func (m *SessionManager) QR() *QRSession { return m.qr }

// Store returns the session's cookie store.
func (m *SessionManager) Store() *CookieStore { return m.store }

// Cookies returns a snapshot of the session cookie jar.
func (m *SessionManager) Cookies() Cookies {
	return Cookies(m.client.Jar().Snapshot())
}

// EnsureLogin restores cookie.json and checks it with a group listing. A check
// rejected by the server triggers a fresh login; network failures are returned.
func (m *SessionManager) EnsureLogin(ctx context.Context) error {
	entry := logging.FromContext(ctx).WithField("session", m.cfg.SessionName)

	cookies, ok, err := m.store.LoadCookies()
	if err != nil {
		return err
	}
	if ok {
		m.client.Jar().Update(cookies)
		_, errProbe := m.GetGroupList(ctx)
		if errProbe == nil {
			entry.Debug("stored session accepted")
			m.state = StateAuthorized
			return m.saveCookies(ctx)
		}
		if !sessionRejected(errProbe) {
			return errProbe
		}
		entry.WithError(errProbe).Info("stored session rejected, logging in again")
	}
	return m.Login(ctx)
}

// Login replaces the session with a fresh one and persists it.
func (m *SessionManager) Login(ctx context.Context) error {
	if strings.TrimSpace(m.cfg.Email) != "" && strings.TrimSpace(m.cfg.Password) != "" {
		return ErrEmailLoginUnsupported
	}
	if err := m.LoginWithQR(ctx); err != nil {
		return err
	}
	return m.saveCookies(ctx)
}

// LoginWithQR runs the whole QR handshake: QR image, scan wait, optional PIN
// wait and the final redirect.
func (m *SessionManager) LoginWithQR(ctx context.Context) error {
	if _, err := m.StartQR(ctx); err != nil {
		return err
	}
	next, err := m.WaitQR(ctx)
	if err != nil {
		return err
	}
	if next == StatePINPending {
		if _, err = m.WaitPIN(ctx); err != nil {
			return err
		}
	}
	return m.Authorize(ctx)
}

// StartQR clears the jar, opens the login page and downloads a new QR image.
func (m *SessionManager) StartQR(ctx context.Context) (*QRSession, error) {
	entry := logging.FromContext(ctx).WithField("stage", "qr-session")
	m.client.Jar().Clear()
	m.state = StateAnonymous
	m.qr = nil

	resp, err := m.client.Get(ctx, m.endpoints.Login(), nil, nil)
	if err != nil {
		return nil, m.fail(&QRLoginSessionError{Err: &AuthorizeError{Message: "open login page", Cause: err}})
	}
	params := resp.URL.Query()
	csrf, err := scrape.ExtractCSRF(resp.Body, loginCSRFField)
	if err != nil {
		return nil, m.fail(&QRLoginSessionError{Err: &AuthorizeError{Message: "login page", Cause: err}})
	}
	entry.Debugf("login params: %v", paramNames(params))

	qrParams := cloneValues(params)
	qrParams.Del("loginState")
	if channel, ok := qrParams["loginChannelId"]; ok {
		qrParams["channelId"] = channel
		qrParams.Del("loginChannelId")
	}

	header := http.Header{}
	misc.ApplyXHRHeaders(header, resp.URL.String())
	resp, err = m.client.Get(ctx, m.endpoints.QRSession(), qrParams, header)
	if err != nil {
		return nil, m.fail(&QRLoginSessionError{Err: &AuthorizeError{Message: "request qr session", Cause: err}})
	}
	var session QRSessionResponse
	if err = decodeStrict(resp.Body, &session, "qrCodePath"); err != nil {
		cause := newValidationError(resp.StatusCode, resp.URL.String(), resp.Body, err)
		return nil, m.fail(&QRLoginSessionError{Err: &AuthorizeError{Message: "qr session response", Cause: cause}})
	}

	imageURL, err := m.endpoints.ResolveAccess(session.QRCodePath)
	if err != nil {
		return nil, m.fail(&QRLoginSessionError{Err: &AuthorizeError{Message: "qr image path", Cause: err}})
	}
	image, err := m.client.Get(ctx, imageURL, nil, nil)
	if err != nil {
		return nil, m.fail(&QRLoginSessionError{Err: &AuthorizeError{Message: "download qr image", Cause: err}})
	}
	imagePath, err := m.writeQRImage(session.Code(), image.Body)
	if err != nil {
		return nil, m.fail(&QRLoginSessionError{Err: &AuthorizeError{Message: "save qr image", Cause: err}})
	}

	m.loginParams = params
	m.loginCSRF = csrf
	m.qr = &QRSession{Code: session.Code(), ImagePath: imagePath}
	m.state = StateQRIssued

	_, _ = fmt.Fprintln(m.out, console.Title("Please login with QR."))
	_, _ = fmt.Fprintln(m.out, console.KeyValue("QR code", imagePath))
	if m.cfg.OpenQR && m.openImage != nil {
		if errOpen := m.openImage(imagePath); errOpen != nil {
			entry.WithError(errOpen).Warn("failed to open qr image")
		}
	}
	return m.qr, nil
}

// WaitQR waits for the QR code to be scanned and returns the next state:
// StateAuthorized when a redirect arrived, StatePINPending when a PIN must be confirmed.
func (m *SessionManager) WaitQR(ctx context.Context) (State, error) {
	if m.state != StateQRIssued || m.qr == nil {
		return m.state, fmt.Errorf("%w: wait qr in %s", ErrInvalidState, m.state)
	}
	cert, err := m.store.LoadCert()
	if err != nil {
		log.WithError(err).Warn("ignoring unreadable cert file")
	} else if len(cert) > 0 {
		m.client.Jar().Update(cert)
	}

	res, waitErr := m.wait(ctx, m.endpoints.QRWait(), m.cfg.QRWait(), "QR limit")
	if waitErr != nil {
		return m.state, m.fail(&QRLoginWaitError{Err: waitErr})
	}
	m.qr.ErrorCode, m.qr.Error = res.ErrorCode, res.Error
	if res.Rejected() {
		return m.state, m.fail(&QRLoginWaitError{Err: &AuthorizeError{Code: res.ErrorCode, Message: res.Error}})
	}
	if res.RedirectPath != "" {
		m.qr.RedirectPath = res.RedirectPath
		m.state = StateAuthorized
		return m.state, nil
	}
	m.qr.PINCode = res.PINCode
	m.state = StatePINPending
	return m.state, nil
}

// WaitPIN shows the PIN and waits for it to be confirmed in the LINE app.
// The cert cookies are saved so a retried login can skip the PIN.
func (m *SessionManager) WaitPIN(ctx context.Context) (State, error) {
	if m.state != StatePINPending || m.qr == nil {
		return m.state, fmt.Errorf("%w: wait pin in %s", ErrInvalidState, m.state)
	}
	_, _ = fmt.Fprintln(m.out, console.PIN(m.qr.PINCode))
	if m.onPIN != nil {
		m.onPIN(m.qr.PINCode)
	}

	res, waitErr := m.wait(ctx, m.endpoints.PINWait(), m.cfg.PINWait(), "PIN limit")
	if waitErr != nil {
		return m.state, m.fail(&QRLoginPINWaitError{Err: waitErr})
	}
	if errSave := m.store.SaveCert(ctx, m.Cookies()); errSave != nil {
		log.WithError(errSave).Warn("failed to save cert cookies")
	}
	m.qr.ErrorCode, m.qr.Error = res.ErrorCode, res.Error
	if res.RedirectPath == "" {
		return m.state, m.fail(&QRLoginPINWaitError{Err: &AuthorizeError{Code: res.ErrorCode, Message: res.Error}})
	}
	m.qr.RedirectPath = res.RedirectPath
	m.state = StateAuthorized
	return m.state, nil
}

// Authorize follows the redirect returned by the handshake with the original
// login query plus the CSRF token. The jar then holds the session.
func (m *SessionManager) Authorize(ctx context.Context) error {
	if m.state != StateAuthorized || m.qr == nil || m.qr.RedirectPath == "" {
		return fmt.Errorf("%w: authorize in %s", ErrInvalidState, m.state)
	}
	target, err := m.endpoints.ResolveAccess(m.qr.RedirectPath)
	if err != nil {
		return m.fail(&AuthorizeError{Message: "redirect path", Cause: err})
	}
	params := cloneValues(m.loginParams)
	params.Set(loginCSRFField, m.loginCSRF)
	if _, err = m.client.Get(ctx, target, params, nil); err != nil {
		return m.fail(&AuthorizeError{Message: "final redirect", Cause: err})
	}
	logging.FromContext(ctx).WithField("session", m.cfg.SessionName).Info("login succeeded")
	m.qr = nil
	return nil
}

// wait issues one long poll bounded by limit and renders a countdown driven by the same context.
// The result is a *AuthorizeError so the stage errors can wrap it directly.
func (m *SessionManager) wait(ctx context.Context, endpoint string, limit time.Duration, label string) (WaitResponse, *AuthorizeError) {
	waitCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	countdown := console.StartCountdown(waitCtx, limit, label, m.out)
	header := http.Header{}
	misc.ApplyXHRHeaders(header, m.endpoints.Access+"/")
	resp, err := m.client.Get(waitCtx, endpoint, nil, header)
	countdown.Stop()

	if err != nil {
		if errors.Is(waitCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return WaitResponse{}, &AuthorizeError{Message: fmt.Sprintf("no response within %s", limit), Cause: fmt.Errorf("%w: %w", ErrWaitTimeout, err)}
		}
		return WaitResponse{}, &AuthorizeError{Message: "wait request", Cause: err}
	}
	res, err := decodeWait(resp.Body)
	if err != nil {
		return WaitResponse{}, &AuthorizeError{Message: "wait response", Cause: newValidationError(resp.StatusCode, resp.URL.String(), resp.Body, err)}
	}
	return res, nil
}

func (m *SessionManager) writeQRImage(code string, data []byte) (string, error) {
	dir := m.cfg.TmpDir
	if strings.TrimSpace(dir) == "" {
		dir = os.TempDir()
	}
	name := filepath.Base(code)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "qr"
	}
	imagePath := filepath.Join(dir, name+".png")
	if err := os.MkdirAll(filepath.Dir(imagePath), 0o700); err != nil {
		return "", err
	}
	if err := os.WriteFile(imagePath, data, 0o600); err != nil {
		return "", err
	}
	return imagePath, nil
}

func (m *SessionManager) saveCookies(ctx context.Context) error {
	if err := m.store.SaveCookies(ctx, m.Cookies()); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (m *SessionManager) fail(err error) error {
	m.state = StateFailed
	return err
}

// sessionRejected reports whether a session check failed because the server refused the
// session rather than because it could not be reached.
func sessionRejected(err error) bool {
	var groupErr *GetGroupListError
	if !errors.As(err, &groupErr) {
		return false
	}
	if IsValidationError(err) {
		return true
	}
	return transport.StatusCode(err) != 0
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for key, values := range v {
		out[key] = append([]string(nil), values...)
	}
	return out
}

func paramNames(v url.Values) []string {
	names := make([]string, 0, len(v))
	for key := range v {
		names = append(names, key)
	}
	return names
}
