package line

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/nezunotify/notifyctl/internal/misc"
	"github.com/nezunotify/notifyctl/internal/util"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"
)

const (
	cookieFileName = "cookie.json"
	certFileName   = "cert.json"
)

// certCookieNames are kept in cert.json so a retried QR login can resume at the PIN stage.
var certCookieNames = []string{"cert", "qrPinCert"}

// Mirror receives every session file the store writes.
type Mirror interface {
	PersistSessionFiles(ctx context.Context, paths ...string) error
}

// CookieStore reads and writes one named session's cookie.json and cert.json.
// Files are rewritten whole; concurrent writers can lose updates.
type CookieStore struct {
	dir    string
	mirror Mirror
}

// NewCookieStore prepares <sessionDir>/<name>. A nil mirror keeps files local.
func NewCookieStore(sessionDir, name string, mirror Mirror) (*CookieStore, error) {
	root, err := util.ResolveDir(sessionDir)
	if err != nil {
		return nil, fmt.Errorf("resolve session directory: %w", err)
	}
	dir := filepath.Join(root, name)
	if err = os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	return &CookieStore{dir: dir, mirror: mirror}, nil
}

// Dir is the session directory.
func (s *CookieStore) Dir() string { return s.dir }

// CookiePath is the full cookie jar file.
func (s *CookieStore) CookiePath() string { return filepath.Join(s.dir, cookieFileName) }

// CertPath is the PIN-resume cookie subset file.
func (s *CookieStore) CertPath() string { return filepath.Join(s.dir, certFileName) }

// LoadCookies reads cookie.json. ok is false when the file does not exist.
func (s *CookieStore) LoadCookies() (cookies Cookies, ok bool, err error) {
	return readCookieFile(s.CookiePath())
}

// SaveCookies replaces cookie.json with cookies and pushes it to the mirror.
func (s *CookieStore) SaveCookies(ctx context.Context, cookies Cookies) error {
	if cookies == nil {
		cookies = Cookies{}
	}
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cookies: %w", err)
	}
	return s.write(ctx, s.CookiePath(), data)
}

// LoadCert reads cert.json, returning nil when it does not exist.
func (s *CookieStore) LoadCert() (Cookies, error) {
	cookies, _, err := readCookieFile(s.CertPath())
	return cookies, err
}

// SaveCert writes the cert/qrPinCert subset of cookies to cert.json.
func (s *CookieStore) SaveCert(ctx context.Context, cookies Cookies) error {
	data := []byte("{}")
	var err error
	for _, name := range certCookieNames {
		value, ok := cookies[name]
		if !ok {
			continue
		}
		if data, err = sjson.SetBytes(data, name, value); err != nil {
			return fmt.Errorf("build cert file: %w", err)
		}
	}
	return s.write(ctx, s.CertPath(), data)
}

func (s *CookieStore) write(ctx context.Context, path string, data []byte) error {
	misc.LogSavingCredentials(path)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	if s.mirror != nil {
		if err := s.mirror.PersistSessionFiles(ctx, path); err != nil {
			log.WithError(err).Warnf("failed to mirror %s", filepath.Base(path))
		}
	}
	return nil
}

func readCookieFile(path string) (Cookies, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	cookies := Cookies{}
	if len(data) == 0 {
		return cookies, true, nil
	}
	if err = json.Unmarshal(data, &cookies); err != nil {
		return nil, false, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return cookies, true, nil
}

// Names returns the cookie names in sorted order.
func (c Cookies) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
