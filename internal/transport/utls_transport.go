package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/nezunotify/notifyctl/internal/config"
	"github.com/nezunotify/notifyctl/internal/util"
	tls "github.com/refraction-networking/utls"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/proxy"
)

// utlsRoundTripper implements http.RoundTripper using utls with a browser fingerprint,
// so the unofficial web endpoints see the same TLS hello as the browser headers claim.
type utlsRoundTripper struct {
	// mu protects the connections map and pending map
	mu sync.Mutex
	// connections caches HTTP/2 client connections per host
	connections map[string]*http2.ClientConn
	// pending tracks hosts that are currently being connected to
	pending map[string]*sync.Cond
	dialer  proxy.Dialer
	hello   tls.ClientHelloID
	// plain carries http:// requests over the same dialer.
	plain *http.Transport
}

// helloForFingerprint maps the configured fingerprint name to a utls hello.
func helloForFingerprint(name string) (tls.ClientHelloID, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "chrome":
		return tls.HelloChrome_Auto, true
	case "firefox":
		return tls.HelloFirefox_Auto, true
	case "safari":
		return tls.HelloSafari_Auto, true
	default:
		return tls.ClientHelloID{}, false
	}
}

func newUtlsRoundTripper(cfg *config.SDKConfig, hello tls.ClientHelloID) *utlsRoundTripper {
	dialer := util.ProxyDialer(cfg)
	return &utlsRoundTripper{
		connections: make(map[string]*http2.ClientConn),
		pending:     make(map[string]*sync.Cond),
		dialer:      dialer,
		hello:       hello,
		plain: &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			},
		},
	}
}

// getOrCreateConnection gets an existing connection or creates a new one,
// letting only one goroutine dial a given host at a time.
func (t *utlsRoundTripper) getOrCreateConnection(host, addr string) (*http2.ClientConn, error) {
	t.mu.Lock()

	if h2Conn, ok := t.connections[host]; ok && h2Conn.CanTakeNewRequest() {
		t.mu.Unlock()
		return h2Conn, nil
	}

	if cond, ok := t.pending[host]; ok {
		cond.Wait()
		if h2Conn, ok := t.connections[host]; ok && h2Conn.CanTakeNewRequest() {
			t.mu.Unlock()
			return h2Conn, nil
		}
	}

	cond := sync.NewCond(&t.mu)
	t.pending[host] = cond
	t.mu.Unlock()

	h2Conn, err := t.createConnection(host, addr)

	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.pending, host)
	cond.Broadcast()

	if err != nil {
		return nil, err
	}

	t.connections[host] = h2Conn
	return h2Conn, nil
}

func (t *utlsRoundTripper) createConnection(host, addr string) (*http2.ClientConn, error) {
	conn, err := t.dialer.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{ServerName: host, NextProtos: []string{"h2"}}
	tlsConn := tls.UClient(conn, tlsConfig, t.hello)

	if err = tlsConn.Handshake(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if proto := tlsConn.ConnectionState().NegotiatedProtocol; proto != "h2" {
		_ = tlsConn.Close()
		return nil, fmt.Errorf("utls: %s negotiated %q instead of h2", host, proto)
	}

	tr := &http2.Transport{}
	h2Conn, err := tr.NewClientConn(tlsConn)
	if err != nil {
		_ = tlsConn.Close()
		return nil, err
	}

	return h2Conn, nil
}

// RoundTrip implements http.RoundTripper. Plain http URLs bypass utls.
func (t *utlsRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return t.plain.RoundTrip(req)
	}
	host := req.URL.Host
	addr := host
	if !strings.Contains(addr, ":") {
		addr += ":443"
	}

	hostname := req.URL.Hostname()

	h2Conn, err := t.getOrCreateConnection(hostname, addr)
	if err != nil {
		return nil, err
	}

	resp, err := h2Conn.RoundTrip(req)
	if err != nil {
		t.mu.Lock()
		if cached, ok := t.connections[hostname]; ok && cached == h2Conn {
			delete(t.connections, hostname)
		}
		t.mu.Unlock()
		return nil, err
	}

	return resp, nil
}

// browserTransport returns a utls round tripper when a fingerprint is configured.
// It returns nil, leaving the proxy-aware default transport in place, when the
// fingerprint is unknown or the proxy cannot carry a raw TLS dial.
func browserTransport(cfg *config.SDKConfig) http.RoundTripper {
	if cfg == nil {
		return nil
	}
	hello, ok := helloForFingerprint(cfg.TLSFingerprint)
	if !ok {
		if strings.TrimSpace(cfg.TLSFingerprint) != "" {
			log.Warnf("unknown tls-fingerprint %q, using the default TLS stack", cfg.TLSFingerprint)
		}
		return nil
	}
	if err := checkFingerprintProxy(cfg.ProxyURL); err != nil {
		log.WithError(err).Warnf("tls-fingerprint %q ignored, requests use the default TLS stack through the proxy", cfg.TLSFingerprint)
		return nil
	}
	return newUtlsRoundTripper(cfg, hello)
}

// checkFingerprintProxy reports whether the utls dialer can honor proxyURL.
// Only socks5 proxies are dialed directly; anything else would be bypassed.
func checkFingerprintProxy(proxyURL string) error {
	proxyURL = strings.TrimSpace(proxyURL)
	if proxyURL == "" {
		return nil
	}
	u, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("parse proxy-url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "socks5", "socks5h":
		return nil
	default:
		return fmt.Errorf("tls-fingerprint supports only socks5 proxies, got %q", u.Scheme)
	}
}
