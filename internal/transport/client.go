// Package transport provides the HTTP plumbing shared by the LINE clients:
// proxy-aware clients, an exportable cookie jar, browser-like headers,
// response decompression and a single transport error type.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nezunotify/notifyctl/internal/config"
	"github.com/nezunotify/notifyctl/internal/misc"
	"github.com/nezunotify/notifyctl/internal/util"
	log "github.com/sirupsen/logrus"
)

// Options tunes a Client.
type Options struct {
	// CookieSeeds enables a session cookie jar; restored cookies are attached to these base URLs.
	CookieSeeds []string
	// Browser sends browser-like headers and honours the tls-fingerprint setting.
	Browser bool
	// Timeout bounds requests whose context carries no deadline. Zero uses the config value.
	Timeout time.Duration
}

// Response is a fully read, decompressed HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	// URL is the final URL after redirects.
	URL  *url.URL
	Body []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Client wraps an http.Client with the session behaviour the LINE endpoints expect.
type Client struct {
	httpClient *http.Client
	jar        *Jar
	browser    bool
	userAgent  string
	timeout    time.Duration
}

// NewClient builds a client from the SDK configuration.
func NewClient(cfg *config.SDKConfig, opts Options) *Client {
	httpClient := util.SetProxy(cfg, &http.Client{})
	if opts.Browser {
		if rt := browserTransport(cfg); rt != nil {
			httpClient.Transport = rt
		}
	}
	c := &Client{
		httpClient: httpClient,
		browser:    opts.Browser,
		timeout:    opts.Timeout,
	}
	if c.timeout <= 0 {
		c.timeout = cfg.Timeout()
	}
	if cfg != nil {
		c.userAgent = cfg.UserAgent
	}
	if len(opts.CookieSeeds) > 0 {
		c.jar = NewJar(opts.CookieSeeds...)
		httpClient.Jar = c.jar
	}
	return c
}

// NewClientWithHTTP wraps an existing http.Client, typically one pointed at a test server.
func NewClientWithHTTP(httpClient *http.Client, opts Options) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	c := &Client{httpClient: httpClient, browser: opts.Browser, timeout: opts.Timeout}
	if c.timeout <= 0 {
		c.timeout = config.DefaultRequestTimeout
	}
	if len(opts.CookieSeeds) > 0 {
		c.jar = NewJar(opts.CookieSeeds...)
		httpClient.Jar = c.jar
	}
	return c
}

// Jar returns the session cookie jar, or nil when the client is stateless.
func (c *Client) Jar() *Jar {
	return c.jar
}

// Send performs the request and reads the whole body. Only network failures
// are returned as errors; any HTTP status is handed back to the caller.
func (c *Client) Send(req *http.Request) (*Response, error) {
	if c.browser {
		misc.ApplyBrowserHeaders(req.Header, c.userAgent)
	}
	if _, hasDeadline := req.Context().Deadline(); !hasDeadline && c.timeout > 0 {
		ctx, cancel := context.WithTimeout(req.Context(), c.timeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	target := redactURL(req.URL)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debugf("%s %s failed: %v", req.Method, target, err)
		return nil, &Error{Method: req.Method, URL: target, Cause: err}
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("response body close error: %v", errClose)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Method: req.Method, URL: target, Cause: fmt.Errorf("read body: %w", err)}
	}
	body, err := decodeBody(resp.Header.Get("Content-Encoding"), raw)
	if err != nil {
		return nil, &Error{Method: req.Method, URL: target, StatusCode: resp.StatusCode, Cause: err}
	}

	finalURL := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}
	log.Debugf("%s %s -> %d (%d bytes)", req.Method, target, resp.StatusCode, len(body))

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		URL:        finalURL,
		Body:       body,
	}, nil
}

// Fetch is Send plus a status check: non-2xx responses become *Error.
func (c *Client) Fetch(req *http.Request) (*Response, error) {
	resp, err := c.Send(req)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return resp, &Error{
			Method:     req.Method,
			URL:        redactURL(resp.URL),
			StatusCode: resp.StatusCode,
			Body:       resp.Body,
		}
	}
	return resp, nil
}

// Get issues a GET with optional query parameters and headers and requires a 2xx.
func (c *Client) Get(ctx context.Context, rawURL string, query url.Values, header http.Header) (*Response, error) {
	target, err := withQuery(rawURL, query)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	copyHeader(req.Header, header)
	return c.Fetch(req)
}

// PostForm issues a url-encoded POST and requires a 2xx.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, header http.Header) (*Response, error) {
	req, err := NewFormRequest(ctx, rawURL, form, header)
	if err != nil {
		return nil, err
	}
	return c.Fetch(req)
}

// NewFormRequest builds a url-encoded POST request.
func NewFormRequest(ctx context.Context, rawURL string, form url.Values, header http.Header) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	copyHeader(req.Header, header)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

// NewMultipartRequest builds a multipart POST with plain fields and one file part.
// The file is read up front so a missing file fails before any network activity.
func NewMultipartRequest(ctx context.Context, rawURL string, fields url.Values, fileField, filePath string, header http.Header) (*http.Request, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filePath, err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, values := range fields {
		for _, value := range values {
			if err = writer.WriteField(key, value); err != nil {
				return nil, fmt.Errorf("write field %s: %w", key, err)
			}
		}
	}
	part, err := writer.CreateFormFile(fileField, filepath.Base(filePath))
	if err != nil {
		return nil, fmt.Errorf("create file part: %w", err)
	}
	if _, err = part.Write(data); err != nil {
		return nil, fmt.Errorf("write file part: %w", err)
	}
	if err = writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	copyHeader(req.Header, header)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}

func withQuery(rawURL string, query url.Values) (string, error) {
	if len(query) == 0 {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	merged := u.Query()
	for key, values := range query {
		merged.Del(key)
		for _, value := range values {
			merged.Add(key, value)
		}
	}
	u.RawQuery = merged.Encode()
	return u.String(), nil
}

func copyHeader(dst, src http.Header) {
	for key, values := range src {
		dst.Del(key)
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

func redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	clone := *u
	clone.RawQuery = util.MaskSensitiveQuery(u.RawQuery)
	return clone.String()
}
