// Package notify sends LINE Notify messages with a personal access token.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nezunotify/notifyctl/internal/config"
	"github.com/nezunotify/notifyctl/internal/logging"
	"github.com/nezunotify/notifyctl/internal/transport"
	"github.com/nezunotify/notifyctl/internal/util"
	"github.com/tidwall/gjson"
)

// APIHost is the official notify API.
const APIHost = "https://notify-api.line.me"

// Message is one notification. Text is required; at most one image source
// should be set; sticker ids must be given together.
type Message struct {
	Text                 string
	ImageURL             string
	ImageFile            string
	StickerPackageID     int
	StickerID            int
	NotificationDisabled bool
}

// Status is the token's target and rate limit state reported by /api/status.
type Status struct {
	TargetType     string
	Target         string
	Limit          int
	Remaining      int
	ImageLimit     int
	ImageRemaining int
	Reset          time.Time
}

// Options configures a Client.
type Options struct {
	// BaseURL overrides APIHost.
	BaseURL string
	// SDK supplies proxy and timeout settings.
	SDK *config.SDKConfig
	// HTTPClient replaces the client built from SDK.
	HTTPClient *http.Client
}

// Client sends notifications with one bearer token. It holds no other state.
type Client struct {
	token   string
	baseURL string
	client  *transport.Client
}

// NewClient creates a notify client for token.
func NewClient(token string, opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = APIHost
	}
	var client *transport.Client
	if opts.HTTPClient != nil {
		client = transport.NewClientWithHTTP(opts.HTTPClient, transport.Options{Timeout: opts.SDK.Timeout()})
	} else {
		client = transport.NewClient(opts.SDK, transport.Options{})
	}
	return &Client{token: strings.TrimSpace(token), baseURL: baseURL, client: client}
}

// SendMessage sends a text notification.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	return c.Send(ctx, Message{Text: text})
}

// SendImageURL sends text with a remote image used as both thumbnail and full size.
func (c *Client) SendImageURL(ctx context.Context, text, imageURL string) error {
	return c.Send(ctx, Message{Text: text, ImageURL: imageURL})
}

// SendImageFile uploads a local image with text.
func (c *Client) SendImageFile(ctx context.Context, text, path string) error {
	return c.Send(ctx, Message{Text: text, ImageFile: path})
}

// SendSticker sends text with a sticker.
func (c *Client) SendSticker(ctx context.Context, text string, packageID, stickerID int) error {
	if packageID == 0 || stickerID == 0 {
		return ErrStickerPair
	}
	return c.Send(ctx, Message{Text: text, StickerPackageID: packageID, StickerID: stickerID})
}

// Validate checks a message without touching the network.
func (m Message) Validate() error {
	if strings.TrimSpace(m.Text) == "" {
		return ErrEmptyMessage
	}
	if (m.StickerPackageID == 0) != (m.StickerID == 0) {
		return ErrStickerPair
	}
	if m.ImageFile != "" {
		info, err := os.Stat(m.ImageFile)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("%w: %s", ErrImageNotFound, m.ImageFile)
			}
			return fmt.Errorf("stat image: %w", err)
		}
		if info.IsDir() {
			return fmt.Errorf("%w: %s is a directory", ErrImageNotFound, m.ImageFile)
		}
	}
	return nil
}

// Send validates and posts a message to /api/notify.
func (c *Client) Send(ctx context.Context, m Message) error {
	if c.token == "" {
		return ErrEmptyToken
	}
	if err := m.Validate(); err != nil {
		return err
	}

	fields := url.Values{"message": {m.Text}}
	if m.ImageURL != "" {
		fields.Set("imageThumbnail", m.ImageURL)
		fields.Set("imageFullsize", m.ImageURL)
	}
	if m.StickerPackageID != 0 {
		fields.Set("stickerPackageId", strconv.Itoa(m.StickerPackageID))
		fields.Set("stickerId", strconv.Itoa(m.StickerID))
	}
	if m.NotificationDisabled {
		fields.Set("notificationDisabled", "true")
	}

	endpoint := c.baseURL + "/api/notify"
	var (
		req *http.Request
		err error
	)
	if m.ImageFile != "" {
		req, err = transport.NewMultipartRequest(ctx, endpoint, fields, "imageFile", m.ImageFile, c.authHeader())
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrImageNotFound, m.ImageFile)
		}
	} else {
		req, err = transport.NewFormRequest(ctx, endpoint, fields, c.authHeader())
	}
	if err != nil {
		return err
	}

	resp, err := c.client.Fetch(req)
	if err != nil {
		return c.classify(resp, err)
	}
	logging.FromContext(ctx).WithField("status", resp.StatusCode).Debugf("notification sent (%s)", gjson.GetBytes(resp.Body, "message").String())
	return nil
}

// Status reports the token's target and rate limits.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	if c.token == "" {
		return nil, ErrEmptyToken
	}
	resp, err := c.client.Get(ctx, c.baseURL+"/api/status", nil, c.authHeader())
	if err != nil {
		return nil, c.classify(resp, err)
	}
	status := &Status{
		TargetType:     gjson.GetBytes(resp.Body, "targetType").String(),
		Target:         gjson.GetBytes(resp.Body, "target").String(),
		Limit:          headerInt(resp.Header, "X-RateLimit-Limit"),
		Remaining:      headerInt(resp.Header, "X-RateLimit-Remaining"),
		ImageLimit:     headerInt(resp.Header, "X-RateLimit-ImageLimit"),
		ImageRemaining: headerInt(resp.Header, "X-RateLimit-ImageRemaining"),
		Reset:          headerTime(resp.Header, "X-RateLimit-Reset"),
	}
	return status, nil
}

// Revoke invalidates the client's own token.
func (c *Client) Revoke(ctx context.Context) error {
	if c.token == "" {
		return ErrEmptyToken
	}
	req, err := transport.NewFormRequest(ctx, c.baseURL+"/api/revoke", url.Values{}, c.authHeader())
	if err != nil {
		return err
	}
	resp, err := c.client.Fetch(req)
	if err != nil {
		return c.classify(resp, err)
	}
	logging.FromContext(ctx).Infof("token %s revoked", util.HideSecret(c.token))
	return nil
}

func (c *Client) authHeader() http.Header {
	return http.Header{"Authorization": {"Bearer " + c.token}}
}

func (c *Client) classify(resp *transport.Response, err error) error {
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{
			Limit: headerInt(resp.Header, "X-RateLimit-Limit"),
			Reset: headerTime(resp.Header, "X-RateLimit-Reset"),
			Cause: err,
		}
	}
	return err
}

func headerInt(h http.Header, key string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(h.Get(key)))
	return n
}

func headerTime(h http.Header, key string) time.Time {
	epoch, err := strconv.ParseInt(strings.TrimSpace(h.Get(key)), 10, 64)
	if err != nil || epoch <= 0 {
		return time.Time{}
	}
	return time.Unix(epoch, 0)
}
