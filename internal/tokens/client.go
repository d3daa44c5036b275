// Package tokens manages personal access tokens with an externally captured
// notify-bot web session (CSRF token plus cookie header).
package tokens

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/nezunotify/notifyctl/internal/auth/line"
	"github.com/nezunotify/notifyctl/internal/config"
	"github.com/nezunotify/notifyctl/internal/logging"
	"github.com/nezunotify/notifyctl/internal/misc"
	"github.com/nezunotify/notifyctl/internal/notify"
	"github.com/nezunotify/notifyctl/internal/transport"
	"github.com/nezunotify/notifyctl/internal/util"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	// MaxBatch caps CreateMultiple.
	MaxBatch = 100
	// DefaultDescription names tokens created without a description.
	DefaultDescription = "notifyctl"

	tokenPrefix = "token_"
)

// ErrMissingSession is returned when the client has no CSRF token or cookie.
var ErrMissingSession = errors.New("tokens: csrf token and cookie are required")

// RevokeOutcome classifies one revoke call.
type RevokeOutcome string

const (
	Revoked        RevokeOutcome = "Revoked"
	AlreadyRevoked RevokeOutcome = "AlreadyRevoked"
	Unexpected     RevokeOutcome = "Unexpected"
	TransportError RevokeOutcome = "TransportError"
)

// Status classifies a token by the status API's answer.
type Status string

const (
	StatusOK      Status = "OK"
	StatusBlocked Status = "Blocked"
	StatusWaiting Status = "Waiting"
	StatusError   Status = "Error"
)

// Options configures a Client.
type Options struct {
	// NotifyBotURL and NotifyAPIURL override the production hosts.
	NotifyBotURL string
	NotifyAPIURL string
	SDK          *config.SDKConfig
	HTTPClient   *http.Client
}

// Client creates, revokes and checks tokens. Batch operations run sequentially
// and never retry.
type Client struct {
	csrf      string
	cookie    string
	notifyBot string
	notifyAPI string
	client    *transport.Client
}

// NewClient creates a token client for the given web session.
func NewClient(csrf, cookie string, opts Options) *Client {
	bot := strings.TrimRight(strings.TrimSpace(opts.NotifyBotURL), "/")
	if bot == "" {
		bot = line.NotifyBotHost
	}
	api := strings.TrimRight(strings.TrimSpace(opts.NotifyAPIURL), "/")
	if api == "" {
		api = notify.APIHost
	}
	clientOpts := transport.Options{Browser: true, Timeout: opts.SDK.Timeout()}
	var client *transport.Client
	if opts.HTTPClient != nil {
		client = transport.NewClientWithHTTP(opts.HTTPClient, clientOpts)
	} else {
		client = transport.NewClient(opts.SDK, clientOpts)
	}
	return &Client{
		csrf:      strings.TrimSpace(csrf),
		cookie:    strings.TrimSpace(cookie),
		notifyBot: bot,
		notifyAPI: api,
		client:    client,
	}
}

// Create issues one token for targetMid ("USER" or empty for the user).
// A 200 without a token logs a warning and returns "".
func (c *Client) Create(ctx context.Context, targetMid, description string) (string, error) {
	if c.csrf == "" || c.cookie == "" {
		return "", ErrMissingSession
	}
	if strings.TrimSpace(description) == "" {
		description = DefaultDescription
	}
	target := line.TargetForMid(targetMid)
	entry := logging.FromContext(ctx).WithField("target", target.Mid)

	req, err := transport.NewFormRequest(ctx, c.notifyBot+"/my/personalAccessToken", line.IssueTokenForm(description, c.csrf, target), c.sessionHeader())
	if err != nil {
		return "", err
	}
	resp, err := c.client.Fetch(req)
	if err != nil {
		return "", &line.IssueTokenError{Cause: err}
	}
	token := strings.TrimSpace(gjson.GetBytes(resp.Body, "token").String())
	if token == "" {
		entry.Warnf("issue token returned %d without a token", resp.StatusCode)
		return "", nil
	}
	return token, nil
}

// CreateMultiple issues up to count tokens (capped at MaxBatch) and returns
// the ones that look like tokens. Failures are logged and skipped. A count of
// zero or less issues nothing.
func (c *Client) CreateMultiple(ctx context.Context, targetMid string, count int, description string) []string {
	if count <= 0 {
		return []string{}
	}
	if count > MaxBatch {
		log.Warnf("requested %d tokens, creating %d", count, MaxBatch)
		count = MaxBatch
	}
	created := make([]string, 0, count)
	for i := 0; i < count; i++ {
		token, err := c.Create(ctx, targetMid, description)
		if err != nil {
			log.WithError(err).Warnf("token %d/%d failed", i+1, count)
			continue
		}
		if !strings.HasPrefix(token, tokenPrefix) {
			log.Warnf("token %d/%d has unexpected format, skipped", i+1, count)
			continue
		}
		created = append(created, token)
	}
	return created
}

// Revoke revokes token through the notify API.
func (c *Client) Revoke(ctx context.Context, token string) RevokeOutcome {
	req, err := transport.NewFormRequest(ctx, c.notifyAPI+"/api/revoke", url.Values{}, bearer(token))
	if err != nil {
		log.WithError(err).Error("build revoke request")
		return TransportError
	}
	resp, err := c.client.Send(req)
	if err != nil {
		log.WithError(err).Errorf("revoke %s failed", util.HideSecret(token))
		return TransportError
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return Revoked
	case http.StatusUnauthorized:
		return AlreadyRevoked
	default:
		log.Warnf("revoke %s: unexpected status %d", util.HideSecret(token), resp.StatusCode)
		return Unexpected
	}
}

// RevokeAll revokes tokens one by one. ok is true only if every token was revoked.
func (c *Client) RevokeAll(ctx context.Context, tokens []string) (map[string]RevokeOutcome, bool) {
	outcomes := make(map[string]RevokeOutcome, len(tokens))
	ok := true
	for _, token := range tokens {
		if _, seen := outcomes[token]; seen {
			continue
		}
		outcome := c.Revoke(ctx, token)
		outcomes[token] = outcome
		if outcome != Revoked {
			ok = false
		}
	}
	return outcomes, ok
}

// CheckStatus asks the status API about token.
func (c *Client) CheckStatus(ctx context.Context, token string) Status {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.notifyAPI+"/api/status", nil)
	if err != nil {
		return StatusError
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.client.Send(req)
	if err != nil {
		log.WithError(err).Errorf("status check for %s failed", util.HideSecret(token))
		return StatusError
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return StatusOK
	case http.StatusUnauthorized:
		return StatusBlocked
	default:
		log.Warnf("status check for %s: unexpected status %d", util.HideSecret(token), resp.StatusCode)
		return StatusWaiting
	}
}

// CheckStatuses checks each distinct token once. No tokens yields an empty map.
func (c *Client) CheckStatuses(ctx context.Context, tokens []string) map[string]Status {
	statuses := make(map[string]Status, len(tokens))
	if len(tokens) == 0 {
		log.Warn("no tokens to check")
		return statuses
	}
	for _, token := range tokens {
		if _, seen := statuses[token]; seen {
			continue
		}
		statuses[token] = c.CheckStatus(ctx, token)
	}
	return statuses
}

// Groups returns the first page of the group list.
func (c *Client) Groups(ctx context.Context) ([]line.Group, error) {
	if c.csrf == "" || c.cookie == "" {
		return nil, ErrMissingSession
	}
	header := c.sessionHeader()
	resp, err := c.client.Get(ctx, c.notifyBot+"/api/groupList", url.Values{"page": {"1"}}, header)
	if err != nil {
		return nil, &line.GetGroupListError{Page: 1, Cause: err}
	}
	res, err := line.ParseGroupList(resp.StatusCode, resp.URL.String(), resp.Body)
	if err != nil {
		return nil, &line.GetGroupListError{Page: 1, Cause: err}
	}
	return res.Results, nil
}

func (c *Client) sessionHeader() http.Header {
	header := http.Header{}
	misc.ApplyXHRHeaders(header, c.notifyBot+"/my")
	header.Set("X-CSRF-Token", c.csrf)
	header.Set("Cookie", c.cookie)
	return header
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": {"Bearer " + token}}
}
