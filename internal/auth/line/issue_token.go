package line

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/nezunotify/notifyctl/internal/logging"
	"github.com/nezunotify/notifyctl/internal/misc"
	"github.com/nezunotify/notifyctl/internal/scrape"
	"github.com/nezunotify/notifyctl/internal/transport"
)

// TargetType selects who receives the notifications sent with a token.
type TargetType string

const (
	TargetUser  TargetType = "USER"
	TargetGroup TargetType = "GROUP"

	issueTokenAction = "issuePersonalAccessToken"
	myPageCSRFField  = "_csrf"
)

// Target is the recipient of a personal access token: the user ("USER","USER")
// or one group ("GROUP", mid).
type Target struct {
	Type TargetType
	Mid  string
}

// UserTarget addresses the logged-in user's one-on-one chat.
func UserTarget() Target { return Target{Type: TargetUser, Mid: string(TargetUser)} }

// GroupTarget addresses a group.
func GroupTarget(g Group) Target { return Target{Type: TargetGroup, Mid: g.Mid} }

// TargetForMid maps "USER" (or "") to the user target and anything else to a group mid.
func TargetForMid(mid string) Target {
	mid = strings.TrimSpace(mid)
	if mid == "" || mid == string(TargetUser) {
		return UserTarget()
	}
	return Target{Type: TargetGroup, Mid: mid}
}

// Validate enforces that a target is exactly the user or one specific group.
func (t Target) Validate() error {
	switch t.Type {
	case TargetUser:
		if t.Mid != string(TargetUser) {
			return fmt.Errorf("%w: user target with mid %q", ErrInvalidTarget, t.Mid)
		}
	case TargetGroup:
		if strings.TrimSpace(t.Mid) == "" || t.Mid == string(TargetUser) {
			return fmt.Errorf("%w: group target needs a group mid", ErrInvalidTarget)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTarget, t.Type)
	}
	return nil
}

// IssueTokenForm builds the form posted to /my/personalAccessToken.
func IssueTokenForm(description, csrf string, target Target) url.Values {
	return url.Values{
		"action":      {issueTokenAction},
		"description": {description},
		"targetType":  {string(target.Type)},
		"targetMid":   {target.Mid},
		"_csrf":       {csrf},
	}
}

// ParseIssueToken validates an issue-token response.
func ParseIssueToken(statusCode int, rawURL string, body []byte) (string, error) {
	var res IssueTokenResponse
	if err := decodeStrict(body, &res, "token"); err != nil {
		return "", newValidationError(statusCode, rawURL, body, err)
	}
	return res.Token, nil
}

// IssueToken issues a personal access token named description for target.
// A fresh CSRF token is scraped from /my for every call.
func (m *SessionManager) IssueToken(ctx context.Context, description string, target Target) (string, error) {
	if err := target.Validate(); err != nil {
		return "", err
	}
	entry := logging.FromContext(ctx).WithField("stage", "issue-token").WithField("target", target.Mid)

	page, err := m.client.Get(ctx, m.endpoints.MyPage(), nil, nil)
	if err != nil {
		return "", &IssueTokenError{Cause: err}
	}
	csrf, err := scrape.ExtractCSRF(page.Body, myPageCSRFField)
	if err != nil {
		return "", &IssueTokenError{Cause: err}
	}

	header := http.Header{}
	misc.ApplyXHRHeaders(header, m.endpoints.MyPage())
	header.Set("Origin", m.endpoints.NotifyBot)
	req, err := transport.NewFormRequest(ctx, m.endpoints.IssueToken(), IssueTokenForm(description, csrf, target), header)
	if err != nil {
		return "", &IssueTokenError{Cause: err}
	}
	resp, err := m.client.Fetch(req)
	if err != nil {
		return "", &IssueTokenError{Cause: err}
	}
	token, err := ParseIssueToken(resp.StatusCode, resp.URL.String(), resp.Body)
	if err != nil {
		return "", &IssueTokenError{Cause: err}
	}
	entry.Info("token issued")

	if err = m.saveCookies(ctx); err != nil {
		entry.WithError(err).Warn("failed to persist session after issuing token")
	}
	return token, nil
}
