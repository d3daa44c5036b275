package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/nezunotify/notifyctl/internal/auth/line"
	"github.com/nezunotify/notifyctl/internal/browser"
	"github.com/nezunotify/notifyctl/internal/config"
	"github.com/nezunotify/notifyctl/internal/console"
	"github.com/nezunotify/notifyctl/internal/logging"
	"github.com/nezunotify/notifyctl/internal/misc"
	"github.com/nezunotify/notifyctl/internal/tokens"
	"github.com/nezunotify/notifyctl/internal/util"
	log "github.com/sirupsen/logrus"
)

func sessionOptions(cfg *config.Config, options *Options) line.Options {
	if options == nil {
		options = &Options{}
	}
	opts := line.Options{
		Config:     cfg,
		Endpoints:  options.Endpoints,
		HTTPClient: options.HTTPClient,
		Out:        options.out(),
		OpenImage:  browser.Open,
		OnPIN: func(pin string) {
			if options.copyToClipboard("PIN", pin) {
				_, _ = fmt.Fprintln(options.out(), console.Muted("PIN copied to clipboard"))
			}
		},
	}
	if options.Mirror != nil {
		opts.Mirror = options.Mirror
	}
	return opts
}

// DoLogin performs a fresh QR login for the configured session and saves its cookies.
func DoLogin(ctx context.Context, cfg *config.Config, options *Options) error {
	ctx = logging.EnsureRequestID(ctx)
	misc.LogCredentialSeparator()
	defer misc.LogCredentialSeparator()

	manager, err := line.New(sessionOptions(cfg, options))
	if err != nil {
		return err
	}
	if err = manager.Login(ctx); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	out := options.out()
	_, _ = fmt.Fprintln(out, console.Success("LINE Notify login successful"))
	_, _ = fmt.Fprintln(out, console.KeyValue("Session", cfg.SessionName))
	_, _ = fmt.Fprintln(out, console.KeyValue("Cookies", strings.Join(manager.Cookies().Names(), ", ")))
	misc.PrintSavedCredentials(manager.Store().CookiePath())
	return nil
}

// DoGroups lists the groups reachable from the session, logging in first when
// needed. A configured csrf/cookie pair is used instead of the stored session
// and only reads the first page.
func DoGroups(ctx context.Context, cfg *config.Config, options *Options) ([]line.Group, error) {
	ctx = logging.EnsureRequestID(ctx)
	var (
		groups []line.Group
		err    error
	)
	if client := tokenClient(cfg, options); client != nil {
		groups, err = client.Groups(ctx)
	} else {
		var manager *line.SessionManager
		if manager, err = line.NewSessionManager(ctx, sessionOptions(cfg, options)); err != nil {
			return nil, err
		}
		groups, err = manager.GetGroupList(ctx)
	}
	if err != nil {
		return nil, err
	}
	out := options.out()
	_, _ = fmt.Fprintln(out, console.Title(fmt.Sprintf("%d groups", len(groups))))
	for _, g := range groups {
		_, _ = fmt.Fprintln(out, console.KeyValue(g.Name, g.Mid))
	}
	return groups, nil
}

// DoIssue issues a token through the logged-in session for targetMid ("USER"
// or a group mid) and records it in the token book.
func DoIssue(ctx context.Context, cfg *config.Config, options *Options, targetMid, description string) (string, error) {
	ctx = logging.EnsureRequestID(ctx)
	if strings.TrimSpace(description) == "" {
		description = tokens.DefaultDescription
	}
	target := line.TargetForMid(targetMid)
	if err := target.Validate(); err != nil {
		return "", err
	}

	manager, err := line.NewSessionManager(ctx, sessionOptions(cfg, options))
	if err != nil {
		return "", err
	}
	if target.Type == line.TargetGroup {
		if _, err = manager.GroupByMid(ctx, target.Mid); err != nil {
			return "", err
		}
	}
	token, err := manager.IssueToken(ctx, description, target)
	if err != nil {
		return "", err
	}
	if err = recordTokens(cfg, target.Mid, description, token); err != nil {
		log.WithError(err).Warn("issued token was not saved to the token book")
	}

	out := options.out()
	_, _ = fmt.Fprintln(out, console.Success("token issued"))
	_, _ = fmt.Fprintln(out, console.KeyValue("Target", target.Mid))
	_, _ = fmt.Fprintln(out, console.KeyValue("Token", token))
	if options.copyToClipboard("token", token) {
		_, _ = fmt.Fprintln(out, console.Muted("token copied to clipboard"))
	}
	log.Debugf("issued token %s for %s", util.HideSecret(token), target.Mid)
	return token, nil
}

// recordTokens adds issued tokens to the book under mid.
func recordTokens(cfg *config.Config, mid, description string, issued ...string) error {
	if len(issued) == 0 {
		return nil
	}
	book, err := tokens.LoadBook(cfg.TokensFile)
	if err != nil {
		return err
	}
	for _, token := range issued {
		book.Add(mid, tokenName(description, token), token)
	}
	if err = book.Save(); err != nil {
		return err
	}
	log.Debugf("%d tokens for %s saved to %s", len(issued), mid, book.Path())
	return nil
}

// tokenName keys a book entry by description plus the token's tail so
// repeated issues with one description do not overwrite each other.
func tokenName(description, token string) string {
	tail := token
	if len(tail) > 6 {
		tail = tail[len(tail)-6:]
	}
	return description + "-" + tail
}
