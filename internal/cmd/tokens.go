package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nezunotify/notifyctl/internal/config"
	"github.com/nezunotify/notifyctl/internal/console"
	"github.com/nezunotify/notifyctl/internal/tokens"
	log "github.com/sirupsen/logrus"
)

// DoCreate issues count tokens for targetMid with the externally captured
// csrf/cookie pair and records them in the token book. A count below one
// creates nothing.
func DoCreate(ctx context.Context, cfg *config.Config, options *Options, targetMid, description string, count int) ([]string, error) {
	req := Request{CSRF: cfg.CSRF, Cookie: cfg.Cookie, TargetMid: targetMid}
	var created []string
	if count == 1 {
		res, err := NewProcessor(cfg, req, options).Process(ctx, ActionCreate, description)
		if err != nil {
			return nil, err
		}
		if res.Token != "" {
			created = append(created, res.Token)
		}
	} else {
		if strings.TrimSpace(targetMid) == "" {
			return nil, fmt.Errorf("%w: target mid is required to create a token", ErrMissingInput)
		}
		client := tokenClient(cfg, options)
		if client == nil {
			return nil, tokens.ErrMissingSession
		}
		created = client.CreateMultiple(ctx, targetMid, count, description)
	}

	if description == "" {
		description = tokens.DefaultDescription
	}
	if err := recordTokens(cfg, targetMid, description, created...); err != nil {
		log.WithError(err).Warn("created tokens were not saved to the token book")
	}

	out := options.out()
	_, _ = fmt.Fprintln(out, console.Title(fmt.Sprintf("%d tokens created", len(created))))
	for _, token := range created {
		_, _ = fmt.Fprintln(out, token)
	}
	if len(created) == 1 && options.copyToClipboard("token", created[0]) {
		_, _ = fmt.Fprintln(out, console.Muted("token copied to clipboard"))
	}
	return created, nil
}

// DoRevoke revokes the given tokens, or every token in the book when none are
// given, and drops the revoked ones from the book.
func DoRevoke(ctx context.Context, cfg *config.Config, options *Options, list []string) (map[string]tokens.RevokeOutcome, error) {
	book, err := tokens.LoadBook(cfg.TokensFile)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		list = book.All()
	}
	res, err := NewProcessor(cfg, Request{CSRF: cfg.CSRF, Cookie: cfg.Cookie}, options).Process(ctx, ActionRevoke, list...)
	if err != nil {
		return nil, err
	}

	changed := false
	for token, outcome := range res.Revoked {
		if outcome == tokens.Revoked || outcome == tokens.AlreadyRevoked {
			changed = book.Remove(token) || changed
		}
	}
	if changed {
		if err = book.Save(); err != nil {
			log.WithError(err).Warn("token book was not updated")
		}
	}

	out := options.out()
	for _, token := range sortedKeys(res.Revoked) {
		_, _ = fmt.Fprintln(out, console.KeyValue(token, res.Revoked[token]))
	}
	if res.AllRevoked {
		_, _ = fmt.Fprintln(out, console.Success("all tokens revoked"))
	} else {
		_, _ = fmt.Fprintln(out, console.Warning("some tokens were not revoked"))
	}
	return res.Revoked, nil
}

// DoStatus checks the given tokens, or every token in the book when none are given.
func DoStatus(ctx context.Context, cfg *config.Config, options *Options, list []string) (map[string]tokens.Status, error) {
	if len(list) == 0 {
		book, err := tokens.LoadBook(cfg.TokensFile)
		if err != nil {
			return nil, err
		}
		list = book.All()
	}
	res, err := NewProcessor(cfg, Request{CSRF: cfg.CSRF, Cookie: cfg.Cookie}, options).Process(ctx, ActionCheck, list...)
	if err != nil {
		return nil, err
	}
	out := options.out()
	for _, token := range sortedKeys(res.Statuses) {
		_, _ = fmt.Fprintln(out, console.KeyValue(token, res.Statuses[token]))
	}
	return res.Statuses, nil
}

func tokenClient(cfg *config.Config, options *Options) *tokens.Client {
	p := NewProcessor(cfg, Request{CSRF: cfg.CSRF, Cookie: cfg.Cookie}, options)
	return p.tokens
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
