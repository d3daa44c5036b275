package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nezunotify/notifyctl/internal/config"
	"github.com/nezunotify/notifyctl/internal/logging"
	"github.com/nezunotify/notifyctl/internal/notify"
	"github.com/nezunotify/notifyctl/internal/tokens"
)

// Actions accepted by Processor.Process.
const (
	ActionCreate = "create"
	ActionRevoke = "revoke"
	ActionCheck  = "check"
	ActionSend   = "send"
)

// Message types accepted by the send action.
const (
	MessageText    = "text"
	MessageImage   = "image"
	MessageSticker = "sticker"

	imageCaption = "Sending image"
)

var (
	// ErrInvalidAction is returned for an action other than create, revoke, check or send.
	ErrInvalidAction = errors.New("invalid action: must be create, revoke, check or send")
	// ErrMissingInput is returned when an action lacks the data it needs.
	ErrMissingInput = errors.New("missing input")
	// ErrInvalidMessageType is returned for a message type other than text, image or sticker.
	ErrInvalidMessageType = errors.New("invalid message type: must be text, image or sticker")
)

// Request describes one dispatcher invocation: the web session for token
// management and the token and message for sending.
type Request struct {
	CSRF      string
	Cookie    string
	TargetMid string
	Token     string

	MessageType      string
	MessageContent   string
	StickerPackageID int
	StickerID        int
}

// Result holds whatever the action produced.
type Result struct {
	Token      string
	Revoked    map[string]tokens.RevokeOutcome
	AllRevoked bool
	Statuses   map[string]tokens.Status
	Message    string
}

// Processor dispatches the high-level actions over the token lifecycle and notify clients.
type Processor struct {
	req    Request
	tokens *tokens.Client
	notify *notify.Client
}

// NewProcessor wires the clients the request has credentials for.
func NewProcessor(cfg *config.Config, req Request, opts *Options) *Processor {
	if cfg == nil {
		cfg = &config.Config{}
	}
	var (
		httpClient *http.Client
		botURL     string
		apiURL     string
	)
	if opts != nil {
		httpClient = opts.HTTPClient
		botURL = opts.Endpoints.NotifyBot
		apiURL = opts.NotifyAPIURL
	}

	p := &Processor{req: req}
	if strings.TrimSpace(req.CSRF) != "" && strings.TrimSpace(req.Cookie) != "" {
		p.tokens = tokens.NewClient(req.CSRF, req.Cookie, tokens.Options{
			NotifyBotURL: botURL,
			NotifyAPIURL: apiURL,
			SDK:          &cfg.SDKConfig,
			HTTPClient:   httpClient,
		})
	}
	if strings.TrimSpace(req.Token) != "" {
		p.notify = notify.NewClient(req.Token, notify.Options{
			BaseURL:    apiURL,
			SDK:        &cfg.SDKConfig,
			HTTPClient: httpClient,
		})
	}
	return p
}

// Process validates action and its inputs, then runs it.
//   - create: data[0] is the optional description; needs CSRF, cookie and target mid.
//   - revoke: data lists the tokens to revoke.
//   - check: data lists the tokens to check.
//   - send: sends the request's message with its token; data is ignored.
func (p *Processor) Process(ctx context.Context, action string, data ...string) (*Result, error) {
	ctx = logging.EnsureRequestID(ctx)
	action = strings.ToLower(strings.TrimSpace(action))
	switch action {
	case ActionCreate, ActionRevoke, ActionCheck:
		if p.tokens == nil {
			return nil, tokens.ErrMissingSession
		}
	case ActionSend:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	switch action {
	case ActionCreate:
		return p.create(ctx, data)
	case ActionRevoke:
		return p.revoke(ctx, data)
	case ActionCheck:
		return p.check(ctx, data)
	default:
		return p.send(ctx)
	}
}

func (p *Processor) create(ctx context.Context, data []string) (*Result, error) {
	if strings.TrimSpace(p.req.TargetMid) == "" {
		return nil, fmt.Errorf("%w: target mid is required to create a token", ErrMissingInput)
	}
	description := tokens.DefaultDescription
	if len(data) > 0 && strings.TrimSpace(data[0]) != "" {
		description = data[0]
	}
	token, err := p.tokens.Create(ctx, p.req.TargetMid, description)
	if err != nil {
		return nil, err
	}
	return &Result{Token: token}, nil
}

func (p *Processor) revoke(ctx context.Context, data []string) (*Result, error) {
	list := nonEmpty(data)
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: a token is required for revocation", ErrMissingInput)
	}
	outcomes, all := p.tokens.RevokeAll(ctx, list)
	return &Result{Revoked: outcomes, AllRevoked: all}, nil
}

func (p *Processor) check(ctx context.Context, data []string) (*Result, error) {
	list := nonEmpty(data)
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: a token is required to check the status", ErrMissingInput)
	}
	return &Result{Statuses: p.tokens.CheckStatuses(ctx, list)}, nil
}

func (p *Processor) send(ctx context.Context) (*Result, error) {
	if p.notify == nil {
		return nil, notify.ErrEmptyToken
	}
	content := p.req.MessageContent
	var err error
	switch strings.ToLower(strings.TrimSpace(p.req.MessageType)) {
	case MessageText:
		err = p.notify.SendMessage(ctx, content)
	case MessageImage:
		if strings.HasPrefix(content, "http://") || strings.HasPrefix(content, "https://") {
			err = p.notify.SendImageURL(ctx, imageCaption, content)
		} else {
			err = p.notify.SendImageFile(ctx, imageCaption, content)
		}
	case MessageSticker:
		err = p.notify.SendSticker(ctx, content, p.req.StickerPackageID, p.req.StickerID)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMessageType, p.req.MessageType)
	}
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return &Result{Message: "Message has been sent."}, nil
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
