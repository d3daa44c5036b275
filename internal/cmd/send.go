package cmd

import (
	"context"
	"fmt"

	"github.com/nezunotify/notifyctl/internal/config"
	"github.com/nezunotify/notifyctl/internal/console"
)

// SendOptions selects what DoSend sends.
type SendOptions struct {
	// Type is text, image or sticker.
	Type string
	// Content is the text, the image URL or path, or the sticker caption.
	Content          string
	StickerPackageID int
	StickerID        int
}

// DoSend sends one notification with the configured notify token.
func DoSend(ctx context.Context, cfg *config.Config, options *Options, send SendOptions) error {
	req := Request{
		Token:            cfg.NotifyToken,
		MessageType:      send.Type,
		MessageContent:   send.Content,
		StickerPackageID: send.StickerPackageID,
		StickerID:        send.StickerID,
	}
	res, err := NewProcessor(cfg, req, options).Process(ctx, ActionSend)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(options.out(), console.Success(res.Message))
	return nil
}
