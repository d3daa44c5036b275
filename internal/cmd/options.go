// Package cmd implements the notifyctl commands: web-session login, group
// listing, token issuance and lifecycle, sending, and the relay server.
package cmd

import (
	"io"
	"net/http"
	"os"

	"github.com/atotto/clipboard"
	"github.com/nezunotify/notifyctl/internal/auth/line"
	"github.com/nezunotify/notifyctl/internal/config"
	"github.com/nezunotify/notifyctl/internal/store"
	log "github.com/sirupsen/logrus"
)

// Options carries the command-line switches and test seams shared by the commands.
type Options struct {
	// Out receives human-readable results. Defaults to os.Stdout.
	Out io.Writer

	// NoClipboard disables copying issued tokens and PINs to the clipboard.
	NoClipboard bool

	// Mirror receives session file writes; nil keeps sessions local only.
	Mirror store.Mirror

	// Endpoints, NotifyAPIURL and HTTPClient redirect traffic, mainly for tests.
	Endpoints    line.Endpoints
	NotifyAPIURL string
	HTTPClient   *http.Client

	// ApplyOverrides re-applies environment overrides to a reloaded config.
	ApplyOverrides func(cfg *config.Config)
}

func (o *Options) out() io.Writer {
	if o == nil || o.Out == nil {
		return os.Stdout
	}
	return o.Out
}

// copyToClipboard copies value when allowed. Headless hosts have no clipboard,
// so failures are only logged.
func (o *Options) copyToClipboard(label, value string) bool {
	if o != nil && o.NoClipboard {
		return false
	}
	if clipboard.Unsupported {
		return false
	}
	if err := clipboard.WriteAll(value); err != nil {
		log.Debugf("copy %s to clipboard: %v", label, err)
		return false
	}
	return true
}
