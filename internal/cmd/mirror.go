package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/nezunotify/notifyctl/internal/config"
	"github.com/nezunotify/notifyctl/internal/store"
	log "github.com/sirupsen/logrus"
)

const mirrorRestoreTimeout = 30 * time.Second

// OpenMirror connects the configured session mirrors and restores the session
// directory from them. It returns nil when no mirror is configured.
func OpenMirror(ctx context.Context, cfg *config.Config) (store.Mirror, error) {
	ctx, cancel := context.WithTimeout(ctx, mirrorRestoreTimeout)
	defer cancel()

	mirror, err := store.FromConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize session mirror: %w", err)
	}
	if mirror == nil {
		return nil, nil
	}
	if err = mirror.Restore(ctx); err != nil {
		_ = mirror.Close()
		return nil, fmt.Errorf("restore session directory: %w", err)
	}
	log.Debug("session directory restored from mirror")
	return mirror, nil
}
