package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nezunotify/notifyctl/internal/api"
	"github.com/nezunotify/notifyctl/internal/config"
	"github.com/nezunotify/notifyctl/internal/watcher"
	log "github.com/sirupsen/logrus"
)

// StartService runs the relay server until SIGINT/SIGTERM or ctx ends. When
// configPath names a file, edits to it hot-reload relay keys and the notify token.
func StartService(ctx context.Context, cfg *config.Config, configPath string, options *Options) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(cfg)
	if len(cfg.Relay.APIKeys) == 0 {
		log.Warn("relay has no api-keys configured; every request will be rejected")
	}

	if path := strings.TrimSpace(configPath); path != "" {
		if _, errStat := os.Stat(path); errStat == nil {
			fileWatcher, errWatcher := watcher.NewWatcher(path, func(newCfg *config.Config) {
				if options != nil && options.ApplyOverrides != nil {
					options.ApplyOverrides(newCfg)
				}
				server.UpdateConfig(newCfg)
			})
			if errWatcher != nil {
				return errWatcher
			}
			fileWatcher.SetConfig(cfg)
			if errStart := fileWatcher.Start(ctx); errStart != nil {
				_ = fileWatcher.Stop()
				return errStart
			}
			defer func() {
				if errStop := fileWatcher.Stop(); errStop != nil {
					log.Errorf("failed to stop config watcher: %v", errStop)
				}
			}()
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
