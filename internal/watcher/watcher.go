// Package watcher watches the configuration file and triggers hot reloads
// while the relay server runs.
package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/nezunotify/notifyctl/internal/config"
)

const configReloadDebounce = 150 * time.Millisecond

// Watcher manages file watching for the configuration file.
type Watcher struct {
	configPath        string
	config            *config.Config
	configMu          sync.RWMutex
	configReloadMu    sync.Mutex
	configReloadTimer *time.Timer
	reloadCallback    func(*config.Config)
	watcher           *fsnotify.Watcher
	lastConfigHash    string
	debounce          time.Duration
}

// NewWatcher creates a new file watcher instance. reloadCallback runs on the
// watcher goroutine after every successful reload.
func NewWatcher(configPath string, reloadCallback func(*config.Config)) (*Watcher, error) {
	watcher, errNewWatcher := fsnotify.NewWatcher()
	if errNewWatcher != nil {
		return nil, errNewWatcher
	}
	return &Watcher{
		configPath:     configPath,
		reloadCallback: reloadCallback,
		watcher:        watcher,
		debounce:       configReloadDebounce,
	}, nil
}

// Start begins watching the configuration file.
func (w *Watcher) Start(ctx context.Context) error {
	return w.start(ctx)
}

// Stop stops the file watcher
func (w *Watcher) Stop() error {
	w.stopConfigReloadTimer()
	return w.watcher.Close()
}

// SetConfig updates the current configuration
func (w *Watcher) SetConfig(cfg *config.Config) {
	w.configMu.Lock()
	defer w.configMu.Unlock()
	w.config = cfg
}

// Config returns the most recently loaded configuration.
func (w *Watcher) Config() *config.Config {
	w.configMu.RLock()
	defer w.configMu.RUnlock()
	return w.config
}
