// config_reload.go implements debounced configuration hot reload.
package watcher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/nezunotify/notifyctl/internal/config"
	"github.com/nezunotify/notifyctl/internal/util"
	log "github.com/sirupsen/logrus"
)

func (w *Watcher) stopConfigReloadTimer() {
	w.configReloadMu.Lock()
	if w.configReloadTimer != nil {
		w.configReloadTimer.Stop()
		w.configReloadTimer = nil
	}
	w.configReloadMu.Unlock()
}

func (w *Watcher) scheduleConfigReload() {
	w.configReloadMu.Lock()
	defer w.configReloadMu.Unlock()
	if w.configReloadTimer != nil {
		w.configReloadTimer.Stop()
	}
	w.configReloadTimer = time.AfterFunc(w.debounce, func() {
		w.configReloadMu.Lock()
		w.configReloadTimer = nil
		w.configReloadMu.Unlock()
		w.reloadConfigIfChanged()
	})
}

func (w *Watcher) reloadConfigIfChanged() {
	data, err := os.ReadFile(w.configPath)
	if err != nil {
		log.Errorf("failed to read config file for hash check: %v", err)
		return
	}
	if len(data) == 0 {
		log.Debugf("ignoring empty config file write event")
		return
	}
	newHash := hashBytes(data)

	w.configMu.RLock()
	currentHash := w.lastConfigHash
	w.configMu.RUnlock()

	if currentHash != "" && currentHash == newHash {
		log.Debugf("config file content unchanged (hash match), skipping reload")
		return
	}
	log.Infof("config file changed, reloading: %s", w.configPath)
	if w.reloadConfig() {
		w.configMu.Lock()
		w.lastConfigHash = newHash
		w.configMu.Unlock()
	}
}

func (w *Watcher) reloadConfig() bool {
	newConfig, errLoadConfig := config.LoadConfig(w.configPath)
	if errLoadConfig != nil {
		log.Errorf("failed to reload config: %v", errLoadConfig)
		return false
	}

	w.configMu.Lock()
	oldConfig := w.config
	w.config = newConfig
	w.configMu.Unlock()

	util.SetLogLevel(newConfig)
	if details := changeDetails(oldConfig, newConfig); len(details) > 0 {
		log.Debugf("config changes detected:")
		for _, d := range details {
			log.Debugf("  %s", d)
		}
	} else {
		log.Debugf("no material config field changes detected")
	}

	if w.reloadCallback != nil {
		w.reloadCallback(newConfig)
	}
	return true
}

// changeDetails lists the reload-relevant differences between two configs
// without echoing any secret values.
func changeDetails(oldCfg, newCfg *config.Config) []string {
	if oldCfg == nil || newCfg == nil {
		return nil
	}
	var details []string
	if oldCfg.Debug != newCfg.Debug {
		details = append(details, fmt.Sprintf("debug: %t -> %t", oldCfg.Debug, newCfg.Debug))
	}
	if oldCfg.NotifyToken != newCfg.NotifyToken {
		details = append(details, fmt.Sprintf("notify-token: %s -> %s", util.HideSecret(oldCfg.NotifyToken), util.HideSecret(newCfg.NotifyToken)))
	}
	if !reflect.DeepEqual(oldCfg.Relay.APIKeys, newCfg.Relay.APIKeys) {
		details = append(details, fmt.Sprintf("relay.api-keys: %d -> %d", len(oldCfg.Relay.APIKeys), len(newCfg.Relay.APIKeys)))
	}
	if oldCfg.ProxyURL != newCfg.ProxyURL {
		details = append(details, "proxy-url changed")
	}
	if oldCfg.Relay.Host != newCfg.Relay.Host || oldCfg.Relay.Port != newCfg.Relay.Port {
		details = append(details, "relay address changed (restart required)")
	}
	return details
}

func fileHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return hashBytes(data), nil
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
