package store

import (
	"context"
	"fmt"

	"github.com/nezunotify/notifyctl/internal/config"
	"github.com/nezunotify/notifyctl/internal/util"
	log "github.com/sirupsen/logrus"
)

// FromConfig builds the mirrors enabled in cfg. It returns a nil Mirror when none is configured.
func FromConfig(ctx context.Context, cfg *config.Config) (Mirror, error) {
	if cfg == nil || (!cfg.ObjectStore.Enabled() && !cfg.PGStore.Enabled()) {
		return nil, nil
	}
	root, err := util.ResolveDir(cfg.SessionDir)
	if err != nil {
		return nil, fmt.Errorf("resolve session directory: %w", err)
	}

	var mirrors Multi
	if cfg.ObjectStore.Enabled() {
		objectStore, errObject := NewObjectSessionStore(ObjectStoreConfig{
			Endpoint:  cfg.ObjectStore.Endpoint,
			Bucket:    cfg.ObjectStore.Bucket,
			AccessKey: cfg.ObjectStore.AccessKey,
			SecretKey: cfg.ObjectStore.SecretKey,
			Region:    cfg.ObjectStore.Region,
			Prefix:    cfg.ObjectStore.Prefix,
			UseSSL:    cfg.ObjectStore.UseSSL,
			PathStyle: cfg.ObjectStore.PathStyle,
		}, root)
		if errObject != nil {
			return nil, errObject
		}
		log.Infof("session mirror: object store %s/%s", cfg.ObjectStore.Endpoint, cfg.ObjectStore.Bucket)
		mirrors = append(mirrors, objectStore)
	}
	if cfg.PGStore.Enabled() {
		pgStore, errPG := NewPostgresSessionStore(ctx, PostgresStoreConfig{
			DSN:    cfg.PGStore.DSN,
			Schema: cfg.PGStore.Schema,
			Table:  cfg.PGStore.Table,
		}, root)
		if errPG != nil {
			_ = mirrors.Close()
			return nil, errPG
		}
		log.Info("session mirror: postgres")
		mirrors = append(mirrors, pgStore)
	}
	if len(mirrors) == 1 {
		return mirrors[0], nil
	}
	return mirrors, nil
}
