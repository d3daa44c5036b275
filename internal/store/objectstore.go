package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/nezunotify/notifyctl/internal/misc"
	log "github.com/sirupsen/logrus"
)

const objectStoreSessionPrefix = "sessions"

// ObjectStoreConfig captures configuration for the object storage session mirror.
type ObjectStoreConfig struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	Prefix    string
	UseSSL    bool
	PathStyle bool
}

// ObjectSessionStore mirrors the session directory to an S3-compatible bucket
// under <prefix>/sessions/<name>/<file>.
type ObjectSessionStore struct {
	client *minio.Client
	cfg    ObjectStoreConfig
	root   string
	mu     sync.Mutex
}

// NewObjectSessionStore validates cfg and creates the bucket client. It does not touch the network.
func NewObjectSessionStore(cfg ObjectStoreConfig, sessionRoot string) (*ObjectSessionStore, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.Bucket = strings.TrimSpace(cfg.Bucket)
	cfg.AccessKey = strings.TrimSpace(cfg.AccessKey)
	cfg.SecretKey = strings.TrimSpace(cfg.SecretKey)
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")

	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("object store: endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("object store: bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, fmt.Errorf("object store: access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("object store: secret key is required")
	}

	root, err := filepath.Abs(strings.TrimSpace(sessionRoot))
	if err != nil {
		return nil, fmt.Errorf("object store: resolve session directory: %w", err)
	}
	if err = os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("object store: create session directory: %w", err)
	}

	options := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	}
	if cfg.PathStyle {
		options.BucketLookup = minio.BucketLookupPath
	}
	client, err := minio.New(cfg.Endpoint, options)
	if err != nil {
		return nil, fmt.Errorf("object store: create client: %w", err)
	}

	return &ObjectSessionStore{client: client, cfg: cfg, root: root}, nil
}

// Restore ensures the bucket exists and downloads every mirrored session file.
// Local files absent from the bucket are left alone.
func (s *ObjectSessionStore) Restore(ctx context.Context) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}

	prefix := s.prefixedKey(objectStoreSessionPrefix + "/")
	objectCh := s.client.ListObjects(ctx, s.cfg.Bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	restored := 0
	for object := range objectCh {
		if object.Err != nil {
			return fmt.Errorf("object store: list session objects: %w", object.Err)
		}
		rel := strings.TrimPrefix(object.Key, prefix)
		if rel == "" || strings.HasSuffix(rel, "/") {
			continue
		}
		local, err := localSessionPath(s.root, rel)
		if err != nil {
			log.WithField("key", object.Key).Warn("object store: skip session file outside mirror")
			continue
		}
		reader, err := s.client.GetObject(ctx, s.cfg.Bucket, object.Key, minio.GetObjectOptions{})
		if err != nil {
			return fmt.Errorf("object store: download %s: %w", object.Key, err)
		}
		data, err := io.ReadAll(reader)
		_ = reader.Close()
		if err != nil {
			return fmt.Errorf("object store: read %s: %w", object.Key, err)
		}
		if err = writeSessionFile(local, data); err != nil {
			return fmt.Errorf("object store: %w", err)
		}
		restored++
	}
	log.Debugf("object store: restored %d session files", restored)
	return nil
}

// PersistSessionFiles uploads each path; missing or empty files delete the object.
func (s *ObjectSessionStore) PersistSessionFiles(ctx context.Context, paths ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range paths {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		rel, err := relativeSessionPath(s.root, trimmed)
		if err != nil {
			return fmt.Errorf("object store: %w", err)
		}
		key := objectStoreSessionPrefix + "/" + rel
		data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(rel)))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				if err = s.deleteObject(ctx, key); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("object store: read session file: %w", err)
		}
		misc.LogSavingCredentials("s3://" + s.cfg.Bucket + "/" + s.prefixedKey(key))
		if err = s.putObject(ctx, key, data, "application/json"); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op; the minio client holds no connections that need closing.
func (s *ObjectSessionStore) Close() error { return nil }

func (s *ObjectSessionStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("object store: check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err = s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
		return fmt.Errorf("object store: create bucket: %w", err)
	}
	return nil
}

func (s *ObjectSessionStore) putObject(ctx context.Context, key string, data []byte, contentType string) error {
	if len(data) == 0 {
		return s.deleteObject(ctx, key)
	}
	fullKey := s.prefixedKey(key)
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, fullKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("object store: put object %s: %w", fullKey, err)
	}
	return nil
}

func (s *ObjectSessionStore) deleteObject(ctx context.Context, key string) error {
	fullKey := s.prefixedKey(key)
	err := s.client.RemoveObject(ctx, s.cfg.Bucket, fullKey, minio.RemoveObjectOptions{})
	if err != nil {
		if isObjectNotFound(err) {
			return nil
		}
		return fmt.Errorf("object store: delete object %s: %w", fullKey, err)
	}
	return nil
}

func (s *ObjectSessionStore) prefixedKey(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.cfg.Prefix == "" {
		return key
	}
	return strings.TrimLeft(s.cfg.Prefix+"/"+key, "/")
}

func isObjectNotFound(err error) bool {
	if err == nil {
		return false
	}
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == http.StatusNotFound {
		return true
	}
	switch resp.Code {
	case "NoSuchKey", "NotFound", "NoSuchBucket":
		return true
	}
	return false
}
