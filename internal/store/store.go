// Package store mirrors the session directory (one sub-directory per named
// session holding cookie.json and cert.json) to a remote backend so a session
// survives on hosts with ephemeral disks.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Mirror restores the session directory from a backend and pushes local changes to it.
type Mirror interface {
	Restore(ctx context.Context) error
	PersistSessionFiles(ctx context.Context, paths ...string) error
	Close() error
}

// Multi fans every call out to several mirrors.
type Multi []Mirror

// Restore restores from each mirror in order; later mirrors win on conflicts.
func (m Multi) Restore(ctx context.Context) error {
	for _, mirror := range m {
		if err := mirror.Restore(ctx); err != nil {
			return err
		}
	}
	return nil
}

// PersistSessionFiles pushes paths to every mirror and joins their errors.
func (m Multi) PersistSessionFiles(ctx context.Context, paths ...string) error {
	var errs []error
	for _, mirror := range m {
		if err := mirror.PersistSessionFiles(ctx, paths...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every mirror.
func (m Multi) Close() error {
	var errs []error
	for _, mirror := range m {
		if err := mirror.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// relativeSessionPath returns path relative to root in slash form, rejecting paths outside root.
func relativeSessionPath(root, path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	rel, err := filepath.Rel(root, filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("compute relative path: %w", err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %s outside session directory", path)
	}
	return filepath.ToSlash(rel), nil
}

// localSessionPath maps a stored id back under root, rejecting ids that escape it.
func localSessionPath(root, id string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(id))
	if filepath.IsAbs(clean) || clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid session file id %s", id)
	}
	return filepath.Join(root, clean), nil
}

func writeSessionFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session subdir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}
