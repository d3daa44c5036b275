package tokens

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/nezunotify/notifyctl/internal/misc"
	log "github.com/sirupsen/logrus"
)

// Book keeps issued tokens on disk as {targetMid: {name: token}}.
type Book struct {
	path string

	mu      sync.Mutex
	entries map[string]map[string]string
}

// LoadBook opens the book at path. A missing file yields an empty book; a
// corrupt file is logged and also yields an empty book.
func LoadBook(path string) (*Book, error) {
	b := &Book{path: path, entries: make(map[string]map[string]string)}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return b, nil
		}
		return nil, fmt.Errorf("read token book: %w", err)
	}
	if len(data) == 0 {
		return b, nil
	}
	if err = json.Unmarshal(data, &b.entries); err != nil {
		log.WithError(err).Errorf("token book %s is corrupt, starting empty", path)
		b.entries = make(map[string]map[string]string)
	}
	if b.entries == nil {
		b.entries = make(map[string]map[string]string)
	}
	for mid, names := range b.entries {
		if len(names) == 0 {
			delete(b.entries, mid)
		}
	}
	return b, nil
}

// Path is the file backing the book.
func (b *Book) Path() string { return b.path }

// Add records token under mid and name, replacing any previous token with that name.
func (b *Book) Add(mid, name, token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := b.entries[mid]
	if names == nil {
		names = make(map[string]string)
		b.entries[mid] = names
	}
	names[name] = token
}

// Remove drops every entry holding token and reports whether one existed.
func (b *Book) Remove(token string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := false
	for mid, names := range b.entries {
		for name, value := range names {
			if value == token {
				delete(names, name)
				removed = true
			}
		}
		if len(names) == 0 {
			delete(b.entries, mid)
		}
	}
	return removed
}

// Tokens returns the tokens recorded for mid, ordered by name.
func (b *Book) Tokens(mid string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sortedValues(b.entries[mid])
}

// All returns every recorded token, ordered by mid then name.
func (b *Book) All() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	mids := make([]string, 0, len(b.entries))
	for mid := range b.entries {
		mids = append(mids, mid)
	}
	sort.Strings(mids)
	var out []string
	for _, mid := range mids {
		out = append(out, sortedValues(b.entries[mid])...)
	}
	return out
}

// Targets returns the recorded mids in sorted order.
func (b *Book) Targets() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	mids := make([]string, 0, len(b.entries))
	for mid := range b.entries {
		mids = append(mids, mid)
	}
	sort.Strings(mids)
	return mids
}

// Save writes the book back to its file.
func (b *Book) Save() error {
	b.mu.Lock()
	data, err := json.MarshalIndent(b.entries, "", "  ")
	b.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal token book: %w", err)
	}
	if dir := filepath.Dir(b.path); dir != "." {
		if err = os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create token book directory: %w", err)
		}
	}
	misc.LogSavingCredentials(b.path)
	if err = os.WriteFile(b.path, data, 0o600); err != nil {
		return fmt.Errorf("write token book: %w", err)
	}
	return nil
}

func sortedValues(names map[string]string) []string {
	keys := make([]string, 0, len(names))
	for name := range names {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, name := range keys {
		out = append(out, names[name])
	}
	return out
}
