// Package access authenticates relay callers against the configured API keys.
package access

import (
	"errors"
	"net/http"
	"strings"
	"sync"
)

var (
	// ErrNoCredentials is returned when a request carries no key at all.
	ErrNoCredentials = errors.New("access: missing api key")
	// ErrInvalidCredential is returned when the presented key is not configured.
	ErrInvalidCredential = errors.New("access: invalid api key")
)

// KeySet holds the accepted relay API keys. Keys can be replaced while the
// server runs.
type KeySet struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

// NewKeySet creates a key set from keys, ignoring blanks and duplicates.
func NewKeySet(keys []string) *KeySet {
	s := &KeySet{}
	s.Replace(keys)
	return s
}

// Replace swaps the accepted keys.
func (s *KeySet) Replace(keys []string) {
	normalized := normalizeKeys(keys)
	keySet := make(map[string]struct{}, len(normalized))
	for _, key := range normalized {
		keySet[key] = struct{}{}
	}
	s.mu.Lock()
	s.keys = keySet
	s.mu.Unlock()
}

// Len returns the number of accepted keys.
func (s *KeySet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Authenticate checks the Authorization bearer header, then the X-Api-Key
// header, and returns the matching key.
func (s *KeySet) Authenticate(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	apiKeyHeader := r.Header.Get("X-Api-Key")
	if authHeader == "" && apiKeyHeader == "" {
		return "", ErrNoCredentials
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, candidate := range []string{extractBearerToken(authHeader), strings.TrimSpace(apiKeyHeader)} {
		if candidate == "" {
			continue
		}
		if _, ok := s.keys[candidate]; ok {
			return candidate, nil
		}
	}
	return "", ErrInvalidCredential
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return header
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return header
	}
	return strings.TrimSpace(parts[1])
}

func normalizeKeys(keys []string) []string {
	if len(keys) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		if _, exists := seen[trimmedKey]; exists {
			continue
		}
		seen[trimmedKey] = struct{}{}
		normalized = append(normalized, trimmedKey)
	}
	return normalized
}
