package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultSessionName is the session directory used when none is configured.
	DefaultSessionName = "notify"
	// DefaultRequestTimeout bounds ordinary requests.
	DefaultRequestTimeout = 30 * time.Second
	// DefaultWaitSeconds is how long the QR and PIN stages wait for the user.
	DefaultWaitSeconds = 180
	// DefaultRelayPort is the port used by the relay server.
	DefaultRelayPort = 8317
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	SDKConfig `yaml:",inline"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile writes logs to a rotating file instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogDir overrides the directory used for rotated log files.
	LogDir string `yaml:"log-dir,omitempty" json:"log-dir,omitempty"`

	// SessionDir is the root directory holding one sub-directory per named session.
	SessionDir string `yaml:"session-dir" json:"session-dir"`

	// SessionName selects the session sub-directory (cookie.json, cert.json).
	SessionName string `yaml:"session-name" json:"session-name"`

	// TmpDir receives downloaded QR images.
	TmpDir string `yaml:"tmp-dir" json:"tmp-dir"`

	// TokensFile stores issued tokens grouped by target mid.
	TokensFile string `yaml:"tokens-file" json:"tokens-file"`

	// QRWaitSeconds bounds the QR scan wait.
	QRWaitSeconds int `yaml:"qr-wait-seconds,omitempty" json:"qr-wait-seconds,omitempty"`

	// PINWaitSeconds bounds the PIN confirmation wait.
	PINWaitSeconds int `yaml:"pin-wait-seconds,omitempty" json:"pin-wait-seconds,omitempty"`

	// OpenQR opens the downloaded QR image with the desktop viewer.
	OpenQR bool `yaml:"open-qr" json:"open-qr"`

	// NotifyToken is the bearer token used for sending messages.
	NotifyToken string `yaml:"notify-token,omitempty" json:"-"`

	// CSRF and Cookie are an externally captured web session for the token lifecycle client.
	CSRF   string `yaml:"csrf,omitempty" json:"-"`
	Cookie string `yaml:"cookie,omitempty" json:"-"`

	// Email and Password are reserved for email login, which is not supported.
	Email    string `yaml:"email,omitempty" json:"-"`
	Password string `yaml:"password,omitempty" json:"-"`

	// Relay configures the optional notification relay server.
	Relay RelayConfig `yaml:"relay" json:"relay"`

	// ObjectStore mirrors the session directory to S3-compatible storage when an endpoint is set.
	ObjectStore ObjectStoreConfig `yaml:"object-store" json:"object-store"`

	// PGStore mirrors the session directory to PostgreSQL when a DSN is set.
	PGStore PGStoreConfig `yaml:"pg-store" json:"pg-store"`
}

// ObjectStoreConfig configures the S3-compatible session mirror.
type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	Bucket    string `yaml:"bucket" json:"bucket"`
	AccessKey string `yaml:"access-key" json:"-"`
	SecretKey string `yaml:"secret-key" json:"-"`
	Region    string `yaml:"region,omitempty" json:"region,omitempty"`
	Prefix    string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	UseSSL    bool   `yaml:"use-ssl" json:"use-ssl"`
	PathStyle bool   `yaml:"path-style" json:"path-style"`
}

// Enabled reports whether an object store endpoint is configured.
func (c ObjectStoreConfig) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

// PGStoreConfig configures the PostgreSQL session mirror.
type PGStoreConfig struct {
	DSN    string `yaml:"dsn" json:"-"`
	Schema string `yaml:"schema,omitempty" json:"schema,omitempty"`
	Table  string `yaml:"table,omitempty" json:"table,omitempty"`
}

// Enabled reports whether a PostgreSQL DSN is configured.
func (c PGStoreConfig) Enabled() bool {
	return strings.TrimSpace(c.DSN) != ""
}

// RelayConfig configures the HTTP relay that forwards notifications.
type RelayConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
	// APIKeys authenticate relay callers via "Authorization: Bearer <key>".
	APIKeys []string `yaml:"api-keys" json:"api-keys"`
}

// LoadConfig reads a YAML configuration file from the given path.
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional reads the configuration file. When optional is true a missing
// or empty file yields a default configuration instead of an error.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	cfg := &Config{}
	path := strings.TrimSpace(configFile)
	if path == "" {
		if !optional {
			return nil, fmt.Errorf("config: path is empty")
		}
		cfg.applyDefaults()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			cfg.applyDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if len(strings.TrimSpace(string(data))) > 0 {
		if err = yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	cfg.SessionDir = strings.TrimSpace(cfg.SessionDir)
	if cfg.SessionDir == "" {
		cfg.SessionDir = "~/.notifyctl/sessions"
	}
	cfg.SessionName = strings.TrimSpace(cfg.SessionName)
	if cfg.SessionName == "" {
		cfg.SessionName = DefaultSessionName
	}
	if strings.TrimSpace(cfg.TmpDir) == "" {
		cfg.TmpDir = os.TempDir()
	}
	if strings.TrimSpace(cfg.TokensFile) == "" {
		cfg.TokensFile = "tokens.json"
	}
	if cfg.QRWaitSeconds <= 0 {
		cfg.QRWaitSeconds = DefaultWaitSeconds
	}
	if cfg.PINWaitSeconds <= 0 {
		cfg.PINWaitSeconds = DefaultWaitSeconds
	}
	if cfg.Relay.Port <= 0 {
		cfg.Relay.Port = DefaultRelayPort
	}
	cfg.Relay.APIKeys = SanitizeKeys(cfg.Relay.APIKeys)
}

// Timeout returns the configured request timeout.
func (c *SDKConfig) Timeout() time.Duration {
	if c == nil || c.RequestTimeout <= 0 {
		return DefaultRequestTimeout
	}
	return time.Duration(c.RequestTimeout) * time.Second
}

// QRWait returns the QR stage wait duration.
func (cfg *Config) QRWait() time.Duration {
	if cfg == nil || cfg.QRWaitSeconds <= 0 {
		return DefaultWaitSeconds * time.Second
	}
	return time.Duration(cfg.QRWaitSeconds) * time.Second
}

// PINWait returns the PIN stage wait duration.
func (cfg *Config) PINWait() time.Duration {
	if cfg == nil || cfg.PINWaitSeconds <= 0 {
		return DefaultWaitSeconds * time.Second
	}
	return time.Duration(cfg.PINWaitSeconds) * time.Second
}

// SanitizeKeys trims keys and drops blanks and duplicates.
func SanitizeKeys(keys []string) []string {
	if len(keys) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
