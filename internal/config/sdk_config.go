// Package config provides configuration management for notifyctl.
// It handles loading and parsing YAML configuration files, and provides structured
// access to session storage, transport, relay server and credential settings.
package config

// SDKConfig holds the outbound HTTP settings shared by every LINE client.
type SDKConfig struct {
	// ProxyURL is the URL of an optional proxy server to use for outbound requests.
	// Supported schemes are http, https and socks5.
	ProxyURL string `yaml:"proxy-url" json:"proxy-url"`

	// TLSFingerprint selects a browser TLS fingerprint for the unofficial web endpoints.
	// Accepted values are "" (Go default), "chrome" and "firefox".
	TLSFingerprint string `yaml:"tls-fingerprint,omitempty" json:"tls-fingerprint,omitempty"`

	// RequestTimeout bounds a single non-polling request, in seconds.
	// <= 0 falls back to DefaultRequestTimeout.
	RequestTimeout int `yaml:"request-timeout,omitempty" json:"request-timeout,omitempty"`

	// UserAgent overrides the browser user agent sent to notify-bot.line.me and access.line.me.
	UserAgent string `yaml:"user-agent,omitempty" json:"user-agent,omitempty"`
}
