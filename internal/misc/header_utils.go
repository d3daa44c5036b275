// Package misc provides miscellaneous utility functions for notifyctl.
// It includes helper functions for HTTP header manipulation, credential logging
// and other common operations that don't fit into more specific packages.
package misc

import (
	"net/http"
	"strings"
)

// DefaultBrowserUserAgent is sent to the web endpoints unless overridden in config.
const DefaultBrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36"

// browserHeaders mirrors what a desktop Chrome sends to notify-bot.line.me.
var browserHeaders = [][2]string{
	{"Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"},
	{"Accept-Encoding", "gzip, deflate, br, zstd"},
	{"Accept-Language", "ja-JP,ja;q=0.9,en-US;q=0.8,en;q=0.7"},
	{"Cache-Control", "no-cache"},
	{"Pragma", "no-cache"},
	{"Sec-Ch-Ua", `"Google Chrome";v="129", "Not=A?Brand";v="8", "Chromium";v="129"`},
	{"Sec-Ch-Ua-Mobile", "?0"},
	{"Sec-Ch-Ua-Platform", `"Windows"`},
}

// EnsureHeader ensures that a header exists in the target header map by checking
// multiple sources in order of priority: source headers, existing target headers,
// and finally the default value. It only sets the header if it's not already present
// and the value is not empty after trimming whitespace.
func EnsureHeader(target http.Header, source http.Header, key, defaultValue string) {
	if target == nil {
		return
	}
	if source != nil {
		if val := strings.TrimSpace(source.Get(key)); val != "" {
			target.Set(key, val)
			return
		}
	}
	if strings.TrimSpace(target.Get(key)) != "" {
		return
	}
	if val := strings.TrimSpace(defaultValue); val != "" {
		target.Set(key, val)
	}
}

// ApplyBrowserHeaders fills in browser-like defaults without overriding headers
// the caller already set.
func ApplyBrowserHeaders(target http.Header, userAgent string) {
	if strings.TrimSpace(userAgent) == "" {
		userAgent = DefaultBrowserUserAgent
	}
	EnsureHeader(target, nil, "User-Agent", userAgent)
	for _, kv := range browserHeaders {
		EnsureHeader(target, nil, kv[0], kv[1])
	}
}

// ApplyXHRHeaders marks a request as an in-page XHR, as the notify-bot pages do.
func ApplyXHRHeaders(target http.Header, referer string) {
	target.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	target.Set("X-Requested-With", "XMLHttpRequest")
	EnsureHeader(target, nil, "Referer", referer)
}
