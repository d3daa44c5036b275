package util

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/nezunotify/notifyctl/internal/config"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

// SetProxy configures the provided HTTP client with proxy settings from the configuration.
// It supports SOCKS5, HTTP, and HTTPS proxies. The function modifies the client's transport
// to route requests through the configured proxy server.
func SetProxy(cfg *config.SDKConfig, httpClient *http.Client) *http.Client {
	if cfg == nil || strings.TrimSpace(cfg.ProxyURL) == "" {
		return httpClient
	}
	var transport *http.Transport
	proxyURL, errParse := url.Parse(cfg.ProxyURL)
	if errParse == nil {
		if proxyURL.Scheme == "socks5" {
			var proxyAuth *proxy.Auth
			if proxyURL.User != nil {
				username := proxyURL.User.Username()
				password, _ := proxyURL.User.Password()
				proxyAuth = &proxy.Auth{User: username, Password: password}
			}
			dialer, errSOCKS5 := proxy.SOCKS5("tcp", proxyURL.Host, proxyAuth, proxy.Direct)
			if errSOCKS5 != nil {
				log.Errorf("create SOCKS5 dialer failed: %v", errSOCKS5)
				return httpClient
			}
			transport = &http.Transport{
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					return dialer.Dial(network, addr)
				},
			}
		} else if proxyURL.Scheme == "http" || proxyURL.Scheme == "https" {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	} else {
		log.Errorf("parse proxy URL %q failed: %v", cfg.ProxyURL, errParse)
	}
	if transport != nil {
		httpClient.Transport = transport
	}
	return httpClient
}

// ProxyDialer returns a dialer honoring the configured proxy, or proxy.Direct.
func ProxyDialer(cfg *config.SDKConfig) proxy.Dialer {
	if cfg == nil || strings.TrimSpace(cfg.ProxyURL) == "" {
		return proxy.Direct
	}
	proxyURL, err := url.Parse(cfg.ProxyURL)
	if err != nil {
		log.Errorf("failed to parse proxy URL %q: %v", cfg.ProxyURL, err)
		return proxy.Direct
	}
	dialer, err := proxy.FromURL(proxyURL, proxy.Direct)
	if err != nil {
		log.Errorf("failed to create proxy dialer for %q: %v", cfg.ProxyURL, err)
		return proxy.Direct
	}
	return dialer
}
