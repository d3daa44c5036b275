// Package config provides the public SDK configuration API.
//
// It re-exports the internal configuration types and helpers so external projects can
// embed notifyctl's LINE clients without importing internal packages.
package config

import internalconfig "github.com/nezunotify/notifyctl/internal/config"

type SDKConfig = internalconfig.SDKConfig

type Config = internalconfig.Config

type RelayConfig = internalconfig.RelayConfig

type ObjectStoreConfig = internalconfig.ObjectStoreConfig

type PGStoreConfig = internalconfig.PGStoreConfig

const (
	DefaultSessionName    = internalconfig.DefaultSessionName
	DefaultRequestTimeout = internalconfig.DefaultRequestTimeout
	DefaultWaitSeconds    = internalconfig.DefaultWaitSeconds
)

func LoadConfig(configFile string) (*Config, error) { return internalconfig.LoadConfig(configFile) }

func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	return internalconfig.LoadConfigOptional(configFile, optional)
}
