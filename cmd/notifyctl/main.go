// Package main provides the entry point for notifyctl, a LINE Notify client:
// QR-code web login, group listing, personal access token management,
// message sending and an authenticated HTTP relay.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/nezunotify/notifyctl/internal/buildinfo"
	"github.com/nezunotify/notifyctl/internal/cmd"
	"github.com/nezunotify/notifyctl/internal/config"
	"github.com/nezunotify/notifyctl/internal/console"
	"github.com/nezunotify/notifyctl/internal/logging"
	"github.com/nezunotify/notifyctl/internal/util"
	log "github.com/sirupsen/logrus"
)

var (
	Version           = "dev"
	Commit            = "none"
	BuildDate         = "unknown"
	DefaultConfigPath = ""
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		login       bool
		groups      bool
		issue       bool
		create      bool
		revoke      bool
		status      bool
		send        bool
		serve       bool
		noClipboard bool
		configPath  string
		target      string
		description string
		count       int
		messageType string
		content     string
		stickerPkg  int
		stickerID   int
	)

	flag.BoolVar(&login, "login", false, "Log in to LINE Notify with a QR code and save the session")
	flag.BoolVar(&groups, "groups", false, "List the groups reachable from the session")
	flag.BoolVar(&issue, "issue", false, "Issue a token through the logged-in session")
	flag.BoolVar(&create, "create", false, "Create tokens with the csrf/cookie pair")
	flag.BoolVar(&revoke, "revoke", false, "Revoke the tokens given as arguments (default: every saved token)")
	flag.BoolVar(&status, "status", false, "Check the tokens given as arguments (default: every saved token)")
	flag.BoolVar(&send, "send", false, "Send a notification with the notify token")
	flag.BoolVar(&serve, "serve", false, "Run the notification relay server")
	flag.BoolVar(&noClipboard, "no-clipboard", false, "Don't copy issued tokens and PINs to the clipboard")
	flag.StringVar(&configPath, "config", DefaultConfigPath, "Configure File Path")
	flag.StringVar(&target, "target", "USER", "Token target: USER or a group mid")
	flag.StringVar(&description, "description", "", "Token description")
	flag.IntVar(&count, "count", 1, "Number of tokens to create (max 100)")
	flag.StringVar(&messageType, "type", cmd.MessageText, "Message type: text, image or sticker")
	flag.StringVar(&content, "message", "", "Message text, image URL or image path")
	flag.IntVar(&stickerPkg, "sticker-package", 0, "Sticker package id")
	flag.IntVar(&stickerID, "sticker", 0, "Sticker id")
	flag.Parse()

	wd, err := os.Getwd()
	if err != nil {
		log.Errorf("failed to get working directory: %v", err)
		return 1
	}

	// Load environment variables from .env if present.
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	configFilePath := configPath
	if configFilePath == "" {
		configFilePath = filepath.Join(wd, "config.yaml")
	}
	cfg, err := config.LoadConfigOptional(configFilePath, true)
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		return 1
	}
	applyEnvOverrides(cfg)

	if err = logging.ConfigureLogOutput(cfg); err != nil {
		log.Errorf("failed to configure log output: %v", err)
		return 1
	}
	util.SetLogLevel(cfg)
	log.Debugf("notifyctl Version: %s, Commit: %s, BuiltAt: %s", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	ctx := context.Background()
	options := &cmd.Options{
		NoClipboard:    noClipboard,
		ApplyOverrides: applyEnvOverrides,
	}

	if login || groups || issue {
		mirror, errMirror := cmd.OpenMirror(ctx, cfg)
		if errMirror != nil {
			log.Error(errMirror)
			return 1
		}
		if mirror != nil {
			options.Mirror = mirror
			defer func() {
				if errClose := mirror.Close(); errClose != nil {
					log.Errorf("failed to close session mirror: %v", errClose)
				}
			}()
		}
	}

	switch {
	case login:
		err = cmd.DoLogin(ctx, cfg, options)
	case groups:
		_, err = cmd.DoGroups(ctx, cfg, options)
	case issue:
		_, err = cmd.DoIssue(ctx, cfg, options, target, description)
	case create:
		_, err = cmd.DoCreate(ctx, cfg, options, target, description, count)
	case revoke:
		_, err = cmd.DoRevoke(ctx, cfg, options, flag.Args())
	case status:
		_, err = cmd.DoStatus(ctx, cfg, options, flag.Args())
	case send:
		err = cmd.DoSend(ctx, cfg, options, cmd.SendOptions{
			Type:             messageType,
			Content:          content,
			StickerPackageID: stickerPkg,
			StickerID:        stickerID,
		})
	case serve:
		err = cmd.StartService(ctx, cfg, configFilePath, options)
	default:
		fmt.Printf("notifyctl Version: %s, Commit: %s, BuiltAt: %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
		flag.Usage()
		return 2
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, console.Failure(err.Error()))
		return 1
	}
	return 0
}

func lookupEnv(keys ...string) (string, bool) {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed, true
			}
		}
	}
	return "", false
}

// applyEnvOverrides lets the environment (and .env) supply credentials and
// mirror settings that should not live in the config file.
func applyEnvOverrides(cfg *config.Config) {
	if value, ok := lookupEnv("LINE_NOTIFY_TOKEN", "line_notify_token"); ok {
		cfg.NotifyToken = value
	}
	if value, ok := lookupEnv("LINE_CSRF_TOKEN", "line_csrf_token"); ok {
		cfg.CSRF = value
	}
	if value, ok := lookupEnv("LINE_COOKIE", "line_cookie"); ok {
		cfg.Cookie = value
	}
	if value, ok := lookupEnv("LINE_EMAIL", "line_email"); ok {
		cfg.Email = value
	}
	if value, ok := lookupEnv("LINE_PASSWORD", "line_password"); ok {
		cfg.Password = value
	}
	if value, ok := lookupEnv("RELAY_API_KEYS", "relay_api_keys"); ok {
		cfg.Relay.APIKeys = strings.Split(value, ",")
	}

	if value, ok := lookupEnv("OBJECTSTORE_ENDPOINT", "objectstore_endpoint"); ok {
		endpoint, useSSL := splitEndpoint(value)
		cfg.ObjectStore.Endpoint = endpoint
		cfg.ObjectStore.UseSSL = useSSL
		cfg.ObjectStore.PathStyle = true
	}
	if value, ok := lookupEnv("OBJECTSTORE_ACCESS_KEY", "objectstore_access_key"); ok {
		cfg.ObjectStore.AccessKey = value
	}
	if value, ok := lookupEnv("OBJECTSTORE_SECRET_KEY", "objectstore_secret_key"); ok {
		cfg.ObjectStore.SecretKey = value
	}
	if value, ok := lookupEnv("OBJECTSTORE_BUCKET", "objectstore_bucket"); ok {
		cfg.ObjectStore.Bucket = value
	}
	if value, ok := lookupEnv("OBJECTSTORE_PREFIX", "objectstore_prefix"); ok {
		cfg.ObjectStore.Prefix = value
	}
	if value, ok := lookupEnv("OBJECTSTORE_PATH_STYLE", "objectstore_path_style"); ok {
		if parsed, errParse := strconv.ParseBool(value); errParse == nil {
			cfg.ObjectStore.PathStyle = parsed
		}
	}

	if value, ok := lookupEnv("PGSTORE_DSN", "pgstore_dsn"); ok {
		cfg.PGStore.DSN = value
	}
	if value, ok := lookupEnv("PGSTORE_SCHEMA", "pgstore_schema"); ok {
		cfg.PGStore.Schema = value
	}
	if value, ok := lookupEnv("PGSTORE_TABLE", "pgstore_table"); ok {
		cfg.PGStore.Table = value
	}
	cfg.Relay.APIKeys = config.SanitizeKeys(cfg.Relay.APIKeys)
}

// splitEndpoint strips an http(s) scheme from an object store endpoint,
// reporting whether TLS should be used.
func splitEndpoint(raw string) (string, bool) {
	endpoint := strings.TrimRight(strings.TrimSpace(raw), "/")
	switch {
	case strings.HasPrefix(strings.ToLower(endpoint), "http://"):
		return endpoint[len("http://"):], false
	case strings.HasPrefix(strings.ToLower(endpoint), "https://"):
		return endpoint[len("https://"):], true
	default:
		return endpoint, true
	}
}
