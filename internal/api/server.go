// Package api implements the notification relay: a small gin server that
// accepts authenticated JSON requests and forwards them through the notify client.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nezunotify/notifyctl/internal/access"
	"github.com/nezunotify/notifyctl/internal/api/middleware"
	"github.com/nezunotify/notifyctl/internal/config"
	"github.com/nezunotify/notifyctl/internal/logging"
	"github.com/nezunotify/notifyctl/internal/notify"
	log "github.com/sirupsen/logrus"
)

// Notifier is the part of the notify client the relay needs.
type Notifier interface {
	Send(ctx context.Context, m notify.Message) error
	Status(ctx context.Context) (*notify.Status, error)
}

// NotifierFactory builds a Notifier for the configured token.
type NotifierFactory func(cfg *config.Config) Notifier

// ServerOption customises a Server.
type ServerOption func(*Server)

// WithNotifierFactory replaces the default notify client factory.
func WithNotifierFactory(factory NotifierFactory) ServerOption {
	return func(s *Server) {
		if factory != nil {
			s.factory = factory
		}
	}
}

// WithMiddleware adds middleware ahead of the relay routes.
func WithMiddleware(mw ...gin.HandlerFunc) ServerOption {
	return func(s *Server) {
		s.extraMiddleware = append(s.extraMiddleware, mw...)
	}
}

// Server is the relay HTTP server.
type Server struct {
	engine          *gin.Engine
	server          *http.Server
	keys            *access.KeySet
	factory         NotifierFactory
	extraMiddleware []gin.HandlerFunc

	mu       sync.RWMutex
	cfg      *config.Config
	notifier Notifier
}

// NewServer builds the relay for cfg. Call Start to listen.
func NewServer(cfg *config.Config, opts ...ServerOption) *Server {
	if cfg == nil {
		cfg = &config.Config{}
	}
	s := &Server{
		keys:    access.NewKeySet(cfg.Relay.APIKeys),
		factory: defaultNotifierFactory,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.applyConfig(cfg)

	if !cfg.Debug && gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(logging.GinLogrusLogger(), logging.GinLogrusRecovery())
	engine.Use(s.extraMiddleware...)
	s.engine = engine
	s.setupRoutes()

	s.server = &http.Server{
		Addr:              relayAddr(cfg.Relay),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func defaultNotifierFactory(cfg *config.Config) Notifier {
	token := strings.TrimSpace(cfg.NotifyToken)
	if token == "" {
		return nil
	}
	return notify.NewClient(token, notify.Options{SDK: &cfg.SDKConfig})
}

func relayAddr(relay config.RelayConfig) string {
	port := relay.Port
	if port <= 0 {
		port = config.DefaultRelayPort
	}
	return net.JoinHostPort(strings.TrimSpace(relay.Host), strconv.Itoa(port))
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		logging.SkipGinRequestLogging(c)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.engine.Group("/v1")
	v1.Use(middleware.AuthMiddleware(s.keys))
	{
		v1.POST("/notify", s.handleNotify)
		v1.GET("/status", s.handleStatus)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start listens until Stop is called. A clean shutdown returns nil.
func (s *Server) Start() error {
	log.Infof("relay server listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("relay server: %w", err)
	}
	return nil
}

// Stop shuts the server down, waiting for in-flight requests up to ctx.
func (s *Server) Stop(ctx context.Context) error {
	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(stopCtx); err != nil {
		return fmt.Errorf("relay server shutdown: %w", err)
	}
	log.Info("relay server stopped")
	return nil
}

// UpdateConfig applies a reloaded configuration: API keys and the notify token.
// The listen address only changes on restart.
func (s *Server) UpdateConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	s.keys.Replace(cfg.Relay.APIKeys)
	s.applyConfig(cfg)
	log.Infof("relay configuration updated (%d api keys)", s.keys.Len())
}

func (s *Server) applyConfig(cfg *config.Config) {
	notifier := s.factory(cfg)
	s.mu.Lock()
	s.cfg = cfg
	s.notifier = notifier
	s.mu.Unlock()
}

func (s *Server) currentNotifier() Notifier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notifier
}
