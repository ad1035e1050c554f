// Package gateway serves the dashboard HTTP API and pushes live updates
// to connected browsers over WebSocket.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/expansionAgency/whatshub/internal/config"
	"github.com/expansionAgency/whatshub/internal/convo"
	"github.com/expansionAgency/whatshub/internal/live"
	"github.com/expansionAgency/whatshub/internal/logging"
	"github.com/expansionAgency/whatshub/internal/metrics"
	"github.com/expansionAgency/whatshub/internal/outbound"
	"github.com/expansionAgency/whatshub/internal/store"
)

// conversationsCacheKey and TTL for the read-through cache on the
// conversation list. Invalidation rides the coordinator's change hook.
const (
	conversationsCacheKey = "conversas"
	conversationsCacheTTL = 2 * time.Second
)

// Server is the WhatsHub HTTP + WebSocket API server.
type Server struct {
	cfg     config.Config
	log     *logging.Logger
	coord   *live.Coordinator
	sender  *outbound.Sender
	db      *store.DB
	metrics *metrics.Metrics
	policy  convo.Policy

	cache          *cache.Cache
	hub            *wsHub
	webhookLimiter *ipRateLimiter

	startedAt  time.Time
	httpServer *http.Server
}

// New creates the API server. The coordinator, sender, and db must be
// wired by the caller; metrics may be nil.
func New(cfg config.Config, log *logging.Logger, coord *live.Coordinator, sender *outbound.Sender, db *store.DB, m *metrics.Metrics) *Server {
	s := &Server{
		cfg:            cfg,
		log:            log.Sub("gateway"),
		coord:          coord,
		sender:         sender,
		db:             db,
		metrics:        m,
		policy: convo.Policy{
			GroupPrefix:          cfg.Reconstruct.GroupPrefix,
			OperatorAttachWindow: time.Duration(cfg.Reconstruct.OperatorAttachWindowMinutes) * time.Minute,
			MinNumberDigits:      cfg.Reconstruct.MinNumberDigits,
		},
		cache:          cache.New(conversationsCacheTTL, time.Minute),
		webhookLimiter: newIPRateLimiter(cfg.Server.WebhookRPS, cfg.Server.WebhookBurst),
	}
	s.hub = newWSHub(log, cfg.Server.AllowedOrigins)

	// Every reconstruction invalidates the cached list and wakes the
	// websocket clients.
	coord.OnChange(func() {
		s.cache.Delete(conversationsCacheKey)
		s.hub.broadcastConversations(coord.Conversations(), string(coord.Status()))
	})

	return s
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.ServerConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start begins listening for HTTP and WebSocket connections.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg.Server)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.startedAt = time.Now()
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Server.Bind).
		Msg("api server ready")

	// Shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.hub.closeAll()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handler assembles the route mux behind the middleware chain.
func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return withMiddleware(mux, s.log, s.cfg.Server.AllowedOrigins)
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}
