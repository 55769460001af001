// Package server assembles the HTTP API: routes, middleware chain, metrics,
// and the WebSocket endpoint.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vaultline/artkey/internal/domain"
	"github.com/vaultline/artkey/internal/metrics"
	"github.com/vaultline/artkey/internal/server/handler"
	"github.com/vaultline/artkey/internal/server/middleware"
	"github.com/vaultline/artkey/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	AdminAPIKey string
	// RateLimit is requests per client per minute on mutating routes.
	// Zero disables rate limiting.
	RateLimit int
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health   *handler.HealthHandler
	Epoch    *handler.EpochHandler
	Mint     *handler.MintHandler
	Registry *handler.RegistryHandler
	Vote     *handler.VoteHandler
	Auction  *handler.AuctionHandler
	Reward   *handler.RewardHandler
	Events   *handler.EventsHandler
	Admin    *handler.AdminHandler
}

// Server is the public HTTP + WebSocket API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes on a ServeMux and wires the middleware
// chain: CORS, then logging, then per-route rate limiting and admin auth.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, m *metrics.Metrics, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Mutating routes get the per-client sliding-window limit; reads and
	// the health probe stay unthrottled.
	limited := func(h http.HandlerFunc) http.Handler {
		if limiter == nil || cfg.RateLimit <= 0 {
			return h
		}
		return middleware.RateLimit(limiter, cfg.RateLimit, time.Minute)(h)
	}
	admin := middleware.AdminAuth(cfg.AdminAPIKey)

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /api/epoch", handlers.Epoch.GetCurrent)

	mux.Handle("POST /api/mint", limited(handlers.Mint.Quote))
	mux.Handle("POST /api/mint/confirm", limited(handlers.Mint.Confirm))

	mux.Handle("POST /api/join", limited(handlers.Registry.JoinQuote))
	mux.Handle("POST /api/join/confirm", limited(handlers.Registry.JoinConfirm))
	mux.Handle("POST /api/withdraw", limited(handlers.Registry.Withdraw))
	mux.HandleFunc("GET /api/candidates", handlers.Registry.ListCandidates)
	mux.HandleFunc("GET /api/leaderboard", handlers.Registry.Leaderboard)
	mux.HandleFunc("GET /api/founders", handlers.Registry.ListFounders)

	mux.Handle("POST /api/vote", limited(handlers.Vote.FreeVote))
	mux.Handle("POST /api/vote-paid", limited(handlers.Vote.PaidVoteQuote))
	mux.Handle("POST /api/vote/confirm", limited(handlers.Vote.PaidVoteConfirm))
	mux.Handle("POST /api/predict", limited(handlers.Vote.Predict))
	mux.HandleFunc("GET /api/predictions/{wallet}/deck", handlers.Vote.Deck)
	mux.HandleFunc("GET /api/predictions/{wallet}/stats", handlers.Vote.Stats)

	mux.HandleFunc("GET /api/auction", handlers.Auction.GetCurrent)
	mux.HandleFunc("GET /api/auctions", handlers.Auction.ListUnsettled)
	mux.Handle("POST /api/bid", limited(handlers.Auction.BidQuote))
	mux.Handle("POST /api/bid/confirm", limited(handlers.Auction.BidConfirm))

	mux.HandleFunc("GET /api/rewards/{wallet}", handlers.Reward.GetRewards)
	mux.Handle("POST /api/rewards/claim", limited(handlers.Reward.Claim))

	mux.HandleFunc("GET /api/events/{topic}", handlers.Events.List)

	mux.Handle("POST /api/admin/pause", admin(http.HandlerFunc(handlers.Admin.SetPaused)))
	mux.Handle("GET /api/admin/state", admin(http.HandlerFunc(handlers.Admin.GetState)))

	mux.Handle("GET /metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
