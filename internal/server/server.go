package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/bonddesk/internal/domain"
	"github.com/alanyoungcy/bonddesk/internal/server/handler"
	"github.com/alanyoungcy/bonddesk/internal/server/middleware"
	"github.com/alanyoungcy/bonddesk/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigins []string
	// RateLimit requests per RateWindow per client IP; zero disables.
	RateLimit   int
	RateWindow  time.Duration
	MetricsPath string
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Analytics, Sync and Metrics may be nil.
type Handlers struct {
	Health    *handler.HealthHandler
	Bonds     *handler.BondHandler
	Orders    *handler.OrderHandler
	Portfolio *handler.PortfolioHandler
	Watchlist *handler.WatchlistHandler
	Sync      *handler.SyncHandler
	Analytics *handler.AnalyticsHandler
	Metrics   http.Handler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in the middleware
// chain. limiter may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /api/bonds", handlers.Bonds.ListBonds)
	mux.HandleFunc("GET /api/bonds/{id}", handlers.Bonds.GetBond)
	mux.HandleFunc("GET /api/bonds/{id}/quote", handlers.Bonds.GetQuote)
	mux.HandleFunc("GET /api/bonds/{id}/order-book", handlers.Bonds.GetOrderBook)
	mux.HandleFunc("GET /api/bonds/{id}/prices", handlers.Bonds.GetPrices)
	mux.HandleFunc("GET /api/bonds/{id}/price-chart", handlers.Bonds.GetPriceChart)

	if handlers.Analytics != nil {
		mux.HandleFunc("GET /api/bonds/{id}/analytics/yield", handlers.Analytics.PriceToYield)
		mux.HandleFunc("GET /api/bonds/{id}/analytics/price", handlers.Analytics.YieldToPrice)
		mux.HandleFunc("POST /api/bonds/{id}/analytics/markup", handlers.Analytics.Markup)
	}

	mux.HandleFunc("GET /api/orders", handlers.Orders.ListOrders)
	mux.HandleFunc("GET /api/orders/{id}", handlers.Orders.GetOrder)
	mux.HandleFunc("POST /api/orders", handlers.Orders.PlaceOrder)
	mux.HandleFunc("POST /api/orders/{id}/cancel", handlers.Orders.CancelOrder)

	mux.HandleFunc("GET /api/portfolio", handlers.Portfolio.GetPortfolio)
	mux.HandleFunc("POST /api/portfolio", handlers.Portfolio.AddHolding)
	mux.HandleFunc("DELETE /api/portfolio/{id}", handlers.Portfolio.RemoveHolding)

	mux.HandleFunc("GET /api/watchlist", handlers.Watchlist.List)
	mux.HandleFunc("POST /api/watchlist", handlers.Watchlist.Add)
	mux.HandleFunc("DELETE /api/watchlist/{bondId}", handlers.Watchlist.Remove)

	if handlers.Sync != nil {
		mux.HandleFunc("POST /api/sync-bonds", handlers.Sync.SyncBonds)
		mux.HandleFunc("POST /api/sync/quotes", handlers.Sync.TriggerQuotes)
	}

	metricsPath := cfg.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	if handlers.Metrics != nil {
		mux.Handle("GET "+metricsPath, handlers.Metrics)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow, "/ws", metricsPath, "/api/health")(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "server")),
	}
}

// Handler returns the fully wrapped handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
