package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sundayezeilo/shortlinks/internal/config"
	"github.com/sundayezeilo/shortlinks/internal/httpx"
	"github.com/sundayezeilo/shortlinks/internal/metrics"
	"github.com/sundayezeilo/shortlinks/internal/shortener"
)

// Server is the HTTP front of the link service.
type Server struct {
	config  *config.Config
	logger  *slog.Logger
	links   *shortener.Handler
	metrics *metrics.Metrics
	handler http.Handler
	server  *http.Server
}

// New builds the route table and middleware chain. m may be nil.
func New(cfg *config.Config, logger *slog.Logger, links *shortener.Handler, m *metrics.Metrics) *Server {
	s := &Server{
		config:  cfg,
		logger:  logger,
		links:   links,
		metrics: m,
	}
	s.handler = s.applyMiddleware(s.setupRoutes())
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Start serves until ctx is done, then shuts down gracefully within the
// configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Server.Addr(),
		Handler:      s.handler,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server",
			"addr", s.server.Addr,
			"env", s.config.App.Environment,
		)
		serverErrors <- s.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		s.logger.Info("stopping http server", "cause", context.Cause(ctx))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()

		if err := s.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	}
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /x/health", s.healthCheckHandler)
	if s.config.Observability.MetricsEnabled {
		mux.Handle("GET "+s.config.Observability.MetricsPath, s.metrics.Handler())
	}

	s.links.RegisterRoutes(mux)
	return mux
}

func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	return httpx.Chain(
		httpx.Recovery(s.logger), // outermost: catch panics
		httpx.RequestID,
		httpx.Logger(s.logger),
		httpx.Observe(s.metrics),
		httpx.CORS(s.config.Server.AllowedOrigins),
	)(handler)
}

func (s *Server) healthCheckHandler(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": s.config.Observability.ServiceName,
		"version": s.config.Observability.ServiceVersion,
	})
}

// Shutdown stops accepting connections and waits for in-flight requests.
// On timeout, remaining connections are closed forcibly.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("shutdown timeout exceeded, forcing close")
			return s.server.Close()
		}
		return err
	}
	return nil
}
