// Пакет server — HTTP-сервер Parco Verismo с graceful shutdown.
// Без TLS — TLS termination на reverse proxy.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/luigimeli-max/sito-parco-verismo/internal/api/handlers"
	"github.com/luigimeli-max/sito-parco-verismo/internal/api/middleware"
	"github.com/luigimeli-max/sito-parco-verismo/internal/config"
	"github.com/luigimeli-max/sito-parco-verismo/internal/i18n"
)

// Server — HTTP-сервер.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// NewRouter собирает маршрутизатор с глобальными middleware.
// jwtAuth nil — staff API не регистрируется.
func NewRouter(cfg *config.Config, logger *slog.Logger, handler *handlers.APIHandler, jwtAuth *middleware.JWTAuth) chi.Router {
	router := chi.NewRouter()

	router.Use(chimw.RequestID)
	if cfg.TrustProxy {
		router.Use(chimw.RealIP)
	}
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))
	router.Use(chimw.Recoverer)
	router.Use(i18n.Middleware())

	var staffAuth func(http.Handler) http.Handler
	if jwtAuth != nil {
		staffAuth = jwtAuth.Middleware()
	}
	handler.Mount(router, staffAuth)

	return router
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
func New(cfg *config.Config, logger *slog.Logger, handler *handlers.APIHandler, jwtAuth *middleware.JWTAuth) *Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           NewRouter(cfg, logger, handler, jwtAuth),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run обслуживает запросы до SIGINT/SIGTERM или ошибки listener'а,
// затем останавливает сервер за cfg.ShutdownTimeout.
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP-сервер запущен", slog.String("addr", s.httpServer.Addr))
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP-сервер: %w", err)
	case <-ctx.Done():
		s.logger.Info("Получен сигнал завершения, останавливаем сервер")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
