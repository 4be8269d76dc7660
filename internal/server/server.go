// Пакет server — HTTP-сервер портала с graceful shutdown.
// Без TLS — TLS termination выполняется на ingress.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nkrecruitment/portal/internal/api/handlers"
	"github.com/nkrecruitment/portal/internal/api/middleware"
	"github.com/nkrecruitment/portal/internal/config"
)

// RouterConfig — зависимости маршрутизатора помимо обработчика.
type RouterConfig struct {
	// Tokens — проверка сессионных токенов
	Tokens middleware.TokenParser
	// Limiter — счётчик запросов для публичных маршрутов; nil отключает ограничение
	Limiter middleware.Limiter
	// TrustedProxies — прокси, чей X-Forwarded-For учитывается; nil — только адрес соединения
	TrustedProxies *middleware.TrustedProxies

	SubmitLimit  int
	SubmitWindow time.Duration
	LoginLimit   int
	LoginWindow  time.Duration
}

// NewRouter строит маршруты API.
// Health и metrics обслуживаются без аутентификации.
func NewRouter(h *handlers.APIHandler, rc RouterConfig, logger *slog.Logger) http.Handler {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.RealIP(rc.TrustedProxies))
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	router.Get("/health/live", h.HealthLive)
	router.Get("/health/ready", h.HealthReady)
	router.Get("/metrics", h.GetMetrics)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(rc.Tokens, logger))

		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.RateLimit(rc.Limiter, "login", rc.LoginLimit, rc.LoginWindow)).
				Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.Get("/me", h.Me)
		})

		r.Route("/applications", func(r chi.Router) {
			r.With(middleware.RateLimit(rc.Limiter, "submit", rc.SubmitLimit, rc.SubmitWindow)).
				Post("/", h.SubmitApplication)
			r.Get("/", h.ListApplications)
			r.Get("/{id}", h.GetApplication)
			r.Delete("/{id}", h.DeleteApplication)
			r.Get("/{id}/cv", h.DownloadCV)
			r.Put("/{id}/status", h.UpdateApplicationStatus)
			r.Post("/{id}/notes", h.AddApplicationNote)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/dashboard", h.GetDashboard)
			r.Get("/users", h.ListUsers)
			r.Post("/users", h.CreateUser)
			r.Put("/users/{id}", h.UpdateUser)
			r.Delete("/users/{id}", h.DeleteUser)
		})
	})

	return router
}

// Server — HTTP-сервер портала.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер поверх готового маршрутизатора.
func New(cfg *config.Config, logger *slog.Logger, handler http.Handler) *Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "http_server")),
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM)
// или отмены ctx. После этого выполняется graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case <-ctx.Done():
		s.logger.Info("Контекст сервера отменён")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
