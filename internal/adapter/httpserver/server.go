package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/shunguan/voteable/internal/adapter/metrics"
	"github.com/shunguan/voteable/internal/domain"
	"github.com/shunguan/voteable/internal/platform/config"
	"github.com/shunguan/voteable/internal/voting"
)

type appService interface {
	CreateVotee(ctx context.Context, voteeType string, refs map[string]uuid.UUID) (*domain.Votee, error)
	GetVotee(ctx context.Context, id uuid.UUID) (*domain.Votee, error)
	DeleteVotee(ctx context.Context, id uuid.UUID) error
	Vote(ctx context.Context, req voting.Request) (voting.Result, error)
	VoteValue(ctx context.Context, voteeID, voterID uuid.UUID) (domain.VoteValue, error)
	VotedBy(ctx context.Context, voteeType string, voterID uuid.UUID, value domain.VoteValue) ([]uuid.UUID, error)
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app            appService
	httpMetrics    *metrics.HTTPMetrics
	metricsHandler http.Handler
	healthChecks   []HealthCheck

	clock     clockwork.Clock
	startTime time.Time
}

func NewServer(cfg *config.Config, app appService, httpMetrics *metrics.HTTPMetrics, metricsHandler http.Handler, healthChecks []HealthCheck, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:           e,
		config:         cfg,
		app:            app,
		httpMetrics:    httpMetrics,
		metricsHandler: metricsHandler,
		healthChecks:   healthChecks,
		clock:          clock,
		startTime:      clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP lets the server be mounted or driven by httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
