// Package healthserver exposes the node's liveness/readiness and Prometheus
// metrics endpoints over HTTP, using labstack/echo/v4 the way the rest of
// this codebase's ambient stack favors a maintained router over net/http's
// bare ServeMux (spec.md §6, "internal status endpoint").
package healthserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusProvider is the minimal read-only surface the /status endpoint
// reports, satisfied by small closures wired in cmd/preconf-sequencer/main.go
// rather than importing orchestrator/batchbuilder/watchdog directly here.
type StatusProvider interface {
	IsPreconfer() bool
	IsSubmitter() bool
	QueuedBatches() int
	WatchdogFailureStreak() uint64
}

type statusResponse struct {
	IsPreconfer            bool   `json:"isPreconfer"`
	IsSubmitter            bool   `json:"isSubmitter"`
	QueuedBatches          int    `json:"queuedBatches"`
	WatchdogFailureStreak  uint64 `json:"watchdogFailureStreak"`
}

// Server is the node's internal HTTP surface: /healthz, /status, /metrics.
type Server struct {
	echo   *echo.Echo
	status StatusProvider
}

// New builds a Server. status may be nil, in which case /status always
// reports the zero value (useful before the orchestrator has wired in).
func New(status StatusProvider) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, status: status}

	e.GET("/healthz", s.handleHealthz)
	e.GET("/status", s.handleStatus)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return s
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (s *Server) handleStatus(c echo.Context) error {
	if s.status == nil {
		return c.JSON(http.StatusOK, statusResponse{})
	}
	return c.JSON(http.StatusOK, statusResponse{
		IsPreconfer:           s.status.IsPreconfer(),
		IsSubmitter:           s.status.IsSubmitter(),
		QueuedBatches:         s.status.QueuedBatches(),
		WatchdogFailureStreak: s.status.WatchdogFailureStreak(),
	})
}

// Start runs the HTTP server in the background, logging and returning a
// start error (if any) synchronously via the returned channel, the same
// "start in goroutine, surface bind errors" shape driver.Client's dial-time
// callers expect elsewhere in this codebase.
func (s *Server) Start(addr string) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// Shutdown gracefully stops the server, waiting up to timeout for in-flight
// requests to finish.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.echo.Shutdown(ctx)
}
