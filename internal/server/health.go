package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/afroash/env-monitor/internal/storage"
	"github.com/afroash/env-monitor/internal/stream"
)

const healthTimeout = 800 * time.Millisecond

// HealthResponse is returned by /health
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Database string `json:"database"`
}

// StatsResponse contains row counts and live stream state
type StatsResponse struct {
	Counts      *storage.Counts      `json:"counts"`
	Subscribers int                  `json:"subscribers"`
	Stream      *stream.BacklogStats `json:"stream,omitempty"`
	LastUpdate  *time.Time           `json:"last_update,omitempty"` // Time of the latest change, if any since startup
}

func (s *Server) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:   "ok",
		Version:  s.version,
		Uptime:   time.Since(s.startTime).Round(time.Second).String(),
		Database: "ok",
	}
	status := http.StatusOK

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Health check: database ping failed")
		resp.Status = "degraded"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}

	return c.JSON(status, resp)
}

func (s *Server) handleStats(c echo.Context) error {
	counts, err := s.store.Counts(c.Request().Context())
	if err != nil {
		return err
	}

	resp := StatsResponse{Counts: counts}
	if s.hub != nil {
		stats := s.hub.Stats()
		resp.Stream = &stats
		resp.Subscribers = s.hub.Count()
		if !stats.LastEvent.IsZero() {
			last := stats.LastEvent
			resp.LastUpdate = &last
		}
	}

	return c.JSON(http.StatusOK, resp)
}
