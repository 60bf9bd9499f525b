package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/afroash/env-monitor/internal/auth"
	"github.com/afroash/env-monitor/internal/metrics"
	"github.com/afroash/env-monitor/internal/storage"
	"github.com/afroash/env-monitor/internal/stream"
)

// Options wires the collaborators of the HTTP API. Hub and Metrics are
// optional.
type Options struct {
	Store   storage.Store
	Tokens  *auth.Registry
	Hub     *stream.Hub
	Metrics *metrics.Collector
	Logger  zerolog.Logger
	Version string
}

// Server is the REST API for sensors, readings and alerts.
type Server struct {
	echo      *echo.Echo
	store     storage.Store
	hub       *stream.Hub
	metrics   *metrics.Collector
	logger    zerolog.Logger
	version   string
	startTime time.Time
}

// New builds the echo router with all routes and middleware registered.
func New(opts Options) *Server {
	s := &Server{
		echo:      echo.New(),
		store:     opts.Store,
		hub:       opts.Hub,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		version:   opts.Version,
		startTime: time.Now(),
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(s.requestLogger())
	e.Use(middleware.Recover())

	e.GET("/health", s.handleHealth)
	if s.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.metrics))
	}

	api := e.Group("/api", auth.Middleware(opts.Tokens))

	api.GET("/sensors", s.listSensors)
	api.POST("/sensors", s.createSensor)
	api.GET("/sensors/:id", s.getSensor)
	api.PUT("/sensors/:id", s.updateSensor)
	api.PATCH("/sensors/:id", s.patchSensor)
	api.DELETE("/sensors/:id", s.deleteSensor)
	api.GET("/sensors/:id/data", s.listSensorReadings)
	api.GET("/sensors/:id/alerts", s.listSensorAlerts)

	api.GET("/data", s.listReadings)
	api.POST("/data", s.createReading)
	api.GET("/data/:id", s.getReading)
	api.PUT("/data/:id", s.updateReading)
	api.PATCH("/data/:id", s.patchReading)
	api.DELETE("/data/:id", s.deleteReading)

	api.GET("/alerts", s.listAlerts)
	api.POST("/alerts", s.createAlert)
	api.GET("/alerts/:id", s.getAlert)
	api.PUT("/alerts/:id", s.updateAlert)
	api.PATCH("/alerts/:id", s.patchAlert)
	api.DELETE("/alerts/:id", s.deleteAlert)

	api.GET("/stats", s.handleStats)
	if s.hub != nil {
		api.GET("/stream", echo.WrapHandler(s.hub))
	}

	return s
}

// ServeHTTP makes Server usable as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// requestLogger writes one access log line per request and feeds the
// request counter.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if s.metrics != nil {
				s.metrics.ObserveRequest(v.Method, v.Status)
			}

			event := s.logger.Info()
			if v.Status >= http.StatusInternalServerError {
				event = s.logger.Error().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("principal", auth.PrincipalFrom(c)).
				Msg("Request handled")
			return nil
		},
	})
}
