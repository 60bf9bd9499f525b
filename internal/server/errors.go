package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/afroash/env-monitor/internal/auth"
	"github.com/afroash/env-monitor/internal/models"
	"github.com/afroash/env-monitor/internal/storage"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// httpErrorHandler maps domain errors onto status codes. Unknown errors are
// logged and reported as a generic 500.
func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, msg := s.classify(err, c)

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = c.JSON(status, ErrorResponse{Error: msg})
	}
	if werr != nil {
		s.logger.Warn().Err(werr).Msg("Failed to write error response")
	}
}

func (s *Server) classify(err error, c echo.Context) (int, string) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, err.Error()
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprint(he.Message)
	}

	s.logger.Error().Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("Unhandled error")
	return http.StatusInternalServerError, "internal server error"
}

// pathID parses the :id parameter. Anything that is not a positive integer
// cannot name a record, so it is reported as not found.
func pathID(c echo.Context, entity string) (int64, error) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s %q", storage.ErrNotFound, entity, raw)
	}
	return id, nil
}

// sensorFilter parses the optional ?sensor= query parameter. 0 means no filter.
func sensorFilter(c echo.Context) (int64, error) {
	raw := c.QueryParam("sensor")
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: sensor filter %q is not a valid id", models.ErrInvalidInput, raw)
	}
	return id, nil
}

// bindBody decodes the request body into v.
func bindBody(c echo.Context, v interface{}) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, v); err != nil {
		return fmt.Errorf("%w: malformed request body", models.ErrInvalidInput)
	}
	return nil
}
