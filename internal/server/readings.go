package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/afroash/env-monitor/internal/models"
)

func (s *Server) listReadings(c echo.Context) error {
	sensorID, err := sensorFilter(c)
	if err != nil {
		return err
	}
	readings, err := s.store.ListReadings(c.Request().Context(), sensorID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, readings)
}

func (s *Server) createReading(c echo.Context) error {
	var in models.ReadingInput
	if err := bindBody(c, &in); err != nil {
		return err
	}
	reading, err := in.Build()
	if err != nil {
		return err
	}

	if err := s.store.CreateReading(c.Request().Context(), reading); err != nil {
		return err
	}

	s.hub.Publish(models.EventReadingCreated, reading)
	s.logger.Debug().
		Int64("sensor_id", reading.SensorID).
		Float64("pm25", reading.PM25).
		Float64("pm10", reading.PM10).
		Float64("co2", reading.CO2).
		Msg("Reading stored")
	return c.JSON(http.StatusCreated, reading)
}

func (s *Server) getReading(c echo.Context) error {
	id, err := pathID(c, "reading")
	if err != nil {
		return err
	}
	reading, err := s.store.GetReading(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reading)
}

func (s *Server) updateReading(c echo.Context) error {
	id, err := pathID(c, "reading")
	if err != nil {
		return err
	}
	var in models.ReadingInput
	if err := bindBody(c, &in); err != nil {
		return err
	}
	reading, err := in.Build()
	if err != nil {
		return err
	}
	reading.ID = id

	return s.saveReading(c, reading)
}

func (s *Server) patchReading(c echo.Context) error {
	id, err := pathID(c, "reading")
	if err != nil {
		return err
	}
	var in models.ReadingInput
	if err := bindBody(c, &in); err != nil {
		return err
	}

	current, err := s.store.GetReading(c.Request().Context(), id)
	if err != nil {
		return err
	}
	reading, err := in.Patch(current)
	if err != nil {
		return err
	}

	return s.saveReading(c, reading)
}

func (s *Server) saveReading(c echo.Context, reading *models.Reading) error {
	if err := s.store.UpdateReading(c.Request().Context(), reading); err != nil {
		return err
	}
	s.hub.Publish(models.EventReadingUpdated, reading)
	return c.JSON(http.StatusOK, reading)
}

func (s *Server) deleteReading(c echo.Context) error {
	id, err := pathID(c, "reading")
	if err != nil {
		return err
	}
	if err := s.store.DeleteReading(c.Request().Context(), id); err != nil {
		return err
	}
	s.hub.Publish(models.EventReadingDeleted, models.Ref{ID: id})
	return c.NoContent(http.StatusNoContent)
}
