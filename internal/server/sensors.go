package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/afroash/env-monitor/internal/models"
)

func (s *Server) listSensors(c echo.Context) error {
	sensors, err := s.store.ListSensors(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sensors)
}

func (s *Server) createSensor(c echo.Context) error {
	var in models.SensorInput
	if err := bindBody(c, &in); err != nil {
		return err
	}
	sensor, err := in.Build()
	if err != nil {
		return err
	}

	if err := s.store.CreateSensor(c.Request().Context(), sensor); err != nil {
		return err
	}

	s.hub.Publish(models.EventSensorCreated, sensor)
	s.logger.Info().Int64("sensor_id", sensor.ID).Str("sensor", sensor.String()).Msg("Sensor registered")
	return c.JSON(http.StatusCreated, sensor)
}

func (s *Server) getSensor(c echo.Context) error {
	id, err := pathID(c, "sensor")
	if err != nil {
		return err
	}
	sensor, err := s.store.GetSensor(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sensor)
}

func (s *Server) updateSensor(c echo.Context) error {
	id, err := pathID(c, "sensor")
	if err != nil {
		return err
	}
	var in models.SensorInput
	if err := bindBody(c, &in); err != nil {
		return err
	}
	sensor, err := in.Build()
	if err != nil {
		return err
	}
	sensor.ID = id

	return s.saveSensor(c, sensor)
}

func (s *Server) patchSensor(c echo.Context) error {
	id, err := pathID(c, "sensor")
	if err != nil {
		return err
	}
	var in models.SensorInput
	if err := bindBody(c, &in); err != nil {
		return err
	}

	current, err := s.store.GetSensor(c.Request().Context(), id)
	if err != nil {
		return err
	}
	sensor, err := in.Patch(current)
	if err != nil {
		return err
	}

	return s.saveSensor(c, sensor)
}

func (s *Server) saveSensor(c echo.Context, sensor *models.Sensor) error {
	if err := s.store.UpdateSensor(c.Request().Context(), sensor); err != nil {
		return err
	}
	s.hub.Publish(models.EventSensorUpdated, sensor)
	return c.JSON(http.StatusOK, sensor)
}

func (s *Server) deleteSensor(c echo.Context) error {
	id, err := pathID(c, "sensor")
	if err != nil {
		return err
	}
	if err := s.store.DeleteSensor(c.Request().Context(), id); err != nil {
		return err
	}

	s.hub.Publish(models.EventSensorDeleted, models.Ref{ID: id})
	s.logger.Info().Int64("sensor_id", id).Msg("Sensor deleted with its readings and alerts")
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listSensorReadings(c echo.Context) error {
	id, err := pathID(c, "sensor")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if _, err := s.store.GetSensor(ctx, id); err != nil {
		return err
	}
	readings, err := s.store.ListReadings(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, readings)
}

func (s *Server) listSensorAlerts(c echo.Context) error {
	id, err := pathID(c, "sensor")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if _, err := s.store.GetSensor(ctx, id); err != nil {
		return err
	}
	alerts, err := s.store.ListAlerts(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, alerts)
}
