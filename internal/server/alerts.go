package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/afroash/env-monitor/internal/models"
)

func (s *Server) listAlerts(c echo.Context) error {
	sensorID, err := sensorFilter(c)
	if err != nil {
		return err
	}
	alerts, err := s.store.ListAlerts(c.Request().Context(), sensorID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, alerts)
}

func (s *Server) createAlert(c echo.Context) error {
	var in models.AlertInput
	if err := bindBody(c, &in); err != nil {
		return err
	}
	alert, err := in.Build()
	if err != nil {
		return err
	}

	if err := s.store.CreateAlert(c.Request().Context(), alert); err != nil {
		return err
	}

	s.hub.Publish(models.EventAlertCreated, alert)
	s.logger.Info().Int64("sensor_id", alert.SensorID).Int64("alert_id", alert.ID).Msg("Alert raised")
	return c.JSON(http.StatusCreated, alert)
}

func (s *Server) getAlert(c echo.Context) error {
	id, err := pathID(c, "alert")
	if err != nil {
		return err
	}
	alert, err := s.store.GetAlert(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, alert)
}

func (s *Server) updateAlert(c echo.Context) error {
	id, err := pathID(c, "alert")
	if err != nil {
		return err
	}
	var in models.AlertInput
	if err := bindBody(c, &in); err != nil {
		return err
	}
	alert, err := in.Build()
	if err != nil {
		return err
	}
	alert.ID = id

	return s.saveAlert(c, alert)
}

func (s *Server) patchAlert(c echo.Context) error {
	id, err := pathID(c, "alert")
	if err != nil {
		return err
	}
	var in models.AlertInput
	if err := bindBody(c, &in); err != nil {
		return err
	}

	current, err := s.store.GetAlert(c.Request().Context(), id)
	if err != nil {
		return err
	}
	alert, err := in.Patch(current)
	if err != nil {
		return err
	}

	return s.saveAlert(c, alert)
}

func (s *Server) saveAlert(c echo.Context, alert *models.Alert) error {
	if err := s.store.UpdateAlert(c.Request().Context(), alert); err != nil {
		return err
	}
	s.hub.Publish(models.EventAlertUpdated, alert)
	return c.JSON(http.StatusOK, alert)
}

func (s *Server) deleteAlert(c echo.Context) error {
	id, err := pathID(c, "alert")
	if err != nil {
		return err
	}
	if err := s.store.DeleteAlert(c.Request().Context(), id); err != nil {
		return err
	}
	s.hub.Publish(models.EventAlertDeleted, models.Ref{ID: id})
	return c.NoContent(http.StatusNoContent)
}
