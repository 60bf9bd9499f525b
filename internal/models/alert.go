package models

import (
	"fmt"
	"strings"
	"time"
)

// Alert is a free-text notice about a sensor. Alerts are only ever created by
// callers; nothing in this service derives them from readings.
type Alert struct {
	ID          int64     `json:"id"`
	SensorID    int64     `json:"sensor"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
}

func (a *Alert) Validate() error {
	if a.SensorID <= 0 {
		return fmt.Errorf("%w: sensor is required", ErrInvalidInput)
	}
	if strings.TrimSpace(a.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	return nil
}

func (a *Alert) String() string {
	return fmt.Sprintf("Alert for sensor %d at %s", a.SensorID, a.Timestamp.Format(time.RFC3339))
}

// AlertInput is the request body for alerts.
type AlertInput struct {
	Sensor      *int64  `json:"sensor"`
	Description *string `json:"description"`
}

// Build returns a new Alert from a complete payload.
func (in *AlertInput) Build() (*Alert, error) {
	switch {
	case in.Sensor == nil:
		return nil, fmt.Errorf("%w: sensor is required", ErrInvalidInput)
	case in.Description == nil:
		return nil, fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	return in.Patch(&Alert{})
}

// Patch returns a copy of base with the present fields applied.
func (in *AlertInput) Patch(base *Alert) (*Alert, error) {
	a := *base
	if in.Sensor != nil {
		a.SensorID = *in.Sensor
	}
	if in.Description != nil {
		a.Description = *in.Description
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}
