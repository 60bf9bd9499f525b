package models

import (
	"fmt"
	"math"
	"time"
)

// Reading is one measurement batch emitted by a sensor. Timestamp is set by
// the store when the reading is created and never changes afterwards.
type Reading struct {
	ID        int64     `json:"id"`
	SensorID  int64     `json:"sensor"`
	Timestamp time.Time `json:"timestamp"`
	PM25      float64   `json:"pm25"`
	PM10      float64   `json:"pm10"`
	CO2       float64   `json:"co2"`
}

// Validate checks the sensor reference and that every measurement is finite.
func (r *Reading) Validate() error {
	if r.SensorID <= 0 {
		return fmt.Errorf("%w: sensor is required", ErrInvalidInput)
	}
	for name, v := range map[string]float64{"pm25": r.PM25, "pm10": r.PM10, "co2": r.CO2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be a finite number", ErrInvalidInput, name)
		}
	}
	return nil
}

func (r *Reading) String() string {
	return fmt.Sprintf("Data from sensor %d at %s", r.SensorID, r.Timestamp.Format(time.RFC3339))
}

// ReadingInput is the request body for readings. Only sensor, pm25, pm10 and
// co2 are persisted; any other field a device sends (temperature, humidity,
// wind_speed, ...) is accepted and dropped by the JSON decoder.
type ReadingInput struct {
	Sensor *int64   `json:"sensor"`
	PM25   *float64 `json:"pm25"`
	PM10   *float64 `json:"pm10"`
	CO2    *float64 `json:"co2"`
}

// Build returns a new Reading from a complete payload.
func (in *ReadingInput) Build() (*Reading, error) {
	switch {
	case in.Sensor == nil:
		return nil, fmt.Errorf("%w: sensor is required", ErrInvalidInput)
	case in.PM25 == nil:
		return nil, fmt.Errorf("%w: pm25 is required", ErrInvalidInput)
	case in.PM10 == nil:
		return nil, fmt.Errorf("%w: pm10 is required", ErrInvalidInput)
	case in.CO2 == nil:
		return nil, fmt.Errorf("%w: co2 is required", ErrInvalidInput)
	}
	return in.Patch(&Reading{})
}

// Patch returns a copy of base with the present fields applied.
func (in *ReadingInput) Patch(base *Reading) (*Reading, error) {
	r := *base
	if in.Sensor != nil {
		r.SensorID = *in.Sensor
	}
	if in.PM25 != nil {
		r.PM25 = *in.PM25
	}
	if in.PM10 != nil {
		r.PM10 = *in.PM10
	}
	if in.CO2 != nil {
		r.CO2 = *in.CO2
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}
