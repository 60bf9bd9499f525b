package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// SensorType is the closed set of sensor categories. Values are the short
// codes stored and exchanged over the API.
type SensorType string

const (
	SensorTypeAirQuality    SensorType = "AQ"
	SensorTypeTemperature   SensorType = "TM"
	SensorTypePressure      SensorType = "PR"
	SensorTypeWindSpeed     SensorType = "WS"
	SensorTypeWindDirection SensorType = "WD"
	SensorTypeNoise         SensorType = "NO"
	SensorTypeLight         SensorType = "LT"
	SensorTypeUVIndex       SensorType = "UV"
)

var sensorTypeLabels = map[SensorType]string{
	SensorTypeAirQuality:    "Air Quality",
	SensorTypeTemperature:   "Temperature",
	SensorTypePressure:      "Pressure",
	SensorTypeWindSpeed:     "Wind Speed",
	SensorTypeWindDirection: "Wind Direction",
	SensorTypeNoise:         "Noise",
	SensorTypeLight:         "Light",
	SensorTypeUVIndex:       "UV Index",
}

// SensorTypes returns every valid sensor type in declaration order.
func SensorTypes() []SensorType {
	return []SensorType{
		SensorTypeAirQuality,
		SensorTypeTemperature,
		SensorTypePressure,
		SensorTypeWindSpeed,
		SensorTypeWindDirection,
		SensorTypeNoise,
		SensorTypeLight,
		SensorTypeUVIndex,
	}
}

// ParseSensorType returns the SensorType for a code such as "AQ".
func ParseSensorType(code string) (SensorType, error) {
	t := SensorType(code)
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown sensor type %q", ErrInvalidInput, code)
	}
	return t, nil
}

// Valid reports whether t is one of the known codes.
func (t SensorType) Valid() bool {
	_, ok := sensorTypeLabels[t]
	return ok
}

// Label returns the human readable name, e.g. "Air Quality".
func (t SensorType) Label() string {
	return sensorTypeLabels[t]
}

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date without time of day.
type Date struct {
	time.Time
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: installation_date %q is not a YYYY-MM-DD date", ErrInvalidInput, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON encodes the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a "YYYY-MM-DD" string.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

const (
	maxModelLength  = 50
	maxStatusLength = 20
)

// Sensor is a registered measuring device.
type Sensor struct {
	ID               int64      `json:"id"`
	Type             SensorType `json:"type"`
	Model            string     `json:"model"`
	InstallationDate Date       `json:"installation_date"`
	Status           string     `json:"status"`
}

// Validate checks every mutable field.
func (s *Sensor) Validate() error {
	if !s.Type.Valid() {
		return fmt.Errorf("%w: unknown sensor type %q", ErrInvalidInput, s.Type)
	}
	if strings.TrimSpace(s.Model) == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(s.Model); n > maxModelLength {
		return fmt.Errorf("%w: model is %d characters, at most %d allowed", ErrInvalidInput, n, maxModelLength)
	}
	if s.InstallationDate.IsZero() {
		return fmt.Errorf("%w: installation_date is required", ErrInvalidInput)
	}
	if strings.TrimSpace(s.Status) == "" {
		return fmt.Errorf("%w: status is required", ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(s.Status); n > maxStatusLength {
		return fmt.Errorf("%w: status is %d characters, at most %d allowed", ErrInvalidInput, n, maxStatusLength)
	}
	return nil
}

func (s *Sensor) String() string {
	return fmt.Sprintf("%s (%s)", s.Model, s.Type)
}

// SensorInput is the request body for create, replace and partial update.
// Absent fields are nil.
type SensorInput struct {
	Type             *string `json:"type"`
	Model            *string `json:"model"`
	InstallationDate *string `json:"installation_date"`
	Status           *string `json:"status"`
}

// Build returns a new Sensor from a complete payload.
func (in *SensorInput) Build() (*Sensor, error) {
	switch {
	case in.Type == nil:
		return nil, fmt.Errorf("%w: type is required", ErrInvalidInput)
	case in.Model == nil:
		return nil, fmt.Errorf("%w: model is required", ErrInvalidInput)
	case in.InstallationDate == nil:
		return nil, fmt.Errorf("%w: installation_date is required", ErrInvalidInput)
	case in.Status == nil:
		return nil, fmt.Errorf("%w: status is required", ErrInvalidInput)
	}
	return in.Patch(&Sensor{})
}

// Patch returns a copy of base with the present fields applied.
func (in *SensorInput) Patch(base *Sensor) (*Sensor, error) {
	s := *base
	if in.Type != nil {
		t, err := ParseSensorType(*in.Type)
		if err != nil {
			return nil, err
		}
		s.Type = t
	}
	if in.Model != nil {
		s.Model = *in.Model
	}
	if in.InstallationDate != nil {
		d, err := ParseDate(*in.InstallationDate)
		if err != nil {
			return nil, err
		}
		s.InstallationDate = d
	}
	if in.Status != nil {
		s.Status = *in.Status
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
