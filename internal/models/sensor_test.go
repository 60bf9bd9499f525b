// internal/models/sensor_test.go
package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }

func validSensorInput() SensorInput {
	return SensorInput{
		Type:             strPtr("AQ"),
		Model:            strPtr("AQ-1000"),
		InstallationDate: strPtr("2024-01-01"),
		Status:           strPtr("active"),
	}
}

func TestParseSensorType(t *testing.T) {
	for _, st := range SensorTypes() {
		got, err := ParseSensorType(string(st))
		if err != nil {
			t.Errorf("ParseSensorType(%q) failed: %v", st, err)
		}
		if got != st {
			t.Errorf("ParseSensorType(%q) = %q", st, got)
		}
		if st.Label() == "" {
			t.Errorf("%q has no label", st)
		}
	}

	for _, code := range []string{"", "aq", "Air Quality", "XX"} {
		if _, err := ParseSensorType(code); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("ParseSensorType(%q) err = %v, want ErrInvalidInput", code, err)
		}
	}
}

func TestSensorTypes_Count(t *testing.T) {
	if n := len(SensorTypes()); n != 8 {
		t.Fatalf("len(SensorTypes()) = %d, want 8", n)
	}
	if SensorTypeUVIndex.Label() != "UV Index" {
		t.Errorf("UV label = %q", SensorTypeUVIndex.Label())
	}
}

func TestSensorInput_Build(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(in *SensorInput)
		wantErr bool
	}{
		{name: "valid", mutate: func(in *SensorInput) {}},
		{name: "missing type", mutate: func(in *SensorInput) { in.Type = nil }, wantErr: true},
		{name: "unknown type", mutate: func(in *SensorInput) { in.Type = strPtr("ZZ") }, wantErr: true},
		{name: "missing model", mutate: func(in *SensorInput) { in.Model = nil }, wantErr: true},
		{name: "empty model", mutate: func(in *SensorInput) { in.Model = strPtr("  ") }, wantErr: true},
		{name: "model at limit", mutate: func(in *SensorInput) { in.Model = strPtr(strings.Repeat("m", 50)) }},
		{name: "model too long", mutate: func(in *SensorInput) { in.Model = strPtr(strings.Repeat("m", 51)) }, wantErr: true},
		{name: "bad date", mutate: func(in *SensorInput) { in.InstallationDate = strPtr("01/01/2024") }, wantErr: true},
		{name: "impossible date", mutate: func(in *SensorInput) { in.InstallationDate = strPtr("2024-02-30") }, wantErr: true},
		{name: "missing status", mutate: func(in *SensorInput) { in.Status = nil }, wantErr: true},
		{name: "status too long", mutate: func(in *SensorInput) { in.Status = strPtr(strings.Repeat("s", 21)) }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validSensorInput()
			tt.mutate(&in)
			s, err := in.Build()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("Build() err = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Build() failed: %v", err)
			}
			if s.ID != 0 {
				t.Errorf("ID = %d, want 0 before storage", s.ID)
			}
		})
	}
}

func TestSensorInput_Patch(t *testing.T) {
	in := validSensorInput()
	base, err := in.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	base.ID = 7

	patch := SensorInput{Status: strPtr("offline")}
	got, err := patch.Patch(base)
	if err != nil {
		t.Fatalf("Patch failed: %v", err)
	}
	if got.ID != 7 || got.Model != "AQ-1000" || got.Type != SensorTypeAirQuality {
		t.Errorf("Patch changed untouched fields: %+v", got)
	}
	if got.Status != "offline" {
		t.Errorf("Status = %q, want offline", got.Status)
	}
	if base.Status != "active" {
		t.Errorf("Patch mutated base: %q", base.Status)
	}

	bad := SensorInput{Model: strPtr("")}
	if _, err := bad.Patch(base); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Patch with empty model err = %v", err)
	}
}

func TestDate_JSON(t *testing.T) {
	d, err := ParseDate("2024-01-01")
	if err != nil {
		t.Fatalf("ParseDate failed: %v", err)
	}
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `"2024-01-01"` {
		t.Errorf("Marshal = %s", data)
	}

	var decoded Date
	if err := json.Unmarshal([]byte(`"2023-12-31"`), &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.String() != "2023-12-31" {
		t.Errorf("decoded = %s", decoded)
	}
	if err := json.Unmarshal([]byte(`"yesterday"`), &decoded); err == nil {
		t.Error("expected error for non-date string")
	}
}

func TestSensor_String(t *testing.T) {
	s := &Sensor{Type: SensorTypeAirQuality, Model: "AQ-1000"}
	if got := s.String(); got != "AQ-1000 (AQ)" {
		t.Errorf("String() = %q", got)
	}
}
