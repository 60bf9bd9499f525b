package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/afroash/env-monitor/internal/models"
)

// forEachStore runs fn against every Store implementation.
func forEachStore(t *testing.T, fn func(t *testing.T, store Store)) {
	for _, driver := range []string{DriverSQLite, DriverGorm} {
		t.Run(driver, func(t *testing.T) {
			store, err := Open(driver, filepath.Join(t.TempDir(), "test.db"), testLogger())
			if err != nil {
				t.Fatalf("Failed to open %s store: %v", driver, err)
			}
			defer store.Close()
			fn(t, store)
		})
	}
}

func newTestSensor(t *testing.T, model string) *models.Sensor {
	t.Helper()
	date, err := models.ParseDate("2024-01-15")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	return &models.Sensor{
		Type:             models.SensorTypeAirQuality,
		Model:            model,
		InstallationDate: date,
		Status:           "active",
	}
}

func mustCreateSensor(t *testing.T, store Store, model string) *models.Sensor {
	t.Helper()
	s := newTestSensor(t, model)
	if err := store.CreateSensor(context.Background(), s); err != nil {
		t.Fatalf("CreateSensor: %v", err)
	}
	return s
}

func TestStore_SensorCRUD(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		s := mustCreateSensor(t, store, "AQ-1000")
		if s.ID == 0 {
			t.Fatal("Expected ID to be set")
		}

		got, err := store.GetSensor(ctx, s.ID)
		if err != nil {
			t.Fatalf("GetSensor: %v", err)
		}
		if got.Model != "AQ-1000" || got.Type != models.SensorTypeAirQuality || got.Status != "active" {
			t.Errorf("Unexpected sensor: %+v", got)
		}
		if got.InstallationDate.String() != "2024-01-15" {
			t.Errorf("Expected date 2024-01-15, got %s", got.InstallationDate)
		}

		got.Model = "AQ-2000"
		got.Type = models.SensorTypeTemperature
		got.Status = "maintenance"
		if err := store.UpdateSensor(ctx, got); err != nil {
			t.Fatalf("UpdateSensor: %v", err)
		}
		updated, _ := store.GetSensor(ctx, s.ID)
		if updated.Model != "AQ-2000" || updated.Type != models.SensorTypeTemperature || updated.Status != "maintenance" {
			t.Errorf("Update not applied: %+v", updated)
		}

		if err := store.DeleteSensor(ctx, s.ID); err != nil {
			t.Fatalf("DeleteSensor: %v", err)
		}
		if _, err := store.GetSensor(ctx, s.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound after delete, got %v", err)
		}
	})
}

func TestStore_SensorNotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		if _, err := store.GetSensor(ctx, 999); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetSensor: expected ErrNotFound, got %v", err)
		}
		missing := newTestSensor(t, "ghost")
		missing.ID = 999
		if err := store.UpdateSensor(ctx, missing); !errors.Is(err, ErrNotFound) {
			t.Errorf("UpdateSensor: expected ErrNotFound, got %v", err)
		}
		if err := store.DeleteSensor(ctx, 999); !errors.Is(err, ErrNotFound) {
			t.Errorf("DeleteSensor: expected ErrNotFound, got %v", err)
		}

		counts, err := store.Counts(ctx)
		if err != nil {
			t.Fatalf("Counts: %v", err)
		}
		if counts.Sensors != 0 {
			t.Errorf("Update of missing sensor must not create one, got %d", counts.Sensors)
		}
	})
}

func TestStore_IDsNotReused(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		first := mustCreateSensor(t, store, "one")
		second := mustCreateSensor(t, store, "two")
		if first.ID == second.ID {
			t.Fatalf("Expected distinct ids, both %d", first.ID)
		}

		if err := store.DeleteSensor(ctx, second.ID); err != nil {
			t.Fatalf("DeleteSensor: %v", err)
		}
		third := mustCreateSensor(t, store, "three")
		if third.ID <= second.ID {
			t.Errorf("Expected id > %d after delete, got %d", second.ID, third.ID)
		}
	})
}

func TestStore_ListSensorsOrdered(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		for _, m := range []string{"a", "b", "c"} {
			mustCreateSensor(t, store, m)
		}

		sensors, err := store.ListSensors(context.Background())
		if err != nil {
			t.Fatalf("ListSensors: %v", err)
		}
		if len(sensors) != 3 {
			t.Fatalf("Expected 3 sensors, got %d", len(sensors))
		}
		for i := 1; i < len(sensors); i++ {
			if sensors[i].ID <= sensors[i-1].ID {
				t.Errorf("Sensors not in id order: %d after %d", sensors[i].ID, sensors[i-1].ID)
			}
		}
	})
}

func TestStore_ReadingCRUD(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		s := mustCreateSensor(t, store, "AQ-1000")

		r := &models.Reading{SensorID: s.ID, PM25: 12.5, PM10: 20, CO2: 410}
		if err := store.CreateReading(ctx, r); err != nil {
			t.Fatalf("CreateReading: %v", err)
		}
		if r.ID == 0 || r.Timestamp.IsZero() {
			t.Fatalf("Expected id and timestamp to be set: %+v", r)
		}

		got, err := store.GetReading(ctx, r.ID)
		if err != nil {
			t.Fatalf("GetReading: %v", err)
		}
		if got.PM25 != 12.5 || got.PM10 != 20 || got.CO2 != 410 || got.SensorID != s.ID {
			t.Errorf("Unexpected reading: %+v", got)
		}
		if !got.Timestamp.Equal(r.Timestamp) {
			t.Errorf("Timestamp changed on read: %v vs %v", got.Timestamp, r.Timestamp)
		}

		got.PM25 = 30
		if err := store.UpdateReading(ctx, got); err != nil {
			t.Fatalf("UpdateReading: %v", err)
		}
		if !got.Timestamp.Equal(r.Timestamp) {
			t.Errorf("Update must keep timestamp: %v vs %v", got.Timestamp, r.Timestamp)
		}
		reloaded, _ := store.GetReading(ctx, r.ID)
		if reloaded.PM25 != 30 {
			t.Errorf("Expected pm25 30, got %v", reloaded.PM25)
		}

		if err := store.DeleteReading(ctx, r.ID); err != nil {
			t.Fatalf("DeleteReading: %v", err)
		}
		if err := store.DeleteReading(ctx, r.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound on second delete, got %v", err)
		}
	})
}

func TestStore_ReadingMissingSensor(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		r := &models.Reading{SensorID: 42, PM25: 1, PM10: 1, CO2: 1}
		if err := store.CreateReading(ctx, r); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Expected ErrNotFound, got %v", err)
		}

		counts, _ := store.Counts(ctx)
		if counts.Readings != 0 {
			t.Errorf("Expected no readings, got %d", counts.Readings)
		}

		s := mustCreateSensor(t, store, "AQ-1000")
		ok := &models.Reading{SensorID: s.ID, PM25: 1, PM10: 1, CO2: 1}
		if err := store.CreateReading(ctx, ok); err != nil {
			t.Fatalf("CreateReading: %v", err)
		}
		ok.SensorID = 42
		if err := store.UpdateReading(ctx, ok); !errors.Is(err, ErrNotFound) {
			t.Errorf("Update to missing sensor: expected ErrNotFound, got %v", err)
		}
	})
}

func TestStore_AlertCRUD(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		s := mustCreateSensor(t, store, "AQ-1000")

		a := &models.Alert{SensorID: s.ID, Description: "PM2.5 above threshold"}
		if err := store.CreateAlert(ctx, a); err != nil {
			t.Fatalf("CreateAlert: %v", err)
		}

		a.Description = "resolved"
		created := a.Timestamp
		if err := store.UpdateAlert(ctx, a); err != nil {
			t.Fatalf("UpdateAlert: %v", err)
		}
		if !a.Timestamp.Equal(created) {
			t.Errorf("Update must keep timestamp")
		}

		got, err := store.GetAlert(ctx, a.ID)
		if err != nil {
			t.Fatalf("GetAlert: %v", err)
		}
		if got.Description != "resolved" {
			t.Errorf("Expected description resolved, got %q", got.Description)
		}

		missing := &models.Alert{ID: 999, SensorID: s.ID, Description: "x"}
		if err := store.UpdateAlert(ctx, missing); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
		counts, _ := store.Counts(ctx)
		if counts.Alerts != 1 {
			t.Errorf("Expected 1 alert, got %d", counts.Alerts)
		}

		if err := store.CreateAlert(ctx, &models.Alert{SensorID: 999, Description: "x"}); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound for missing sensor, got %v", err)
		}
	})
}

func TestStore_CascadeDelete(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		doomed := mustCreateSensor(t, store, "doomed")
		kept := mustCreateSensor(t, store, "kept")

		r := &models.Reading{SensorID: doomed.ID, PM25: 1, PM10: 2, CO2: 3}
		a := &models.Alert{SensorID: doomed.ID, Description: "bye"}
		other := &models.Reading{SensorID: kept.ID, PM25: 4, PM10: 5, CO2: 6}
		for _, err := range []error{
			store.CreateReading(ctx, r),
			store.CreateAlert(ctx, a),
			store.CreateReading(ctx, other),
		} {
			if err != nil {
				t.Fatalf("setup: %v", err)
			}
		}

		if err := store.DeleteSensor(ctx, doomed.ID); err != nil {
			t.Fatalf("DeleteSensor: %v", err)
		}

		if _, err := store.GetReading(ctx, r.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("Reading should be cascaded, got %v", err)
		}
		if _, err := store.GetAlert(ctx, a.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("Alert should be cascaded, got %v", err)
		}
		if _, err := store.GetReading(ctx, other.ID); err != nil {
			t.Errorf("Other sensor's reading should survive: %v", err)
		}

		counts, err := store.Counts(ctx)
		if err != nil {
			t.Fatalf("Counts: %v", err)
		}
		want := Counts{Sensors: 1, Readings: 1, Alerts: 0}
		if *counts != want {
			t.Errorf("Counts = %+v, want %+v", *counts, want)
		}
	})
}

func TestStore_ListFilteredBySensor(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		s1 := mustCreateSensor(t, store, "one")
		s2 := mustCreateSensor(t, store, "two")

		for _, sid := range []int64{s1.ID, s2.ID, s1.ID} {
			if err := store.CreateReading(ctx, &models.Reading{SensorID: sid, PM25: 1, PM10: 1, CO2: 1}); err != nil {
				t.Fatalf("CreateReading: %v", err)
			}
			if err := store.CreateAlert(ctx, &models.Alert{SensorID: sid, Description: "d"}); err != nil {
				t.Fatalf("CreateAlert: %v", err)
			}
		}

		all, _ := store.ListReadings(ctx, 0)
		if len(all) != 3 {
			t.Errorf("Expected 3 readings, got %d", len(all))
		}
		only, _ := store.ListReadings(ctx, s1.ID)
		if len(only) != 2 {
			t.Errorf("Expected 2 readings for sensor %d, got %d", s1.ID, len(only))
		}
		for _, r := range only {
			if r.SensorID != s1.ID {
				t.Errorf("Filter leaked reading for sensor %d", r.SensorID)
			}
		}

		alerts, _ := store.ListAlerts(ctx, s2.ID)
		if len(alerts) != 1 {
			t.Errorf("Expected 1 alert for sensor %d, got %d", s2.ID, len(alerts))
		}
		none, err := store.ListAlerts(ctx, 999)
		if err != nil {
			t.Fatalf("ListAlerts: %v", err)
		}
		if none == nil || len(none) != 0 {
			t.Errorf("Expected empty non-nil slice, got %v", none)
		}
	})
}

func TestStore_Ping(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		if err := store.Ping(context.Background()); err != nil {
			t.Errorf("Ping: %v", err)
		}
	})
}
