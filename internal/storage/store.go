package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/afroash/env-monitor/internal/models"
)

// ErrNotFound is returned when an id, or the sensor a record refers to, does
// not exist.
var ErrNotFound = errors.New("not found")

// Supported values for database.driver.
const (
	DriverSQLite = "sqlite"
	DriverGorm   = "gorm"
)

// Store is the persistence port for sensors and the readings and alerts they
// own. Deleting a sensor deletes its readings and alerts in the same
// transaction. Create methods assign ID (and Timestamp for readings and
// alerts) on the passed record.
type Store interface {
	CreateSensor(ctx context.Context, s *models.Sensor) error
	GetSensor(ctx context.Context, id int64) (*models.Sensor, error)
	ListSensors(ctx context.Context) ([]*models.Sensor, error)
	UpdateSensor(ctx context.Context, s *models.Sensor) error
	DeleteSensor(ctx context.Context, id int64) error

	CreateReading(ctx context.Context, r *models.Reading) error
	GetReading(ctx context.Context, id int64) (*models.Reading, error)
	// ListReadings returns readings in id order; sensorID 0 means all sensors.
	ListReadings(ctx context.Context, sensorID int64) ([]*models.Reading, error)
	UpdateReading(ctx context.Context, r *models.Reading) error
	DeleteReading(ctx context.Context, id int64) error

	CreateAlert(ctx context.Context, a *models.Alert) error
	GetAlert(ctx context.Context, id int64) (*models.Alert, error)
	// ListAlerts returns alerts in id order; sensorID 0 means all sensors.
	ListAlerts(ctx context.Context, sensorID int64) ([]*models.Alert, error)
	UpdateAlert(ctx context.Context, a *models.Alert) error
	DeleteAlert(ctx context.Context, id int64) error

	Counts(ctx context.Context) (*Counts, error)
	Ping(ctx context.Context) error
	Close() error
}

// Counts holds row totals per table
type Counts struct {
	Sensors  int64 `json:"sensors"`
	Readings int64 `json:"readings"`
	Alerts   int64 `json:"alerts"`
}

// Open returns the Store implementation named by driver.
func Open(driver, dbPath string, logger zerolog.Logger) (Store, error) {
	switch driver {
	case DriverSQLite, "":
		return NewSQLiteStore(dbPath, logger)
	case DriverGorm:
		return NewGormStore(dbPath, logger)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}

// dsn enables foreign keys on every connection the driver opens.
func dsn(dbPath string) string {
	return dbPath + "?_foreign_keys=on&_busy_timeout=5000"
}

// notFound wraps ErrNotFound with the entity and id.
func notFound(entity string, id int64) error {
	return fmt.Errorf("%w: %s %d", ErrNotFound, entity, id)
}

// isForeignKeyViolation reports whether err is SQLite rejecting a reference to
// a sensor that does not exist (or was deleted concurrently).
func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}

func now() time.Time {
	return time.Now().UTC()
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTimestamp tries multiple formats to parse a SQLite timestamp
func parseTimestamp(ts string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, ts); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", ts)
}
