package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/afroash/env-monitor/internal/models"
)

// Compile-time interface check
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore persists sensors, readings and alerts with database/sql.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(dbPath string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	// Configure connection pool for SQLite (single writer)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := requireForeignKeys(db); err != nil {
		db.Close()
		return nil, err
	}

	store := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := store.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info().Str("path", dbPath).Msg("SQLite store initialized")

	return store, nil
}

// requireForeignKeys fails if the connection does not enforce foreign keys,
// since cascade deletes depend on it.
func requireForeignKeys(db *sql.DB) error {
	var enabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
		return fmt.Errorf("failed to read foreign_keys pragma: %w", err)
	}
	if enabled != 1 {
		return errors.New("sqlite foreign key enforcement is disabled")
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate creates the database schema if it doesn't exist
func (s *SQLiteStore) Migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	s.logger.Debug().Msg("Database schema migrated")
	return nil
}

// Ping checks the database connection
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateSensor inserts s and sets its ID
func (s *SQLiteStore) CreateSensor(ctx context.Context, sensor *models.Sensor) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO sensors (type, model, installation_date, status)
		VALUES (?, ?, ?, ?)
	`,
		string(sensor.Type),
		sensor.Model,
		sensor.InstallationDate.String(),
		sensor.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sensor: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get sensor id: %w", err)
	}
	sensor.ID = id

	s.logger.Debug().Int64("sensor_id", id).Str("type", string(sensor.Type)).Msg("Sensor created")
	return nil
}

// GetSensor returns the sensor with the given id
func (s *SQLiteStore) GetSensor(ctx context.Context, id int64) (*models.Sensor, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, model, installation_date, status
		FROM sensors
		WHERE id = ?
	`, id)

	sensor, err := scanSensor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("sensor", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sensor: %w", err)
	}
	return sensor, nil
}

// ListSensors returns all sensors in insertion order
func (s *SQLiteStore) ListSensors(ctx context.Context) ([]*models.Sensor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, model, installation_date, status
		FROM sensors
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sensors: %w", err)
	}
	defer rows.Close()

	sensors := make([]*models.Sensor, 0)
	for rows.Next() {
		sensor, err := scanSensor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sensor: %w", err)
		}
		sensors = append(sensors, sensor)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return sensors, nil
}

// UpdateSensor replaces every mutable field of the sensor with sensor.ID
func (s *SQLiteStore) UpdateSensor(ctx context.Context, sensor *models.Sensor) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE sensors
		SET type = ?, model = ?, installation_date = ?, status = ?
		WHERE id = ?
	`,
		string(sensor.Type),
		sensor.Model,
		sensor.InstallationDate.String(),
		sensor.Status,
		sensor.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update sensor: %w", err)
	}
	return requireAffected(result, "sensor", sensor.ID)
}

// DeleteSensor removes a sensor; readings and alerts go with it through
// ON DELETE CASCADE.
func (s *SQLiteStore) DeleteSensor(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, "DELETE FROM sensors WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete sensor: %w", err)
	}
	if err := requireAffected(result, "sensor", id); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug().Int64("sensor_id", id).Msg("Sensor deleted with its readings and alerts")
	return nil
}

// CreateReading inserts r, setting its ID and Timestamp
func (s *SQLiteStore) CreateReading(ctx context.Context, r *models.Reading) error {
	ts := now()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO readings (sensor_id, timestamp, pm25, pm10, co2)
		VALUES (?, ?, ?, ?, ?)
	`,
		r.SensorID,
		formatTimestamp(ts),
		r.PM25,
		r.PM10,
		r.CO2,
	)
	if isForeignKeyViolation(err) {
		return notFound("sensor", r.SensorID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get reading id: %w", err)
	}
	r.ID = id
	r.Timestamp = ts

	s.logger.Debug().Int64("reading_id", id).Int64("sensor_id", r.SensorID).Msg("Reading created")
	return nil
}

// GetReading returns the reading with the given id
func (s *SQLiteStore) GetReading(ctx context.Context, id int64) (*models.Reading, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, sensor_id, timestamp, pm25, pm10, co2
		FROM readings
		WHERE id = ?
	`, id)

	r, err := scanReading(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("reading", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reading: %w", err)
	}
	return r, nil
}

// ListReadings returns readings ordered by id, optionally for one sensor
func (s *SQLiteStore) ListReadings(ctx context.Context, sensorID int64) ([]*models.Reading, error) {
	var rows *sql.Rows
	var err error

	if sensorID == 0 {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, sensor_id, timestamp, pm25, pm10, co2
			FROM readings
			ORDER BY id
		`)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, sensor_id, timestamp, pm25, pm10, co2
			FROM readings
			WHERE sensor_id = ?
			ORDER BY id
		`, sensorID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	readings := make([]*models.Reading, 0)
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return readings, nil
}

// UpdateReading replaces sensor, pm25, pm10 and co2. The stored timestamp is
// left alone and copied back into r.
func (s *SQLiteStore) UpdateReading(ctx context.Context, r *models.Reading) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE readings
		SET sensor_id = ?, pm25 = ?, pm10 = ?, co2 = ?
		WHERE id = ?
	`, r.SensorID, r.PM25, r.PM10, r.CO2, r.ID)
	if isForeignKeyViolation(err) {
		return notFound("sensor", r.SensorID)
	}
	if err != nil {
		return fmt.Errorf("failed to update reading: %w", err)
	}
	if err := requireAffected(result, "reading", r.ID); err != nil {
		return err
	}

	var ts string
	if err := tx.QueryRowContext(ctx, "SELECT timestamp FROM readings WHERE id = ?", r.ID).Scan(&ts); err != nil {
		return fmt.Errorf("failed to reload reading: %w", err)
	}
	if r.Timestamp, err = parseTimestamp(ts); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteReading removes a single reading
func (s *SQLiteStore) DeleteReading(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM readings WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete reading: %w", err)
	}
	return requireAffected(result, "reading", id)
}

// CreateAlert inserts a, setting its ID and Timestamp
func (s *SQLiteStore) CreateAlert(ctx context.Context, a *models.Alert) error {
	ts := now()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (sensor_id, timestamp, description)
		VALUES (?, ?, ?)
	`, a.SensorID, formatTimestamp(ts), a.Description)
	if isForeignKeyViolation(err) {
		return notFound("sensor", a.SensorID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get alert id: %w", err)
	}
	a.ID = id
	a.Timestamp = ts

	s.logger.Debug().Int64("alert_id", id).Int64("sensor_id", a.SensorID).Msg("Alert created")
	return nil
}

// GetAlert returns the alert with the given id
func (s *SQLiteStore) GetAlert(ctx context.Context, id int64) (*models.Alert, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, sensor_id, timestamp, description
		FROM alerts
		WHERE id = ?
	`, id)

	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("alert", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return a, nil
}

// ListAlerts returns alerts ordered by id, optionally for one sensor
func (s *SQLiteStore) ListAlerts(ctx context.Context, sensorID int64) ([]*models.Alert, error) {
	var rows *sql.Rows
	var err error

	if sensorID == 0 {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, sensor_id, timestamp, description
			FROM alerts
			ORDER BY id
		`)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, sensor_id, timestamp, description
			FROM alerts
			WHERE sensor_id = ?
			ORDER BY id
		`, sensorID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]*models.Alert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return alerts, nil
}

// UpdateAlert replaces sensor and description, keeping the stored timestamp
func (s *SQLiteStore) UpdateAlert(ctx context.Context, a *models.Alert) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE alerts
		SET sensor_id = ?, description = ?
		WHERE id = ?
	`, a.SensorID, a.Description, a.ID)
	if isForeignKeyViolation(err) {
		return notFound("sensor", a.SensorID)
	}
	if err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}
	if err := requireAffected(result, "alert", a.ID); err != nil {
		return err
	}

	var ts string
	if err := tx.QueryRowContext(ctx, "SELECT timestamp FROM alerts WHERE id = ?", a.ID).Scan(&ts); err != nil {
		return fmt.Errorf("failed to reload alert: %w", err)
	}
	if a.Timestamp, err = parseTimestamp(ts); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteAlert removes a single alert
func (s *SQLiteStore) DeleteAlert(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM alerts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
	}
	return requireAffected(result, "alert", id)
}

// Counts returns the number of rows in each table
func (s *SQLiteStore) Counts(ctx context.Context) (*Counts, error) {
	counts := &Counts{}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM sensors),
			(SELECT COUNT(*) FROM readings),
			(SELECT COUNT(*) FROM alerts)
	`).Scan(&counts.Sensors, &counts.Readings, &counts.Alerts)
	if err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}
	return counts, nil
}

func requireAffected(result sql.Result, entity string, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return notFound(entity, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSensor(row scanner) (*models.Sensor, error) {
	var s models.Sensor
	var sensorType, installed string

	if err := row.Scan(&s.ID, &sensorType, &s.Model, &installed, &s.Status); err != nil {
		return nil, err
	}

	s.Type = models.SensorType(sensorType)
	date, err := models.ParseDate(installed)
	if err != nil {
		return nil, fmt.Errorf("failed to parse installation_date: %w", err)
	}
	s.InstallationDate = date
	return &s, nil
}

func scanReading(row scanner) (*models.Reading, error) {
	var r models.Reading
	var ts string

	if err := row.Scan(&r.ID, &r.SensorID, &ts, &r.PM25, &r.PM10, &r.CO2); err != nil {
		return nil, err
	}

	t, err := parseTimestamp(ts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	r.Timestamp = t
	return &r, nil
}

func scanAlert(row scanner) (*models.Alert, error) {
	var a models.Alert
	var ts string

	if err := row.Scan(&a.ID, &a.SensorID, &ts, &a.Description); err != nil {
		return nil, err
	}

	t, err := parseTimestamp(ts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	a.Timestamp = t
	return &a, nil
}
