package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/afroash/env-monitor/internal/models"
)

var _ Store = (*GormStore)(nil)

// GormStore is the gorm-backed Store. It shares the schema of SQLiteStore, so
// either driver can open a database created by the other.
type GormStore struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	logger zerolog.Logger
}

type sensorRow struct {
	ID               int64  `gorm:"column:id;primaryKey"`
	Type             string `gorm:"column:type"`
	Model            string `gorm:"column:model"`
	InstallationDate string `gorm:"column:installation_date"`
	Status           string `gorm:"column:status"`
}

func (sensorRow) TableName() string { return "sensors" }

type readingRow struct {
	ID        int64   `gorm:"column:id;primaryKey"`
	SensorID  int64   `gorm:"column:sensor_id"`
	Timestamp string  `gorm:"column:timestamp"`
	PM25      float64 `gorm:"column:pm25"`
	PM10      float64 `gorm:"column:pm10"`
	CO2       float64 `gorm:"column:co2"`
}

func (readingRow) TableName() string { return "readings" }

type alertRow struct {
	ID          int64  `gorm:"column:id;primaryKey"`
	SensorID    int64  `gorm:"column:sensor_id"`
	Timestamp   string `gorm:"column:timestamp"`
	Description string `gorm:"column:description"`
}

func (alertRow) TableName() string { return "alerts" }

// NewGormStore opens dbPath through gorm's SQLite dialector.
func NewGormStore(dbPath string, logger zerolog.Logger) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(dsn(dbPath)), &gorm.Config{
		Logger: newGormLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := requireForeignKeys(sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}

	store := &GormStore{db: db, sqlDB: sqlDB, logger: logger}
	if err := store.Migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info().Str("path", dbPath).Msg("Gorm store initialized")
	return store, nil
}

// Migrate creates the database schema if it doesn't exist
func (s *GormStore) Migrate() error {
	if err := s.db.Exec(schema).Error; err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *GormStore) Close() error {
	return s.sqlDB.Close()
}

func (s *GormStore) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

func (s *GormStore) CreateSensor(ctx context.Context, sensor *models.Sensor) error {
	row := toSensorRow(sensor)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert sensor: %w", err)
	}
	sensor.ID = row.ID
	return nil
}

func (s *GormStore) GetSensor(ctx context.Context, id int64) (*models.Sensor, error) {
	var row sensorRow
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("sensor", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sensor: %w", err)
	}
	return row.toModel()
}

func (s *GormStore) ListSensors(ctx context.Context) ([]*models.Sensor, error) {
	var rows []sensorRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query sensors: %w", err)
	}

	sensors := make([]*models.Sensor, 0, len(rows))
	for _, row := range rows {
		sensor, err := row.toModel()
		if err != nil {
			return nil, err
		}
		sensors = append(sensors, sensor)
	}
	return sensors, nil
}

func (s *GormStore) UpdateSensor(ctx context.Context, sensor *models.Sensor) error {
	res := s.db.WithContext(ctx).Model(&sensorRow{}).Where("id = ?", sensor.ID).Updates(map[string]interface{}{
		"type":              string(sensor.Type),
		"model":             sensor.Model,
		"installation_date": sensor.InstallationDate.String(),
		"status":            sensor.Status,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update sensor: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("sensor", sensor.ID)
	}
	return nil
}

func (s *GormStore) DeleteSensor(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&sensorRow{}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete sensor: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return notFound("sensor", id)
		}
		return nil
	})
}

func (s *GormStore) CreateReading(ctx context.Context, r *models.Reading) error {
	ts := now()
	row := readingRow{
		SensorID:  r.SensorID,
		Timestamp: formatTimestamp(ts),
		PM25:      r.PM25,
		PM10:      r.PM10,
		CO2:       r.CO2,
	}
	err := s.db.WithContext(ctx).Create(&row).Error
	if isForeignKeyViolation(err) {
		return notFound("sensor", r.SensorID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	r.ID = row.ID
	r.Timestamp = ts
	return nil
}

func (s *GormStore) GetReading(ctx context.Context, id int64) (*models.Reading, error) {
	var row readingRow
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("reading", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reading: %w", err)
	}
	return row.toModel()
}

func (s *GormStore) ListReadings(ctx context.Context, sensorID int64) ([]*models.Reading, error) {
	q := s.db.WithContext(ctx).Order("id")
	if sensorID != 0 {
		q = q.Where("sensor_id = ?", sensorID)
	}

	var rows []readingRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}

	readings := make([]*models.Reading, 0, len(rows))
	for _, row := range rows {
		r, err := row.toModel()
		if err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, nil
}

func (s *GormStore) UpdateReading(ctx context.Context, r *models.Reading) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&readingRow{}).Where("id = ?", r.ID).Updates(map[string]interface{}{
			"sensor_id": r.SensorID,
			"pm25":      r.PM25,
			"pm10":      r.PM10,
			"co2":       r.CO2,
		})
		if isForeignKeyViolation(res.Error) {
			return notFound("sensor", r.SensorID)
		}
		if res.Error != nil {
			return fmt.Errorf("failed to update reading: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return notFound("reading", r.ID)
		}

		var row readingRow
		if err := tx.First(&row, r.ID).Error; err != nil {
			return fmt.Errorf("failed to reload reading: %w", err)
		}
		ts, err := parseTimestamp(row.Timestamp)
		if err != nil {
			return err
		}
		r.Timestamp = ts
		return nil
	})
}

func (s *GormStore) DeleteReading(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&readingRow{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete reading: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("reading", id)
	}
	return nil
}

func (s *GormStore) CreateAlert(ctx context.Context, a *models.Alert) error {
	ts := now()
	row := alertRow{
		SensorID:    a.SensorID,
		Timestamp:   formatTimestamp(ts),
		Description: a.Description,
	}
	err := s.db.WithContext(ctx).Create(&row).Error
	if isForeignKeyViolation(err) {
		return notFound("sensor", a.SensorID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	a.ID = row.ID
	a.Timestamp = ts
	return nil
}

func (s *GormStore) GetAlert(ctx context.Context, id int64) (*models.Alert, error) {
	var row alertRow
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("alert", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return row.toModel()
}

func (s *GormStore) ListAlerts(ctx context.Context, sensorID int64) ([]*models.Alert, error) {
	q := s.db.WithContext(ctx).Order("id")
	if sensorID != 0 {
		q = q.Where("sensor_id = ?", sensorID)
	}

	var rows []alertRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}

	alerts := make([]*models.Alert, 0, len(rows))
	for _, row := range rows {
		a, err := row.toModel()
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

func (s *GormStore) UpdateAlert(ctx context.Context, a *models.Alert) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&alertRow{}).Where("id = ?", a.ID).Updates(map[string]interface{}{
			"sensor_id":   a.SensorID,
			"description": a.Description,
		})
		if isForeignKeyViolation(res.Error) {
			return notFound("sensor", a.SensorID)
		}
		if res.Error != nil {
			return fmt.Errorf("failed to update alert: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return notFound("alert", a.ID)
		}

		var row alertRow
		if err := tx.First(&row, a.ID).Error; err != nil {
			return fmt.Errorf("failed to reload alert: %w", err)
		}
		ts, err := parseTimestamp(row.Timestamp)
		if err != nil {
			return err
		}
		a.Timestamp = ts
		return nil
	})
}

func (s *GormStore) DeleteAlert(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&alertRow{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete alert: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("alert", id)
	}
	return nil
}

func (s *GormStore) Counts(ctx context.Context) (*Counts, error) {
	counts := &Counts{}
	db := s.db.WithContext(ctx)
	if err := db.Model(&sensorRow{}).Count(&counts.Sensors).Error; err != nil {
		return nil, fmt.Errorf("failed to count sensors: %w", err)
	}
	if err := db.Model(&readingRow{}).Count(&counts.Readings).Error; err != nil {
		return nil, fmt.Errorf("failed to count readings: %w", err)
	}
	if err := db.Model(&alertRow{}).Count(&counts.Alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}
	return counts, nil
}

func toSensorRow(s *models.Sensor) sensorRow {
	return sensorRow{
		ID:               s.ID,
		Type:             string(s.Type),
		Model:            s.Model,
		InstallationDate: s.InstallationDate.String(),
		Status:           s.Status,
	}
}

func (row sensorRow) toModel() (*models.Sensor, error) {
	date, err := models.ParseDate(row.InstallationDate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse installation_date: %w", err)
	}
	return &models.Sensor{
		ID:               row.ID,
		Type:             models.SensorType(row.Type),
		Model:            row.Model,
		InstallationDate: date,
		Status:           row.Status,
	}, nil
}

func (row readingRow) toModel() (*models.Reading, error) {
	ts, err := parseTimestamp(row.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	return &models.Reading{
		ID:        row.ID,
		SensorID:  row.SensorID,
		Timestamp: ts,
		PM25:      row.PM25,
		PM10:      row.PM10,
		CO2:       row.CO2,
	}, nil
}

func (row alertRow) toModel() (*models.Alert, error) {
	ts, err := parseTimestamp(row.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	return &models.Alert{
		ID:          row.ID,
		SensorID:    row.SensorID,
		Timestamp:   ts,
		Description: row.Description,
	}, nil
}

// gormLogger routes gorm's SQL tracing into zerolog at debug level.
type gormLogger struct {
	logger zerolog.Logger
	level  gormlogger.LogLevel
}

func newGormLogger(logger zerolog.Logger) gormlogger.Interface {
	return &gormLogger{logger: logger, level: gormlogger.Warn}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *l
	c.level = level
	return &c
}

func (l *gormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.logger.Info().Msgf(msg, args...)
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.logger.Warn().Msgf(msg, args...)
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.logger.Error().Msgf(msg, args...)
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	sqlText, rows := fc()
	event := l.logger.Debug()
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		event = event.Err(err)
	}
	event.
		Str("sql", sqlText).
		Int64("rows", rows).
		Dur("elapsed", time.Since(begin)).
		Msg("gorm query")
}
