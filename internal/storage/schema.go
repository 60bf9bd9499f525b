package storage

// schema is shared by both Store implementations. AUTOINCREMENT keeps ids
// from being reused after deletes.
const schema = `
CREATE TABLE IF NOT EXISTS sensors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	type TEXT NOT NULL CHECK (type IN ('AQ', 'TM', 'PR', 'WS', 'WD', 'NO', 'LT', 'UV')),
	model TEXT NOT NULL,
	installation_date TEXT NOT NULL,
	status TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS readings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sensor_id INTEGER NOT NULL REFERENCES sensors(id) ON DELETE CASCADE,
	timestamp TEXT NOT NULL,
	pm25 REAL NOT NULL,
	pm10 REAL NOT NULL,
	co2 REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_readings_sensor ON readings(sensor_id, id);

CREATE TABLE IF NOT EXISTS alerts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sensor_id INTEGER NOT NULL REFERENCES sensors(id) ON DELETE CASCADE,
	timestamp TEXT NOT NULL,
	description TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_sensor ON alerts(sensor_id, id);
`
