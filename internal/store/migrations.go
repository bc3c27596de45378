package store

import "github.com/pkg/errors"

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	// Event to plugin action bindings.
	`CREATE TABLE IF NOT EXISTS bindings (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		event TEXT NOT NULL CHECK(event IN ('hand.enter', 'hand.exit', 'hand.move', 'hands.two')),
		plugin_name TEXT NOT NULL,
		action_name TEXT NOT NULL,
		config TEXT NOT NULL DEFAULT '{}',
		enabled INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	// One row per logged frame.
	`CREATE TABLE IF NOT EXISTS frames (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		hands INTEGER NOT NULL,
		latency_us INTEGER NOT NULL,
		captured_at DATETIME NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS detections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		frame_id TEXT NOT NULL REFERENCES frames(id) ON DELETE CASCADE,
		rank INTEGER NOT NULL,
		confidence REAL NOT NULL,
		x_min REAL NOT NULL,
		y_min REAL NOT NULL,
		x_max REAL NOT NULL,
		y_max REAL NOT NULL,
		wrist_x REAL NOT NULL,
		wrist_y REAL NOT NULL,
		anchor INTEGER NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_bindings_event ON bindings(event)`,
	`CREATE INDEX IF NOT EXISTS idx_frames_captured_at ON frames(captured_at)`,
	`CREATE INDEX IF NOT EXISTS idx_detections_frame_id ON detections(frame_id)`,
}

func (s *Store) runMigrations() error {
	for i, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return errors.Wrapf(err, "migration %d", i)
		}
	}
	return nil
}
