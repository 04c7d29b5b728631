package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Sessions table - one row per capture-and-persist trigger
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			folder TEXT NOT NULL UNIQUE,
			captured_at DATETIME NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Artifacts table - persisted images and their upload state
		`CREATE TABLE IF NOT EXISTS artifacts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			camera INTEGER NOT NULL,
			kind TEXT NOT NULL CHECK(kind IN ('original', 'contours', 'pressure', 'mask', 'manifest')),
			path TEXT NOT NULL UNIQUE,
			upload_status TEXT NOT NULL DEFAULT 'pending' CHECK(upload_status IN ('pending', 'uploaded', 'failed')),
			upload_error TEXT NOT NULL DEFAULT '',
			attempts INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Measurements table - one row per camera in which a foot was measured
		`CREATE TABLE IF NOT EXISTS measurements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			camera INTEGER NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			area REAL NOT NULL CHECK(area >= 0),
			perimeter REAL NOT NULL CHECK(perimeter >= 0),
			arch TEXT NOT NULL CHECK(arch IN ('flat', 'normal', 'cavus')),
			fascia REAL NOT NULL,
			metatarsal_pixels INTEGER NOT NULL,
			UNIQUE(session_id, camera)
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_artifacts_session_id ON artifacts(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_measurements_session_id ON measurements(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_captured_at ON sessions(captured_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
