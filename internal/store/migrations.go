package store

// runMigrations creates the schema. Every statement is idempotent.
func (s *Store) runMigrations() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS takes (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			events INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS note_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			take_id TEXT NOT NULL REFERENCES takes(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL CHECK(kind IN ('note_on', 'note_off')),
			note TEXT NOT NULL,
			pitch TEXT NOT NULL,
			midi INTEGER NOT NULL,
			mode TEXT NOT NULL,
			sustained INTEGER NOT NULL DEFAULT 0,
			offset_ms INTEGER NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_note_events_take_id ON note_events(take_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_takes_started_at ON takes(started_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
