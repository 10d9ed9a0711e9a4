package persistence

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // register sqlite driver
)

func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()

		return nil, err
	}

	return db, nil
}

var migrations = []string{
	`
	CREATE TABLE IF NOT EXISTS pings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		freq_hz INTEGER NOT NULL,
		lat REAL NOT NULL,
		lon REAL NOT NULL,
		alt REAL NOT NULL,
		power REAL NOT NULL,
		received_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_pings_freq ON pings(freq_hz, received_at);

	CREATE TABLE IF NOT EXISTS vehicle_track (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		lat REAL NOT NULL,
		lon REAL NOT NULL,
		alt REAL NOT NULL,
		heading REAL NOT NULL,
		fixed_at INTEGER NOT NULL
	);
	`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for i := version; i < len(migrations); i++ {
		if _, err := db.ExecContext(ctx, migrations[i]); err != nil {
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		if _, err := db.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d;`, i+1)); err != nil {
			return fmt.Errorf("bump schema version: %w", err)
		}
	}

	return nil
}
