package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is a single forward-only schema step, applied in order and
// tracked in schema_migrations so each runs at most once. The func(*sql.DB)
// shape and the "check pragma_table_info before ALTER" idiom are grounded
// on the teacher's own internal/storage/sqlite/migrations package.
type migration struct {
	name string
	run  func(ctx context.Context, db *sql.DB) error
}

// migrations holds every step after schemaV1. Empty for now; schemaV1
// covers the current shape of the database in full.
var migrations = []migration{}

func runMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("bootstrap schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var applied int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE name = ?`, m.name).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", m.name, err)
		}
		if applied > 0 {
			continue
		}
		if err := m.run(ctx, db); err != nil {
			return fmt.Errorf("run migration %s: %w", m.name, err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES (?)`, m.name); err != nil {
			return fmt.Errorf("record migration %s: %w", m.name, err)
		}
	}
	return nil
}
