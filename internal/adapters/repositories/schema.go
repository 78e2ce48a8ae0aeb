package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var postgresSchema = []string{
	`
	CREATE TABLE IF NOT EXISTS shipments (
		id BIGSERIAL PRIMARY KEY,
		handle TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		state TEXT NOT NULL CHECK (state IN ('IN_TRANSIT', 'COMPLETED')),
		position INTEGER NOT NULL CHECK (position >= 0),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	`,
	`
	CREATE TABLE IF NOT EXISTS waypoints (
		id BIGSERIAL PRIMARY KEY,
		position INTEGER NOT NULL UNIQUE CHECK (position >= 0),
		handle TEXT NOT NULL UNIQUE,
		city TEXT NOT NULL,
		capacity INTEGER NOT NULL DEFAULT 1 CHECK (capacity = 1),
		occupant_id BIGINT REFERENCES shipments(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	`,
	`
	CREATE UNIQUE INDEX IF NOT EXISTS ux_waypoints_occupant
	ON waypoints(occupant_id) WHERE occupant_id IS NOT NULL;
	`,
	`
	CREATE TABLE IF NOT EXISTS shipment_audit (
		id BIGSERIAL PRIMARY KEY,
		shipment_id BIGINT NOT NULL REFERENCES shipments(id) ON DELETE CASCADE,
		from_position INTEGER NOT NULL,
		to_position INTEGER NOT NULL,
		ok BOOLEAN NOT NULL,
		message TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);
	`,
	`
	CREATE INDEX IF NOT EXISTS idx_shipment_audit_shipment
	ON shipment_audit(shipment_id, created_at, id);
	`,
}

var sqliteSchema = []string{
	`
	CREATE TABLE IF NOT EXISTS shipments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		handle TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		state TEXT NOT NULL CHECK (state IN ('IN_TRANSIT', 'COMPLETED')),
		position INTEGER NOT NULL CHECK (position >= 0),
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`,
	`
	CREATE TABLE IF NOT EXISTS waypoints (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		position INTEGER NOT NULL UNIQUE CHECK (position >= 0),
		handle TEXT NOT NULL UNIQUE,
		city TEXT NOT NULL,
		capacity INTEGER NOT NULL DEFAULT 1 CHECK (capacity = 1),
		occupant_id INTEGER REFERENCES shipments(id) ON DELETE SET NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`,
	`
	CREATE UNIQUE INDEX IF NOT EXISTS ux_waypoints_occupant
	ON waypoints(occupant_id) WHERE occupant_id IS NOT NULL;
	`,
	`
	CREATE TABLE IF NOT EXISTS shipment_audit (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		shipment_id INTEGER NOT NULL REFERENCES shipments(id) ON DELETE CASCADE,
		from_position INTEGER NOT NULL,
		to_position INTEGER NOT NULL,
		ok BOOLEAN NOT NULL,
		message TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	`,
	`
	CREATE INDEX IF NOT EXISTS idx_shipment_audit_shipment
	ON shipment_audit(shipment_id, created_at, id);
	`,
}

// InitSchema creates the route tables if they do not exist.
func InitSchema(ctx context.Context, db *sql.DB, d Dialect) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range d.schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %s: exec statement #%d: %w", d.Name, i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}
