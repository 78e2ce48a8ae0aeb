package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"shipment-route-service/internal/config"
	"shipment-route-service/internal/platform/db"
)

// Open connects to the configured backend (Postgres when DATABASE_URL is set,
// SQLite otherwise) and makes sure the schema exists.
func Open(ctx context.Context, cfg config.Config) (*SQLStore, error) {
	var (
		conn *sql.DB
		d    Dialect
		err  error
	)
	if cfg.UsePostgres() {
		conn, err = db.Open(cfg.DatabaseURL)
		d = Postgres
	} else {
		conn, err = db.OpenSQLite(cfg.DBPath)
		d = SQLite
	}
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if err := InitSchema(ctx, conn, d); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	return NewSQLStore(conn, d), nil
}

// SeedFromFile loads the waypoint seed file and seeds an empty route.
func (s *SQLStore) SeedFromFile(ctx context.Context, seedPath string) (int, error) {
	seeds, err := LoadWaypointSeeds(seedPath)
	if err != nil {
		return 0, err
	}
	return SeedWaypoints(ctx, s.DB, s.dialect, seeds)
}

func (s *SQLStore) Close() error { return s.DB.Close() }
