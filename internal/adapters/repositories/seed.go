package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"shipment-route-service/internal/domain"
	"strings"
	"time"
)

type WaypointSeed struct {
	Position int    `json:"position"`
	Handle   string `json:"handle"`
	City     string `json:"city"`
	Capacity int    `json:"capacity,omitempty"`
}

// LoadWaypointSeeds reads and validates a JSON array of waypoint seeds.
func LoadWaypointSeeds(jsonPath string) ([]WaypointSeed, error) {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("load waypoint seeds: read %q: %w", jsonPath, err)
	}

	var data []WaypointSeed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return nil, fmt.Errorf("load waypoint seeds: parse json: %w", err)
	}

	seeds, err := ValidateWaypointSeeds(data)
	if err != nil {
		return nil, fmt.Errorf("load waypoint seeds: %w", err)
	}
	return seeds, nil
}

// ValidateWaypointSeeds normalizes seeds and rejects routes without an origin,
// duplicate positions or handles, and slots with capacity other than one.
func ValidateWaypointSeeds(data []WaypointSeed) ([]WaypointSeed, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no waypoints", domain.ErrInvalidInput)
	}

	rows := make([]WaypointSeed, 0, len(data))
	positions := make(map[int]bool, len(data))
	handles := make(map[string]bool, len(data))
	for i, item := range data {
		if item.Position < 0 {
			return nil, fmt.Errorf("%w: item %d: negative position %d", domain.ErrInvalidInput, i+1, item.Position)
		}
		if positions[item.Position] {
			return nil, fmt.Errorf("%w: item %d: duplicate position %d", domain.ErrInvalidInput, i+1, item.Position)
		}
		positions[item.Position] = true

		handle := strings.TrimSpace(item.Handle)
		if handle == "" {
			return nil, fmt.Errorf("%w: item %d: handle cannot be empty", domain.ErrInvalidInput, i+1)
		}
		if handles[handle] {
			return nil, fmt.Errorf("%w: item %d: duplicate handle %q", domain.ErrInvalidInput, i+1, handle)
		}
		handles[handle] = true

		city := strings.TrimSpace(item.City)
		if city == "" {
			return nil, fmt.Errorf("%w: item %d: city cannot be empty", domain.ErrInvalidInput, i+1)
		}

		capacity := item.Capacity
		if capacity == 0 {
			capacity = 1
		}
		if capacity != 1 {
			return nil, fmt.Errorf("%w: item %d: capacity must be 1, got %d", domain.ErrInvalidInput, i+1, capacity)
		}

		rows = append(rows, WaypointSeed{Position: item.Position, Handle: handle, City: city, Capacity: capacity})
	}

	if !positions[domain.OriginPosition] {
		return nil, fmt.Errorf("%w: route has no origin (position %d)", domain.ErrInvalidInput, domain.OriginPosition)
	}
	return rows, nil
}

// Waypoints converts seeds into unpersisted domain waypoints.
func Waypoints(seeds []WaypointSeed) []domain.Waypoint {
	out := make([]domain.Waypoint, 0, len(seeds))
	for _, s := range seeds {
		out = append(out, domain.Waypoint{Position: s.Position, Handle: s.Handle, City: s.City, Capacity: s.Capacity})
	}
	return out
}

// SeedWaypoints inserts the route when the waypoints table is empty and
// reports how many rows were written. An existing route is left untouched.
func SeedWaypoints(ctx context.Context, db *sql.DB, d Dialect, seeds []WaypointSeed) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("seed waypoints: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM waypoints;`).Scan(&existing); err != nil {
		return 0, fmt.Errorf("seed waypoints: count existing: %w", err)
	}
	if existing > 0 {
		return 0, nil
	}

	stmt, err := tx.PrepareContext(ctx, d.rebind(`
	INSERT INTO waypoints (position, handle, city, capacity, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?);
	`))
	if err != nil {
		return 0, fmt.Errorf("seed waypoints: prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, w := range seeds {
		if _, err := stmt.ExecContext(ctx, w.Position, w.Handle, w.City, w.Capacity, now, now); err != nil {
			return 0, fmt.Errorf("seed waypoints: insert position=%d: %w", w.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("seed waypoints: commit tx: %w", err)
	}

	return len(seeds), nil
}
