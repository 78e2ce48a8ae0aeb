package ports

import (
	"context"
	"errors"
	"shipment-route-service/internal/domain"
)

var (
	// ErrNotFound reports a missing row.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict reports that a conditional write matched nothing or the commit
	// lost a race (unique violation, serialization failure, busy database).
	// The whole unit is rolled back when it surfaces.
	ErrConflict = errors.New("store: conflict")
)

// Port: the registries behind the movement engine.
// Implementations must run Update as one all-or-nothing unit isolated from
// every other Update.
type Store interface {
	// Run fn against a consistent read of the registries.
	View(ctx context.Context, fn func(tx Tx) error) error
	// Run fn atomically: commit when fn returns nil, roll back otherwise.
	Update(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of operations available inside a unit of work.
type Tx interface {
	// Waypoints in ascending position order.
	ListWaypoints(ctx context.Context) ([]domain.Waypoint, error)
	WaypointByID(ctx context.Context, id int64) (*domain.Waypoint, error)
	// Set the occupant of the waypoint at position, only if it is free.
	ClaimWaypoint(ctx context.Context, position int, shipmentID int64) error
	// Clear the occupant of the waypoint at position, only if it is shipmentID.
	ReleaseWaypoint(ctx context.Context, position int, shipmentID int64) error

	ShipmentByID(ctx context.Context, id int64) (*domain.Shipment, error)
	ShipmentByHandle(ctx context.Context, handle string) (*domain.Shipment, error)
	// Insert a shipment and return its identity. A duplicate handle is ErrConflict.
	InsertShipment(ctx context.Context, s *domain.Shipment) (int64, error)
	// Persist position, state and updated_at, only if the stored row is still
	// at expectedPosition and in transit.
	SaveShipment(ctx context.Context, s *domain.Shipment, expectedPosition int) error
	// Delete every shipment and its audit trail and clear all occupancy.
	ClearShipments(ctx context.Context) (int, error)

	AppendAudit(ctx context.Context, rec *domain.AuditRecord) error
	// Records for a shipment ordered by creation time, then identity.
	ListAudit(ctx context.Context, shipmentID int64) ([]domain.AuditRecord, error)
}
