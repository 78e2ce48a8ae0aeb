package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"shipment-route-service/internal/domain"
	"shipment-route-service/internal/platform/obs"
	"shipment-route-service/internal/ports"
	"strings"
	"time"
)

// Options gate engine behavior.
type Options struct {
	// Only allow moves between consecutive positions.
	EnforceAdjacent bool
	// Allow the optimistic reset-to-origin operation.
	AllowResetWithoutLock bool
}

// Engine is the sole writer of waypoint occupancy and shipment position/state.
//
// Every mutation runs inside one Store.Update unit that re-checks the current
// state and writes conditionally, so a concurrent request either observes the
// committed result or loses the commit and is rejected. Nothing is retried here.
type Engine struct {
	store ports.Store
	opts  Options
	now   func() time.Time
}

func NewEngine(store ports.Store, opts Options) *Engine {
	return &Engine{
		store: store,
		opts:  opts,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (e *Engine) Options() Options { return e.opts }

// WaypointStatus is a waypoint with the shipment currently holding it.
type WaypointStatus struct {
	domain.Waypoint
	Occupant *domain.Shipment
}

// ListWaypoints returns the route in ascending position order.
func (e *Engine) ListWaypoints(ctx context.Context) ([]domain.Waypoint, error) {
	var out []domain.Waypoint
	err := e.store.View(ctx, func(tx ports.Tx) error {
		wps, err := tx.ListWaypoints(ctx)
		if err != nil {
			return err
		}
		out = wps
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list waypoints: %w", err)
	}
	return out, nil
}

// WaypointStatuses returns the route with the occupant of every slot.
func (e *Engine) WaypointStatuses(ctx context.Context) ([]WaypointStatus, error) {
	var out []WaypointStatus
	err := e.store.View(ctx, func(tx ports.Tx) error {
		wps, err := tx.ListWaypoints(ctx)
		if err != nil {
			return err
		}

		out = make([]WaypointStatus, 0, len(wps))
		for _, w := range wps {
			st := WaypointStatus{Waypoint: w}
			if w.OccupantID != nil {
				s, err := tx.ShipmentByID(ctx, *w.OccupantID)
				if err != nil && !errors.Is(err, ports.ErrNotFound) {
					return err
				}
				st.Occupant = s
			}
			out = append(out, st)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("waypoint statuses: %w", err)
	}
	return out, nil
}

// ResolveWaypoint maps a symbolic reference (position, handle or city) to a waypoint.
func (e *Engine) ResolveWaypoint(ctx context.Context, ref string) (*WaypointStatus, error) {
	var out *WaypointStatus
	err := e.store.View(ctx, func(tx ports.Tx) error {
		wps, err := tx.ListWaypoints(ctx)
		if err != nil {
			return err
		}

		res := domain.ResolveRef(ref, wps)
		if !res.OK() {
			return fmt.Errorf("%w: waypoint %q", domain.ErrNotFound, ref)
		}
		w, ok := domain.FindByPosition(wps, res.Position)
		if !ok {
			return fmt.Errorf("%w: waypoint %q", domain.ErrNotFound, ref)
		}

		out, err = withOccupant(ctx, tx, w)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("resolve waypoint: %w", err)
	}
	return out, nil
}

// WaypointByID looks a waypoint up by identity.
func (e *Engine) WaypointByID(ctx context.Context, id int64) (*WaypointStatus, error) {
	var out *WaypointStatus
	err := e.store.View(ctx, func(tx ports.Tx) error {
		w, err := tx.WaypointByID(ctx, id)
		if err != nil {
			return notFound(err, fmt.Sprintf("waypoint %d", id))
		}
		out, err = withOccupant(ctx, tx, w)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("waypoint by id: %w", err)
	}
	return out, nil
}

func withOccupant(ctx context.Context, tx ports.Tx, w *domain.Waypoint) (*WaypointStatus, error) {
	st := &WaypointStatus{Waypoint: *w}
	if w.OccupantID == nil {
		return st, nil
	}
	s, err := tx.ShipmentByID(ctx, *w.OccupantID)
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		return nil, err
	}
	st.Occupant = s
	return st, nil
}

// CreateShipment registers a shipment at the origin.
// It fails with ErrConflict when the handle exists or the origin is occupied,
// including when a concurrent creation wins the origin first.
func (e *Engine) CreateShipment(ctx context.Context, handle, name string) (_ *domain.Shipment, err error) {
	defer obs.Time(ctx, "engine.CreateShipment")(&err)

	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, fmt.Errorf("%w: handle required", domain.ErrInvalidInput)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = handle
	}

	var (
		created  *domain.Shipment
		rejected error
	)

	err = e.store.Update(ctx, func(tx ports.Tx) error {
		wps, err := tx.ListWaypoints(ctx)
		if err != nil {
			return fmt.Errorf("list waypoints: %w", err)
		}

		origin, ok := domain.FindByPosition(wps, domain.OriginPosition)
		if !ok {
			rejected = fmt.Errorf("%w: no origin waypoint", domain.ErrNotFound)
			return nil
		}
		if !origin.IsFree() {
			rejected = fmt.Errorf("%w: origin occupied", domain.ErrConflict)
			return nil
		}

		if _, err := tx.ShipmentByHandle(ctx, handle); err == nil {
			rejected = fmt.Errorf("%w: handle %q already exists", domain.ErrConflict, handle)
			return nil
		} else if !errors.Is(err, ports.ErrNotFound) {
			return fmt.Errorf("lookup handle: %w", err)
		}

		now := e.now()
		s := &domain.Shipment{
			Handle:    handle,
			Name:      name,
			State:     domain.StateInTransit,
			Position:  domain.OriginPosition,
			CreatedAt: now,
			UpdatedAt: now,
		}

		id, err := tx.InsertShipment(ctx, s)
		if err != nil {
			return fmt.Errorf("insert shipment: %w", err)
		}
		s.ID = id

		if err := tx.ClaimWaypoint(ctx, domain.OriginPosition, id); err != nil {
			return fmt.Errorf("claim origin: %w", err)
		}

		rec := &domain.AuditRecord{
			ShipmentID:   id,
			FromPosition: domain.NoPosition,
			ToPosition:   domain.OriginPosition,
			OK:           true,
			Message:      domain.MsgCreated,
			CreatedAt:    now,
		}
		if err := tx.AppendAudit(ctx, rec); err != nil {
			return fmt.Errorf("append audit: %w", err)
		}

		created = s
		return nil
	})

	switch {
	case errors.Is(err, ports.ErrConflict):
		return nil, fmt.Errorf("%w: duplicate handle or origin race", domain.ErrConflict)
	case err != nil:
		log.Printf("create shipment failed: handle=%q err=%v", handle, err)
		return nil, fmt.Errorf("create shipment: %w", err)
	case rejected != nil:
		return nil, rejected
	}

	return created, nil
}

// FindShipment looks a shipment up by identity.
func (e *Engine) FindShipment(ctx context.Context, id int64) (*domain.Shipment, error) {
	var out *domain.Shipment
	err := e.store.View(ctx, func(tx ports.Tx) error {
		s, err := tx.ShipmentByID(ctx, id)
		if err != nil {
			return notFound(err, fmt.Sprintf("shipment %d", id))
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find shipment: %w", err)
	}
	return out, nil
}

// FindShipmentByHandle looks a shipment up by its unique handle.
func (e *Engine) FindShipmentByHandle(ctx context.Context, handle string) (*domain.Shipment, error) {
	var out *domain.Shipment
	err := e.store.View(ctx, func(tx ports.Tx) error {
		s, err := tx.ShipmentByHandle(ctx, strings.TrimSpace(handle))
		if err != nil {
			return notFound(err, fmt.Sprintf("shipment %q", handle))
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find shipment: %w", err)
	}
	return out, nil
}

// ClearAllShipments removes every shipment and clears all occupancy in one unit.
func (e *Engine) ClearAllShipments(ctx context.Context) (_ int, err error) {
	defer obs.Time(ctx, "engine.ClearAllShipments")(&err)

	var n int
	err = e.store.Update(ctx, func(tx ports.Tx) error {
		var err error
		n, err = tx.ClearShipments(ctx)
		return err
	})
	if err != nil {
		log.Printf("clear shipments failed: %v", err)
		return 0, fmt.Errorf("clear shipments: %w", err)
	}
	return n, nil
}

func notFound(err error, what string) error {
	if errors.Is(err, ports.ErrNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, what)
	}
	return err
}

func (e *Engine) appendAudit(
	ctx context.Context,
	tx ports.Tx,
	shipmentID int64,
	from, to int,
	ok bool,
	msg string,
) error {
	rec := &domain.AuditRecord{
		ShipmentID:   shipmentID,
		FromPosition: from,
		ToPosition:   to,
		OK:           ok,
		Message:      msg,
		CreatedAt:    e.now(),
	}
	if err := tx.AppendAudit(ctx, rec); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// recordConflict audits an attempt whose unit was rolled back after losing a
// commit race. It runs in its own unit since the losing one was rolled back.
func (e *Engine) recordConflict(ctx context.Context, shipmentID int64, from, to int, msg string) {
	err := e.store.Update(ctx, func(tx ports.Tx) error {
		return e.appendAudit(ctx, tx, shipmentID, from, to, false, msg)
	})
	if err != nil {
		log.Printf("audit conflict failed: shipment_id=%d from=%d to=%d err=%v", shipmentID, from, to, err)
	}
}
