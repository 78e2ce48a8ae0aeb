package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"shipment-route-service/internal/domain"
	"shipment-route-service/internal/platform/obs"
	"shipment-route-service/internal/ports"
)

type MoveRequest struct {
	ShipmentID int64
	From       string
	To         string
}

// Move relocates a shipment from one waypoint to another.
//
// The references are resolved, adjacency is enforced when enabled, and the
// current state is validated, all inside the same unit that applies the move.
// Every attempt on an existing shipment leaves an audit record: a rejected one
// commits only its failure record; a successful one commits the occupancy
// change, the new position and a success record (plus a completion record
// when the destination is the terminus). A unit that loses the commit is rolled
// back entirely and audited as an integrity conflict.
func (e *Engine) Move(ctx context.Context, req MoveRequest) (_ *domain.Shipment, err error) {
	defer obs.Time(ctx, "engine.Move")(&err)

	var (
		moved    *domain.Shipment
		rejected error
		from     = domain.NoPosition
		to       = domain.NoPosition
	)

	err = e.store.Update(ctx, func(tx ports.Tx) error {
		wps, err := tx.ListWaypoints(ctx)
		if err != nil {
			return fmt.Errorf("list waypoints: %w", err)
		}

		s, err := tx.ShipmentByID(ctx, req.ShipmentID)
		if err != nil && !errors.Is(err, ports.ErrNotFound) {
			return fmt.Errorf("load shipment: %w", err)
		}

		reject := func(g domain.GuardResult) error {
			rejected = g.Error()
			if s == nil {
				return nil
			}
			return e.appendAudit(ctx, tx, s.ID, from, to, false, g.Reason)
		}

		fromRes := domain.ResolveRef(req.From, wps)
		toRes := domain.ResolveRef(req.To, wps)
		if fromRes.OK() {
			from = fromRes.Position
		}
		if toRes.OK() {
			to = toRes.Position
		}
		if !fromRes.OK() || !toRes.OK() {
			return reject(domain.GuardResult{Kind: domain.ErrInvalidReference, Reason: domain.MsgInvalidRefs})
		}

		if e.opts.EnforceAdjacent {
			if g := domain.CheckAdjacent(from, to); !g.Allowed {
				return reject(g)
			}
		}

		if s == nil {
			rejected = fmt.Errorf("%w: shipment %d", domain.ErrNotFound, req.ShipmentID)
			return nil
		}

		wpFrom, okFrom := domain.FindByPosition(wps, from)
		wpTo, okTo := domain.FindByPosition(wps, to)
		if !okFrom || !okTo {
			return reject(domain.GuardResult{Kind: domain.ErrNotFound, Reason: domain.MsgWaypointNotFound})
		}

		if g := domain.CanMove(domain.MoveContext{Shipment: s, From: wpFrom, To: wpTo}); !g.Allowed {
			return reject(g)
		}

		terminus, _ := domain.Terminus(wps)
		moved, err = e.applyMove(ctx, tx, s, from, to, terminus)
		return err
	})

	switch {
	case errors.Is(err, ports.ErrConflict):
		e.recordConflict(ctx, req.ShipmentID, from, to, domain.MsgIntegrityError)
		return nil, fmt.Errorf("%w: %s", domain.ErrIntegrityConflict, domain.MsgIntegrityError)
	case err != nil:
		log.Printf("move failed: shipment_id=%d from=%d to=%d err=%v", req.ShipmentID, from, to, err)
		return nil, fmt.Errorf("move: %w", err)
	case rejected != nil:
		return nil, rejected
	}

	return moved, nil
}

// applyMove writes a validated move. Each write is conditional on the state the
// guards just saw, so a concurrent writer turns into ErrConflict.
func (e *Engine) applyMove(
	ctx context.Context,
	tx ports.Tx,
	s *domain.Shipment,
	from, to, terminus int,
) (*domain.Shipment, error) {
	if err := tx.ReleaseWaypoint(ctx, from, s.ID); err != nil {
		return nil, fmt.Errorf("release from: %w", err)
	}
	if err := tx.ClaimWaypoint(ctx, to, s.ID); err != nil {
		return nil, fmt.Errorf("claim to: %w", err)
	}

	next := *s
	next.Position = to
	next.UpdatedAt = e.now()

	completed := to == terminus
	if completed {
		// Delivered: the shipment vacates the terminus.
		if err := tx.ReleaseWaypoint(ctx, to, s.ID); err != nil {
			return nil, fmt.Errorf("vacate terminus: %w", err)
		}
		next.State = domain.StateCompleted
	}

	if err := tx.SaveShipment(ctx, &next, from); err != nil {
		return nil, fmt.Errorf("save shipment: %w", err)
	}

	if err := e.appendAudit(ctx, tx, s.ID, from, to, true, domain.MsgMoveOK); err != nil {
		return nil, err
	}
	if completed {
		if err := e.appendAudit(ctx, tx, s.ID, to, to, true, domain.MsgCompleted); err != nil {
			return nil, err
		}
	}

	return &next, nil
}
