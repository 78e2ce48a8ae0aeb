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
)

type ResetRequest struct {
	ShipmentID int64
	// Expected current position; empty means the recorded position.
	From   string
	Reason string
}

type ResetResult struct {
	Shipment *domain.Shipment
	// Set when the reset was a no-op.
	Note string
}

// Reset sends a shipment back to the origin without taking any lock.
//
// The caller's view of where the shipment is ('from') is re-checked in the
// same unit that applies the reset; if the shipment moved in between, the reset
// is rejected with ErrStateMismatch. A reset from the origin succeeds as an
// audited no-op. Completed shipments are never revived.
func (e *Engine) Reset(ctx context.Context, req ResetRequest) (_ *ResetResult, err error) {
	defer obs.Time(ctx, "engine.Reset")(&err)

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = domain.DefaultResetReason
	}

	var (
		result   *ResetResult
		rejected error
		from     = domain.NoPosition
	)

	err = e.store.Update(ctx, func(tx ports.Tx) error {
		s, err := tx.ShipmentByID(ctx, req.ShipmentID)
		if err != nil {
			if errors.Is(err, ports.ErrNotFound) {
				rejected = fmt.Errorf("%w: shipment %d", domain.ErrNotFound, req.ShipmentID)
				return nil
			}
			return fmt.Errorf("load shipment: %w", err)
		}

		reject := func(g domain.GuardResult) error {
			rejected = g.Error()
			return e.appendAudit(ctx, tx, s.ID, from, domain.OriginPosition, false, g.Reason)
		}

		if !e.opts.AllowResetWithoutLock {
			from = s.Position
			return reject(domain.GuardResult{Kind: domain.ErrResetDisabled, Reason: domain.MsgResetDisabled})
		}

		wps, err := tx.ListWaypoints(ctx)
		if err != nil {
			return fmt.Errorf("list waypoints: %w", err)
		}

		if strings.TrimSpace(req.From) == "" {
			from = s.Position
		} else {
			res := domain.ResolveRef(req.From, wps)
			if !res.OK() {
				return reject(domain.GuardResult{Kind: domain.ErrInvalidReference, Reason: domain.MsgResetInvalidFrom})
			}
			from = res.Position
		}

		origin, okOrigin := domain.FindByPosition(wps, domain.OriginPosition)
		wpFrom, okFrom := domain.FindByPosition(wps, from)
		if !okOrigin || !okFrom {
			return reject(domain.GuardResult{Kind: domain.ErrNotFound, Reason: domain.MsgResetFromNotFound})
		}

		if g := domain.CanReset(domain.ResetContext{Shipment: s, From: wpFrom, Origin: origin}); !g.Allowed {
			return reject(g)
		}

		if from == domain.OriginPosition {
			if err := e.appendAudit(ctx, tx, s.ID, from, from, true, "reset noop: "+reason); err != nil {
				return err
			}
			result = &ResetResult{Shipment: s, Note: domain.NoteAlreadyAtOrigin}
			return nil
		}

		next, err := e.applyReset(ctx, tx, s, from, reason)
		if err != nil {
			return err
		}
		result = &ResetResult{Shipment: next}
		return nil
	})

	switch {
	case errors.Is(err, ports.ErrConflict):
		// A concurrent writer changed the shipment or the origin after the check.
		e.recordConflict(ctx, req.ShipmentID, from, domain.OriginPosition, domain.MsgResetStateChanged)
		return nil, fmt.Errorf("%w: state changed; try again", domain.ErrStateMismatch)
	case err != nil:
		log.Printf("reset failed: shipment_id=%d from=%d err=%v", req.ShipmentID, from, err)
		return nil, fmt.Errorf("reset: %w", err)
	case rejected != nil:
		return nil, rejected
	}

	return result, nil
}

func (e *Engine) applyReset(
	ctx context.Context,
	tx ports.Tx,
	s *domain.Shipment,
	from int,
	reason string,
) (*domain.Shipment, error) {
	if err := tx.ReleaseWaypoint(ctx, from, s.ID); err != nil {
		return nil, fmt.Errorf("release from: %w", err)
	}
	if err := tx.ClaimWaypoint(ctx, domain.OriginPosition, s.ID); err != nil {
		return nil, fmt.Errorf("claim origin: %w", err)
	}

	next := *s
	next.Position = domain.OriginPosition
	next.UpdatedAt = e.now()
	if err := tx.SaveShipment(ctx, &next, from); err != nil {
		return nil, fmt.Errorf("save shipment: %w", err)
	}

	if err := e.appendAudit(ctx, tx, s.ID, from, domain.OriginPosition, true, "reset: "+reason); err != nil {
		return nil, err
	}
	return &next, nil
}
