package services

import (
	"context"
	"fmt"
	"shipment-route-service/internal/domain"
	"shipment-route-service/internal/ports"
)

// AuditTrail is a shipment together with its enriched audit log.
type AuditTrail struct {
	Shipment *domain.Shipment
	Entries  []domain.AuditEntry
}

// AuditTrail returns every recorded attempt for a shipment in creation order,
// enriched with the current city/handle of the referenced waypoints.
func (e *Engine) AuditTrail(ctx context.Context, shipmentID int64) (*AuditTrail, error) {
	var out *AuditTrail
	err := e.store.View(ctx, func(tx ports.Tx) error {
		s, err := tx.ShipmentByID(ctx, shipmentID)
		if err != nil {
			return notFound(err, fmt.Sprintf("shipment %d", shipmentID))
		}

		records, err := tx.ListAudit(ctx, shipmentID)
		if err != nil {
			return fmt.Errorf("list audit: %w", err)
		}

		wps, err := tx.ListWaypoints(ctx)
		if err != nil {
			return fmt.Errorf("list waypoints: %w", err)
		}

		out = &AuditTrail{Shipment: s, Entries: domain.Enrich(records, wps)}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("audit trail: %w", err)
	}
	return out, nil
}
