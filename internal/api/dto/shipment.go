package dto

import "time"

type CreateShipmentRequest struct {
	Handle string `json:"handle"`
	Name   string `json:"name"`
}

type MoveRequest struct {
	ShipmentID int64       `json:"shipment_id"`
	From       WaypointRef `json:"from"`
	To         WaypointRef `json:"to"`
}

type ResetRequest struct {
	From   WaypointRef `json:"from"`
	Reason string      `json:"reason"`
}

type ShipmentResponse struct {
	ID         int64  `json:"id"`
	Handle     string `json:"handle"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	CurrentIdx int    `json:"current_idx"`
}

type ShipmentEnvelope struct {
	Success  bool             `json:"success"`
	Shipment ShipmentResponse `json:"shipment"`
	Note     string           `json:"note,omitempty"`
}

type DeleteShipmentsResponse struct {
	Success          bool `json:"success"`
	DeletedShipments int  `json:"deleted_shipments"`
}

// AuditEventResponse reports one attempt. City and handle are null when the
// position does not name a current waypoint.
type AuditEventResponse struct {
	ID         int64     `json:"id"`
	FromIdx    int       `json:"from_idx"`
	FromCity   *string   `json:"from_city"`
	FromHandle *string   `json:"from_handle"`
	ToIdx      int       `json:"to_idx"`
	ToCity     *string   `json:"to_city"`
	ToHandle   *string   `json:"to_handle"`
	OK         bool      `json:"ok"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

type AuditTrailResponse struct {
	Success  bool                 `json:"success"`
	Shipment ShipmentResponse     `json:"shipment"`
	Audit    []AuditEventResponse `json:"audit"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}
