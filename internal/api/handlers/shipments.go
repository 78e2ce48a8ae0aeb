package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"shipment-route-service/internal/api/dto"
	"shipment-route-service/internal/domain"
	"shipment-route-service/internal/services"
	"strings"
)

// ShipmentHandler exposes shipment registration, movement, reset and audit.
type ShipmentHandler struct {
	Engine *services.Engine
}

// Collection serves /shipments: POST creates, GET looks up by ?handle=,
// DELETE removes every shipment.
func (h *ShipmentHandler) Collection(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet, http.MethodPost, http.MethodDelete) {
		return
	}

	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.lookup(w, r)
	case http.MethodDelete:
		h.clear(w, r)
	}
}

func (h *ShipmentHandler) create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateShipmentRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}

	s, err := h.Engine.CreateShipment(r.Context(), req.Handle, req.Name)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, dto.ShipmentEnvelope{Success: true, Shipment: shipmentResponse(s)})
}

func (h *ShipmentHandler) lookup(w http.ResponseWriter, r *http.Request) {
	handle := strings.TrimSpace(r.URL.Query().Get("handle"))
	if handle == "" {
		writeDomainError(w, r, fmt.Errorf("%w: handle query param required", domain.ErrInvalidInput))
		return
	}

	s, err := h.Engine.FindShipmentByHandle(r.Context(), handle)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.ShipmentEnvelope{Success: true, Shipment: shipmentResponse(s)})
}

func (h *ShipmentHandler) clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.Engine.ClearAllShipments(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.DeleteShipmentsResponse{Success: true, DeletedShipments: n})
}

func (h *ShipmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	id, ok := h.shipmentID(w, r)
	if !ok {
		return
	}
	s, err := h.Engine.FindShipment(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.ShipmentEnvelope{Success: true, Shipment: shipmentResponse(s)})
}

func (h *ShipmentHandler) Move(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req dto.MoveRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.ShipmentID <= 0 || req.From == "" || req.To == "" {
		writeDomainError(w, r, fmt.Errorf("%w: shipment_id, from, to required", domain.ErrInvalidInput))
		return
	}

	s, err := h.Engine.Move(r.Context(), services.MoveRequest{
		ShipmentID: req.ShipmentID,
		From:       string(req.From),
		To:         string(req.To),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.ShipmentEnvelope{Success: true, Shipment: shipmentResponse(s)})
}

// Reset accepts an optional body; without 'from' the recorded position is used.
func (h *ShipmentHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	id, ok := h.shipmentID(w, r)
	if !ok {
		return
	}

	var req dto.ResetRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}

	res, err := h.Engine.Reset(r.Context(), services.ResetRequest{
		ShipmentID: id,
		From:       string(req.From),
		Reason:     req.Reason,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.ShipmentEnvelope{
		Success:  true,
		Shipment: shipmentResponse(res.Shipment),
		Note:     res.Note,
	})
}

func (h *ShipmentHandler) Audit(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	id, ok := h.shipmentID(w, r)
	if !ok {
		return
	}
	trail, err := h.Engine.AuditTrail(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	res := dto.AuditTrailResponse{
		Success:  true,
		Shipment: shipmentResponse(trail.Shipment),
		Audit:    make([]dto.AuditEventResponse, 0, len(trail.Entries)),
	}
	for _, e := range trail.Entries {
		res.Audit = append(res.Audit, dto.AuditEventResponse{
			ID:         e.ID,
			FromIdx:    e.FromPosition,
			FromCity:   optional(e.FromCity),
			FromHandle: optional(e.FromHandle),
			ToIdx:      e.ToPosition,
			ToCity:     optional(e.ToCity),
			ToHandle:   optional(e.ToHandle),
			OK:         e.OK,
			Message:    e.Message,
			Timestamp:  e.CreatedAt,
		})
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (h *ShipmentHandler) shipmentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := pathID(r, "id")
	if !ok {
		writeDomainError(w, r, fmt.Errorf("%w: shipment %q", domain.ErrNotFound, r.PathValue("id")))
	}
	return id, ok
}
