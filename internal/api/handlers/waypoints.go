package handlers

import (
	"fmt"
	"net/http"
	"shipment-route-service/internal/api/dto"
	"shipment-route-service/internal/domain"
	"shipment-route-service/internal/services"
	"strings"
)

// WaypointHandler exposes read-only route and waypoint lookups.
type WaypointHandler struct {
	Engine *services.Engine
}

func (h *WaypointHandler) Route(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	wps, err := h.Engine.ListWaypoints(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	res := dto.RouteResponse{Count: len(wps), Order: make([]dto.RouteStop, 0, len(wps))}
	for _, wp := range wps {
		res.Order = append(res.Order, dto.RouteStop{ID: wp.ID, Idx: wp.Position, City: wp.City, Handle: wp.Handle})
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (h *WaypointHandler) List(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	statuses, err := h.Engine.WaypointStatuses(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	res := dto.ListWaypointsResponse{Count: len(statuses), Waypoints: make([]dto.WaypointResponse, 0, len(statuses))}
	for i := range statuses {
		res.Waypoints = append(res.Waypoints, waypointResponse(&statuses[i]))
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (h *WaypointHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	id, ok := pathID(r, "id")
	if !ok {
		writeDomainError(w, r, fmt.Errorf("%w: waypoint %q", domain.ErrNotFound, r.PathValue("id")))
		return
	}
	st, err := h.Engine.WaypointByID(r.Context(), id)
	h.respond(w, r, st, err)
}

// GetByHandle matches the handle exactly, even when it looks like a position.
func (h *WaypointHandler) GetByHandle(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	handle := r.PathValue("handle")
	h.lookup(w, r, func(wp domain.Waypoint) bool { return wp.Handle == handle })
}

// GetByCity matches case-insensitively and returns the first stop in route order.
func (h *WaypointHandler) GetByCity(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	city := strings.TrimSpace(r.PathValue("city"))
	h.lookup(w, r, func(wp domain.Waypoint) bool { return strings.EqualFold(wp.City, city) })
}

func (h *WaypointHandler) lookup(w http.ResponseWriter, r *http.Request, match func(domain.Waypoint) bool) {
	wps, err := h.Engine.ListWaypoints(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	for _, wp := range wps {
		if match(wp) {
			st, err := h.Engine.WaypointByID(r.Context(), wp.ID)
			h.respond(w, r, st, err)
			return
		}
	}
	writeDomainError(w, r, fmt.Errorf("%w: waypoint", domain.ErrNotFound))
}

func (h *WaypointHandler) respond(w http.ResponseWriter, r *http.Request, st *services.WaypointStatus, err error) {
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.GetWaypointResponse{Success: true, Waypoint: waypointResponse(st)})
}

func waypointResponse(st *services.WaypointStatus) dto.WaypointResponse {
	res := dto.WaypointResponse{
		ID:                   st.ID,
		Idx:                  st.Position,
		Handle:               st.Handle,
		City:                 st.City,
		Capacity:             st.Capacity,
		OccupiedByShipmentID: st.OccupantID,
	}
	if s := st.Occupant; s != nil {
		res.OccupiedBy = &dto.OccupantResponse{
			ID:         s.ID,
			Handle:     s.Handle,
			Status:     string(s.State),
			CurrentIdx: s.Position,
		}
	}
	return res
}
