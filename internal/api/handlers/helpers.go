package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"shipment-route-service/internal/api/dto"
	"shipment-route-service/internal/domain"
	"shipment-route-service/internal/platform/obs"
	"slices"
	"strconv"
	"strings"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode failed: method=%s path=%s err=%v", r.Method, r.URL.Path, err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, dto.ErrorResponse{Success: false, Error: msg})
}

// writeDomainError maps an engine error onto its HTTP status and stable code.
// Unclassified errors are logged and reported as a bare internal error.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.CodeOf(err)
	status := statusFor(code)
	if status == http.StatusInternalServerError {
		log.Printf("req_id=%s request failed: method=%s path=%s err=%v",
			obs.RequestID(r.Context()), r.Method, r.URL.Path, err)
		writeJSON(w, r, status, dto.ErrorResponse{Error: "internal server error", Code: string(domain.CodeInternal)})
		return
	}
	writeJSON(w, r, status, dto.ErrorResponse{Error: domain.Message(err), Code: string(code)})
}

func statusFor(code domain.Code) int {
	switch code {
	case domain.CodeInvalidInput, domain.CodeInvalidReference:
		return http.StatusBadRequest
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeIllegalMove:
		return http.StatusUnprocessableEntity
	case domain.CodeConflict, domain.CodeStateMismatch, domain.CodeOccupancyMismatch,
		domain.CodeDestinationOccupied, domain.CodeIntegrityConflict:
		return http.StatusConflict
	case domain.CodeResetDisabled:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// allowMethod writes 405 and returns false unless r uses one of methods.
func allowMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	if slices.Contains(methods, r.Method) {
		return true
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

var errEmptyBody = errors.New("empty body")

// decodeJSON reads exactly one JSON object from the body into v.
// An empty body yields errEmptyBody so callers can decide whether it is allowed.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("body must contain only one JSON object")
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func shipmentResponse(s *domain.Shipment) dto.ShipmentResponse {
	return dto.ShipmentResponse{
		ID:         s.ID,
		Handle:     s.Handle,
		Name:       s.Name,
		Status:     string(s.State),
		CurrentIdx: s.Position,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
