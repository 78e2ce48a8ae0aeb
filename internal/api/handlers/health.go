package handlers

import (
	"net/http"
	"shipment-route-service/internal/api/dto"
	"shipment-route-service/internal/config"
)

// Health provides a minimal liveness check endpoint.
func Health(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	writeJSON(w, r, http.StatusOK, dto.HealthResponse{OK: true, Status: "ok"})
}

// ConfigHandler reports the effective runtime configuration.
type ConfigHandler struct {
	Config config.Config
}

func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	c := h.Config
	writeJSON(w, r, http.StatusOK, dto.ConfigResponse{
		DatabaseURL:           c.RedactedDatabaseURL(),
		FailureRate:           c.FailureRate,
		RetryAfterMin:         c.RetryAfterMin,
		RetryAfterMax:         c.RetryAfterMax,
		EnforceAdjacent:       c.EnforceAdjacent,
		AllowResetWithoutLock: c.AllowResetWithoutLock,
	})
}
