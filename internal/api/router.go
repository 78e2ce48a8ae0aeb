package api

import (
	"encoding/json"
	"net/http"
	"shipment-route-service/internal/api/handlers"
	"shipment-route-service/internal/config"
	"shipment-route-service/internal/services"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(engine *services.Engine, cfg config.Config) http.Handler {
	return newRouter(engine, cfg, &FaultInjector{
		Rate:          cfg.FailureRate,
		RetryAfterMin: cfg.RetryAfterMin,
		RetryAfterMax: cfg.RetryAfterMax,
	})
}

func newRouter(engine *services.Engine, cfg config.Config, faults *FaultInjector) http.Handler {
	mux := http.NewServeMux()

	cfgHandler := &handlers.ConfigHandler{Config: cfg}
	wpHandler := &handlers.WaypointHandler{Engine: engine}
	shipHandler := &handlers.ShipmentHandler{Engine: engine}

	mux.HandleFunc("/health", handlers.Health)
	mux.HandleFunc("/config", cfgHandler.Get)

	mux.HandleFunc("/route", wpHandler.Route)
	mux.HandleFunc("/waypoints", wpHandler.List)
	mux.HandleFunc("/waypoints/{id}", wpHandler.GetByID)
	mux.HandleFunc("/waypoints/handle/{handle}", wpHandler.GetByHandle)
	mux.HandleFunc("/waypoints/city/{city}", wpHandler.GetByCity)

	mux.HandleFunc("/shipments", shipHandler.Collection)
	mux.HandleFunc("/shipments/{id}", shipHandler.Get)
	mux.HandleFunc("/shipments/{id}/reset", shipHandler.Reset)
	mux.HandleFunc("/shipments/{id}/audit", shipHandler.Audit)
	mux.HandleFunc("/move", shipHandler.Move)

	var h http.Handler = mux
	if faults != nil {
		h = faults.Middleware(h)
	}
	return requestIDMiddleware(loggingMiddleware(h))
}

func writeBody(w http.ResponseWriter, v any) error {
	return json.NewEncoder(w).Encode(v)
}
