package main

import (
	"context"
	"log"
	"net/http"
	"shipment-route-service/internal/adapters/repositories"
	"shipment-route-service/internal/api"
	"shipment-route-service/internal/config"
	"shipment-route-service/internal/services"
	"time"

	"github.com/joho/godotenv"
)

// main is the application composition root.
// It wires the SQL store behind the Store port, seeds the route and starts the HTTP server.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	store, err := repositories.Open(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	// Seed the route on first start; an existing route is kept as is.
	n, err := store.SeedFromFile(ctx, cfg.SeedPath)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("store ready: backend=%s db=%s seeded_waypoints=%d",
		store.Dialect().Name, cfg.RedactedDatabaseURL(), n)

	engine := services.NewEngine(store, services.Options{
		EnforceAdjacent:       cfg.EnforceAdjacent,
		AllowResetWithoutLock: cfg.AllowResetWithoutLock,
	})
	router := api.NewRouter(engine, cfg)

	log.Printf("Server listening addr=:%s failure_rate=%.2f enforce_adjacent=%t allow_reset_without_lock=%t",
		cfg.Port, cfg.FailureRate, cfg.EnforceAdjacent, cfg.AllowResetWithoutLock)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	log.Fatal(srv.ListenAndServe())
}
