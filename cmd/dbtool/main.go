package main

import (
	"context"
	"fmt"
	"log"
	"shipment-route-service/internal/adapters/repositories"
	"shipment-route-service/internal/config"
	"shipment-route-service/internal/services"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	if err := newRootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCommand() *cobra.Command {
	var seedPath string

	cmd := &cobra.Command{
		Use:          "dbtool",
		Short:        "Administer the shipment route database",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&seedPath, "seed", config.Get("SEED_PATH", "data/seeds/waypoints.json"), "waypoint seed file")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "Create the schema and seed the route if it is empty",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd.Context(), func(store *repositories.SQLStore) error {
					log.Println("Schema ready.")
					n, err := store.SeedFromFile(cmd.Context(), seedPath)
					if err != nil {
						return fmt.Errorf("seeding failed: %w", err)
					}
					log.Printf("Seeding complete. waypoints_inserted=%d", n)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Validate the seed file without touching the database",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				seeds, err := repositories.LoadWaypointSeeds(seedPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d waypoints OK\n", seedPath, len(seeds))
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear-shipments",
			Short: "Delete every shipment, its audit trail and all occupancy",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withEngine(cmd.Context(), func(engine *services.Engine) error {
					n, err := engine.ClearAllShipments(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "deleted %d shipments\n", n)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "route",
			Short: "Print the route with current occupancy",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withEngine(cmd.Context(), func(engine *services.Engine) error {
					statuses, err := engine.WaypointStatuses(cmd.Context())
					if err != nil {
						return err
					}

					tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "IDX\tHANDLE\tCITY\tOCCUPANT")
					for _, st := range statuses {
						occupant := "-"
						if st.Occupant != nil {
							occupant = fmt.Sprintf("%s (#%d)", st.Occupant.Handle, st.Occupant.ID)
						}
						fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", st.Position, st.Handle, st.City, occupant)
					}
					return tw.Flush()
				})
			},
		},
	)

	return cmd
}

func withStore(ctx context.Context, fn func(store *repositories.SQLStore) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, err := repositories.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	log.Printf("Using %s database: %s", store.Dialect().Name, cfg.RedactedDatabaseURL())
	return fn(store)
}

func withEngine(ctx context.Context, fn func(engine *services.Engine) error) error {
	return withStore(ctx, func(store *repositories.SQLStore) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return fn(services.NewEngine(store, services.Options{
			EnforceAdjacent:       cfg.EnforceAdjacent,
			AllowResetWithoutLock: cfg.AllowResetWithoutLock,
		}))
	})
}
