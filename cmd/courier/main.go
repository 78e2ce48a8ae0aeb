package main

import (
	"fmt"
	"io"
	"os"
	"shipment-route-service/internal/adapters/routeclient"
	"shipment-route-service/internal/config"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:          "courier",
		Short:        "Drive shipments along the route through the HTTP API",
		SilenceUsage: true,
		// Errors are printed in color by main.
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&server, "server", config.Get("SERVER_URL", "http://localhost:8000"), "service base URL")

	newClient := func(out io.Writer) *routeclient.Client {
		c := routeclient.NewClient(server, nil)
		c.OnRetry = func(attempt int, wait time.Duration, err error) {
			fmt.Fprintln(out, color.YellowString("  retry %d in %s: %v", attempt, wait, err))
		}
		return c
	}

	cmd.AddCommand(
		newRunCommand(newClient),
		newResetCommand(newClient),
		newAuditCommand(newClient),
	)
	return cmd
}

func newRunCommand(newClient func(io.Writer) *routeclient.Client) *cobra.Command {
	var (
		handle    string
		name      string
		maxCycles int
		maxWait   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Create a shipment and move it to the terminus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			courier := routeclient.NewCourier(newClient(out))
			courier.MaxCycles = maxCycles
			courier.MaxWait = maxWait
			courier.OnEvent = func(e routeclient.Event) { printEvent(out, e) }

			s, err := courier.Deliver(cmd.Context(), handle, name)
			if err != nil {
				return err
			}
			color.New(color.FgGreen, color.Bold).Fprintf(out, "delivered %s (#%d) at idx %d\n", s.Handle, s.ID, s.CurrentIdx)
			return nil
		},
	}
	cmd.Flags().StringVar(&handle, "handle", "", "unique shipment handle")
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the handle)")
	cmd.Flags().IntVar(&maxCycles, "max-cycles", 0, "give up after this many failed cycles in a row (0 = never)")
	cmd.Flags().DurationVar(&maxWait, "max-wait", 60*time.Second, "upper bound on the wait between failed cycles")
	_ = cmd.MarkFlagRequired("handle")
	return cmd
}

func newResetCommand(newClient func(io.Writer) *routeclient.Client) *cobra.Command {
	var (
		id     int64
		from   string
		reason string
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Send a shipment back to the origin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			env, err := newClient(out).Reset(cmd.Context(), id, from, reason)
			if err != nil {
				return err
			}
			if env.Note != "" {
				color.New(color.FgYellow).Fprintf(out, "%s\n", env.Note)
			}
			color.New(color.FgGreen).Fprintf(out, "%s (#%d) is %s at idx %d\n",
				env.Shipment.Handle, env.Shipment.ID, env.Shipment.Status, env.Shipment.CurrentIdx)
			return nil
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "shipment id")
	cmd.Flags().StringVar(&from, "from", "", "expected current waypoint (defaults to the stored position)")
	cmd.Flags().StringVar(&reason, "reason", "", "audit reason")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newAuditCommand(newClient func(io.Writer) *routeclient.Client) *cobra.Command {
	var id int64

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print the audit trail of a shipment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			trail, err := newClient(out).Audit(cmd.Context(), id)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "%s (#%d) %s at idx %d\n",
				trail.Shipment.Handle, trail.Shipment.ID, trail.Shipment.Status, trail.Shipment.CurrentIdx)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tFROM\tTO\tOK\tMESSAGE")
			for _, ev := range trail.Audit {
				ok := color.GreenString("yes")
				if !ev.OK {
					ok = color.RedString("no")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					ev.Timestamp.Local().Format(time.TimeOnly),
					stopName(ev.FromIdx, ev.FromCity), stopName(ev.ToIdx, ev.ToCity),
					ok, ev.Message)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "shipment id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func printEvent(w io.Writer, e routeclient.Event) {
	switch e.Kind {
	case routeclient.EventCreated:
		fmt.Fprintf(w, "created %s (#%d) at %s\n", e.Shipment.Handle, e.Shipment.ID, e.To)
	case routeclient.EventMoved:
		fmt.Fprintln(w, color.GreenString("moved %s -> %s", e.From, e.To))
	case routeclient.EventHopFailed:
		fmt.Fprintln(w, color.RedString("hop %s -> %s failed (cycle %d): %v", e.From, e.To, e.Cycle, e.Err))
	case routeclient.EventCompensated:
		fmt.Fprintln(w, color.YellowString("compensated %s -> %s", e.From, e.To))
	case routeclient.EventWaiting:
		fmt.Fprintln(w, color.YellowString("waiting %s at %s", e.Wait, e.To))
	case routeclient.EventResynced:
		fmt.Fprintln(w, color.YellowString("resynced at idx %d", e.Shipment.CurrentIdx))
	case routeclient.EventDelivered:
		fmt.Fprintln(w, color.GreenString("arrived at %s", e.To))
	}
}

func stopName(idx int, city *string) string {
	if city == nil {
		return fmt.Sprintf("#%d", idx)
	}
	return fmt.Sprintf("%s (%d)", *city, idx)
}
