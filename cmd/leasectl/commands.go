package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/V4T54L/tenancy-engine/internal/adapter/repository/postgres"
	"github.com/V4T54L/tenancy-engine/internal/app"
	"github.com/V4T54L/tenancy-engine/internal/domain"
	"github.com/V4T54L/tenancy-engine/internal/pkg/config"
	"github.com/V4T54L/tenancy-engine/internal/pkg/logger"
)

type configLoader func() (*config.Config, error)

func newRootCmd(out io.Writer, load configLoader) *cobra.Command {
	var asJSON bool

	rootCmd := &cobra.Command{
		Use:           "leasectl",
		Short:         "Lease engine administration tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	rootCmd.AddCommand(
		migrateCmd(load),
		leaseTypesCmd(out, &asJSON),
		alertsCmd(out, load, &asJSON),
		statusCmd(out, load, &asJSON),
	)
	return rootCmd
}

// withApp opens the configured stores for the duration of fn. CLI logs go
// to stderr so stdout stays parseable.
func withApp(ctx context.Context, load configLoader, fn func(a *app.App) error) error {
	cfg, err := load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.NewWithWriter(os.Stderr, cfg.LogLevel, "text")

	a, err := app.Open(ctx, cfg, log, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func migrateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the lease tables in POSTGRES_URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), load, func(a *app.App) error {
				if a.DB == nil {
					return errors.New("migrate needs POSTGRES_URL")
				}
				if err := postgres.Migrate(cmd.Context(), a.DB); err != nil {
					return err
				}
				a.Logger.Info("schema is up to date")
				return nil
			})
		},
	}
}

func leaseTypesCmd(out io.Writer, asJSON *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "lease-types",
		Short: "List lease types with their default duration and notice period",
		RunE: func(cmd *cobra.Command, args []string) error {
			types := domain.AllLeaseTypeDefaults()
			if *asJSON {
				return writeJSON(out, types)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TYPE\tDURATION (MONTHS)\tNOTICE (MONTHS)")
			for _, t := range types {
				fmt.Fprintf(tw, "%s\t%d\t%d\n", t.Type, t.DurationMonths, t.NoticePeriodMonths)
			}
			return tw.Flush()
		},
	}
}

func alertsCmd(out io.Writer, load configLoader, asJSON *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "alerts",
		Short: "List the indexation and end-notice alerts due today",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), load, func(a *app.App) error {
				alerts, err := a.Alerts.ListAlerts(cmd.Context())
				if err != nil {
					return err
				}
				if *asJSON {
					return writeJSON(out, alerts)
				}
				if len(alerts) == 0 {
					fmt.Fprintln(out, "no alerts")
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "DEADLINE\tTYPE\tLEASE\tUNIT\tBUILDING\tTENANTS")
				for _, al := range alerts {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
						al.Deadline, al.Type, al.LeaseID, al.HousingUnitNumber, al.BuildingName, strings.Join(al.TenantNames, ", "))
				}
				return tw.Flush()
			})
		},
	}
}

func statusCmd(out io.Writer, load configLoader, asJSON *bool) *cobra.Command {
	var ifMatch int64

	cmd := &cobra.Command{
		Use:   "status <lease-id> <ACTIVE|FINISHED|CANCELLED>",
		Short: "Move a lease to another status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var expected *int64
			if ifMatch > 0 {
				expected = &ifMatch
			}
			return withApp(cmd.Context(), load, func(a *app.App) error {
				v, err := a.Leases.ChangeStatus(cmd.Context(), args[0], strings.ToUpper(args[1]), expected)
				if err != nil {
					return err
				}
				if *asJSON {
					return writeJSON(out, v)
				}
				fmt.Fprintf(out, "lease %s is now %s (version %s)\n", v.ID, v.Status, strconv.FormatInt(v.Version, 10))
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&ifMatch, "if-match", 0, "fail unless the lease is at this version")
	return cmd
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
