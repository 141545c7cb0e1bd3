package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/smarttransit/rail-booking-backend/internal/database"
	"github.com/smarttransit/rail-booking-backend/internal/models"
	"github.com/smarttransit/rail-booking-backend/internal/services"
	"github.com/smarttransit/rail-booking-backend/internal/utils"
	"github.com/spf13/cobra"
)

func newMigrateCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the booking tables if they do not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := rt.open()
			if err != nil {
				return err
			}
			if err := database.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			rt.logger.Info("Schema is up to date")
			return nil
		},
	}
}

func newCleanupCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Run one cleanup sweep and print its report",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := rt.open()
			if err != nil {
				return err
			}
			rules, err := rt.rules()
			if err != nil {
				return err
			}

			ledger := services.NewSeatLedger(db, services.NewSegmentResolver())
			lifecycle := services.NewOrderLifecycleService(db, ledger, rules, rt.logger)
			cleanup := services.NewCleanupService(db, lifecycle,
				services.CleanupScheduleFromConfig(rt.cfg.Cleanup), rules.Location, rt.logger)

			report := cleanup.RunOnce(cmd.Context())
			if err := printJSON(report); err != nil {
				return err
			}
			if len(report.Errors) > 0 {
				return fmt.Errorf("cleanup finished with %d failed step(s)", len(report.Errors))
			}
			return nil
		},
	}
}

func newMaterializeCommand(rt *runtime) *cobra.Command {
	var (
		days     int
		trainNo  string
		template string
		date     string
	)

	cmd := &cobra.Command{
		Use:   "materialize",
		Short: "Copy seat ledgers forward to new departure dates",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := rt.open()
			if err != nil {
				return err
			}
			rules, err := rt.rules()
			if err != nil {
				return err
			}
			materializer := services.NewSeatMaterializer(db, rules.Location, rt.logger)

			var rows int64
			if trainNo != "" {
				if template == "" || date == "" {
					return fmt.Errorf("--train requires --template and --date")
				}
				rows, err = materializer.MaterializeDate(cmd.Context(), trainNo, template, date)
			} else {
				rows, err = materializer.MaterializeAhead(cmd.Context(), days)
			}
			if err != nil {
				return err
			}
			rt.logger.WithField("rows", rows).Info("Materialize finished")
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 14, "materialize today+days for every train")
	cmd.Flags().StringVar(&trainNo, "train", "", "materialize a single train")
	cmd.Flags().StringVar(&template, "template", "", "template departure date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&date, "date", "", "target departure date (YYYY-MM-DD)")
	return cmd
}

func newSeedCommand(rt *runtime) *cobra.Command {
	var (
		train    models.Train
		stations string
		layout   []string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a train run with a fresh seat ledger",
		Example: `  railctl seed --train G1 --date 2026-10-20 --stations 北京南,济南西,南京南,上海虹桥
  railctl seed --train K101 --date 2026-10-20 --stations A,B,C --layout 硬卧=60,软卧=30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := rt.open()
			if err != nil {
				return err
			}
			rules, err := rt.rules()
			if err != nil {
				return err
			}

			seatLayout, err := parseLayout(layout)
			if err != nil {
				return err
			}

			materializer := services.NewSeatMaterializer(db, rules.Location, rt.logger)
			_, err = materializer.SeedTrain(cmd.Context(), &train, splitList(stations), seatLayout)
			return err
		},
	}

	cmd.Flags().StringVar(&train.TrainNo, "train", "", "train number")
	cmd.Flags().StringVar(&train.DepartureDate, "date", "", "departure date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&train.TrainType, "type", "", "train type label")
	cmd.Flags().StringVar(&train.DepartureTime, "departs", "", "departure time (HH:MM)")
	cmd.Flags().StringVar(&train.ArrivalTime, "arrives", "", "arrival time (HH:MM)")
	cmd.Flags().StringVar(&stations, "stations", "", "comma separated stops in travel order")
	cmd.Flags().StringSliceVar(&layout, "layout", nil, "seat counts as type=count (default layout when empty)")
	_ = cmd.MarkFlagRequired("train")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("stations")
	return cmd
}

func newAvailabilityCommand(rt *runtime) *cobra.Command {
	var trainNo, date, from, to, seatType string

	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Show free seats for a segment",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := rt.open()
			if err != nil {
				return err
			}
			ledger := services.NewSeatLedger(db, services.NewSegmentResolver())

			if seatType != "" {
				count, err := ledger.QueryAvailability(cmd.Context(), trainNo, date, models.SeatType(seatType), from, to)
				if err != nil {
					return err
				}
				return printJSON(map[string]interface{}{"seat_type": seatType, "count": count})
			}

			summary, err := ledger.Summary(cmd.Context(), trainNo, date, from, to)
			if err != nil {
				return err
			}
			return printJSON(summary)
		},
	}

	cmd.Flags().StringVar(&trainNo, "train", "", "train number")
	cmd.Flags().StringVar(&date, "date", "", "departure date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&from, "from", "", "boarding station")
	cmd.Flags().StringVar(&to, "to", "", "alighting station")
	cmd.Flags().StringVar(&seatType, "seat-type", "", "seat type; all types when empty")
	for _, name := range []string{"train", "date", "from", "to"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newSecretCommand() *cobra.Command {
	var bytes int

	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Generate a random JWT_SECRET",
		// no database or config needed
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := utils.GenerateSecret(bytes)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "JWT_SECRET=%s\n", secret)
			return nil
		},
	}

	cmd.Flags().IntVar(&bytes, "bytes", 32, "secret length in bytes")
	return cmd
}

func parseLayout(entries []string) (services.SeatLayout, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	layout := services.SeatLayout{}
	for _, entry := range entries {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid layout entry %q, expected type=count", entry)
		}
		var count int
		if _, err := fmt.Sscanf(parts[1], "%d", &count); err != nil {
			return nil, fmt.Errorf("invalid seat count in %q: %w", entry, err)
		}
		layout[models.SeatType(strings.TrimSpace(parts[0]))] = count
	}
	return layout, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
