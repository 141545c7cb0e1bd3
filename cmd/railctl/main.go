package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/smarttransit/rail-booking-backend/internal/config"
	"github.com/smarttransit/rail-booking-backend/internal/database"
	"github.com/smarttransit/rail-booking-backend/internal/services"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagDatabaseURL    = "database-url"
	flagDatabaseDriver = "database-driver"
	flagLogLevel       = "log-level"

	configKeyDatabaseURL    = "database_url"
	configKeyDatabaseDriver = "database_driver"
	configKeyLogLevel       = "log_level"
)

// runtime is shared by every subcommand once the root pre-run has loaded it
type runtime struct {
	cfg    *config.Config
	logger *logrus.Logger
	db     *database.SQLDB
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "railctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rt := &runtime{}
	cmd := &cobra.Command{
		Use:           "railctl",
		Short:         "Maintenance tool for the rail booking database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, rt)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if rt.db != nil {
				return rt.db.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().String(flagDatabaseURL, "", "database connection string (postgres://... or sqlite://path)")
	cmd.PersistentFlags().String(flagDatabaseDriver, "", "postgres, pgx or sqlite (derived from the URL when empty)")
	cmd.PersistentFlags().String(flagLogLevel, "info", "log level")

	cmd.AddCommand(
		newMigrateCommand(rt),
		newCleanupCommand(rt),
		newMaterializeCommand(rt),
		newSeedCommand(rt),
		newAvailabilityCommand(rt),
		newSecretCommand(),
	)
	return cmd
}

func loadConfig(cmd *cobra.Command, rt *runtime) error {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	bindings := map[string]struct{ flag, env string }{
		configKeyDatabaseURL:    {flagDatabaseURL, "DATABASE_URL"},
		configKeyDatabaseDriver: {flagDatabaseDriver, "DATABASE_DRIVER"},
		configKeyLogLevel:       {flagLogLevel, "LOG_LEVEL"},
	}
	for key, b := range bindings {
		if err := v.BindEnv(key, b.env); err != nil {
			return err
		}
		if err := v.BindPFlag(key, cmd.Root().PersistentFlags().Lookup(b.flag)); err != nil {
			return err
		}
	}

	rt.cfg = config.FromEnv()
	rt.cfg.Database.URL = v.GetString(configKeyDatabaseURL)
	rt.cfg.Database.Driver = resolveDriver(rt.cfg.Database.URL, v.GetString(configKeyDatabaseDriver))

	rt.logger = logrus.New()
	rt.logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(v.GetString(configKeyLogLevel))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	rt.logger.SetLevel(level)
	return nil
}

// resolveDriver picks the sql driver from an explicit setting or the URL scheme
func resolveDriver(url, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if strings.HasPrefix(url, "sqlite://") {
		return "sqlite"
	}
	return "postgres"
}

// open connects lazily so commands like secret never need a database
func (rt *runtime) open() (*database.SQLDB, error) {
	if rt.db != nil {
		return rt.db, nil
	}
	if rt.cfg.Database.URL == "" {
		return nil, fmt.Errorf("database url is required (--%s or DATABASE_URL)", flagDatabaseURL)
	}
	db, err := database.NewConnection(rt.cfg.Database)
	if err != nil {
		return nil, err
	}
	rt.db = db
	return db, nil
}

func (rt *runtime) rules() (services.BookingRules, error) {
	return services.BookingRulesFromConfig(rt.cfg.Booking)
}
