package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/camarize/reconciler/internal/infrastructure/config"
	"github.com/camarize/reconciler/internal/infrastructure/database"
	"github.com/camarize/reconciler/internal/infrastructure/logging"
	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// migrator is shared between the persistent pre-run and the subcommands.
type migrator struct {
	env    string
	logger *slog.Logger
	pg     *database.Postgres
}

func newRootCommand() *cobra.Command {
	mg := &migrator{}

	rootCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tool for the camarize document store",
		Long: `Database migration tool for the camarize document store.
Manages the PostgreSQL documents table and its delete-notification trigger
using golang-migrate. Migrations are embedded in the binary.`,
		SilenceUsage:       true,
		PersistentPreRunE:  mg.connect,
		PersistentPostRunE: mg.close,
	}
	rootCmd.PersistentFlags().StringVarP(&mg.env, "env", "e", "dev", "Environment to use (dev, test, prod)")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE:  mg.run(func(m *migrate.Migrate, _ []string) error { return m.Up() }, "Migration up completed"),
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Rollback migrations (default: 1)",
			Args:  cobra.MaximumNArgs(1),
			RunE: mg.run(func(m *migrate.Migrate, args []string) error {
				steps := 1
				if len(args) > 0 {
					n, err := parseVersion(args[0])
					if err != nil {
						return err
					}
					steps = n
				}
				return m.Steps(-steps)
			}, "Migration down completed"),
		},
		&cobra.Command{
			Use:   "goto <version>",
			Short: "Migrate to a specific version",
			Args:  cobra.ExactArgs(1),
			RunE: mg.run(func(m *migrate.Migrate, args []string) error {
				v, err := parseVersion(args[0])
				if err != nil {
					return err
				}
				return m.Migrate(uint(v))
			}, "Migration goto completed"),
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Force set migration version (use with caution)",
			Args:  cobra.ExactArgs(1),
			RunE: mg.run(func(m *migrate.Migrate, args []string) error {
				v, err := parseVersion(args[0])
				if err != nil {
					return err
				}
				return m.Force(v)
			}, "Migration version forced"),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show current migration version",
			RunE:  mg.version,
		},
	)

	return rootCmd
}

func (mg *migrator) connect(cmd *cobra.Command, _ []string) error {
	if err := config.InitConfig(mg.env); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	mg.logger = logging.New(cfg.Log, cmd.ErrOrStderr())

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	mg.pg, err = database.NewPostgres(ctx, &cfg.Database, 2)
	if err != nil {
		mg.logger.Error("connection failed", "env", mg.env, "error", err)
		return err
	}
	mg.logger.Info("connected to database", "env", mg.env, "target", cfg.Database.Target())
	return nil
}

func (mg *migrator) close(*cobra.Command, []string) error {
	if mg.pg == nil {
		return nil
	}
	return mg.pg.Close()
}

func (mg *migrator) run(step func(*migrate.Migrate, []string) error, done string) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, args []string) error {
		m, err := mg.pg.NewMigrator()
		if err != nil {
			return err
		}

		err = step(m, args)
		if errors.Is(err, migrate.ErrNoChange) {
			mg.logger.Info("no migrations to apply")
			return nil
		}
		if err != nil {
			mg.logger.Error("migration failed", "error", err)
			return err
		}
		mg.logger.Info(done)
		return nil
	}
}

func (mg *migrator) version(*cobra.Command, []string) error {
	m, err := mg.pg.NewMigrator()
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		mg.logger.Info("no migrations applied yet")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}

	mg.logger.Info("current migration version", "version", version, "dirty", dirty)
	return nil
}

func parseVersion(arg string) (int, error) {
	v, err := strconv.Atoi(arg)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid version %q: must be a non-negative integer", arg)
	}
	return v, nil
}
