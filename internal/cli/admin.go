package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/restaurant-queue/internal/app"
	"github.com/iliyamo/restaurant-queue/internal/config"
	"github.com/iliyamo/restaurant-queue/internal/engine"
	"github.com/iliyamo/restaurant-queue/internal/handler"
)

// errNeedsDatabase is returned by maintenance commands run against the
// memory store, whose state dies with the process.
var errNeedsDatabase = errors.New("this command needs STORE=mysql")

// withEngine loads config, opens the MySQL store and runs fn with an engine
// over it.
func withEngine(f *rootFlags, timeout time.Duration, fn func(ctx context.Context, cfg config.Config, s app.Storage, eng *engine.Engine, log *slog.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Store != config.StoreMySQL {
		return errNeedsDatabase
	}
	log := f.logger()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s, err := app.OpenStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, cfg, s, app.NewEngine(cfg, s.Store, nil, log), log)
}

func newMigrateCmd(f *rootFlags) *cobra.Command {
	var seed bool
	c := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and seed an empty pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(f, time.Minute, func(ctx context.Context, cfg config.Config, s app.Storage, eng *engine.Engine, log *slog.Logger) error {
				if !seed || !s.Empty {
					fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
					return nil
				}
				layout, err := app.PoolLayout(cfg)
				if err != nil {
					return err
				}
				n, err := app.SeedPool(ctx, eng, layout)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema up to date, seeded %d tables\n", n)
				return nil
			})
		},
	}
	c.Flags().BoolVar(&seed, "seed", true, "seed the pool from POOL_LAYOUT_FILE or POOL_SIZE when it is empty")
	return c
}

func newAddTablesCmd(f *rootFlags) *cobra.Command {
	var count, capacity int
	c := &cobra.Command{
		Use:   "add-tables",
		Short: "Add free tables to the pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(f, 30*time.Second, func(ctx context.Context, cfg config.Config, s app.Storage, eng *engine.Engine, log *slog.Logger) error {
				if capacity == 0 {
					capacity = cfg.DefaultTableCapacity
				}
				ts, err := eng.AddTables(ctx, count, capacity)
				if err != nil {
					return err
				}
				for _, t := range ts {
					fmt.Fprintf(cmd.OutOrStdout(), "added table %d (capacity %d)\n", t.ID, t.Capacity)
				}
				return nil
			})
		},
	}
	c.Flags().IntVar(&count, "count", 1, "number of tables")
	c.Flags().IntVar(&capacity, "capacity", 0, "seats per table (default DEFAULT_TABLE_CAPACITY)")
	return c
}

func newResetCmd(f *rootFlags) *cobra.Command {
	var yes bool
	c := &cobra.Command{
		Use:   "reset",
		Short: "Remove every party and free every table, keeping capacities and usage history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to reset without --yes")
			}
			return withEngine(f, 30*time.Second, func(ctx context.Context, cfg config.Config, s app.Storage, eng *engine.Engine, log *slog.Logger) error {
				if err := eng.ResetState(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "state reset")
				return nil
			})
		},
	}
	c.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return c
}

func newStaffCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staff",
		Short: "Staff account management",
	}
	cmd.AddCommand(newStaffCreateCmd(f))
	return cmd
}

func newStaffCreateCmd(f *rootFlags) *cobra.Command {
	var email, password, role string
	c := &cobra.Command{
		Use:   "create",
		Short: "Create a staff account",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, ok := handler.NormalizeRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q", role)
			}
			return withEngine(f, 20*time.Second, func(ctx context.Context, cfg config.Config, s app.Storage, eng *engine.Engine, log *slog.Logger) error {
				id, err := s.Staff.Create(ctx, email, password, r, cfg.BcryptCost)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created staff %d: %s (%s)\n", id, email, r)
				return nil
			})
		},
	}
	c.Flags().StringVar(&email, "email", "", "login email")
	c.Flags().StringVar(&password, "password", "", "password")
	c.Flags().StringVar(&role, "role", "STAFF", "STAFF or ADMIN")
	_ = c.MarkFlagRequired("email")
	_ = c.MarkFlagRequired("password")
	return c
}
