// Package cli is the tablequeue command line.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iliyamo/restaurant-queue/internal/config"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

type rootFlags struct {
	logLevel  string
	logFormat string
}

func NewRootCmd() *cobra.Command {
	var f rootFlags
	root := &cobra.Command{
		Use:           "tablequeue",
		Short:         "Walk-in queue and table assignment service for a restaurant floor",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv()
		},
	}
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "info", "debug, info, warn or error")
	root.PersistentFlags().StringVar(&f.logFormat, "log-format", "text", "text or json")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newServeCmd(&f))
	root.AddCommand(newMigrateCmd(&f))
	root.AddCommand(newAddTablesCmd(&f))
	root.AddCommand(newResetCmd(&f))
	root.AddCommand(newStaffCmd(&f))
	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (f *rootFlags) logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(f.logLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if strings.EqualFold(f.logFormat, "json") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	log := slog.New(h)
	slog.SetDefault(log)
	return log
}
