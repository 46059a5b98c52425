package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/oldrefery/summit-backend-sub001/internal/config"
	"github.com/spf13/cobra"
)

const programName = "summitctl"

var globalFlags = struct {
	debug bool
	actor string
}{}

type configKey struct{}

func configFromContext(ctx context.Context) *config.Config {
	cfg, _ := ctx.Value(configKey{}).(*config.Config)
	return cfg
}

func commonRun() *slog.Logger {
	logLevel := slog.LevelWarn
	if globalFlags.debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}),
	).With("component", programName)
	slog.SetDefault(logger)
	return logger
}

func main() {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Operate the summit admin backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().
		StringVar(&globalFlags.actor, "actor", programName, "operator name recorded in audit events")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
		return nil
	}

	rootCmd.AddCommand(migrateCommand())
	rootCmd.AddCommand(versionsCommand())
	rootCmd.AddCommand(changesCommand())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
