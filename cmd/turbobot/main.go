// Turbobot is a QQ and Matrix chat front-end for the turbo maimai account
// service.
//
// Configuration comes from environment variables, optionally seeded from a
// .env file in the working directory. See internal/turbobot/config for the
// full list. At least one transport is required:
//
//	MATRIX_HOMESERVER, MATRIX_USER_ID, MATRIX_ACCESS_TOKEN  - Matrix
//	ONEBOT_WS_URL, ONEBOT_ACCESS_TOKEN                      - QQ via OneBot v11
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bdobrica/turbobot/common/version"
	"github.com/bdobrica/turbobot/internal/turbobot/app"
	"github.com/bdobrica/turbobot/internal/turbobot/config"
	"github.com/bdobrica/turbobot/internal/turbobot/observability"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "turbobot",
		Short:        "Chat front-end for the turbo maimai account service",
		SilenceUsage: true,
		RunE:         runBot,
	}
	root.AddCommand(
		newRunCmd(),
		newBindingsCmd(),
		newAuditCmd(),
		newVersionCmd(),
	)
	return root
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect the configured transports and serve commands",
		Args:  cobra.NoArgs,
		RunE:  runBot,
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func runBot(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	observability.Setup(cfg.LogLevel, cfg.LogFormat)
	slog.Info("starting turbobot", "version", version.Version, "commit", version.GitCommit)

	bot, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize turbobot: %w", err)
	}
	defer bot.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bot.Run(ctx); err != nil {
		return err
	}
	slog.Info("shutting down")
	return nil
}
