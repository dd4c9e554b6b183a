package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"notifilter/internal/config"
	"notifilter/internal/constants"
	"notifilter/internal/logger"
	"notifilter/pkg/logging"
)

var (
	configFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   constants.ServiceName,
		Short: "Notification filter service",
		Long:  "Decides which notifications reach a team: allow, block, downgrade or batch",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(evaluateCmd())

	rootCmd.SilenceErrors = true
	if err := rootCmd.Execute(); err != nil {
		if !logging.Reported(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func resolveConfigFile() string {
	if configFile != "" {
		return configFile
	}
	return os.Getenv("CONFIG_FILE")
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Consume events, publish decisions and serve the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			startup := logging.NewStartup("serve")

			path := resolveConfigFile()
			if path == "" {
				return startup.Fail("config file is required, use --config or CONFIG_FILE", nil)
			}

			cfg, err := config.Load(path)
			if err != nil {
				return startup.Fail("failed to load config", err)
			}

			log, err := logger.New(cfg.Logging)
			if err != nil {
				return startup.Fail("failed to init logger", err)
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.InfowCtx(ctx, "Starting notification filter service")

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.Fatalf("Failed to initialize application: %v", err)
			}

			log.InfowCtx(ctx, "Service running")
			runErr := app.Run(ctx)

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer shutdownCancel()
			if err := app.Shutdown(shutdownCtx); err != nil {
				log.ErrorwCtx(shutdownCtx, "Shutdown failed", "error", err)
			}

			if runErr != nil {
				log.ErrorwCtx(ctx, "Service stopped with error", "error", runErr)
				return runErr
			}
			log.InfowCtx(ctx, "Service shutdown complete")
			return nil
		},
	}
}
