package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/meikuraledutech/pipeline/config"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:          "pipeline-server",
		Short:        "Serve the pipeline editor graph API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}

			level, err := log.ParseLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			if verbose {
				level = log.DebugLevel
			}
			logger := newLogger(level)

			return serve(cmd.Context(), cfg, logger)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", os.Getenv("PIPELINE_CONFIG"), "path to a YAML config file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides the config file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	return cmd
}

func newLogger(level log.Level) *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
		Prefix:          "pipeline",
	})
}

func serve(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(newSessions(cfg.MaxSessions, cfg.SeedExample, logger), logger)

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr)
		errc <- app.Listen(cfg.Addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}
