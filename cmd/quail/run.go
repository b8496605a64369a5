package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	quail "github.com/quailbot/quail"
	"github.com/quailbot/quail/internal/config"
	"github.com/quailbot/quail/internal/logging"
	"github.com/quailbot/quail/internal/ops"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the persistence core and serve the ops endpoint",
	Long: `Loads configuration, selects the light backend (Redis when configured,
in-process memory otherwise), initializes the persistence session manager,
and serves /healthz and /metrics until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")

		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("configuration: %w", err)
		}
		logger := logging.New(logging.ParseLevel(cfg.LogLevel))

		key, err := cfg.SessionEncryptionKey()
		if err != nil {
			return err
		}
		redisOpts, err := cfg.RedisOptions()
		if err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		opts := quail.Options{
			DatabaseDSN:     cfg.Database.DSN,
			SessionTTL:      cfg.Session.TTL.Std(),
			EncryptionKey:   key,
			Registry:        reg,
			Logger:          logger,
			RedisKeyPrefix:  redisOpts.KeyPrefix,
			RedisLockPrefix: redisOpts.LockPrefix,
		}
		if cfg.RemoteLight() {
			opts.RedisURL = cfg.Redis.URL
		}

		// Initialize must complete before anything serves traffic; a broken
		// backend aborts startup here.
		startCtx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		app, err := quail.Open(startCtx, opts)
		cancel()
		if err != nil {
			return fmt.Errorf("startup: %w", err)
		}

		srv := &http.Server{
			Addr:    cfg.Ops.Addr,
			Handler: ops.NewHandler(app.Manager, reg, logger),
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("ops endpoint listening", "addr", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			_ = app.Close()
			return fmt.Errorf("ops server: %w", err)

		case sig := <-shutdown:
			logger.Info("shutting down", "signal", sig.String())

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("graceful ops shutdown did not complete", "err", err)
				_ = srv.Close()
			}

			// Backends go down after in-flight handlers drain.
			if err := app.Close(); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			logger.Info("stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
