package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/appointments-api/internal/config"
	"github.com/jwalitptl/appointments-api/internal/email"
	"github.com/jwalitptl/appointments-api/internal/repository/postgres"
	"github.com/jwalitptl/appointments-api/internal/worker"
	"github.com/jwalitptl/appointments-api/pkg/logger"
	"github.com/jwalitptl/appointments-api/pkg/messaging"
	"github.com/jwalitptl/appointments-api/pkg/messaging/redis"
	"github.com/jwalitptl/appointments-api/pkg/metrics"
)

func main() {
	var (
		configPath string
		healthAddr string
	)

	rootCmd := &cobra.Command{
		Use:          "appointments-worker",
		Short:        "Sends appointment notifications from the event channel",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			return run(cfg, healthAddr)
		},
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config.yml")
	rootCmd.Flags().StringVar(&healthAddr, "health-addr", ":8081", "address of the health endpoints")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupHealthCheck(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health check server failed")
		}
	}()
	return srv
}

func run(cfg *config.Config, healthAddr string) error {
	appLogger := logger.NewLogger(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	zl := *appLogger.With("worker").Zerolog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	base := postgres.NewBaseRepository(db)

	broker, err := redis.NewRedisBroker(ctx, redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, zl, metrics.NewNop())
	if err != nil {
		return err
	}
	defer broker.Close()

	dispatcher := messaging.NewDispatcher(broker, zl)
	notifier := worker.NewAppointmentNotifier(
		postgres.NewUserRepository(base),
		postgres.NewDoctorRepository(base),
		email.NewSMTPService(cfg.SMTP),
		zl,
	)
	notifier.Register(dispatcher)

	health := setupHealthCheck(healthAddr)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = health.Shutdown(shutdownCtx)
	}()

	zl.Info().Str("channel", cfg.Redis.Channel).Msg("worker started")
	if err := dispatcher.Run(ctx, cfg.Redis.Channel); err != nil {
		return err
	}
	zl.Info().Msg("worker stopped")
	return nil
}
