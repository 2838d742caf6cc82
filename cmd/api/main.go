package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/appointments-api/internal/config"
	"github.com/jwalitptl/appointments-api/internal/handler"
	appointmentHandler "github.com/jwalitptl/appointments-api/internal/handler/appointment"
	authHandler "github.com/jwalitptl/appointments-api/internal/handler/auth"
	doctorHandler "github.com/jwalitptl/appointments-api/internal/handler/doctor"
	scheduleHandler "github.com/jwalitptl/appointments-api/internal/handler/schedule"
	userHandler "github.com/jwalitptl/appointments-api/internal/handler/user"
	"github.com/jwalitptl/appointments-api/internal/middleware"
	"github.com/jwalitptl/appointments-api/internal/migrations"
	"github.com/jwalitptl/appointments-api/internal/repository/postgres"
	"github.com/jwalitptl/appointments-api/internal/router"
	"github.com/jwalitptl/appointments-api/internal/scheduling"
	appointmentService "github.com/jwalitptl/appointments-api/internal/service/appointment"
	authService "github.com/jwalitptl/appointments-api/internal/service/auth"
	doctorService "github.com/jwalitptl/appointments-api/internal/service/doctor"
	eventService "github.com/jwalitptl/appointments-api/internal/service/event"
	scheduleService "github.com/jwalitptl/appointments-api/internal/service/schedule"
	userService "github.com/jwalitptl/appointments-api/internal/service/user"
	"github.com/jwalitptl/appointments-api/pkg/auth"
	"github.com/jwalitptl/appointments-api/pkg/logger"
	"github.com/jwalitptl/appointments-api/pkg/messaging/redis"
	"github.com/jwalitptl/appointments-api/pkg/metrics"
	"github.com/jwalitptl/appointments-api/pkg/security"
	"github.com/jwalitptl/appointments-api/pkg/worker"
)

const metricsNamespace = "appointments"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "appointments-api",
		Short:        "Medical appointment scheduling API",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yml")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(migrateCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			db, err := postgres.NewDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := migrations.Up(db); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Println("Migrations applied successfully.")
			return nil
		},
	})

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")

			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			db, err := postgres.NewDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := migrations.Down(db, steps); err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			fmt.Printf("Rolled back %d migration(s).\n", steps)
			return nil
		},
	}
	downCmd.Flags().Int("steps", 1, "number of migrations to roll back")
	cmd.AddCommand(downCmd)

	return cmd
}

func serve(cfg *config.Config) error {
	appLogger := logger.NewLogger(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	if err := middleware.RegisterValidators(); err != nil {
		return err
	}

	loc, err := cfg.Scheduling.Location()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(metricsNamespace, reg)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	// Repositories
	base := postgres.NewBaseRepository(db)
	userRepo := postgres.NewUserRepository(base)
	doctorRepo := postgres.NewDoctorRepository(base)
	scheduleRepo := postgres.NewScheduleRepository(base)
	appointmentRepo := postgres.NewAppointmentRepository(base)
	outboxRepo := postgres.NewOutboxRepository(base)

	// Services
	hasher := security.NewBcryptHasher(cfg.Security.BcryptCost)
	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	engine := scheduling.NewEngine(scheduleRepo, appointmentRepo, scheduling.WithLocation(loc))

	authSvc := authService.NewService(userRepo, hasher, jwtSvc, authService.WithAdminSignup(cfg.Security.AllowAdminSignup))
	userSvc := userService.NewService(userRepo, hasher)
	doctorSvc := doctorService.NewService(doctorRepo, m)
	scheduleSvc := scheduleService.NewService(scheduleRepo, doctorSvc)
	eventSvc := eventService.NewEventService(outboxRepo)
	appointmentSvc := appointmentService.NewService(appointmentRepo, &base, userRepo, doctorSvc, engine, eventSvc, m)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RPS:   cfg.RateLimit.RequestsPerSecond,
			Burst: cfg.RateLimit.Burst,
		})
		go limiter.RunCleanup(ctx, time.Minute)
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.Security.AllowedOrigins

	r := router.NewRouter(middleware.NewAuthMiddleware(authSvc), router.Handlers{
		Health:      handler.NewHandler(db, reg),
		Auth:        authHandler.NewHandler(authSvc),
		User:        userHandler.NewHandler(userSvc),
		Doctor:      doctorHandler.NewHandler(doctorSvc),
		Schedule:    scheduleHandler.NewHandler(scheduleSvc),
		Appointment: appointmentHandler.NewHandler(appointmentSvc),
	}, m, router.RouterConfig{
		Mode:           cfg.Server.Mode,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		CORSConfig:     corsConfig,
		RateLimiter:    limiter,
	})

	if cfg.Outbox.Enabled {
		broker, err := redis.NewRedisBroker(ctx, redis.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, log.Logger, m)
		if err != nil {
			return err
		}
		defer broker.Close()

		processor, err := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxProcessorConfig{
			Channel:       cfg.Redis.Channel,
			BatchSize:     cfg.Outbox.BatchSize,
			PollInterval:  cfg.Outbox.PollInterval,
			RetryAttempts: cfg.Outbox.RetryAttempts,
			RetryDelay:    cfg.Outbox.RetryDelay,
		}, appLogger, m)
		if err != nil {
			return err
		}
		go processor.Start(ctx)

		cleanup := worker.NewOutboxCleanupWorker(outboxRepo, cfg.Outbox.Retention, time.Hour, appLogger, m)
		go cleanup.Start(ctx)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server exited properly")
	return nil
}
