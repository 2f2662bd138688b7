package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/screenbook/screenbook/internal/config"
	"github.com/screenbook/screenbook/internal/notify"
	"github.com/screenbook/screenbook/internal/payment"
	"github.com/screenbook/screenbook/internal/postgres"
	redisx "github.com/screenbook/screenbook/internal/redis"
	postgresrepo "github.com/screenbook/screenbook/internal/repository/postgres"
	redisrepo "github.com/screenbook/screenbook/internal/repository/redis"
	"github.com/screenbook/screenbook/internal/service"
	"github.com/screenbook/screenbook/internal/service/query"
	"github.com/screenbook/screenbook/internal/service/reservation"
	httpgin "github.com/screenbook/screenbook/internal/transport/http/gin"
	"github.com/screenbook/screenbook/internal/worker"
)

type App struct {
	cfg         *config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	worker      *worker.Worker
	asynqClient *asynq.Client
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Initialize dependencies
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.Name,
		cfg.Postgres.SSLMode,
	)

	pgxPool, err := postgres.New(context.Background(), postgres.Config{DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redisx.New(context.Background(), redisx.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Initialize repositories
	store := postgresrepo.NewStore(pgxPool)
	cache := redisrepo.New(rdb)
	pubsub := redisx.NewScreeningsPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(
		rdb, "rl", cfg.Limits.HoldsPerWindow, cfg.Limits.Window,
	)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)

	// Initialize collaborators
	charger := payment.NewGatewayClient(cfg.Payment.GatewayURL, cfg.Payment.Timeout)

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	notifier := notify.NewEnqueuer(asynqClient)

	// Initialize services
	services := service.New(service.Deps{
		Store:    store,
		Cache:    cache,
		PubSub:   pubsub,
		Limiter:  limiter,
		Charger:  charger,
		Notifier: notifier,
		Logger:   logger,
	}, service.Config{
		Reservation: reservation.Config{
			DefaultHoldTTL: cfg.Holds.DefaultTTL,
			MinHoldTTL:     cfg.Holds.MinTTL,
			MaxHoldTTL:     cfg.Holds.MaxTTL,
		},
		Query: query.Config{},
	})

	// Background worker: hold expiry sweep and notification delivery
	wrk := worker.New(worker.Config{
		RedisAddr:     cfg.Redis.Addr,
		RedisPassword: cfg.Redis.Password,
		SweepInterval: cfg.Holds.SweepInterval,
	}, services.Reservation, logger)

	// Initialize Gin router
	router := httpgin.NewRouter(services, idempotencyStore, logger)

	return &App{
		cfg:         cfg,
		logger:      logger,
		worker:      wrk,
		asynqClient: asynqClient,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Start background worker
	g.Go(func() error {
		a.logger.Info("background worker starting", "sweep_interval", a.cfg.Holds.SweepInterval)
		return a.worker.Run(gCtx)
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		_ = a.asynqClient.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
