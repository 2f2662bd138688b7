// Package worker runs the background side of the system: a periodic
// sweep that releases expired seat holds and the delivery handler for
// queued user notifications.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/screenbook/screenbook/internal/notify"
)

const TaskTypeExpireSweep = "seats:expire_sweep"

// Sweeper releases expired holds across all screenings that have any.
type Sweeper interface {
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

type Config struct {
	RedisAddr     string
	RedisPassword string
	SweepInterval time.Duration
	Concurrency   int
}

type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	logger    *slog.Logger
}

func New(cfg Config, sweeper Sweeper, logger *slog.Logger) *Worker {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues: map[string]int{
			"default": 6,
			"low":     3,
		},
		Logger: slogAdapter{logger},
	})

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger: slogAdapter{logger},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeExpireSweep, NewExpireSweepHandler(sweeper, logger))
	mux.HandleFunc(notify.TaskTypeNotifyUser, NewNotifyHandler(logger))

	w := &Worker{
		server:    server,
		scheduler: scheduler,
		mux:       mux,
		logger:    logger,
	}

	task := asynq.NewTask(TaskTypeExpireSweep, nil)
	if _, err := scheduler.Register(
		fmt.Sprintf("@every %s", cfg.SweepInterval),
		task,
		asynq.Queue("default"),
		asynq.TaskID("expire-sweep"), // dedupe: one pending sweep at a time
	); err != nil {
		logger.Error("failed to register expire sweep", "error", err)
	}

	return w
}

// Run starts the server and scheduler and blocks until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	const op = "worker.Worker.Run"

	if err := w.scheduler.Start(); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	if err := w.server.Start(w.mux); err != nil {
		w.scheduler.Shutdown()
		return fmt.Errorf("%s:%w", op, err)
	}

	<-ctx.Done()

	w.scheduler.Shutdown()
	w.server.Shutdown()
	return nil
}

// NewExpireSweepHandler returns the handler for the periodic hold
// expiry task. Errors are returned so asynq retries the sweep.
func NewExpireSweepHandler(sweeper Sweeper, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		released, err := sweeper.ExpireDue(ctx, time.Now().UTC())
		if err != nil {
			logger.Error("expire sweep failed", "error", err)
			return err
		}
		if released > 0 {
			logger.Info("expire sweep released holds", "seats", released)
		}
		return nil
	}
}

// NewNotifyHandler delivers queued user notifications. Delivery here is
// structured log output; a real channel (email, push) slots in behind
// the same task type.
func NewNotifyHandler(logger *slog.Logger) asynq.HandlerFunc {
	return func(_ context.Context, task *asynq.Task) error {
		var n notify.UserNotification
		if err := json.Unmarshal(task.Payload(), &n); err != nil {
			return fmt.Errorf("worker: decode notification: %w: %w", asynq.SkipRetry, err)
		}
		logger.Info("user notification",
			"user_id", n.UserID,
			"event", string(n.Event),
			"payload", string(n.Payload),
		)
		return nil
	}
}

// slogAdapter bridges slog to asynq's logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a slogAdapter) Debug(args ...any) { a.l.Debug(fmt.Sprint(args...)) }
func (a slogAdapter) Info(args ...any)  { a.l.Info(fmt.Sprint(args...)) }
func (a slogAdapter) Warn(args ...any)  { a.l.Warn(fmt.Sprint(args...)) }
func (a slogAdapter) Error(args ...any) { a.l.Error(fmt.Sprint(args...)) }
func (a slogAdapter) Fatal(args ...any) { a.l.Error(fmt.Sprint(args...)) }
