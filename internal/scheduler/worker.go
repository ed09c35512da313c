package scheduler

import (
	"context"
	"errors"
	"fmt"

	"leadcrm_backend/internal/leads/domain"
	leadrepo "leadcrm_backend/internal/leads/repository"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WelcomeSender delivers the first-contact message. Satisfied by
// messaging.Dispatcher.
type WelcomeSender interface {
	SendWelcome(ctx context.Context, lead domain.Lead) error
}

// Worker drains the task queue.
type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	leads   *leadrepo.Repository
	welcome WelcomeSender
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, pool *pgxpool.Pool, welcome WelcomeSender, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		leads:   leadrepo.New(pool),
		welcome: welcome,
		log:     log,
	}

	mux.HandleFunc(TaskWelcomeMessage, w.handleWelcomeMessage)

	return w, nil
}

func (w *Worker) handleWelcomeMessage(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseWelcomeMessagePayload(task)
	if err != nil {
		return err
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return err
	}

	lead, err := w.leads.GetByID(ctx, leadID)
	if errors.Is(err, leadrepo.ErrNotFound) {
		// Deleted before the queue got to it. Nothing to do.
		w.log.Info("welcome task skipped, lead is gone", "lead_id", leadID)
		return nil
	}
	if err != nil {
		return err
	}

	// Welcome delivery is fire-and-forget. A gateway failure is logged, not
	// retried: by the next attempt the message would no longer be a welcome.
	if err := w.welcome.SendWelcome(ctx, lead); err != nil {
		w.log.Warn("welcome delivery failed", "lead_id", leadID, "error", err)
	}
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
