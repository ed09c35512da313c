package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadcrm_backend/internal/events"
	"leadcrm_backend/internal/integrations"
	"leadcrm_backend/internal/integrations/token"
	"leadcrm_backend/internal/messaging"
	"leadcrm_backend/internal/scheduler"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/db"
	"leadcrm_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)

	// Token lifecycle manager shared by the sweep; refreshes are
	// single-flighted so the API and worker never double-refresh.
	integrationsRepo := integrations.NewRepository(pool)
	tokens := token.NewManager(integrationsRepo, cfg, eventBus, log)
	tokens.RegisterRefresher(integrations.ProviderMeta, token.NewMetaRefresher(cfg, cfg))

	dispatcher := messaging.NewDispatcher(
		messaging.NewWhatsAppClient(cfg, log),
		messaging.NewEmailSender(cfg),
		log,
	)

	worker, err := scheduler.NewWorker(cfg, pool, dispatcher, log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	tokenSweep := scheduler.NewTokenRefreshSweep(pool, tokens, 0, cfg.GetLongLivedTokenWindow(), log)
	go tokenSweep.Run(ctx)

	reconcile := scheduler.NewLeadsCountReconcile(pool, 0, log)
	go reconcile.Run(ctx)

	worker.Run(ctx)
	log.Info("worker stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return fmt.Errorf("%s: %w", name, lastErr)
}
