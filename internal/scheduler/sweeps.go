package scheduler

import (
	"context"
	"errors"
	"time"

	"leadcrm_backend/internal/integrations"
	"leadcrm_backend/internal/integrations/token"
	"leadcrm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultTokenSweepInterval = 10 * time.Minute
	defaultReconcileInterval  = time.Hour
)

// TokenSource proactively refreshes credentials. Satisfied by token.Manager.
type TokenSource interface {
	EnsureFresh(ctx context.Context, integrationID uuid.UUID) (string, error)
}

// TokenRefreshSweep walks integrations whose token is approaching expiry and
// refreshes them before the ingest path has to. Reactive refresh still covers
// anything the sweep misses.
type TokenRefreshSweep struct {
	repo     *integrations.Repository
	tokens   TokenSource
	interval time.Duration
	window   time.Duration
	log      *logger.Logger
}

func NewTokenRefreshSweep(pool *pgxpool.Pool, tokens TokenSource, interval, window time.Duration, log *logger.Logger) *TokenRefreshSweep {
	if interval <= 0 {
		interval = defaultTokenSweepInterval
	}
	return &TokenRefreshSweep{
		repo:     integrations.NewRepository(pool),
		tokens:   tokens,
		interval: interval,
		window:   window,
		log:      log,
	}
}

func (s *TokenRefreshSweep) Run(ctx context.Context) {
	if s == nil || s.repo == nil {
		return
	}

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *TokenRefreshSweep) sweep(ctx context.Context) {
	expiring, err := s.repo.ListExpiringWithin(ctx, s.window)
	if err != nil {
		s.log.Warn("token sweep listing failed", "error", err)
		return
	}

	for _, integration := range expiring {
		if _, err := s.tokens.EnsureFresh(ctx, integration.ID); err != nil {
			// The manager already moved the integration to the error status
			// and kept the previous token; nothing more to do here.
			if errors.Is(err, token.ErrNoCredentials) {
				continue
			}
			s.log.Warn("proactive token refresh failed",
				"integration_id", integration.ID, "provider", integration.Provider, "error", err)
		}
	}

	if len(expiring) > 0 {
		s.log.Info("token sweep completed", "checked", len(expiring))
	}
}

// LeadsCountReconcile periodically recomputes the denormalized per-integration
// lead counters from the leads table.
type LeadsCountReconcile struct {
	repo     *integrations.Repository
	interval time.Duration
	log      *logger.Logger
}

func NewLeadsCountReconcile(pool *pgxpool.Pool, interval time.Duration, log *logger.Logger) *LeadsCountReconcile {
	if interval <= 0 {
		interval = defaultReconcileInterval
	}
	return &LeadsCountReconcile{
		repo:     integrations.NewRepository(pool),
		interval: interval,
		log:      log,
	}
}

func (r *LeadsCountReconcile) Run(ctx context.Context) {
	if r == nil || r.repo == nil {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.repo.ReconcileLeadsCount(ctx); err != nil {
				r.log.Warn("leads count reconcile failed", "error", err)
			}
		}
	}
}
