// Package service exposes lead operations to the HTTP layer: manual create,
// batch sync, lookup and delete. The ingest coordinator does the heavy
// lifting; this layer adds batching and delete semantics.
package service

import (
	"context"
	"errors"

	"leadcrm_backend/internal/events"
	"leadcrm_backend/internal/leads/domain"
	"leadcrm_backend/internal/leads/ingest"
	"leadcrm_backend/internal/leads/repository"
	"leadcrm_backend/platform/apperr"
	"leadcrm_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// syncConcurrency bounds how many batch items are ingested in parallel.
const syncConcurrency = 8

type Service struct {
	coordinator *ingest.Coordinator
	repo        *repository.Repository
	bus         events.Bus
	log         *logger.Logger
}

func New(coordinator *ingest.Coordinator, repo *repository.Repository, bus events.Bus, log *logger.Logger) *Service {
	return &Service{coordinator: coordinator, repo: repo, bus: bus, log: log}
}

// CreateManual ingests one operator-entered lead.
func (s *Service) CreateManual(ctx context.Context, in domain.IncomingLead) ingest.Result {
	if in.Source == "" {
		in.Source = domain.SourceManual
	}
	return s.coordinator.IngestLead(ctx, in)
}

// SyncSummary aggregates a batch import.
type SyncSummary struct {
	Total     int             `json:"total"`
	Created   int             `json:"created"`
	Refreshed int             `json:"refreshed"`
	Failed    int             `json:"failed"`
	Results   []ingest.Result `json:"results"`
}

// SyncBatch ingests a batch concurrently. Items fail independently; one bad
// record never aborts the rest of the batch.
func (s *Service) SyncBatch(ctx context.Context, batch []domain.IncomingLead) SyncSummary {
	results := make([]ingest.Result, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncConcurrency)
	for i, in := range batch {
		if in.Source == "" {
			in.Source = domain.SourceSync
		}
		g.Go(func() error {
			results[i] = s.coordinator.IngestLead(gctx, in)
			return nil
		})
	}
	// Workers never return errors; Wait is just the barrier.
	_ = g.Wait()

	summary := SyncSummary{Total: len(batch), Results: results}
	for _, r := range results {
		switch {
		case r.Success && r.Created:
			summary.Created++
		case r.Success:
			summary.Refreshed++
		default:
			summary.Failed++
		}
	}
	return summary
}

// Get returns one lead by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Lead{}, apperr.NotFound("lead not found")
	}
	return lead, err
}

// Delete removes a lead and its child records, then notifies subscribers.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, deletedBy uuid.UUID) error {
	lead, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("lead not found")
	}
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("lead not found")
		}
		s.log.DatabaseError("lead_delete", err)
		return err
	}

	s.bus.Publish(ctx, events.LeadDeleted{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      lead.ID,
		Country:     lead.Country,
		OwnerUserID: lead.OwnerUserID,
		OwnerTeamID: lead.OwnerTeamID,
		DeletedByID: deletedBy,
	})
	return nil
}
