// Package ingest orchestrates the hot path: normalize, dedup, persist,
// fan out. One coordinator instance serves every source channel.
package ingest

import (
	"context"
	"errors"
	"time"

	"leadcrm_backend/internal/events"
	"leadcrm_backend/internal/leads/dedup"
	"leadcrm_backend/internal/leads/domain"
	"leadcrm_backend/internal/leads/repository"
	"leadcrm_backend/internal/sources"
	"leadcrm_backend/platform/apperr"
	"leadcrm_backend/platform/logger"

	"github.com/google/uuid"
)

// Result is the per-lead processing outcome reported to the caller and, in
// batch mode, aggregated per item.
type Result struct {
	Success          bool       `json:"success"`
	LeadID           *uuid.UUID `json:"leadId,omitempty"`
	Created          bool       `json:"created"`
	Error            string     `json:"error,omitempty"`
	ProcessingTimeMS int64      `json:"processingTimeMs"`

	// Err carries the typed error for callers that need to map it to a
	// transport status. Error above is its client-safe string form.
	Err error `json:"-"`
}

// Store is the write side of the pipeline. Satisfied by repository.Repository.
type Store interface {
	Insert(ctx context.Context, draft domain.Lead) (domain.Lead, error)
	Refresh(ctx context.Context, lead domain.Lead) (domain.Lead, error)
}

// Deduper decides insert-vs-refresh. Satisfied by dedup.Resolver.
type Deduper interface {
	Resolve(ctx context.Context, in domain.IncomingLead) (dedup.Decision, error)
}

// Welcomer sends the first-contact message to a newly created lead.
// Satisfied by messaging.Dispatcher. Failures never affect the ingest result.
type Welcomer interface {
	SendWelcome(ctx context.Context, lead domain.Lead) error
}

// Archiver stores the raw payload of terminally failed ingests for manual
// recovery. Satisfied by archive.Store.
type Archiver interface {
	ArchiveFailure(ctx context.Context, source domain.Source, payload []byte, reason string) error
}

// Recorder receives per-ingest measurements. Satisfied by observe.Metrics.
type Recorder interface {
	RecordIngest(source domain.Source, created bool, latency time.Duration)
	RecordFailure(source domain.Source)
}

// Coordinator runs the ingestion pipeline.
type Coordinator struct {
	adapters map[domain.Source]sources.Adapter
	deduper  Deduper
	store    Store
	bus      events.Bus
	welcomer Welcomer
	archiver Archiver
	metrics  Recorder
	log      *logger.Logger
}

func NewCoordinator(
	adapters []sources.Adapter,
	deduper Deduper,
	store Store,
	bus events.Bus,
	welcomer Welcomer,
	archiver Archiver,
	metrics Recorder,
	log *logger.Logger,
) *Coordinator {
	bySource := make(map[domain.Source]sources.Adapter, len(adapters))
	for _, a := range adapters {
		bySource[a.Source()] = a
	}
	return &Coordinator{
		adapters: bySource,
		deduper:  deduper,
		store:    store,
		bus:      bus,
		welcomer: welcomer,
		archiver: archiver,
		metrics:  metrics,
		log:      log,
	}
}

// Ingest normalizes a raw source payload and runs it through the pipeline.
func (c *Coordinator) Ingest(ctx context.Context, source domain.Source, payload []byte, sc sources.SourceContext) Result {
	start := time.Now()

	adapter, ok := c.adapters[source]
	if !ok {
		return c.fail(ctx, start, source, payload, apperr.BadRequest("unknown source: "+string(source)), false)
	}

	in, err := adapter.Normalize(ctx, payload, sc)
	if err != nil {
		var adapterErr *sources.AdapterError
		if errors.As(err, &adapterErr) && adapterErr.Retryable {
			// Transient upstream failure: surface 503 so the platform's
			// redelivery mechanism retries. Nothing to archive; the payload
			// will come back.
			c.log.IngestFailure(string(source), string(adapterErr.Kind), excerpt(payload), true)
			c.metrics.RecordFailure(source)
			return Result{
				Error:            adapterErr.Message,
				Err:              apperr.Unavailable(adapterErr.Message),
				ProcessingTimeMS: time.Since(start).Milliseconds(),
			}
		}
		return c.fail(ctx, start, source, payload, asAppErr(err), true)
	}

	return c.ingestNormalized(ctx, start, in, payload)
}

// IngestLead runs an already-normalized lead through dedup and persistence.
// This is the manual-create and batch-sync entry point.
func (c *Coordinator) IngestLead(ctx context.Context, in domain.IncomingLead) Result {
	return c.ingestNormalized(ctx, time.Now(), in, nil)
}

func (c *Coordinator) ingestNormalized(ctx context.Context, start time.Time, in domain.IncomingLead, payload []byte) Result {
	if in.FullName == "" {
		return c.fail(ctx, start, in.Source, payload, apperr.Validation("fullName is required"), payload != nil)
	}

	decision, err := c.deduper.Resolve(ctx, in)
	if err != nil {
		return c.fail(ctx, start, in.Source, payload, asAppErr(err), false)
	}

	var (
		lead    domain.Lead
		created bool
	)
	switch decision.Action {
	case dedup.ActionRefresh:
		lead, err = c.store.Refresh(ctx, dedup.Merge(decision.Existing, in))
	default:
		lead, created, err = c.insert(ctx, in)
	}
	if err != nil {
		c.log.DatabaseError("ingest_persist", err)
		return c.fail(ctx, start, in.Source, payload, asAppErr(err), false)
	}

	latency := time.Since(start)
	c.metrics.RecordIngest(lead.Source, created, latency)
	c.log.IngestOutcome(string(lead.Source), created, lead.ID.String(), latency.Milliseconds())
	c.publish(ctx, lead, created)

	if created && c.welcomer != nil {
		// First-contact message is best effort. The lead is already
		// committed; a messaging failure must never undo that.
		if err := c.welcomer.SendWelcome(ctx, lead); err != nil {
			c.log.Warn("welcome message failed", "lead_id", lead.ID, "error", err)
		}
	}

	id := lead.ID
	return Result{
		Success:          true,
		LeadID:           &id,
		Created:          created,
		ProcessingTimeMS: latency.Milliseconds(),
	}
}

// insert persists a new lead, converting a lost insert race into a refresh of
// the row that won. The caller sees a successful non-created ingest with the
// winner's id; the race is an implementation detail.
func (c *Coordinator) insert(ctx context.Context, in domain.IncomingLead) (domain.Lead, bool, error) {
	lead, err := c.store.Insert(ctx, domain.NewLeadDraft(in))
	if err == nil {
		return lead, true, nil
	}
	if !errors.Is(err, repository.ErrDuplicateRace) {
		return domain.Lead{}, false, err
	}

	decision, err := c.deduper.Resolve(ctx, in)
	if err != nil {
		return domain.Lead{}, false, err
	}
	if decision.Action != dedup.ActionRefresh {
		// The winning row is not visible to our matcher. Give up rather
		// than loop on the unique index.
		return domain.Lead{}, false, apperr.Conflict("lead already exists")
	}
	lead, err = c.store.Refresh(ctx, dedup.Merge(decision.Existing, in))
	return lead, false, err
}

func (c *Coordinator) publish(ctx context.Context, lead domain.Lead, created bool) {
	if created {
		c.bus.Publish(ctx, events.LeadCreated{
			BaseEvent:     events.NewBaseEvent(),
			LeadID:        lead.ID,
			IntegrationID: lead.IntegrationID,
			CampaignID:    lead.CampaignID,
			Source:        string(lead.Source),
			Status:        string(lead.Status),
			Country:       lead.Country,
			OwnerUserID:   lead.OwnerUserID,
			OwnerTeamID:   lead.OwnerTeamID,
			FullName:      lead.FullName,
		})
		return
	}
	c.bus.Publish(ctx, events.LeadRefreshed{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      lead.ID,
		Source:      string(lead.Source),
		Status:      string(lead.Status),
		Country:     lead.Country,
		OwnerUserID: lead.OwnerUserID,
		OwnerTeamID: lead.OwnerTeamID,
	})
}

// fail records a failed ingest. Terminal failures with a raw payload are
// archived so an operator can replay them once the cause is fixed.
func (c *Coordinator) fail(ctx context.Context, start time.Time, source domain.Source, payload []byte, appErr *apperr.Error, archive bool) Result {
	c.metrics.RecordFailure(source)
	c.log.IngestFailure(string(source), appErr.Message, excerpt(payload), false)

	if archive && c.archiver != nil && len(payload) > 0 {
		if err := c.archiver.ArchiveFailure(ctx, source, payload, appErr.Message); err != nil {
			c.log.Warn("failed to archive ingest payload", "source", source, "error", err)
		}
	}

	return Result{
		Error:            appErr.Message,
		Err:              appErr,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}
}

func asAppErr(err error) *apperr.Error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	var adapterErr *sources.AdapterError
	if errors.As(err, &adapterErr) {
		switch adapterErr.Kind {
		case sources.KindMalformedPayload:
			return apperr.BadRequest(adapterErr.Message)
		case sources.KindIntegrationNotConfigured:
			return apperr.Validation(adapterErr.Message)
		case sources.KindUpstreamUnavailable:
			return apperr.Unavailable(adapterErr.Message)
		}
	}
	return apperr.Internal("lead ingestion failed")
}

const maxExcerpt = 256

func excerpt(payload []byte) string {
	if len(payload) <= maxExcerpt {
		return string(payload)
	}
	return string(payload[:maxExcerpt])
}
