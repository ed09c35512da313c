package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
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

type fakeStore struct {
	mu        sync.Mutex
	inserted  []domain.Lead
	refreshed []domain.Lead
	insertErr []error // popped per call; nil means success
}

func (s *fakeStore) Insert(_ context.Context, draft domain.Lead) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.insertErr) > 0 {
		err := s.insertErr[0]
		s.insertErr = s.insertErr[1:]
		if err != nil {
			return domain.Lead{}, err
		}
	}
	draft.ID = uuid.New()
	draft.CreatedAt = time.Now()
	s.inserted = append(s.inserted, draft)
	return draft, nil
}

func (s *fakeStore) Refresh(_ context.Context, lead domain.Lead) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead.CreatedAt = time.Now()
	lead.LastSeenAt = lead.CreatedAt
	s.refreshed = append(s.refreshed, lead)
	return lead, nil
}

type fakeDeduper struct {
	mu        sync.Mutex
	decisions []dedup.Decision // popped per call
	err       error
	calls     int
}

func (d *fakeDeduper) Resolve(context.Context, domain.IncomingLead) (dedup.Decision, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return dedup.Decision{}, d.err
	}
	if len(d.decisions) == 0 {
		return dedup.Decision{Action: dedup.ActionInsert}, nil
	}
	decision := d.decisions[0]
	d.decisions = d.decisions[1:]
	return decision, nil
}

type fakeBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *fakeBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *fakeBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *fakeBus) Subscribe(string, events.Handler) {}

func (b *fakeBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.EventName()
	}
	return out
}

type fakeWelcomer struct {
	mu   sync.Mutex
	sent []uuid.UUID
	fail bool
}

func (w *fakeWelcomer) SendWelcome(_ context.Context, lead domain.Lead) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return errors.New("smtp down")
	}
	w.sent = append(w.sent, lead.ID)
	return nil
}

type fakeArchiver struct {
	mu       sync.Mutex
	archived []string
}

func (a *fakeArchiver) ArchiveFailure(_ context.Context, source domain.Source, payload []byte, reason string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.archived = append(a.archived, reason)
	return nil
}

type fakeMetrics struct {
	mu       sync.Mutex
	ingests  int
	failures int
}

func (m *fakeMetrics) RecordIngest(domain.Source, bool, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ingests++
}

func (m *fakeMetrics) RecordFailure(domain.Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

type scriptedAdapter struct {
	source domain.Source
	lead   domain.IncomingLead
	err    error
}

func (a scriptedAdapter) Source() domain.Source { return a.source }
func (a scriptedAdapter) Normalize(context.Context, []byte, sources.SourceContext) (domain.IncomingLead, error) {
	return a.lead, a.err
}

type harness struct {
	coordinator *Coordinator
	store       *fakeStore
	deduper     *fakeDeduper
	bus         *fakeBus
	welcomer    *fakeWelcomer
	archiver    *fakeArchiver
	metrics     *fakeMetrics
}

func newHarness(adapters ...sources.Adapter) *harness {
	h := &harness{
		store:    &fakeStore{},
		deduper:  &fakeDeduper{},
		bus:      &fakeBus{},
		welcomer: &fakeWelcomer{},
		archiver: &fakeArchiver{},
		metrics:  &fakeMetrics{},
	}
	h.coordinator = NewCoordinator(adapters, h.deduper, h.store, h.bus,
		h.welcomer, h.archiver, h.metrics, logger.New("development"))
	return h
}

func TestIngestNewLead(t *testing.T) {
	h := newHarness()
	result := h.coordinator.IngestLead(context.Background(), domain.IncomingLead{
		FullName: "Jane Doe",
		Phone:    "+1 555 123 4567",
		Source:   domain.SourceWebhook,
	})

	if !result.Success {
		t.Fatalf("result = %+v", result)
	}
	if !result.Created {
		t.Error("Created = false, want true for a first-seen lead")
	}
	if result.LeadID == nil {
		t.Fatal("LeadID missing on success")
	}
	if len(h.store.inserted) != 1 {
		t.Fatalf("inserted %d leads", len(h.store.inserted))
	}
	if got := h.store.inserted[0].Status; got != domain.StatusNew {
		t.Errorf("stored status = %q, want new", got)
	}
	if names := h.bus.names(); len(names) != 1 || names[0] != "leads.lead.created" {
		t.Errorf("events = %v", names)
	}
	if len(h.welcomer.sent) != 1 {
		t.Errorf("welcome sent %d times, want 1", len(h.welcomer.sent))
	}
	if h.metrics.ingests != 1 || h.metrics.failures != 0 {
		t.Errorf("metrics = %d/%d", h.metrics.ingests, h.metrics.failures)
	}
}

func TestIngestDuplicateRefreshes(t *testing.T) {
	existing := domain.Lead{
		ID:              uuid.New(),
		FullName:        "Jane Doe",
		PhoneNormalized: "+15551234567",
		Status:          domain.StatusNew,
		Source:          domain.SourceWebhook,
	}
	h := newHarness()
	h.deduper.decisions = []dedup.Decision{{Action: dedup.ActionRefresh, Existing: existing}}

	result := h.coordinator.IngestLead(context.Background(), domain.IncomingLead{
		FullName: "Jane Doe",
		Phone:    "555-123-4567",
		Source:   domain.SourceWebsite,
	})

	if !result.Success || result.Created {
		t.Fatalf("result = %+v, want successful refresh", result)
	}
	if result.LeadID == nil || *result.LeadID != existing.ID {
		t.Errorf("LeadID = %v, want the matched lead %s", result.LeadID, existing.ID)
	}
	if len(h.store.refreshed) != 1 {
		t.Fatalf("refreshed %d leads", len(h.store.refreshed))
	}
	if got := h.store.refreshed[0].Status; got != domain.StatusInProgress {
		t.Errorf("refreshed status = %q, want advanced to in_progress", got)
	}
	if names := h.bus.names(); len(names) != 1 || names[0] != "leads.lead.refreshed" {
		t.Errorf("events = %v", names)
	}
	if len(h.welcomer.sent) != 0 {
		t.Error("refresh must not re-send the welcome message")
	}
}

// A lost insert race is converted into a refresh of the row that won.
func TestIngestInsertRaceFallsBackToRefresh(t *testing.T) {
	winner := domain.Lead{ID: uuid.New(), FullName: "Jane Doe", Status: domain.StatusNew}
	h := newHarness()
	h.store.insertErr = []error{repository.ErrDuplicateRace}
	h.deduper.decisions = []dedup.Decision{
		{Action: dedup.ActionInsert},
		{Action: dedup.ActionRefresh, Existing: winner},
	}

	result := h.coordinator.IngestLead(context.Background(), domain.IncomingLead{
		FullName: "Jane Doe",
		Email:    "jane@example.com",
		Source:   domain.SourceMeta,
	})

	if !result.Success {
		t.Fatalf("result = %+v", result)
	}
	if result.Created {
		t.Error("Created = true, want false when the insert lost the race")
	}
	if result.LeadID == nil || *result.LeadID != winner.ID {
		t.Errorf("LeadID = %v, want the race winner %s", result.LeadID, winner.ID)
	}
	if h.deduper.calls != 2 {
		t.Errorf("resolver called %d times, want re-resolution after the race", h.deduper.calls)
	}
}

func TestIngestMissingNameFailsValidation(t *testing.T) {
	h := newHarness()
	result := h.coordinator.IngestLead(context.Background(), domain.IncomingLead{
		Phone:  "+15551234567",
		Source: domain.SourceWebhook,
	})

	if result.Success {
		t.Fatal("ingest without a name must fail")
	}
	if apperr.GetKind(result.Err) != apperr.KindValidation {
		t.Errorf("kind = %v, want validation", apperr.GetKind(result.Err))
	}
	if len(h.store.inserted) != 0 {
		t.Error("nothing may be persisted on validation failure")
	}
	if h.metrics.failures != 1 {
		t.Errorf("failures = %d", h.metrics.failures)
	}
}

func TestIngestTerminalAdapterFailureIsArchived(t *testing.T) {
	adapter := scriptedAdapter{
		source: domain.SourceMeta,
		err:    sources.NotConfigured("no integration for page"),
	}
	h := newHarness(adapter)

	result := h.coordinator.Ingest(context.Background(), domain.SourceMeta, []byte(`{"entry":[]}`), sources.SourceContext{})

	if result.Success {
		t.Fatal("terminal adapter failure must fail the ingest")
	}
	if len(h.archiver.archived) != 1 {
		t.Fatalf("archived %d payloads, want 1", len(h.archiver.archived))
	}
}

func TestIngestRetryableFailureIsNotArchived(t *testing.T) {
	adapter := scriptedAdapter{
		source: domain.SourceMeta,
		err:    sources.Upstream("graph api 502", nil),
	}
	h := newHarness(adapter)

	result := h.coordinator.Ingest(context.Background(), domain.SourceMeta, []byte(`{}`), sources.SourceContext{})

	if result.Success {
		t.Fatal("upstream failure must fail the ingest")
	}
	if apperr.GetKind(result.Err) != apperr.KindUnavailable {
		t.Errorf("kind = %v, want unavailable so the platform redelivers", apperr.GetKind(result.Err))
	}
	if len(h.archiver.archived) != 0 {
		t.Error("retryable failures are redelivered, not archived")
	}
}

func TestIngestWelcomeFailureDoesNotAffectResult(t *testing.T) {
	h := newHarness()
	h.welcomer.fail = true

	result := h.coordinator.IngestLead(context.Background(), domain.IncomingLead{
		FullName: "Jane Doe",
		Phone:    "+15551234567",
		Source:   domain.SourceWebhook,
	})

	if !result.Success || !result.Created {
		t.Fatalf("result = %+v, want success despite welcome failure", result)
	}
	if len(h.store.inserted) != 1 {
		t.Error("lead must stay persisted when the welcome message fails")
	}
}
