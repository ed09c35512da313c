package token

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"leadcrm_backend/internal/integrations"
	"leadcrm_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	mu           sync.Mutex
	integrations map[uuid.UUID]integrations.Integration
}

func newFakeStore(items ...integrations.Integration) *fakeStore {
	s := &fakeStore{integrations: make(map[uuid.UUID]integrations.Integration)}
	for _, i := range items {
		s.integrations[i.ID] = i
	}
	return s
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (integrations.Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.integrations[id]
	if !ok {
		return integrations.Integration{}, integrations.ErrNotFound
	}
	return i, nil
}

func (s *fakeStore) UpdateCredentials(_ context.Context, id uuid.UUID, accessToken, refreshToken string, expiry *time.Time, status integrations.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.integrations[id]
	i.AccessToken = accessToken
	i.RefreshToken = refreshToken
	i.TokenExpiry = expiry
	i.Status = status
	s.integrations[id] = i
	return nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, id uuid.UUID, status integrations.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.integrations[id]
	i.Status = status
	s.integrations[id] = i
	return nil
}

type fakeRefresher struct {
	calls   atomic.Int64
	creds   Credentials
	err     error
	latency time.Duration
}

func (r *fakeRefresher) Refresh(_ context.Context, _ integrations.Integration) (Credentials, error) {
	r.calls.Add(1)
	if r.latency > 0 {
		time.Sleep(r.latency)
	}
	if r.err != nil {
		return Credentials{}, r.err
	}
	return r.creds, nil
}

type windows struct {
	long  time.Duration
	short time.Duration
}

func (w windows) GetLongLivedTokenWindow() time.Duration  { return w.long }
func (w windows) GetShortLivedTokenWindow() time.Duration { return w.short }

func testManager(store Store) *Manager {
	return NewManager(store, windows{long: 24 * time.Hour, short: 15 * time.Minute}, nil, logger.New("development"))
}

func expiringIntegration(id uuid.UUID, expiry time.Time) integrations.Integration {
	return integrations.Integration{
		ID:          id,
		Provider:    integrations.ProviderMeta,
		Status:      integrations.StatusConnected,
		AccessToken: "old-token",
		TokenExpiry: &expiry,
		TokenClass:  integrations.TokenClassLongLived,
	}
}

func TestEnsureFreshReturnsValidTokenWithoutRefresh(t *testing.T) {
	id := uuid.New()
	store := newFakeStore(expiringIntegration(id, time.Now().Add(48*time.Hour)))
	refresher := &fakeRefresher{}

	m := testManager(store)
	m.RegisterRefresher(integrations.ProviderMeta, refresher)

	token, err := m.EnsureFresh(context.Background(), id)
	if err != nil {
		t.Fatalf("EnsureFresh: %v", err)
	}
	if token != "old-token" {
		t.Errorf("token = %q, want old-token", token)
	}
	if refresher.calls.Load() != 0 {
		t.Errorf("refresher called %d times, want 0", refresher.calls.Load())
	}
}

func TestEnsureFreshRefreshesExpiringToken(t *testing.T) {
	id := uuid.New()
	store := newFakeStore(expiringIntegration(id, time.Now().Add(time.Hour)))
	refresher := &fakeRefresher{creds: Credentials{
		AccessToken: "new-token",
		Expiry:      time.Now().Add(60 * 24 * time.Hour),
	}}

	m := testManager(store)
	m.RegisterRefresher(integrations.ProviderMeta, refresher)

	token, err := m.EnsureFresh(context.Background(), id)
	if err != nil {
		t.Fatalf("EnsureFresh: %v", err)
	}
	if token != "new-token" {
		t.Errorf("token = %q, want new-token", token)
	}

	stored, _ := store.GetByID(context.Background(), id)
	if stored.Status != integrations.StatusConnected {
		t.Errorf("status = %q, want connected", stored.Status)
	}
	if stored.AccessToken != "new-token" {
		t.Errorf("stored token = %q, want new-token", stored.AccessToken)
	}
}

// A failed refresh must keep the previous token intact and move the
// integration to the error status, never null out credentials.
func TestFailedRefreshKeepsPreviousToken(t *testing.T) {
	id := uuid.New()
	store := newFakeStore(expiringIntegration(id, time.Now().Add(time.Hour)))
	refresher := &fakeRefresher{err: errors.New("platform down")}

	m := testManager(store)
	m.RegisterRefresher(integrations.ProviderMeta, refresher)

	token, err := m.EnsureFresh(context.Background(), id)
	if err != nil {
		t.Fatalf("EnsureFresh with unexpired old token should not error, got %v", err)
	}
	if token != "old-token" {
		t.Errorf("token = %q, want the previous token", token)
	}

	stored, _ := store.GetByID(context.Background(), id)
	if stored.AccessToken != "old-token" {
		t.Errorf("stored token = %q, credentials must not be cleared", stored.AccessToken)
	}
	if stored.Status != integrations.StatusError {
		t.Errorf("status = %q, want error", stored.Status)
	}
}

func TestFailedRefreshWithExpiredTokenErrors(t *testing.T) {
	id := uuid.New()
	store := newFakeStore(expiringIntegration(id, time.Now().Add(-time.Hour)))
	refresher := &fakeRefresher{err: errors.New("platform down")}

	m := testManager(store)
	m.RegisterRefresher(integrations.ProviderMeta, refresher)

	if _, err := m.EnsureFresh(context.Background(), id); !errors.Is(err, ErrRefreshFailed) {
		t.Errorf("err = %v, want ErrRefreshFailed", err)
	}
}

func TestEnsureFreshWithoutCredentials(t *testing.T) {
	id := uuid.New()
	store := newFakeStore(integrations.Integration{ID: id, Provider: integrations.ProviderMeta})

	m := testManager(store)
	if _, err := m.EnsureFresh(context.Background(), id); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("err = %v, want ErrNoCredentials", err)
	}
}

// Concurrent callers observing an expiring token must share one refresh call.
func TestRefreshIsSingleFlighted(t *testing.T) {
	id := uuid.New()
	store := newFakeStore(expiringIntegration(id, time.Now().Add(time.Hour)))
	refresher := &fakeRefresher{
		creds:   Credentials{AccessToken: "new-token", Expiry: time.Now().Add(60 * 24 * time.Hour)},
		latency: 50 * time.Millisecond,
	}

	m := testManager(store)
	m.RegisterRefresher(integrations.ProviderMeta, refresher)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := m.EnsureFresh(context.Background(), id)
			if err != nil {
				t.Errorf("EnsureFresh: %v", err)
				return
			}
			if token != "new-token" {
				t.Errorf("token = %q, want new-token", token)
			}
		}()
	}
	wg.Wait()

	if got := refresher.calls.Load(); got != 1 {
		t.Errorf("refresher called %d times, want 1", got)
	}
}
