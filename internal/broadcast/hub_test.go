package broadcast

import (
	"context"
	"testing"
	"time"

	"leadcrm_backend/internal/events"
	"leadcrm_backend/internal/leads/domain"
	"leadcrm_backend/platform/logger"

	"github.com/google/uuid"
)

type hubConfig struct {
	broadcast time.Duration
	subscribe time.Duration
}

func (c hubConfig) GetBroadcastThrottle() time.Duration { return c.broadcast }
func (c hubConfig) GetSubscribeThrottle() time.Duration { return c.subscribe }

func newTestHub(broadcast, subscribe time.Duration) *Hub {
	return NewHub(hubConfig{broadcast: broadcast, subscribe: subscribe}, logger.New("development"))
}

func drain(t *testing.T, sub *Subscription) []Message {
	t.Helper()
	var out []Message
	for {
		select {
		case msg := <-sub.Events():
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestRoomsForOperator(t *testing.T) {
	userID := uuid.New()
	teamID := uuid.New()

	tests := []struct {
		name string
		op   domain.Operator
		want []string
	}{
		{
			name: "sales rep",
			op:   domain.Operator{UserID: userID, Role: domain.RoleSales, TeamID: &teamID},
			want: []string{"user:" + userID.String(), "team:" + teamID.String()},
		},
		{
			name: "global manager",
			op:   domain.Operator{UserID: userID, Role: domain.RoleManager},
			want: []string{"user:" + userID.String(), "role:manager"},
		},
		{
			name: "country scoped admin",
			op:   domain.Operator{UserID: userID, Role: domain.RoleAdmin, Country: "Germany"},
			want: []string{"user:" + userID.String(), "country:Germany"},
		},
		{
			name: "marketing gets no global room",
			op:   domain.Operator{UserID: userID, Role: domain.RoleMarketing, Country: "Germany"},
			want: []string{"user:" + userID.String()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoomsFor(tt.op)
			if len(got) != len(tt.want) {
				t.Fatalf("rooms = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("rooms = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestHubRoutesLeadCreated(t *testing.T) {
	hub := newTestHub(0, 0)
	ownerID := uuid.New()

	manager, err := hub.Subscribe(domain.Operator{UserID: uuid.New(), Role: domain.RoleManager})
	if err != nil {
		t.Fatal(err)
	}
	germanAdmin, err := hub.Subscribe(domain.Operator{UserID: uuid.New(), Role: domain.RoleAdmin, Country: "Germany"})
	if err != nil {
		t.Fatal(err)
	}
	owner, err := hub.Subscribe(domain.Operator{UserID: ownerID, Role: domain.RoleSales})
	if err != nil {
		t.Fatal(err)
	}
	bystander, err := hub.Subscribe(domain.Operator{UserID: uuid.New(), Role: domain.RoleSales})
	if err != nil {
		t.Fatal(err)
	}

	err = hub.onLeadCreated(context.Background(), events.LeadCreated{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      uuid.New(),
		Country:     "Germany",
		OwnerUserID: &ownerID,
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := drain(t, manager); len(got) != 1 || got[0].Event != "lead.created" {
		t.Errorf("manager frames = %v", got)
	}
	if got := drain(t, germanAdmin); len(got) != 1 {
		t.Errorf("country admin frames = %v", got)
	}
	if got := drain(t, owner); len(got) != 1 {
		t.Errorf("owner frames = %v", got)
	}
	if got := drain(t, bystander); len(got) != 0 {
		t.Errorf("bystander frames = %v, want none", got)
	}
}

func TestHubDeliversOncePerSubscriber(t *testing.T) {
	hub := newTestHub(0, 0)
	ownerID := uuid.New()

	// Owner is also a global manager: member of two addressed rooms.
	owner, err := hub.Subscribe(domain.Operator{UserID: ownerID, Role: domain.RoleManager})
	if err != nil {
		t.Fatal(err)
	}

	if err := hub.onLeadCreated(context.Background(), events.LeadCreated{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      uuid.New(),
		OwnerUserID: &ownerID,
	}); err != nil {
		t.Fatal(err)
	}

	if got := drain(t, owner); len(got) != 1 {
		t.Errorf("frames = %d, want exactly 1 despite dual room membership", len(got))
	}
}

func TestHubThrottlesRepeatedKeys(t *testing.T) {
	hub := newTestHub(time.Hour, 0)
	manager, err := hub.Subscribe(domain.Operator{UserID: uuid.New(), Role: domain.RoleManager})
	if err != nil {
		t.Fatal(err)
	}

	// The throttle key is the lead, not the region: repeated updates of one
	// lead collapse into the first frame inside the window.
	leadID := uuid.New()
	for range 3 {
		if err := hub.onLeadCreated(context.Background(), events.LeadCreated{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    leadID,
			Country:   "Germany",
		}); err != nil {
			t.Fatal(err)
		}
	}
	if got := drain(t, manager); len(got) != 1 {
		t.Fatalf("frames for one lead = %d, want 1", len(got))
	}

	// Distinct leads are distinct keys, even in the same country inside the
	// same window.
	for range 3 {
		if err := hub.onLeadCreated(context.Background(), events.LeadCreated{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    uuid.New(),
			Country:   "Germany",
		}); err != nil {
			t.Fatal(err)
		}
	}
	if got := drain(t, manager); len(got) != 3 {
		t.Errorf("frames for three distinct leads = %d, want 3", len(got))
	}
}

func TestHubSubscribeThrottle(t *testing.T) {
	hub := newTestHub(0, time.Hour)
	op := domain.Operator{UserID: uuid.New(), Role: domain.RoleSales}

	if _, err := hub.Subscribe(op); err != nil {
		t.Fatalf("first subscribe: %v", err)
	}
	if _, err := hub.Subscribe(op); err != ErrSubscribeThrottled {
		t.Errorf("second subscribe err = %v, want ErrSubscribeThrottled", err)
	}
	// A different operator is unaffected.
	if _, err := hub.Subscribe(domain.Operator{UserID: uuid.New(), Role: domain.RoleSales}); err != nil {
		t.Errorf("other operator subscribe: %v", err)
	}
}

func TestHubSlowSubscriberDropsFrames(t *testing.T) {
	hub := newTestHub(0, 0)
	manager, err := hub.Subscribe(domain.Operator{UserID: uuid.New(), Role: domain.RoleManager})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < subscriberBuffer+5; i++ {
		hub.Publish("key-"+uuid.NewString(), []string{"role:manager"}, Message{Event: "lead.created"})
	}

	if got := drain(t, manager); len(got) != subscriberBuffer {
		t.Errorf("frames = %d, want buffer-bounded %d", len(got), subscriberBuffer)
	}
}

func TestHubUnsubscribeRemovesRooms(t *testing.T) {
	hub := newTestHub(0, 0)
	sub, err := hub.Subscribe(domain.Operator{UserID: uuid.New(), Role: domain.RoleManager})
	if err != nil {
		t.Fatal(err)
	}
	if hub.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount = %d", hub.SubscriberCount())
	}
	sub.Close()
	if hub.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount = %d after close", hub.SubscriberCount())
	}

	hub.Publish("k", []string{"role:manager"}, Message{Event: "lead.created"})
	if got := drain(t, sub); len(got) != 0 {
		t.Errorf("closed subscription received %d frames", len(got))
	}
}
