// Package broadcast fans persisted lead events out to connected CRM clients
// over server-sent events. Delivery is best effort: a slow client loses
// messages, it never slows the ingest path down.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"leadcrm_backend/internal/events"
	"leadcrm_backend/internal/leads/domain"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/logger"

	"github.com/google/uuid"
)

// ErrSubscribeThrottled is returned when a client reconnects faster than the
// subscribe window allows.
var ErrSubscribeThrottled = errors.New("subscribe throttled")

// Message is one SSE frame.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// subscriberBuffer bounds the per-client queue. A client that falls this far
// behind starts losing frames.
const subscriberBuffer = 16

// Subscription is one connected client's view of the hub.
type Subscription struct {
	ID    uuid.UUID
	rooms []string
	ch    chan Message
	hub   *Hub
}

// Events is the frame stream. Closed by Close, never by the hub.
func (s *Subscription) Events() <-chan Message { return s.ch }

// Close detaches the subscription from the hub.
func (s *Subscription) Close() { s.hub.unsubscribe(s) }

// Hub routes messages to room members.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[uuid.UUID]*Subscription

	eventThrottle     *KeyThrottle
	subscribeThrottle *KeyThrottle
	log               *logger.Logger
}

func NewHub(cfg config.BroadcastConfig, log *logger.Logger) *Hub {
	return &Hub{
		rooms:             make(map[string]map[uuid.UUID]*Subscription),
		eventThrottle:     NewKeyThrottle(cfg.GetBroadcastThrottle()),
		subscribeThrottle: NewKeyThrottle(cfg.GetSubscribeThrottle()),
		log:               log,
	}
}

// RoomsFor computes the rooms an operator belongs to. Admins and managers
// without a country scope sit in their global role room; with a country scope
// they only see that country's activity. Everyone listens on their own
// identity and team rooms.
func RoomsFor(op domain.Operator) []string {
	rooms := []string{userRoom(op.UserID)}
	if op.TeamID != nil {
		rooms = append(rooms, teamRoom(*op.TeamID))
	}
	if op.Role.ReceivesGlobalBroadcasts() {
		if op.Country != "" {
			rooms = append(rooms, countryRoom(op.Country))
		} else {
			rooms = append(rooms, roleRoom(op.Role))
		}
	}
	return rooms
}

func userRoom(id uuid.UUID) string      { return "user:" + id.String() }
func teamRoom(id uuid.UUID) string      { return "team:" + id.String() }
func countryRoom(country string) string { return "country:" + country }
func roleRoom(role domain.Role) string  { return "role:" + string(role) }

// Subscribe attaches an operator. Reconnecting inside the subscribe window
// is rejected so a flapping client cannot churn the hub.
func (h *Hub) Subscribe(op domain.Operator) (*Subscription, error) {
	if !h.subscribeThrottle.Allow("subscribe:" + op.UserID.String()) {
		return nil, ErrSubscribeThrottled
	}

	sub := &Subscription{
		ID:    uuid.New(),
		rooms: RoomsFor(op),
		ch:    make(chan Message, subscriberBuffer),
		hub:   h,
	}

	h.mu.Lock()
	for _, room := range sub.rooms {
		members, ok := h.rooms[room]
		if !ok {
			members = make(map[uuid.UUID]*Subscription)
			h.rooms[room] = members
		}
		members[sub.ID] = sub
	}
	h.mu.Unlock()

	h.log.Debug("broadcast subscriber attached", "subscription_id", sub.ID, "rooms", sub.rooms)
	return sub, nil
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	for _, room := range sub.rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, sub.ID)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	h.mu.Unlock()
}

// Publish delivers one message to every member of the given rooms. Messages
// for a key inside the throttle window are dropped; a full client buffer
// drops the frame for that client only.
func (h *Hub) Publish(key string, rooms []string, msg Message) {
	if !h.eventThrottle.Allow(key) {
		h.log.Debug("broadcast throttled", "key", key, "event", msg.Event)
		return
	}

	seen := make(map[uuid.UUID]struct{})

	h.mu.RLock()
	for _, room := range rooms {
		for id, sub := range h.rooms[room] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			select {
			case sub.ch <- msg:
			default:
				h.log.Warn("broadcast buffer full, frame dropped",
					"subscription_id", id, "event", msg.Event)
			}
		}
	}
	h.mu.RUnlock()
}

// SubscriberCount reports how many distinct clients are attached.
func (h *Hub) SubscriberCount() int {
	seen := make(map[uuid.UUID]struct{})
	h.mu.RLock()
	for _, members := range h.rooms {
		for id := range members {
			seen[id] = struct{}{}
		}
	}
	h.mu.RUnlock()
	return len(seen)
}

// Bind subscribes the hub to the domain events it fans out.
func (h *Hub) Bind(bus events.Bus) {
	bus.Subscribe(events.LeadCreated{}.EventName(), events.HandlerFunc(h.onLeadCreated))
	bus.Subscribe(events.LeadRefreshed{}.EventName(), events.HandlerFunc(h.onLeadRefreshed))
	bus.Subscribe(events.LeadDeleted{}.EventName(), events.HandlerFunc(h.onLeadDeleted))
	bus.Subscribe(events.IntegrationStatusChanged{}.EventName(), events.HandlerFunc(h.onIntegrationStatus))
}

func (h *Hub) onLeadCreated(_ context.Context, event events.Event) error {
	e, ok := event.(events.LeadCreated)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	rooms := leadRooms(e.Country, e.OwnerUserID, e.OwnerTeamID)
	h.Publish(throttleKey(e.EventName(), e.LeadID.String()), rooms, Message{Event: "lead.created", Data: e})
	return nil
}

func (h *Hub) onLeadRefreshed(_ context.Context, event events.Event) error {
	e, ok := event.(events.LeadRefreshed)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	rooms := leadRooms(e.Country, e.OwnerUserID, e.OwnerTeamID)
	h.Publish(throttleKey(e.EventName(), e.LeadID.String()), rooms, Message{Event: "lead.refreshed", Data: e})
	return nil
}

func (h *Hub) onLeadDeleted(_ context.Context, event events.Event) error {
	e, ok := event.(events.LeadDeleted)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	rooms := leadRooms(e.Country, e.OwnerUserID, e.OwnerTeamID)
	h.Publish(throttleKey(e.EventName(), e.LeadID.String()), rooms, Message{Event: "lead.deleted", Data: e})
	return nil
}

func (h *Hub) onIntegrationStatus(_ context.Context, event events.Event) error {
	e, ok := event.(events.IntegrationStatusChanged)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	// Connection health is admin-facing only.
	rooms := []string{roleRoom(domain.RoleAdmin)}
	h.Publish(throttleKey(e.EventName(), e.IntegrationID.String()), rooms, Message{Event: "integration.status", Data: e})
	return nil
}

// leadRooms lists every room a lead event is addressed to: both global role
// rooms, the lead's country room, and the owning user and team rooms.
func leadRooms(country string, ownerUserID, ownerTeamID *uuid.UUID) []string {
	rooms := []string{roleRoom(domain.RoleAdmin), roleRoom(domain.RoleManager)}
	if country != "" {
		rooms = append(rooms, countryRoom(country))
	}
	if ownerTeamID != nil {
		rooms = append(rooms, teamRoom(*ownerTeamID))
	}
	if ownerUserID != nil {
		rooms = append(rooms, userRoom(*ownerUserID))
	}
	return rooms
}

// throttleKey scopes the drop-throttle to one logical subject (a lead, an
// integration) so a burst of updates for the same record collapses without
// suppressing events for unrelated records.
func throttleKey(eventName, scope string) string {
	if scope == "" {
		scope = "global"
	}
	return eventName + ":" + scope
}
