package placement

import (
	"github.com/google/uuid"
)

// EventKind identifies a workflow event delivered to the notifier.
type EventKind string

const (
	EventStatusChanged EventKind = "StatusChanged"
	EventSlotBooked    EventKind = "SlotBooked"
	EventSlotCancelled EventKind = "SlotCancelled"
	EventOfferReleased EventKind = "OfferReleased"
	EventOfferResponse EventKind = "OfferResponded"
)

// Event is emitted once per committed state change. ID is unique per
// emission so notifiers can drop duplicates.
type Event struct {
	ID         string         `json:"event_id"`
	Kind       EventKind      `json:"kind"`
	EntityKind EntityKind     `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Timestamp  int64          `json:"timestamp"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// NewEvent builds an event with a fresh id.
func NewEvent(kind EventKind, entityKind EntityKind, entityID, actorID string, at int64, payload map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		EntityKind: entityKind,
		EntityID:   entityID,
		ActorID:    actorID,
		Timestamp:  at,
		Payload:    payload,
	}
}
