package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kestrelcg/draftroom/go/internal/draft/events"
)

// RoomEvent is the wire shape pushed to WebSocket clients.
type RoomEvent struct {
	ID        string          `json:"id"`        // Event UUID
	RoomID    string          `json:"room_id"`   // Room UUID
	Type      EventType       `json:"type"`      // Event type
	Timestamp time.Time       `json:"timestamp"` // Event creation time
	Data      json.RawMessage `json:"data"`      // Event-specific payload
}

// EventType represents the type of room event
type EventType string

const (
	EventTypeDraftStarted    EventType = EventType(events.TypeDraftStarted)
	EventTypeRoundStarted    EventType = EventType(events.TypeRoundStarted)
	EventTypePickMade        EventType = EventType(events.TypePickMade)
	EventTypeAutoPickApplied EventType = EventType(events.TypeAutoPickApplied)
	EventTypeRoundResolved   EventType = EventType(events.TypeRoundResolved)
	EventTypeRoundAdvanced   EventType = EventType(events.TypeRoundAdvanced)
	EventTypeDraftCompleted  EventType = EventType(events.TypeDraftCompleted)
)

// ParseEventPayload parses event data into the appropriate payload struct
func ParseEventPayload(event *RoomEvent) (interface{}, error) {
	switch event.Type {
	case EventTypeDraftStarted:
		return unmarshalPayload[events.DraftStartedPayload](event.Data)
	case EventTypeRoundStarted:
		return unmarshalPayload[events.RoundStartedPayload](event.Data)
	case EventTypePickMade:
		return unmarshalPayload[events.PickMadePayload](event.Data)
	case EventTypeAutoPickApplied:
		return unmarshalPayload[events.AutoPickAppliedPayload](event.Data)
	case EventTypeRoundResolved:
		return unmarshalPayload[events.RoundResolvedPayload](event.Data)
	case EventTypeRoundAdvanced:
		return unmarshalPayload[events.RoundAdvancedPayload](event.Data)
	case EventTypeDraftCompleted:
		return unmarshalPayload[events.DraftCompletedPayload](event.Data)
	default:
		return nil, fmt.Errorf("unknown event type: %s", event.Type)
	}
}

func unmarshalPayload[T any](data json.RawMessage) (T, error) {
	var payload T
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, err
	}
	return payload, nil
}
