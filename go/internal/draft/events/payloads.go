package events

import (
	"time"
)

// Event payload types that are shared between draft and gateway packages

// Event type names used as outbox event_type and NATS subject suffixes
const (
	TypeDraftStarted    = "DraftStarted"
	TypeRoundStarted    = "RoundStarted"
	TypePickMade        = "PickMade"
	TypeAutoPickApplied = "AutoPickApplied"
	TypeRoundResolved   = "RoundResolved"
	TypeRoundAdvanced   = "RoundAdvanced"
	TypeDraftCompleted  = "DraftCompleted"
)

// DraftStartedPayload is the payload for a DraftStarted event
type DraftStartedPayload struct {
	RoomID      string    `json:"room_id"`
	Code        string    `json:"code"`
	Mode        string    `json:"mode"`
	StartedAt   time.Time `json:"started_at"`
	TotalRounds int       `json:"total_rounds"`
}

// RoundStartedPayload is the payload for a RoundStarted event
type RoundStartedPayload struct {
	RoomID      string    `json:"room_id"`
	Round       int       `json:"round"`
	Turn        int       `json:"turn"`
	TurnOwner   string    `json:"turn_owner,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	DeadlineAt  time.Time `json:"deadline_at"`
	DurationSec int       `json:"duration_sec"`
}

// PickMadePayload is the payload for a PickMade event
type PickMadePayload struct {
	RoomID   string    `json:"room_id"`
	Round    int       `json:"round"`
	Turn     int       `json:"turn"`
	Side     string    `json:"side"`
	CardID   string    `json:"card_id"`
	CardName string    `json:"card_name"`
	MadeAt   time.Time `json:"made_at"`
}

// AutoPickAppliedPayload is the payload for an AutoPickApplied event
type AutoPickAppliedPayload struct {
	RoomID   string    `json:"room_id"`
	Round    int       `json:"round"`
	Turn     int       `json:"turn"`
	Side     string    `json:"side"`
	CardID   string    `json:"card_id,omitempty"`
	CardName string    `json:"card_name,omitempty"`
	Unfilled bool      `json:"unfilled,omitempty"`
	MadeAt   time.Time `json:"made_at"`
}

// RoundResolvedPayload is the payload for a RoundResolved event
type RoundResolvedPayload struct {
	RoomID     string    `json:"room_id"`
	Round      int       `json:"round"`
	Turn       int       `json:"turn"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// RoundAdvancedPayload is the payload for a RoundAdvanced event
type RoundAdvancedPayload struct {
	RoomID    string    `json:"room_id"`
	FromRound int       `json:"from_round"`
	ToRound   int       `json:"to_round"`
	FromTurn  int       `json:"from_turn"`
	ToTurn    int       `json:"to_turn"`
	BankedAt  time.Time `json:"banked_at"`
}

// DraftCompletedPayload is the payload for a DraftCompleted event
type DraftCompletedPayload struct {
	RoomID      string    `json:"room_id"`
	CompletedAt time.Time `json:"completed_at"`
	TotalRounds int       `json:"total_rounds"`
}
