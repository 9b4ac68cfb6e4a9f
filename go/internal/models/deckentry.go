package models

import (
	"time"

	"github.com/google/uuid"
)

// DeckEntry is a card a participant has permanently banked. Seq is the
// round (sequential/alternating) or grid turn at which it was acquired;
// (room, side, seq) is unique, so banking is naturally idempotent.
type DeckEntry struct {
	ID          uuid.UUID `json:"id"`
	RoomID      uuid.UUID `json:"room_id"`
	Side        Side      `json:"side"`
	Seq         int       `json:"seq"`
	CardID      string    `json:"card_id"`
	CardName    string    `json:"card_name"`
	CardImage   string    `json:"card_image,omitempty"`
	CardCost    int       `json:"card_cost"`
	IsLegendary bool      `json:"is_legendary"`
	IsSpell     bool      `json:"is_spell"`
	CreatedAt   time.Time `json:"created_at"`
}
