package models

import "github.com/google/uuid"

// Offer is a single card shown in a round, pending selection. Display
// fields are denormalized from the catalog at generation time so the
// read model never joins back into the cards table.
type Offer struct {
	ID          uuid.UUID `json:"id"`
	RoomID      uuid.UUID `json:"room_id"`
	Round       int       `json:"round"`
	Side        Side      `json:"side"`
	CardID      string    `json:"card_id"`
	CardName    string    `json:"card_name"`
	CardImage   string    `json:"card_image,omitempty"`
	CardCost    int       `json:"card_cost"`
	IsLegendary bool      `json:"is_legendary"`
	IsSpell     bool      `json:"is_spell"`
	PickedBy    *Side     `json:"picked_by,omitempty"`
}

// VisibleTo reports whether the offer belongs to the given side's pool.
func (o Offer) VisibleTo(side Side) bool {
	return o.Side == SideShared || o.Side == side
}
