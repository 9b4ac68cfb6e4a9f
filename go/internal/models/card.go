package models

// Card is a single catalog entry. The catalog is immutable at runtime;
// cards are only written by the seed tool.
type Card struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Cost        int    `json:"cost"`
	Image       string `json:"image,omitempty"`
	IsLegendary bool   `json:"is_legendary"`
	IsSpell     bool   `json:"is_spell"`
}
