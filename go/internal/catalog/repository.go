package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kestrelcg/draftroom/go/internal/models"
)

// Repository handles card catalog persistence operations
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const cardColumns = `id, name, cost, image, is_legendary, is_spell`

// UpsertCard inserts a card or updates it in place when the id already exists.
func (r *Repository) UpsertCard(ctx context.Context, card models.Card) error {
	query := `
		INSERT INTO cards (id, name, cost, image, is_legendary, is_spell)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			cost = EXCLUDED.cost,
			image = EXCLUDED.image,
			is_legendary = EXCLUDED.is_legendary,
			is_spell = EXCLUDED.is_spell`

	_, err := r.db.ExecContext(ctx, query,
		card.ID, card.Name, card.Cost, card.Image, card.IsLegendary, card.IsSpell)
	if err != nil {
		return fmt.Errorf("failed to upsert card %s: %w", card.ID, err)
	}
	return nil
}

// GetCard retrieves a single card by id.
func (r *Repository) GetCard(ctx context.Context, id string) (models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1`

	var card models.Card
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&card.ID, &card.Name, &card.Cost, &card.Image, &card.IsLegendary, &card.IsSpell)
	if err != nil {
		return models.Card{}, fmt.Errorf("failed to get card %s: %w", id, err)
	}
	return card, nil
}

// ListFilter narrows ListCards results. Nil fields match everything.
type ListFilter struct {
	Cost      *int
	Legendary *bool
	Spell     *bool
	Query     string
}

// ListCards returns cards matching the filter ordered by cost then name.
func (r *Repository) ListCards(ctx context.Context, filter ListFilter) ([]models.Card, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Cost != nil {
		args = append(args, *filter.Cost)
		conds = append(conds, fmt.Sprintf("cost = $%d", len(args)))
	}
	if filter.Legendary != nil {
		args = append(args, *filter.Legendary)
		conds = append(conds, fmt.Sprintf("is_legendary = $%d", len(args)))
	}
	if filter.Spell != nil {
		args = append(args, *filter.Spell)
		conds = append(conds, fmt.Sprintf("is_spell = $%d", len(args)))
	}
	if filter.Query != "" {
		args = append(args, "%"+filter.Query+"%")
		conds = append(conds, fmt.Sprintf("name ILIKE $%d", len(args)))
	}

	query := `SELECT ` + cardColumns + ` FROM cards`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY cost, name"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	return scanCards(rows)
}

// AllCards returns the complete catalog ordered by cost then name.
func (r *Repository) AllCards(ctx context.Context) ([]models.Card, error) {
	return r.ListCards(ctx, ListFilter{})
}

func scanCards(rows *sql.Rows) ([]models.Card, error) {
	var cards []models.Card
	for rows.Next() {
		var card models.Card
		if err := rows.Scan(&card.ID, &card.Name, &card.Cost, &card.Image, &card.IsLegendary, &card.IsSpell); err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cards: %w", err)
	}
	return cards, nil
}
