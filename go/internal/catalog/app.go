package catalog

import (
	"context"
	"fmt"

	"github.com/kestrelcg/draftroom/go/internal/models"
)

// CatalogRepository defines the catalog persistence operations the app needs
type CatalogRepository interface {
	UpsertCard(ctx context.Context, card models.Card) error
	GetCard(ctx context.Context, id string) (models.Card, error)
	ListCards(ctx context.Context, filter ListFilter) ([]models.Card, error)
	AllCards(ctx context.Context) ([]models.Card, error)
}

// App handles card catalog business logic
type App struct {
	repo CatalogRepository
}

func NewApp(repo CatalogRepository) *App {
	return &App{repo: repo}
}

func (a *App) UpsertCard(ctx context.Context, card models.Card) error {
	if card.ID == "" {
		return fmt.Errorf("card id is required")
	}
	if card.Name == "" {
		return fmt.Errorf("card name is required")
	}
	if card.Cost < 1 || card.Cost > 12 {
		return fmt.Errorf("card cost must be between 1 and 12, got %d", card.Cost)
	}
	return a.repo.UpsertCard(ctx, card)
}

func (a *App) GetCard(ctx context.Context, id string) (models.Card, error) {
	return a.repo.GetCard(ctx, id)
}

func (a *App) ListCards(ctx context.Context, filter ListFilter) ([]models.Card, error) {
	return a.repo.ListCards(ctx, filter)
}

func (a *App) AllCards(ctx context.Context) ([]models.Card, error) {
	return a.repo.AllCards(ctx)
}
