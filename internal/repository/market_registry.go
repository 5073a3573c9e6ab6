package repository

import (
	"context"

	"AgriPull/internal/domain/models"
	domrepo "AgriPull/internal/domain/repository"
)

// StaticMarketRegistry serves the market reference data loaded from config.
// Markets change rarely enough that a restart on change is acceptable.
type StaticMarketRegistry struct {
	markets []models.Market
	byName  map[string]*models.Market
}

func NewStaticMarketRegistry(markets []models.Market) *StaticMarketRegistry {
	byName := make(map[string]*models.Market, len(markets))
	for i := range markets {
		byName[markets[i].Name] = &markets[i]
	}
	return &StaticMarketRegistry{markets: markets, byName: byName}
}

func (r *StaticMarketRegistry) List(ctx context.Context) ([]models.Market, error) {
	out := make([]models.Market, len(r.markets))
	copy(out, r.markets)
	return out, nil
}

func (r *StaticMarketRegistry) Get(ctx context.Context, name string) (*models.Market, error) {
	m, ok := r.byName[name]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

var _ domrepo.MarketRegistry = (*StaticMarketRegistry)(nil)
