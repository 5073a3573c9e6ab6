package repository

import (
	"context"
	"time"

	"AgriPull/internal/domain/models"
)

// MarketStream is a live feed of price observations (e.g. a websocket into a
// market data aggregator).
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.PriceObservation, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Publisher forwards price observations to a message broker.
type Publisher interface {
	Publish(ctx context.Context, o *models.PriceObservation) error
	PublishBatch(ctx context.Context, obs []*models.PriceObservation) error
	Close() error
}

// PriceStore is the append-only historical price store.
type PriceStore interface {
	Store(ctx context.Context, o *models.PriceObservation) error
	StoreBatch(ctx context.Context, obs []*models.PriceObservation) error
	// Latest returns the most recent observation for a market, nil when the
	// market has no recorded prices.
	Latest(ctx context.Context, market string) (*models.PriceObservation, error)
	// PricesOn returns one price per market for the given calendar day,
	// omitting markets without an observation on that day.
	PricesOn(ctx context.Context, markets []string, day time.Time) (map[string]float64, error)
	Health(ctx context.Context) error
	Close() error
}

// WeatherStore holds normalized weather readings per market.
type WeatherStore interface {
	Store(ctx context.Context, r *models.WeatherReading) error
	// Latest returns the most recent reading for a market, nil when none.
	Latest(ctx context.Context, market string) (*models.WeatherReading, error)
	History(ctx context.Context, market string, from time.Time, limit int) ([]models.WeatherReading, error)
	// ReadingOn returns a reading from the given calendar day, nil when none.
	ReadingOn(ctx context.Context, market string, day time.Time) (*models.WeatherReading, error)
	// DeleteOlderThan drops readings before cutoff and reports how many.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// StateStore persists the per-location model state: the rolling smoothed base
// and the calibrated sigma. Reads return nil when no value exists yet.
// Implementations must make the read-modify-write of the base at least
// last-write-wins consistent per location key.
type StateStore interface {
	Base(ctx context.Context, location string) (*float64, error)
	SetBase(ctx context.Context, location string, base float64) error
	Sigma(ctx context.Context, location string) (*models.SigmaRecord, error)
	SetSigma(ctx context.Context, location string, sigma float64, updatedAt time.Time) error
}

// MarketRegistry provides the static market reference data.
type MarketRegistry interface {
	List(ctx context.Context) ([]models.Market, error)
	// Get returns nil when the market is not registered.
	Get(ctx context.Context, name string) (*models.Market, error)
}

// Metrics records operational metrics for the pipeline and estimator.
type Metrics interface {
	RecordMessageSent(backend, market string)
	RecordError(kind string)
	RecordLastPrice(market string, price float64)
	RecordLatency(op string, seconds float64)
}
