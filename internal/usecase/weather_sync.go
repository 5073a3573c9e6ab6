package usecase

import (
	"context"
	"encoding/json"
	"time"

	"AgriPull/internal/domain/models"
	domrepo "AgriPull/internal/domain/repository"
	domsvc "AgriPull/internal/domain/service"
	icache "AgriPull/internal/service/cache"
	applogger "AgriPull/pkg/logger"
)

// WeatherSyncer refreshes weather readings for every registered market with
// coordinates and prunes readings past the retention horizon.
type WeatherSyncer struct {
	registry      domrepo.MarketRegistry
	provider      domsvc.WeatherProvider
	store         domrepo.WeatherStore
	cache         icache.BytesCache
	latestTTL     time.Duration
	retentionDays int
	l             *applogger.Logger
}

// WeatherSyncOption configures WeatherSyncer.
type WeatherSyncOption func(*WeatherSyncer)

// WithLatestCache caches each fresh reading for the estimate path.
func WithLatestCache(c icache.BytesCache, ttl time.Duration) WeatherSyncOption {
	return func(s *WeatherSyncer) {
		s.cache = c
		s.latestTTL = ttl
	}
}

// WithRetention overrides the cleanup horizon in days.
func WithRetention(days int) WeatherSyncOption {
	return func(s *WeatherSyncer) {
		if days > 0 {
			s.retentionDays = days
		}
	}
}

// WithWeatherLogger injects a structured logger.
func WithWeatherLogger(l *applogger.Logger) WeatherSyncOption {
	return func(s *WeatherSyncer) { s.l = l }
}

func NewWeatherSyncer(
	registry domrepo.MarketRegistry,
	provider domsvc.WeatherProvider,
	store domrepo.WeatherStore,
	opts ...WeatherSyncOption,
) *WeatherSyncer {
	s := &WeatherSyncer{
		registry:      registry,
		provider:      provider,
		store:         store,
		retentionDays: 90,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync fetches and stores a fresh reading per geocoded market. One failing
// market does not block the others; the count of successful markets is
// returned.
func (s *WeatherSyncer) Sync(ctx context.Context, now time.Time) (int, error) {
	markets, err := s.registry.List(ctx)
	if err != nil {
		return 0, err
	}

	synced := 0
	for i := range markets {
		m := &markets[i]
		if !m.HasCoordinates() {
			continue
		}
		select {
		case <-ctx.Done():
			return synced, ctx.Err()
		default:
		}

		payload, err := s.provider.Fetch(ctx, m.Lat, m.Lon)
		if err != nil {
			if s.l != nil {
				s.l.Warn("weather fetch failed",
					applogger.String("market", m.Name),
					applogger.Error(err),
				)
			}
			continue
		}

		reading := &models.WeatherReading{
			Market:       m.Name,
			Timestamp:    now,
			RainMM:       payload.RainMM,
			WeatherCode:  payload.WeatherCode,
			WeatherIndex: payload.WeatherIndex,
		}
		if err := s.store.Store(ctx, reading); err != nil {
			if s.l != nil {
				s.l.Error("weather store failed",
					applogger.String("market", m.Name),
					applogger.Error(err),
				)
			}
			continue
		}
		s.cacheLatest(reading)
		synced++
	}
	return synced, nil
}

// FetchOne refreshes a single market on demand, used by the read path when no
// stored reading exists yet. Returns nil when the market is unknown or has no
// coordinates.
func (s *WeatherSyncer) FetchOne(ctx context.Context, market string, now time.Time) (*models.WeatherReading, error) {
	m, err := s.registry.Get(ctx, market)
	if err != nil {
		return nil, err
	}
	if m == nil || !m.HasCoordinates() {
		return nil, nil
	}
	payload, err := s.provider.Fetch(ctx, m.Lat, m.Lon)
	if err != nil {
		return nil, err
	}
	reading := &models.WeatherReading{
		Market:       m.Name,
		Timestamp:    now,
		RainMM:       payload.RainMM,
		WeatherCode:  payload.WeatherCode,
		WeatherIndex: payload.WeatherIndex,
	}
	if err := s.store.Store(ctx, reading); err != nil {
		return nil, err
	}
	s.cacheLatest(reading)
	return reading, nil
}

// Cleanup drops readings older than the retention horizon.
func (s *WeatherSyncer) Cleanup(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.AddDate(0, 0, -s.retentionDays)
	deleted, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 && s.l != nil {
		s.l.Info("weather retention cleanup",
			applogger.Int64("deleted", deleted),
			applogger.String("cutoff", cutoff.Format(time.RFC3339)),
		)
	}
	return deleted, nil
}

func (s *WeatherSyncer) cacheLatest(r *models.WeatherReading) {
	if s.cache == nil {
		return
	}
	if b, err := json.Marshal(r); err == nil {
		_ = s.cache.SetBytes(icache.WeatherLatestKey(r.Market), b, s.latestTTL)
	}
}
