package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"AgriPull/internal/domain/models"
	domrepo "AgriPull/internal/domain/repository"
	icache "AgriPull/internal/service/cache"
	imetrics "AgriPull/internal/service/metrics"
	"AgriPull/internal/services/pricing"
	applogger "AgriPull/pkg/logger"
)

// DefaultDistance is the friction fallback when a market has no entry for the
// requested destination.
const DefaultDistance = 100.0

// PriceEstimator is the estimate-request use case. It assembles the inputs
// the pure estimator needs (current prices, distances, previous smoothed
// base, weather index, calibrated sigma), runs it, persists the new base and
// caches the response.
type PriceEstimator struct {
	registry        domrepo.MarketRegistry
	prices          domrepo.PriceStore
	weather         domrepo.WeatherStore
	state           domrepo.StateStore
	cache           icache.BytesCache
	params          pricing.Params
	markets         []string // contributing markets for the weighted base
	defaultDistance float64
	cacheTTL        time.Duration
	sources         []string
	l               *applogger.Logger
}

// EstimatorOption configures PriceEstimator.
type EstimatorOption func(*PriceEstimator)

// WithCache enables response caching.
func WithCache(c icache.BytesCache, ttl time.Duration) EstimatorOption {
	return func(e *PriceEstimator) {
		e.cache = c
		e.cacheTTL = ttl
	}
}

// WithParams overrides the estimator tuning parameters.
func WithParams(p pricing.Params) EstimatorOption {
	return func(e *PriceEstimator) { e.params = p }
}

// WithDefaultDistance overrides the friction fallback.
func WithDefaultDistance(d float64) EstimatorOption {
	return func(e *PriceEstimator) { e.defaultDistance = d }
}

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) EstimatorOption {
	return func(e *PriceEstimator) { e.l = l }
}

func NewPriceEstimator(
	registry domrepo.MarketRegistry,
	prices domrepo.PriceStore,
	weather domrepo.WeatherStore,
	state domrepo.StateStore,
	markets []string,
	opts ...EstimatorOption,
) *PriceEstimator {
	e := &PriceEstimator{
		registry:        registry,
		prices:          prices,
		weather:         weather,
		state:           state,
		params:          pricing.DefaultParams(),
		markets:         markets,
		defaultDistance: DefaultDistance,
		sources:         []string{"KAMIS/NPCK (clickhouse)"},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Estimate serves one estimate request.
func (e *PriceEstimator) Estimate(ctx context.Context, req *models.EstimateRequest) (*models.EstimateResponse, error) {
	start := time.Now()

	normalized, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("normalize request: %w", err)
	}
	key := icache.EstimateKey(normalized)

	if e.cache != nil {
		if b, ok, cerr := e.cache.GetBytes(key); cerr == nil && ok {
			var resp models.EstimateResponse
			if err := json.Unmarshal(b, &resp); err == nil {
				imetrics.EstimateLatency.WithLabelValues("hit").Observe(time.Since(start).Seconds())
				return &resp, nil
			}
		}
	}

	pricesNow, distances, err := e.gatherMarketInputs(ctx, req)
	if err != nil {
		imetrics.EstimateErrors.WithLabelValues("prices").Inc()
		return nil, err
	}

	prevBase, err := e.state.Base(ctx, req.Location)
	if err != nil {
		imetrics.EstimateErrors.WithLabelValues("state").Inc()
		return nil, fmt.Errorf("previous base for %s: %w", req.Location, err)
	}

	weatherIndex := e.resolveWeatherIndex(ctx, req)
	sigma := e.resolveSigma(ctx, req.Location)

	res := pricing.Estimate(pricing.Inputs{
		Prices:             pricesNow,
		Distances:          distances,
		PrevBase:           prevBase,
		SeasonIndex:        req.SeasonIndex,
		LogisticsMode:      req.LogisticsMode,
		ShockIndex:         req.ShockIndex,
		VarietyGradeFactor: req.VarietyGradeFactor,
		WeatherIndex:       weatherIndex,
	}, e.params)

	// The smoothed base rolls forward on every call; next request for this
	// location must see it.
	if err := e.state.SetBase(ctx, req.Location, res.NewBase); err != nil {
		imetrics.EstimateErrors.WithLabelValues("state").Inc()
		return nil, fmt.Errorf("persist base for %s: %w", req.Location, err)
	}

	resp := &models.EstimateResponse{
		Estimate: pricing.Round2(res.Estimate),
		Units:    "KES/kg",
		Range: []float64{
			pricing.Round2(res.Estimate - sigma),
			pricing.Round2(res.Estimate + sigma),
		},
		Explain: res.Explain,
		Sources: e.sources,
	}

	if e.cache != nil {
		if b, err := json.Marshal(resp); err == nil {
			_ = e.cache.SetBytes(key, b, e.cacheTTL)
		}
	}
	imetrics.EstimateLatency.WithLabelValues("miss").Observe(time.Since(start).Seconds())
	return resp, nil
}

// gatherMarketInputs builds the market→price and market→distance maps for the
// contributing markets, honoring per-request price overrides.
func (e *PriceEstimator) gatherMarketInputs(ctx context.Context, req *models.EstimateRequest) (map[string]float64, map[string]float64, error) {
	pricesNow := make(map[string]float64, len(e.markets))
	distances := make(map[string]float64, len(e.markets))

	for _, m := range e.markets {
		if v, ok := req.Overrides[m]; ok {
			pricesNow[m] = v
		} else {
			obs, err := e.prices.Latest(ctx, m)
			if err != nil {
				return nil, nil, fmt.Errorf("latest price for %s: %w", m, err)
			}
			if obs != nil {
				pricesNow[m] = obs.PriceKg
			} else {
				pricesNow[m] = 0.0
			}
		}

		market, err := e.registry.Get(ctx, m)
		if err != nil {
			return nil, nil, fmt.Errorf("market registry %s: %w", m, err)
		}
		if market != nil {
			distances[m] = market.DistanceTo(req.Location, e.defaultDistance)
		} else {
			distances[m] = e.defaultDistance
		}
	}
	return pricesNow, distances, nil
}

// resolveWeatherIndex prefers the request override, then the cached latest
// reading, then the weather store. Missing data degrades to a neutral 0.
func (e *PriceEstimator) resolveWeatherIndex(ctx context.Context, req *models.EstimateRequest) float64 {
	if req.WeatherOverride != nil {
		return *req.WeatherOverride
	}
	if e.cache != nil {
		if b, ok, err := e.cache.GetBytes(icache.WeatherLatestKey(req.Location)); err == nil && ok {
			var r models.WeatherReading
			if json.Unmarshal(b, &r) == nil {
				return r.WeatherIndex
			}
		}
	}
	r, err := e.weather.Latest(ctx, req.Location)
	if err != nil {
		if e.l != nil {
			e.l.Warn("weather lookup failed, using neutral index",
				applogger.String("location", req.Location),
				applogger.Error(err),
			)
		}
		return 0
	}
	if r == nil {
		return 0
	}
	return r.WeatherIndex
}

// resolveSigma prefers the cached calibrated sigma, then the state store,
// then the conservative 1.0 default used before any calibration has run.
func (e *PriceEstimator) resolveSigma(ctx context.Context, location string) float64 {
	if e.cache != nil {
		if b, ok, err := e.cache.GetBytes(icache.SigmaKey(location)); err == nil && ok {
			var rec models.SigmaRecord
			if json.Unmarshal(b, &rec) == nil && rec.Sigma >= 0 {
				return rec.Sigma
			}
		}
	}
	rec, err := e.state.Sigma(ctx, location)
	if err != nil {
		if e.l != nil {
			e.l.Warn("sigma lookup failed, using default",
				applogger.String("location", location),
				applogger.Error(err),
			)
		}
		return 1.0
	}
	if rec == nil {
		return 1.0
	}
	return rec.Sigma
}
