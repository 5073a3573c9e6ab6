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
	"AgriPull/pkg/util"
)

// CalibrationRunner recomputes the per-location residual sigma from the
// trailing window of daily prices. For each day it re-runs the estimator on
// the market prices and weather recorded that day, smoothed against the
// location's persisted base, pairs the result with the price actually
// observed at the location, and feeds the residuals into the calibrator.
type CalibrationRunner struct {
	registry        domrepo.MarketRegistry
	prices          domrepo.PriceStore
	weather         domrepo.WeatherStore
	state           domrepo.StateStore
	cache           icache.BytesCache
	locations       []string
	markets         []string
	windowDays      int
	minSamples      int
	defaultDistance float64
	sigmaTTL        time.Duration
	l               *applogger.Logger
}

// CalibrationReport summarizes one run.
type CalibrationReport struct {
	Updated int
	Skipped int
	Failed  int
	Sigmas  map[string]float64
}

// CalibrationOption configures CalibrationRunner.
type CalibrationOption func(*CalibrationRunner)

// WithSigmaCache caches each updated sigma for the estimate path.
func WithSigmaCache(c icache.BytesCache, ttl time.Duration) CalibrationOption {
	return func(r *CalibrationRunner) {
		r.cache = c
		r.sigmaTTL = ttl
	}
}

// WithWindow overrides the trailing window and the minimum sample count.
func WithWindow(days, minSamples int) CalibrationOption {
	return func(r *CalibrationRunner) {
		if days > 0 {
			r.windowDays = days
		}
		if minSamples > 0 {
			r.minSamples = minSamples
		}
	}
}

// WithCalibrationLogger injects a structured logger.
func WithCalibrationLogger(l *applogger.Logger) CalibrationOption {
	return func(r *CalibrationRunner) { r.l = l }
}

func NewCalibrationRunner(
	registry domrepo.MarketRegistry,
	prices domrepo.PriceStore,
	weather domrepo.WeatherStore,
	state domrepo.StateStore,
	locations []string,
	markets []string,
	opts ...CalibrationOption,
) *CalibrationRunner {
	r := &CalibrationRunner{
		registry:        registry,
		prices:          prices,
		weather:         weather,
		state:           state,
		locations:       locations,
		markets:         markets,
		windowDays:      pricing.DefaultTrailingWindowDays,
		minSamples:      pricing.DefaultMinSamples,
		defaultDistance: DefaultDistance,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run calibrates every configured location. A failure on one location does
// not stop the others.
func (r *CalibrationRunner) Run(ctx context.Context, now time.Time) (*CalibrationReport, error) {
	report := &CalibrationReport{Sigmas: make(map[string]float64)}

	for _, loc := range r.locations {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		sigma, ok, err := r.calibrateLocation(ctx, loc, now)
		if err != nil {
			report.Failed++
			imetrics.CalibrationRuns.WithLabelValues("failed").Inc()
			if r.l != nil {
				r.l.Error("calibration failed",
					applogger.String("location", loc),
					applogger.Error(err),
				)
			}
			continue
		}
		if !ok {
			report.Skipped++
			imetrics.CalibrationRuns.WithLabelValues("skipped").Inc()
			if r.l != nil {
				r.l.Info("calibration skipped, not enough samples",
					applogger.String("location", loc),
				)
			}
			continue
		}

		if err := r.persistSigma(ctx, loc, sigma, now); err != nil {
			report.Failed++
			imetrics.CalibrationRuns.WithLabelValues("failed").Inc()
			if r.l != nil {
				r.l.Error("sigma persist failed",
					applogger.String("location", loc),
					applogger.Error(err),
				)
			}
			continue
		}

		report.Updated++
		report.Sigmas[loc] = sigma
		imetrics.CalibrationRuns.WithLabelValues("updated").Inc()
		imetrics.CalibrationSigma.WithLabelValues(loc).Set(sigma)
		if r.l != nil {
			r.l.Info("sigma updated",
				applogger.String("location", loc),
				applogger.Float64("sigma", sigma),
			)
		}
	}
	return report, nil
}

// calibrateLocation collects one residual sample per day in the trailing
// window and runs the calibrator. A day contributes only when at least two
// contributing markets and the location itself have a recorded price.
func (r *CalibrationRunner) calibrateLocation(ctx context.Context, location string, now time.Time) (float64, bool, error) {
	distances, err := r.marketDistances(ctx, location)
	if err != nil {
		return 0, false, err
	}

	prevBase, err := r.state.Base(ctx, location)
	if err != nil {
		return 0, false, fmt.Errorf("base for %s: %w", location, err)
	}

	var samples []pricing.Sample
	for d := 1; d <= r.windowDays; d++ {
		day := util.DaysAgo(now, d)

		marketPrices, err := r.prices.PricesOn(ctx, r.markets, day)
		if err != nil {
			return 0, false, fmt.Errorf("prices on %s: %w", day.Format("2006-01-02"), err)
		}
		if len(marketPrices) < 2 {
			continue
		}

		actuals, err := r.prices.PricesOn(ctx, []string{location}, day)
		if err != nil {
			return 0, false, fmt.Errorf("actual on %s: %w", day.Format("2006-01-02"), err)
		}
		actual, ok := actuals[location]
		if !ok {
			continue
		}

		weatherIndex := 0.0
		if reading, err := r.weather.ReadingOn(ctx, location, day); err == nil && reading != nil {
			weatherIndex = reading.WeatherIndex
		}

		// Rebuild the daily estimate with neutral season, shock and
		// variety so the residual captures model error, not request
		// specifics. The persisted base feeds the smoothing step the
		// same way a live estimate would.
		res := pricing.Estimate(pricing.Inputs{
			Prices:             marketPrices,
			Distances:          distances,
			PrevBase:           prevBase,
			SeasonIndex:        0,
			LogisticsMode:      "wholesale",
			ShockIndex:         0,
			VarietyGradeFactor: 1.0,
			WeatherIndex:       weatherIndex,
		}, pricing.DefaultParams())

		samples = append(samples, pricing.Sample{Actual: actual, Estimated: res.Estimate})
	}

	sigma, ok := pricing.Calibrate(samples, r.minSamples)
	return sigma, ok, nil
}

func (r *CalibrationRunner) marketDistances(ctx context.Context, location string) (map[string]float64, error) {
	distances := make(map[string]float64, len(r.markets))
	for _, m := range r.markets {
		market, err := r.registry.Get(ctx, m)
		if err != nil {
			return nil, fmt.Errorf("market registry %s: %w", m, err)
		}
		if market != nil {
			distances[m] = market.DistanceTo(location, r.defaultDistance)
		} else {
			distances[m] = r.defaultDistance
		}
	}
	return distances, nil
}

func (r *CalibrationRunner) persistSigma(ctx context.Context, location string, sigma float64, now time.Time) error {
	if err := r.state.SetSigma(ctx, location, sigma, now); err != nil {
		return err
	}
	if r.cache != nil {
		rec := models.SigmaRecord{Location: location, Sigma: sigma, UpdatedAt: now}
		if b, err := json.Marshal(rec); err == nil {
			_ = r.cache.SetBytes(icache.SigmaKey(location), b, r.sigmaTTL)
		}
	}
	return nil
}
