package usecase

import (
	"context"
	"math"
	"testing"
	"time"

	"AgriPull/internal/domain/models"
	domsvc "AgriPull/internal/domain/service"
	"AgriPull/pkg/util"
)

func calibrationRegistry() *fakeRegistry {
	return &fakeRegistry{markets: map[string]*models.Market{
		"Nakuru": {Name: "Nakuru", Friction: map[string]float64{"Nairobi": 0}},
		"Nyeri":  {Name: "Nyeri", Friction: map[string]float64{"Nairobi": 0}},
	}}
}

func TestCalibrationUpdatesSigma(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	prices := newFakePriceStore()
	state := newFakeStateStore()

	// With both contributing markets at zero distance the daily estimate is
	// their mean; actuals alternate +-2 around it, so the population stddev
	// of the residuals is exactly 2.
	for d := 1; d <= 10; d++ {
		day := util.DaysAgo(now, d)
		prices.setDaily(day, "Nakuru", 100)
		prices.setDaily(day, "Nyeri", 100)
		actual := 102.0
		if d%2 == 0 {
			actual = 98.0
		}
		prices.setDaily(day, "Nairobi", actual)
	}

	runner := NewCalibrationRunner(
		calibrationRegistry(), prices, newFakeWeatherStore(), state,
		[]string{"Nairobi"}, []string{"Nakuru", "Nyeri"},
	)
	report, err := runner.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Updated != 1 || report.Skipped != 0 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	got := report.Sigmas["Nairobi"]
	if math.Abs(got-2.0) > 1e-9 {
		t.Fatalf("expected sigma 2.0, got %v", got)
	}
	rec, ok := state.sigma["Nairobi"]
	if !ok || rec.Sigma != got {
		t.Fatalf("expected persisted sigma %v, got %+v", got, rec)
	}
	if !rec.UpdatedAt.Equal(now) {
		t.Fatalf("expected updated_at %v, got %v", now, rec.UpdatedAt)
	}
}

func TestCalibrationSmoothsAgainstPersistedBase(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	prices := newFakePriceStore()
	state := newFakeStateStore()
	state.base["Nairobi"] = 50

	// Actuals track the raw market price exactly, so an unsmoothed rerun
	// would leave every residual at zero. With the persisted base 50 each
	// day's estimate is 0.4*raw + 30: raw 100 gives residual 30, raw 110
	// gives residual 36, and the population stddev over the window is 3.
	for d := 1; d <= 10; d++ {
		day := util.DaysAgo(now, d)
		price := 100.0
		if d%2 == 0 {
			price = 110.0
		}
		prices.setDaily(day, "Nakuru", price)
		prices.setDaily(day, "Nyeri", price)
		prices.setDaily(day, "Nairobi", price)
	}

	runner := NewCalibrationRunner(
		calibrationRegistry(), prices, newFakeWeatherStore(), state,
		[]string{"Nairobi"}, []string{"Nakuru", "Nyeri"},
	)
	report, err := runner.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Updated != 1 {
		t.Fatalf("expected update, got %+v", report)
	}
	got := report.Sigmas["Nairobi"]
	if math.Abs(got-3.0) > 1e-9 {
		t.Fatalf("expected sigma 3.0 from smoothed estimates, got %v", got)
	}
}

func TestCalibrationSkipsBelowMinSamples(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	prices := newFakePriceStore()
	state := newFakeStateStore()

	// Only 5 usable days, below the 10-sample minimum.
	for d := 1; d <= 5; d++ {
		day := util.DaysAgo(now, d)
		prices.setDaily(day, "Nakuru", 100)
		prices.setDaily(day, "Nyeri", 100)
		prices.setDaily(day, "Nairobi", 101)
	}

	runner := NewCalibrationRunner(
		calibrationRegistry(), prices, newFakeWeatherStore(), state,
		[]string{"Nairobi"}, []string{"Nakuru", "Nyeri"},
	)
	report, err := runner.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Skipped != 1 || report.Updated != 0 {
		t.Fatalf("expected skip, got %+v", report)
	}
	if _, ok := state.sigma["Nairobi"]; ok {
		t.Fatalf("sigma must stay unset on a skipped run")
	}
}

func TestCalibrationIgnoresThinDays(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	prices := newFakePriceStore()
	state := newFakeStateStore()

	for d := 1; d <= 12; d++ {
		day := util.DaysAgo(now, d)
		prices.setDaily(day, "Nakuru", 100)
		if d > 2 {
			// first two days have a single market price and must not count
			prices.setDaily(day, "Nyeri", 100)
		}
		prices.setDaily(day, "Nairobi", 100)
	}

	runner := NewCalibrationRunner(
		calibrationRegistry(), prices, newFakeWeatherStore(), state,
		[]string{"Nairobi"}, []string{"Nakuru", "Nyeri"},
	)
	report, err := runner.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// 10 valid days remain, exactly at the minimum; zero residuals.
	if report.Updated != 1 {
		t.Fatalf("expected update, got %+v", report)
	}
	if s := report.Sigmas["Nairobi"]; s != 0 {
		t.Fatalf("expected zero sigma for perfect estimates, got %v", s)
	}
}

func TestWeatherSyncStoresGeocodedMarketsOnly(t *testing.T) {
	now := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	registry := &fakeRegistry{markets: map[string]*models.Market{
		"Nairobi": {Name: "Nairobi", Lat: -1.2921, Lon: 36.8219},
		"Nowhere": {Name: "Nowhere"}, // no coordinates, must be skipped
	}}
	store := newFakeWeatherStore()

	syncer := NewWeatherSyncer(registry, stubProvider{rain: 15, code: "501"}, store)
	synced, err := syncer.Sync(context.Background(), now)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if synced != 1 {
		t.Fatalf("expected 1 synced market, got %d", synced)
	}
	r, _ := store.Latest(context.Background(), "Nairobi")
	if r == nil || r.WeatherIndex != 0.5 {
		t.Fatalf("unexpected stored reading %+v", r)
	}
	if _, ok := store.latest["Nowhere"]; ok {
		t.Fatalf("market without coordinates must not be synced")
	}
}

func TestWeatherCleanupDropsOldReadings(t *testing.T) {
	now := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	store := newFakeWeatherStore()
	_ = store.Store(context.Background(), &models.WeatherReading{Market: "Nairobi", Timestamp: now.AddDate(0, 0, -120)})
	_ = store.Store(context.Background(), &models.WeatherReading{Market: "Nakuru", Timestamp: now.AddDate(0, 0, -5)})

	syncer := NewWeatherSyncer(&fakeRegistry{markets: map[string]*models.Market{}}, stubProvider{}, store)
	deleted, err := syncer.Cleanup(context.Background(), now)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted reading, got %d", deleted)
	}
}

type stubProvider struct {
	rain float64
	code string
}

func (p stubProvider) Fetch(ctx context.Context, lat, lon float64) (domsvc.WeatherPayload, error) {
	return domsvc.WeatherPayload{
		RainMM:       p.rain,
		WeatherCode:  p.code,
		WeatherIndex: math.Min(1, p.rain/30),
	}, nil
}
