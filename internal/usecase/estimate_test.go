package usecase

import (
	"context"
	"testing"
	"time"

	"AgriPull/internal/domain/models"
	icache "AgriPull/internal/service/cache"
)

const dayKeyLayout = "2006-01-02"

type fakeRegistry struct {
	markets map[string]*models.Market
}

func (f *fakeRegistry) List(ctx context.Context) ([]models.Market, error) {
	out := make([]models.Market, 0, len(f.markets))
	for _, m := range f.markets {
		out = append(out, *m)
	}
	return out, nil
}

func (f *fakeRegistry) Get(ctx context.Context, name string) (*models.Market, error) {
	m, ok := f.markets[name]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

type fakePriceStore struct {
	latest map[string]*models.PriceObservation
	daily  map[string]map[string]float64 // day -> market -> price
}

func newFakePriceStore() *fakePriceStore {
	return &fakePriceStore{
		latest: make(map[string]*models.PriceObservation),
		daily:  make(map[string]map[string]float64),
	}
}

func (f *fakePriceStore) setDaily(day time.Time, market string, price float64) {
	k := day.Format(dayKeyLayout)
	if f.daily[k] == nil {
		f.daily[k] = make(map[string]float64)
	}
	f.daily[k][market] = price
}

func (f *fakePriceStore) Store(ctx context.Context, o *models.PriceObservation) error {
	f.latest[o.Market] = o
	return nil
}

func (f *fakePriceStore) StoreBatch(ctx context.Context, obs []*models.PriceObservation) error {
	for _, o := range obs {
		f.latest[o.Market] = o
	}
	return nil
}

func (f *fakePriceStore) Latest(ctx context.Context, market string) (*models.PriceObservation, error) {
	return f.latest[market], nil
}

func (f *fakePriceStore) PricesOn(ctx context.Context, markets []string, day time.Time) (map[string]float64, error) {
	out := make(map[string]float64)
	dayPrices := f.daily[day.Format(dayKeyLayout)]
	for _, m := range markets {
		if p, ok := dayPrices[m]; ok {
			out[m] = p
		}
	}
	return out, nil
}

func (f *fakePriceStore) Health(ctx context.Context) error { return nil }
func (f *fakePriceStore) Close() error                     { return nil }

type fakeWeatherStore struct {
	latest map[string]*models.WeatherReading
	onDay  map[string]*models.WeatherReading // market|day -> reading
}

func newFakeWeatherStore() *fakeWeatherStore {
	return &fakeWeatherStore{
		latest: make(map[string]*models.WeatherReading),
		onDay:  make(map[string]*models.WeatherReading),
	}
}

func (f *fakeWeatherStore) Store(ctx context.Context, r *models.WeatherReading) error {
	f.latest[r.Market] = r
	f.onDay[r.Market+"|"+r.Timestamp.Format(dayKeyLayout)] = r
	return nil
}

func (f *fakeWeatherStore) Latest(ctx context.Context, market string) (*models.WeatherReading, error) {
	return f.latest[market], nil
}

func (f *fakeWeatherStore) History(ctx context.Context, market string, from time.Time, limit int) ([]models.WeatherReading, error) {
	if r, ok := f.latest[market]; ok {
		return []models.WeatherReading{*r}, nil
	}
	return nil, nil
}

func (f *fakeWeatherStore) ReadingOn(ctx context.Context, market string, day time.Time) (*models.WeatherReading, error) {
	return f.onDay[market+"|"+day.Format(dayKeyLayout)], nil
}

func (f *fakeWeatherStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for k, r := range f.onDay {
		if r.Timestamp.Before(cutoff) {
			delete(f.onDay, k)
			n++
		}
	}
	return n, nil
}

type fakeStateStore struct {
	base  map[string]float64
	sigma map[string]models.SigmaRecord
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{
		base:  make(map[string]float64),
		sigma: make(map[string]models.SigmaRecord),
	}
}

func (f *fakeStateStore) Base(ctx context.Context, location string) (*float64, error) {
	if b, ok := f.base[location]; ok {
		return &b, nil
	}
	return nil, nil
}

func (f *fakeStateStore) SetBase(ctx context.Context, location string, base float64) error {
	f.base[location] = base
	return nil
}

func (f *fakeStateStore) Sigma(ctx context.Context, location string) (*models.SigmaRecord, error) {
	if r, ok := f.sigma[location]; ok {
		return &r, nil
	}
	return nil, nil
}

func (f *fakeStateStore) SetSigma(ctx context.Context, location string, sigma float64, updatedAt time.Time) error {
	f.sigma[location] = models.SigmaRecord{Location: location, Sigma: sigma, UpdatedAt: updatedAt}
	return nil
}

func nairobiRegistry() *fakeRegistry {
	return &fakeRegistry{markets: map[string]*models.Market{
		"Nairobi": {Name: "Nairobi", County: "Nairobi", Lat: -1.2921, Lon: 36.8219,
			Friction: map[string]float64{"Nairobi": 0, "Nakuru": 160, "Nyeri": 150}},
		"Nakuru": {Name: "Nakuru", County: "Nakuru", Lat: -0.3031, Lon: 36.0800,
			Friction: map[string]float64{"Nairobi": 160, "Nakuru": 0, "Nyeri": 170}},
	}}
}

func TestEstimateNeutralSingleMarket(t *testing.T) {
	prices := newFakePriceStore()
	prices.latest["Nairobi"] = &models.PriceObservation{Market: "Nairobi", Timestamp: time.Now().Unix(), PriceKg: 100, Source: "kamis"}
	state := newFakeStateStore()

	uc := NewPriceEstimator(nairobiRegistry(), prices, newFakeWeatherStore(), state, []string{"Nairobi"})
	resp, err := uc.Estimate(context.Background(), &models.EstimateRequest{
		Location:           "Nairobi",
		LogisticsMode:      "wholesale",
		VarietyGradeFactor: 1.0,
	})
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if resp.Estimate != 100.0 {
		t.Fatalf("expected 100.0, got %v", resp.Estimate)
	}
	if resp.Units != "KES/kg" {
		t.Fatalf("expected KES/kg, got %q", resp.Units)
	}
	if resp.Explain.LogisticsMult != 1.0 {
		t.Fatalf("expected neutral logistics mult, got %v", resp.Explain.LogisticsMult)
	}
	// default sigma 1.0 before any calibration
	if len(resp.Range) != 2 || resp.Range[0] != 99.0 || resp.Range[1] != 101.0 {
		t.Fatalf("unexpected range %v", resp.Range)
	}
	if b, ok := state.base["Nairobi"]; !ok || b != 100.0 {
		t.Fatalf("expected persisted base 100.0, got %v %v", b, ok)
	}
}

func TestEstimateSmoothsAgainstPreviousBase(t *testing.T) {
	prices := newFakePriceStore()
	prices.latest["Nairobi"] = &models.PriceObservation{Market: "Nairobi", Timestamp: time.Now().Unix(), PriceKg: 100}
	state := newFakeStateStore()
	state.base["Nairobi"] = 90

	uc := NewPriceEstimator(nairobiRegistry(), prices, newFakeWeatherStore(), state, []string{"Nairobi"})
	resp, err := uc.Estimate(context.Background(), &models.EstimateRequest{Location: "Nairobi", LogisticsMode: "wholesale", VarietyGradeFactor: 1.0})
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	// 0.4*100 + 0.6*90 = 94
	if resp.Estimate != 94.0 {
		t.Fatalf("expected 94.0, got %v", resp.Estimate)
	}
	if state.base["Nairobi"] != 94.0 {
		t.Fatalf("expected base rolled to 94.0, got %v", state.base["Nairobi"])
	}
}

func TestEstimateWeatherOverride(t *testing.T) {
	prices := newFakePriceStore()
	prices.latest["Nairobi"] = &models.PriceObservation{Market: "Nairobi", Timestamp: time.Now().Unix(), PriceKg: 100}
	wet := 1.0

	uc := NewPriceEstimator(nairobiRegistry(), prices, newFakeWeatherStore(), newFakeStateStore(), []string{"Nairobi"})
	resp, err := uc.Estimate(context.Background(), &models.EstimateRequest{
		Location:           "Nairobi",
		LogisticsMode:      "wholesale",
		VarietyGradeFactor: 1.0,
		WeatherOverride:    &wet,
	})
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	// weather mult 1 + 0.12*1
	if resp.Estimate != 112.0 {
		t.Fatalf("expected 112.0, got %v", resp.Estimate)
	}
	if resp.Explain.WeatherMult != 1.12 {
		t.Fatalf("expected weather mult 1.12, got %v", resp.Explain.WeatherMult)
	}
}

func TestEstimatePriceOverridesBeatStore(t *testing.T) {
	prices := newFakePriceStore()
	prices.latest["Nairobi"] = &models.PriceObservation{Market: "Nairobi", Timestamp: time.Now().Unix(), PriceKg: 55}

	uc := NewPriceEstimator(nairobiRegistry(), prices, newFakeWeatherStore(), newFakeStateStore(), []string{"Nairobi"})
	resp, err := uc.Estimate(context.Background(), &models.EstimateRequest{
		Location:           "Nairobi",
		LogisticsMode:      "wholesale",
		VarietyGradeFactor: 1.0,
		Overrides:          map[string]float64{"Nairobi": 80},
	})
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if resp.Estimate != 80.0 {
		t.Fatalf("override should win, got %v", resp.Estimate)
	}
}

func TestEstimateUsesCalibratedSigma(t *testing.T) {
	prices := newFakePriceStore()
	prices.latest["Nairobi"] = &models.PriceObservation{Market: "Nairobi", Timestamp: time.Now().Unix(), PriceKg: 100}
	state := newFakeStateStore()
	state.sigma["Nairobi"] = models.SigmaRecord{Location: "Nairobi", Sigma: 2.5, UpdatedAt: time.Now()}

	uc := NewPriceEstimator(nairobiRegistry(), prices, newFakeWeatherStore(), state, []string{"Nairobi"})
	resp, err := uc.Estimate(context.Background(), &models.EstimateRequest{Location: "Nairobi", LogisticsMode: "wholesale", VarietyGradeFactor: 1.0})
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if resp.Range[0] != 97.5 || resp.Range[1] != 102.5 {
		t.Fatalf("expected calibrated range, got %v", resp.Range)
	}
}

func TestEstimateResponseCaching(t *testing.T) {
	prices := newFakePriceStore()
	prices.latest["Nairobi"] = &models.PriceObservation{Market: "Nairobi", Timestamp: time.Now().Unix(), PriceKg: 100}

	uc := NewPriceEstimator(
		nairobiRegistry(), prices, newFakeWeatherStore(), newFakeStateStore(),
		[]string{"Nairobi"},
		WithCache(icache.NewTTLCache(), 5*time.Minute),
	)
	req := &models.EstimateRequest{Location: "Nairobi", LogisticsMode: "wholesale", VarietyGradeFactor: 1.0}

	first, err := uc.Estimate(context.Background(), req)
	if err != nil {
		t.Fatalf("first estimate: %v", err)
	}

	// Mutate the store; an identical request must still be served from cache.
	prices.latest["Nairobi"].PriceKg = 500
	second, err := uc.Estimate(context.Background(), req)
	if err != nil {
		t.Fatalf("second estimate: %v", err)
	}
	if second.Estimate != first.Estimate {
		t.Fatalf("expected cached response %v, got %v", first.Estimate, second.Estimate)
	}
}

func TestEstimateDistanceWeighting(t *testing.T) {
	prices := newFakePriceStore()
	prices.latest["Nairobi"] = &models.PriceObservation{Market: "Nairobi", Timestamp: time.Now().Unix(), PriceKg: 100}
	prices.latest["Nakuru"] = &models.PriceObservation{Market: "Nakuru", Timestamp: time.Now().Unix(), PriceKg: 200}

	uc := NewPriceEstimator(nairobiRegistry(), prices, newFakeWeatherStore(), newFakeStateStore(), []string{"Nairobi", "Nakuru"})
	resp, err := uc.Estimate(context.Background(), &models.EstimateRequest{Location: "Nairobi", LogisticsMode: "wholesale", VarietyGradeFactor: 1.0})
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	// Nairobi at distance 0 dominates Nakuru at 160km.
	if resp.Estimate <= 100.0 || resp.Estimate >= 150.0 {
		t.Fatalf("expected estimate near the local market, got %v", resp.Estimate)
	}
}
