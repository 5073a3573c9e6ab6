package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"AgriPull/internal/domain/models"
	domsvc "AgriPull/internal/domain/service"
	"AgriPull/internal/usecase"
	xlogger "AgriPull/pkg/logger"

	"github.com/labstack/echo/v4"
)

type memRegistry struct {
	markets map[string]*models.Market
}

func (r *memRegistry) List(ctx context.Context) ([]models.Market, error) {
	out := make([]models.Market, 0, len(r.markets))
	for _, m := range r.markets {
		out = append(out, *m)
	}
	return out, nil
}

func (r *memRegistry) Get(ctx context.Context, name string) (*models.Market, error) {
	m, ok := r.markets[name]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

type memPrices struct {
	latest map[string]*models.PriceObservation
}

func (s *memPrices) Store(ctx context.Context, o *models.PriceObservation) error { return nil }
func (s *memPrices) StoreBatch(ctx context.Context, obs []*models.PriceObservation) error {
	return nil
}
func (s *memPrices) Latest(ctx context.Context, market string) (*models.PriceObservation, error) {
	return s.latest[market], nil
}
func (s *memPrices) PricesOn(ctx context.Context, markets []string, day time.Time) (map[string]float64, error) {
	return map[string]float64{}, nil
}
func (s *memPrices) Health(ctx context.Context) error { return nil }
func (s *memPrices) Close() error                     { return nil }

type memWeather struct {
	latest map[string]*models.WeatherReading
}

func (s *memWeather) Store(ctx context.Context, r *models.WeatherReading) error {
	if s.latest == nil {
		s.latest = map[string]*models.WeatherReading{}
	}
	s.latest[r.Market] = r
	return nil
}
func (s *memWeather) Latest(ctx context.Context, market string) (*models.WeatherReading, error) {
	return s.latest[market], nil
}
func (s *memWeather) History(ctx context.Context, market string, from time.Time, limit int) ([]models.WeatherReading, error) {
	if r, ok := s.latest[market]; ok {
		return []models.WeatherReading{*r}, nil
	}
	return nil, nil
}
func (s *memWeather) ReadingOn(ctx context.Context, market string, day time.Time) (*models.WeatherReading, error) {
	return nil, nil
}
func (s *memWeather) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type memState struct {
	base map[string]float64
}

func (s *memState) Base(ctx context.Context, location string) (*float64, error) {
	if b, ok := s.base[location]; ok {
		return &b, nil
	}
	return nil, nil
}
func (s *memState) SetBase(ctx context.Context, location string, base float64) error {
	if s.base == nil {
		s.base = map[string]float64{}
	}
	s.base[location] = base
	return nil
}
func (s *memState) Sigma(ctx context.Context, location string) (*models.SigmaRecord, error) {
	return nil, nil
}
func (s *memState) SetSigma(ctx context.Context, location string, sigma float64, updatedAt time.Time) error {
	return nil
}

type noProvider struct{}

func (noProvider) Fetch(ctx context.Context, lat, lon float64) (domsvc.WeatherPayload, error) {
	return domsvc.WeatherPayload{}, context.Canceled
}

func newTestHandler(t *testing.T) (*PricesEchoHandler, *echo.Echo) {
	t.Helper()
	registry := &memRegistry{markets: map[string]*models.Market{
		"Nairobi": {Name: "Nairobi", County: "Nairobi", Lat: -1.2921, Lon: 36.8219,
			Friction: map[string]float64{"Nairobi": 0}},
	}}
	prices := &memPrices{latest: map[string]*models.PriceObservation{
		"Nairobi": {Market: "Nairobi", Timestamp: time.Now().Unix(), PriceKg: 100, Source: "kamis"},
	}}
	weatherStore := &memWeather{latest: map[string]*models.WeatherReading{}}
	state := &memState{}

	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	estimator := usecase.NewPriceEstimator(registry, prices, weatherStore, state, []string{"Nairobi"})
	syncer := usecase.NewWeatherSyncer(registry, noProvider{}, weatherStore)
	h := NewPricesEchoHandler(l, estimator, syncer, registry, prices, weatherStore)

	e := echo.New()
	h.RegisterRoutes(e)
	return h, e
}

func TestEstimateEndpoint(t *testing.T) {
	_, e := newTestHandler(t)

	body := `{"location":"Nairobi","logistics_mode":"wholesale"}`
	req := httptest.NewRequest(http.MethodPost, "/api/estimate", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Status int `json:"status"`
		Data   struct {
			Estimate float64   `json:"estimate"`
			Units    string    `json:"units"`
			Range    []float64 `json:"range"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Estimate != 100.0 {
		t.Fatalf("expected estimate 100.0, got %v", resp.Data.Estimate)
	}
	if resp.Data.Units != "KES/kg" {
		t.Fatalf("expected KES/kg, got %q", resp.Data.Units)
	}
	if len(resp.Data.Range) != 2 {
		t.Fatalf("expected a 2-element range, got %v", resp.Data.Range)
	}
}

func TestEstimateRejectsUnknownLogisticsMode(t *testing.T) {
	_, e := newTestHandler(t)

	body := `{"location":"Nairobi","logistics_mode":"warehouse"}`
	req := httptest.NewRequest(http.MethodPost, "/api/estimate", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var resp struct {
		Status int `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != http.StatusBadRequest {
		t.Fatalf("expected validation failure, got status %d", resp.Status)
	}
}

func TestMarketsEndpoint(t *testing.T) {
	_, e := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/markets", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Data struct {
			Rows []struct {
				Name        string `json:"name"`
				LatestPrice *struct {
					PriceKg float64 `json:"price_kg"`
				} `json:"latest_price"`
			} `json:"rows"`
			Total int64 `json:"total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Total != 1 || len(resp.Data.Rows) != 1 {
		t.Fatalf("expected one market, got %+v", resp.Data)
	}
	if resp.Data.Rows[0].LatestPrice == nil || resp.Data.Rows[0].LatestPrice.PriceKg != 100 {
		t.Fatalf("expected latest price 100, got %+v", resp.Data.Rows[0].LatestPrice)
	}
}

func TestWeatherLatestMissingLocation(t *testing.T) {
	_, e := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/weather/latest", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var resp struct {
		Status int `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != http.StatusBadRequest {
		t.Fatalf("location is required, got status %d", resp.Status)
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, e := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"clickhouse":"ok"`) {
		t.Fatalf("expected clickhouse ok in body: %s", rec.Body.String())
	}
}
