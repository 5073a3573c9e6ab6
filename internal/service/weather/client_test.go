package weather

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNormalizeRain(t *testing.T) {
	cases := []struct {
		rain float64
		want float64
	}{
		{0, 0},
		{-1, 0},
		{15, 0.5},
		{30, 1.0},
		{90, 1.0}, // soft cap
	}
	for _, c := range cases {
		if got := NormalizeRain(c.rain); got != c.want {
			t.Fatalf("NormalizeRain(%v) = %v, want %v", c.rain, got, c.want)
		}
	}
}

func TestFetchParsesOnecallPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("appid") != "test-key" {
			t.Fatalf("missing api key in query")
		}
		if r.URL.Query().Get("units") != "metric" {
			t.Fatalf("expected metric units")
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"current": map[string]interface{}{
				"rain":    map[string]float64{"1h": 12.0},
				"weather": []map[string]interface{}{{"id": 501}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", 2*time.Second)
	got, err := c.Fetch(context.Background(), -1.2921, 36.8219)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.RainMM != 12.0 {
		t.Fatalf("expected rain 12.0, got %v", got.RainMM)
	}
	if got.WeatherCode != "501" {
		t.Fatalf("expected code 501, got %q", got.WeatherCode)
	}
	if got.WeatherIndex != 0.4 {
		t.Fatalf("expected index 12/30=0.4, got %v", got.WeatherIndex)
	}
}

func TestFetchUnconfigured(t *testing.T) {
	c := NewClient("", "", 0)
	if _, err := c.Fetch(context.Background(), 0, 0); err == nil {
		t.Fatalf("expected error for unconfigured client")
	}
}
