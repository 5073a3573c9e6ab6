package models

import "time"

// Market is a registered physical market with optional coordinates and a
// friction map giving the transport distance to destination locations.
type Market struct {
	Name     string             `yaml:"name" json:"name"`
	County   string             `yaml:"county" json:"county"`
	Lat      float64            `yaml:"lat" json:"lat"`
	Lon      float64            `yaml:"lon" json:"lon"`
	Friction map[string]float64 `yaml:"friction" json:"friction,omitempty"`
}

// HasCoordinates reports whether the market can be geocoded for weather lookups.
func (m *Market) HasCoordinates() bool {
	return m.Lat != 0 || m.Lon != 0
}

// DistanceTo returns the friction/distance value toward a destination location.
// Markets without an entry for the destination fall back to def.
func (m *Market) DistanceTo(location string, def float64) float64 {
	if m.Friction != nil {
		if d, ok := m.Friction[location]; ok {
			return d
		}
	}
	return def
}

// PriceObservation is a single observed per-kg price at a market.
// Observations are append-only; they are never updated in place.
type PriceObservation struct {
	Market    string  `json:"market"`
	Timestamp int64   `json:"t"` // unix seconds
	PriceKg   float64 `json:"price_kg"`
	Source    string  `json:"source"`
}

// WeatherReading is a normalized weather snapshot for a market.
type WeatherReading struct {
	Market       string    `json:"market"`
	Timestamp    time.Time `json:"timestamp"`
	RainMM       float64   `json:"rain_mm"`
	WeatherCode  string    `json:"weather_code"`
	WeatherIndex float64   `json:"weather_index"` // normalized [0,1], consumed by the estimator
}

// SigmaRecord is the persisted per-location residual uncertainty.
type SigmaRecord struct {
	Location  string    `json:"location"`
	Sigma     float64   `json:"sigma"`
	UpdatedAt time.Time `json:"last_updated"`
}
