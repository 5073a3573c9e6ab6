package service

import "context"

// WeatherPayload is a provider-agnostic weather snapshot.
type WeatherPayload struct {
	RainMM       float64
	WeatherCode  string
	WeatherIndex float64 // normalized [0,1]
}

// WeatherProvider fetches current weather for a coordinate pair.
type WeatherProvider interface {
	Fetch(ctx context.Context, lat, lon float64) (WeatherPayload, error)
}
