package cache

import (
	"crypto/md5"
	"encoding/hex"
)

// Key layout shared between the estimate path and the background jobs. The
// jobs overwrite what the read path consumes, so these must stay in sync.

// EstimateKey derives the response-cache key from the normalized request
// bytes. Requests must be serialized deterministically by the caller.
func EstimateKey(normalized []byte) string {
	sum := md5.Sum(normalized)
	return "estimate:" + hex.EncodeToString(sum[:])
}

// WeatherLatestKey caches the most recent weather reading per market.
func WeatherLatestKey(market string) string { return "weather:latest:" + market }

// SigmaKey caches the calibrated sigma per location.
func SigmaKey(location string) string { return "sigma:" + location }
