package pricing

import (
	"math"

	"AgriPull/internal/domain/models"
)

// Default tuning constants for the multiplicative adjustment model.
const (
	DefaultAlpha    = 0.4  // EWMA smoothing weight
	DefaultSeasonK  = 0.12 // k1: season index sensitivity
	DefaultShockK   = 0.08 // k2: shock index sensitivity
	DefaultWeatherK = 0.12 // k3: weather index sensitivity
)

// logisticsMultipliers maps the market-stage classifier to a fixed price
// multiplier. Unknown modes fall back to 1.00 rather than erroring.
var logisticsMultipliers = map[string]float64{
	"farmgate":  0.90,
	"wholesale": 1.00,
	"retail":    1.20,
}

// LogisticsMultiplier resolves the multiplier for a logistics mode, defaulting
// to 1.00 for any unrecognized value.
func LogisticsMultiplier(mode string) float64 {
	if m, ok := logisticsMultipliers[mode]; ok {
		return m
	}
	return 1.0
}

// Params holds the estimator tuning knobs. Zero values are not meaningful;
// use DefaultParams and override fields as needed.
type Params struct {
	Alpha    float64
	SeasonK  float64
	ShockK   float64
	WeatherK float64
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		Alpha:    DefaultAlpha,
		SeasonK:  DefaultSeasonK,
		ShockK:   DefaultShockK,
		WeatherK: DefaultWeatherK,
	}
}

// Inputs are the per-request inputs to Estimate. Prices maps market name to
// current per-kg price; Distances maps market name to a non-negative friction
// value (missing entries default to 0, negatives are clamped to 0). PrevBase
// is the previously persisted smoothed base for the location, nil on first use.
type Inputs struct {
	Prices             map[string]float64
	Distances          map[string]float64
	PrevBase           *float64
	SeasonIndex        float64 // [-1,1]
	LogisticsMode      string  // farmgate | wholesale | retail; unknown -> neutral
	ShockIndex         float64 // [-1,1]
	VarietyGradeFactor float64 // [0.5,2.0]; zero treated as unset (1.0)
	WeatherIndex       float64 // [0,1]
}

// Result is the estimator output. NewBase must be persisted by the caller and
// fed back as PrevBase on the next call for the same location. Low/High form
// the confidence band sized by the fallback sigma; callers holding a
// calibrated per-location sigma should resize the band themselves.
type Result struct {
	Estimate float64
	Low      float64
	High     float64
	NewBase  float64
	Explain  models.Explain
}

// ComputeBase returns the inverse-distance weighted average of current prices.
// Each market present in prices contributes weight 1/(1+distance); extra
// entries in distances are ignored. A zero weight sum (empty prices) divides
// by 1, yielding 0.
func ComputeBase(prices, distances map[string]float64) float64 {
	var sum, z float64
	for m, p := range prices {
		d := math.Max(0, distances[m])
		w := 1.0 / (1.0 + d)
		sum += w * p
		z += w
	}
	if z == 0 {
		z = 1
	}
	return sum / z
}

// Smooth applies one EWMA step: alpha*raw + (1-alpha)*prev. A nil prev means
// first observation, returning raw unchanged. Precondition: alpha in (0,1].
func Smooth(raw float64, prev *float64, alpha float64) float64 {
	if prev == nil {
		return raw
	}
	return alpha*raw + (1-alpha)*(*prev)
}

// FallbackSigma is the scale-based uncertainty used before any calibration
// run has produced a residual sigma for the location.
func FallbackSigma(estimate float64) float64 {
	if !isFinite(estimate) {
		return 1.0
	}
	return math.Max(0.5, 0.03*estimate)
}

// Estimate computes the adjusted point estimate for one location.
//
// The raw distance-weighted base is smoothed against the previous base, then
// multiplied by the season, logistics, shock, weather, and variety factors.
// All inputs are treated permissively: missing distances default to 0,
// unknown logistics modes to a neutral multiplier, a zero variety factor to
// 1.0. The only precondition for a meaningful result is a non-empty Prices
// map; empty input degenerates to a zero base.
func Estimate(in Inputs, p Params) Result {
	raw := ComputeBase(in.Prices, in.Distances)
	base := Smooth(raw, in.PrevBase, p.Alpha)

	variety := in.VarietyGradeFactor
	if variety == 0 {
		variety = 1.0
	}

	season := 1 + p.SeasonK*in.SeasonIndex
	logistics := LogisticsMultiplier(in.LogisticsMode)
	shock := 1 + p.ShockK*in.ShockIndex
	weather := 1 + p.WeatherK*in.WeatherIndex

	point := base * season * logistics * shock * weather * variety
	sigma := FallbackSigma(point)

	return Result{
		Estimate: point,
		Low:      point - sigma,
		High:     point + sigma,
		NewBase:  base,
		Explain: models.Explain{
			BaseSmoothed:  Round3(base),
			SeasonMult:    Round3(season),
			LogisticsMult: Round3(logistics),
			ShockMult:     Round3(shock),
			WeatherMult:   Round3(weather),
			VarietyMult:   Round3(variety),
		},
	}
}

// Round3 rounds to 3 decimal places for the explain breakdown.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Round2 rounds to 2 decimal places for response formatting.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
