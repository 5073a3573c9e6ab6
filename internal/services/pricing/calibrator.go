package pricing

import "math"

// DefaultTrailingWindowDays is the calibration lookback window.
const DefaultTrailingWindowDays = 30

// DefaultMinSamples is the minimum number of valid (actual, estimated) pairs
// a location needs before its sigma is updated.
const DefaultMinSamples = 10

// Sample pairs an observed price with the estimate the model would have
// produced on the same day.
type Sample struct {
	Actual    float64
	Estimated float64
}

// ResidualSigma returns the population standard deviation (divide by N, not
// N-1) of the residuals actual-estimated. The population convention matches
// the calibration history this model was tuned against; switching to the
// sample convention would inflate sigma for small windows.
func ResidualSigma(samples []Sample) float64 {
	n := len(samples)
	if n == 0 {
		return 0
	}
	var mean float64
	for _, s := range samples {
		mean += s.Actual - s.Estimated
	}
	mean /= float64(n)

	var ss float64
	for _, s := range samples {
		r := s.Actual - s.Estimated - mean
		ss += r * r
	}
	return math.Sqrt(ss / float64(n))
}

// Calibrate computes the residual sigma for a location from collected day
// samples. It returns ok=false when fewer than minSamples pairs are
// available; the caller must then leave the persisted sigma untouched and
// report the location as skipped, not failed.
func Calibrate(samples []Sample, minSamples int) (sigma float64, ok bool) {
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}
	if len(samples) < minSamples {
		return 0, false
	}
	return ResidualSigma(samples), true
}
