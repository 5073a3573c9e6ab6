package pricing

import (
	"math"
	"testing"
)

func TestResidualSigmaPopulationConvention(t *testing.T) {
	// residuals: 2, -2, 2, -2 -> mean 0, population stddev 2
	samples := []Sample{
		{Actual: 102, Estimated: 100},
		{Actual: 98, Estimated: 100},
		{Actual: 102, Estimated: 100},
		{Actual: 98, Estimated: 100},
	}
	got := ResidualSigma(samples)
	if math.Abs(got-2.0) > 1e-9 {
		t.Fatalf("expected population stddev 2.0, got %v", got)
	}
}

func TestResidualSigmaDividesByN(t *testing.T) {
	// residuals: 0, 2 -> mean 1, population variance ((1)^2+(1)^2)/2 = 1
	samples := []Sample{
		{Actual: 100, Estimated: 100},
		{Actual: 102, Estimated: 100},
	}
	got := ResidualSigma(samples)
	if math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("expected sigma 1.0 with N denominator, got %v (sample convention would give %v)",
			got, math.Sqrt(2))
	}
}

func TestResidualSigmaConstantResiduals(t *testing.T) {
	samples := []Sample{
		{Actual: 105, Estimated: 100},
		{Actual: 95, Estimated: 90},
		{Actual: 85, Estimated: 80},
	}
	if got := ResidualSigma(samples); math.Abs(got) > 1e-9 {
		t.Fatalf("constant residuals should give sigma 0, got %v", got)
	}
}

func TestResidualSigmaEmpty(t *testing.T) {
	if got := ResidualSigma(nil); got != 0 {
		t.Fatalf("expected 0 for no samples, got %v", got)
	}
}

func TestCalibrateSkipsBelowMinSamples(t *testing.T) {
	samples := make([]Sample, 9)
	for i := range samples {
		samples[i] = Sample{Actual: 100, Estimated: 99}
	}
	if _, ok := Calibrate(samples, 10); ok {
		t.Fatalf("9 samples with minSamples=10 must be skipped")
	}
}

func TestCalibrateAtThreshold(t *testing.T) {
	samples := make([]Sample, 10)
	for i := range samples {
		samples[i] = Sample{Actual: 100 + float64(i%2)*2, Estimated: 100}
	}
	sigma, ok := Calibrate(samples, 10)
	if !ok {
		t.Fatalf("10 samples must calibrate")
	}
	if sigma < 0 {
		t.Fatalf("sigma must be non-negative, got %v", sigma)
	}
}

func TestCalibrateDefaultsMinSamples(t *testing.T) {
	samples := make([]Sample, DefaultMinSamples-1)
	if _, ok := Calibrate(samples, 0); ok {
		t.Fatalf("zero minSamples should fall back to the default threshold")
	}
}
