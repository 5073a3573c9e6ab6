package pricing

import (
	"math"
	"testing"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestComputeBaseUniformDistancesIsMean(t *testing.T) {
	prices := map[string]float64{"Nairobi": 100, "Nakuru": 90, "Nyeri": 95}
	distances := map[string]float64{"Nairobi": 40, "Nakuru": 40, "Nyeri": 40}
	got := ComputeBase(prices, distances)
	if !almostEqual(got, 95, 1e-9) {
		t.Fatalf("expected arithmetic mean 95, got %v", got)
	}
}

func TestComputeBaseWeights(t *testing.T) {
	prices := map[string]float64{"A": 100, "B": 90}
	distances := map[string]float64{"A": 0, "B": 50}
	// weights: A=1.0, B=1/51
	want := (100.0 + 90.0/51.0) / (1.0 + 1.0/51.0)
	got := ComputeBase(prices, distances)
	if !almostEqual(got, want, 1e-9) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if !almostEqual(got, 99.804, 0.001) {
		t.Fatalf("expected ~99.804, got %v", got)
	}
}

func TestComputeBaseCloserMarketGainsInfluence(t *testing.T) {
	prices := map[string]float64{"A": 100, "B": 50}
	far := ComputeBase(prices, map[string]float64{"A": 80, "B": 10})
	near := ComputeBase(prices, map[string]float64{"A": 20, "B": 10})
	if near <= far {
		t.Fatalf("decreasing A's distance should pull the base toward A's price: near=%v far=%v", near, far)
	}
}

func TestComputeBaseDefaultsAndClamps(t *testing.T) {
	// missing distance defaults to 0, negative clamps to 0
	prices := map[string]float64{"A": 100}
	if got := ComputeBase(prices, map[string]float64{}); got != 100 {
		t.Fatalf("missing distance should weight 1.0, got %v", got)
	}
	if got := ComputeBase(prices, map[string]float64{"A": -5}); got != 100 {
		t.Fatalf("negative distance should clamp to 0, got %v", got)
	}
	// extra distance entries for absent markets are ignored
	if got := ComputeBase(prices, map[string]float64{"A": 0, "Z": 3}); got != 100 {
		t.Fatalf("unused distance entry should not contribute, got %v", got)
	}
}

func TestComputeBaseEmptyPrices(t *testing.T) {
	if got := ComputeBase(map[string]float64{}, map[string]float64{"A": 10}); got != 0 {
		t.Fatalf("empty prices should degenerate to 0, got %v", got)
	}
}

func TestSmooth(t *testing.T) {
	if got := Smooth(100, nil, 0.4); got != 100 {
		t.Fatalf("no previous value should return raw, got %v", got)
	}
	prev := 90.0
	if got := Smooth(100, &prev, 0.4); got != 94.0 {
		t.Fatalf("ewma(100, 90, 0.4) = 94 exactly, got %v", got)
	}
	prev = 50
	if got := Smooth(70, &prev, 1.0); got != 70 {
		t.Fatalf("alpha=1 should follow raw, got %v", got)
	}
}

func TestEstimateNeutralInputs(t *testing.T) {
	res := Estimate(Inputs{
		Prices:             map[string]float64{"Nairobi": 100},
		Distances:          map[string]float64{"Nairobi": 0},
		PrevBase:           nil,
		LogisticsMode:      "wholesale",
		VarietyGradeFactor: 1.0,
	}, DefaultParams())

	if res.Estimate != 100.0 {
		t.Fatalf("expected point estimate 100.0, got %v", res.Estimate)
	}
	if res.NewBase != 100.0 {
		t.Fatalf("expected new base 100.0, got %v", res.NewBase)
	}
	if res.Explain.LogisticsMult != 1.0 {
		t.Fatalf("expected logistics_mult 1.0, got %v", res.Explain.LogisticsMult)
	}
	if res.Explain.BaseSmoothed != 100.0 {
		t.Fatalf("expected base_smoothed 100.0, got %v", res.Explain.BaseSmoothed)
	}
}

func TestEstimateLogisticsOrdering(t *testing.T) {
	in := Inputs{
		Prices:             map[string]float64{"Nairobi": 100},
		Distances:          map[string]float64{"Nairobi": 0},
		VarietyGradeFactor: 1.0,
	}
	p := DefaultParams()

	in.LogisticsMode = "farmgate"
	fg := Estimate(in, p)
	in.LogisticsMode = "wholesale"
	ws := Estimate(in, p)
	in.LogisticsMode = "retail"
	rt := Estimate(in, p)

	if !(fg.Estimate < ws.Estimate && ws.Estimate < rt.Estimate) {
		t.Fatalf("expected farmgate < wholesale < retail, got %v %v %v", fg.Estimate, ws.Estimate, rt.Estimate)
	}
	if fg.Explain.LogisticsMult != 0.90 || ws.Explain.LogisticsMult != 1.00 || rt.Explain.LogisticsMult != 1.20 {
		t.Fatalf("unexpected logistics multipliers: %v %v %v",
			fg.Explain.LogisticsMult, ws.Explain.LogisticsMult, rt.Explain.LogisticsMult)
	}
}

func TestEstimateUnknownLogisticsModeIsNeutral(t *testing.T) {
	in := Inputs{
		Prices:        map[string]float64{"Nairobi": 100},
		Distances:     map[string]float64{"Nairobi": 0},
		LogisticsMode: "warehouse",
	}
	res := Estimate(in, DefaultParams())
	if res.Explain.LogisticsMult != 1.0 {
		t.Fatalf("unknown mode should map to 1.00, got %v", res.Explain.LogisticsMult)
	}
}

func TestEstimateIndexMonotonicity(t *testing.T) {
	base := Inputs{
		Prices:             map[string]float64{"Nairobi": 100},
		Distances:          map[string]float64{"Nairobi": 0},
		LogisticsMode:      "wholesale",
		VarietyGradeFactor: 1.0,
	}
	p := DefaultParams()
	ref := Estimate(base, p).Estimate

	season := base
	season.SeasonIndex = 0.5
	if got := Estimate(season, p).Estimate; got <= ref {
		t.Fatalf("raising season index should raise the estimate: %v <= %v", got, ref)
	}

	shock := base
	shock.ShockIndex = 0.5
	if got := Estimate(shock, p).Estimate; got <= ref {
		t.Fatalf("raising shock index should raise the estimate: %v <= %v", got, ref)
	}

	weather := base
	weather.WeatherIndex = 0.5
	if got := Estimate(weather, p).Estimate; got <= ref {
		t.Fatalf("raising weather index should raise the estimate: %v <= %v", got, ref)
	}
}

func TestEstimateBandContainsPoint(t *testing.T) {
	res := Estimate(Inputs{
		Prices:    map[string]float64{"Nairobi": 100, "Nakuru": 90},
		Distances: map[string]float64{"Nairobi": 0, "Nakuru": 50},
	}, DefaultParams())
	if !(res.Low < res.Estimate && res.Estimate < res.High) {
		t.Fatalf("band must contain the point: [%v, %v] around %v", res.Low, res.High, res.Estimate)
	}
}

func TestEstimateSmoothsAgainstPreviousBase(t *testing.T) {
	prev := 90.0
	res := Estimate(Inputs{
		Prices:    map[string]float64{"Nairobi": 100},
		Distances: map[string]float64{"Nairobi": 0},
		PrevBase:  &prev,
	}, DefaultParams())
	if res.NewBase != 94.0 {
		t.Fatalf("expected smoothed base 94.0, got %v", res.NewBase)
	}
	if res.Estimate != 94.0 {
		t.Fatalf("neutral adjustments should pass the base through, got %v", res.Estimate)
	}
}

func TestEstimateIsDeterministic(t *testing.T) {
	in := Inputs{
		Prices:             map[string]float64{"Nairobi": 101.5, "Nakuru": 88.25, "Nyeri": 97.1},
		Distances:          map[string]float64{"Nairobi": 100, "Nakuru": 80, "Nyeri": 60},
		SeasonIndex:        0.3,
		LogisticsMode:      "retail",
		ShockIndex:         -0.2,
		VarietyGradeFactor: 1.4,
		WeatherIndex:       0.7,
	}
	p := DefaultParams()
	a := Estimate(in, p)
	b := Estimate(in, p)
	if a != b {
		t.Fatalf("identical inputs must reproduce bit-for-bit: %+v vs %+v", a, b)
	}
}

func TestFallbackSigma(t *testing.T) {
	if got := FallbackSigma(100); got != 3.0 {
		t.Fatalf("expected 0.03*100=3.0, got %v", got)
	}
	if got := FallbackSigma(1); got != 0.5 {
		t.Fatalf("expected floor 0.5, got %v", got)
	}
	if got := FallbackSigma(math.Inf(1)); got != 1.0 {
		t.Fatalf("non-finite estimate should fall back to 1.0, got %v", got)
	}
	if got := FallbackSigma(math.NaN()); got != 1.0 {
		t.Fatalf("NaN estimate should fall back to 1.0, got %v", got)
	}
}
