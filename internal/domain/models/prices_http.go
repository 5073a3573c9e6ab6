package models

// Requests and responses for the pricing HTTP endpoints. Defined in domain for
// consistency and reuse.

type EstimateRequest struct {
	Location           string             `json:"location" validate:"required"`
	LogisticsMode      string             `json:"logistics_mode" default:"wholesale" validate:"oneof=farmgate wholesale retail"`
	VarietyGradeFactor float64            `json:"variety_grade_factor" default:"1.0" validate:"gte=0.5,lte=2.0"`
	SeasonIndex        float64            `json:"season_index" validate:"gte=-1,lte=1"`
	ShockIndex         float64            `json:"shock_index" validate:"gte=-1,lte=1"`
	Overrides          map[string]float64 `json:"overrides,omitempty"`
	WeatherOverride    *float64           `json:"weather_override,omitempty" validate:"omitempty,gte=0,lte=1"`
}

type EstimateResponse struct {
	Estimate float64   `json:"estimate"`
	Units    string    `json:"units"`
	Range    []float64 `json:"range"`
	Explain  Explain   `json:"explain"`
	Sources  []string  `json:"sources"`
}

// Explain is the audit breakdown of an estimate: the smoothed base and every
// multiplicative factor, each rounded to 3 decimal places.
type Explain struct {
	BaseSmoothed  float64 `json:"base_smoothed"`
	SeasonMult    float64 `json:"season_mult"`
	LogisticsMult float64 `json:"logistics_mult"`
	ShockMult     float64 `json:"shock_mult"`
	WeatherMult   float64 `json:"weather_mult"`
	VarietyMult   float64 `json:"variety_mult"`
}

type WeatherLatestRequest struct {
	Location string `query:"location" json:"location" validate:"required"`
}

type WeatherHistoryRequest struct {
	Location string `query:"location" json:"location" validate:"required"`
	Days     int    `query:"days" json:"days" default:"7" validate:"gte=1,lte=30"`
}

type WeatherResponse struct {
	Timestamp    string  `json:"timestamp"`
	RainMM       float64 `json:"rain_mm"`
	WeatherIndex float64 `json:"weather_index"`
	WeatherCode  string  `json:"weather_code"`
	Source       string  `json:"source"`
}

type WeatherHistoryResponse struct {
	Location      string            `json:"location"`
	DaysRequested int               `json:"days_requested"`
	RecordsFound  int               `json:"records_found"`
	History       []WeatherResponse `json:"history"`
}

// MarketInfo is the /markets listing entry with the latest recorded price.
type MarketInfo struct {
	Name        string       `json:"name"`
	County      string       `json:"county"`
	Lat         float64      `json:"lat"`
	Lon         float64      `json:"lon"`
	LatestPrice *LatestPrice `json:"latest_price"`
}

type LatestPrice struct {
	PriceKg float64 `json:"price_kg"`
	Date    string  `json:"date"`
	Source  string  `json:"source"`
}
