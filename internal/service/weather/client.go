package weather

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	domsvc "AgriPull/internal/domain/service"
	xhttp "AgriPull/pkg/http"
)

// rainSoftCapMM maps rainfall onto [0,1]: heavy rain (>10mm) lands around
// 0.3+, extreme rain (>=30mm) saturates the index at 1.0.
const rainSoftCapMM = 30.0

// Client fetches current conditions from an OpenWeatherMap-style onecall API.
type Client struct {
	baseURL string
	apiKey  string
	http    *xhttp.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

type onecallResponse struct {
	Current struct {
		Rain struct {
			OneHour float64 `json:"1h"`
		} `json:"rain"`
		Weather []struct {
			ID int `json:"id"`
		} `json:"weather"`
	} `json:"current"`
}

// Fetch retrieves the current weather at a coordinate and normalizes it into
// the estimator's weather index.
func (c *Client) Fetch(ctx context.Context, lat, lon float64) (domsvc.WeatherPayload, error) {
	if c.baseURL == "" || c.apiKey == "" {
		return domsvc.WeatherPayload{}, fmt.Errorf("weather client not configured")
	}
	var resp onecallResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL,
		QueryParams: map[string][]string{
			"lat":     {strconv.FormatFloat(lat, 'f', -1, 64)},
			"lon":     {strconv.FormatFloat(lon, 'f', -1, 64)},
			"appid":   {c.apiKey},
			"units":   {"metric"},
			"exclude": {"minutely"}, // keep payload small
		},
	}, &resp)
	if err != nil {
		return domsvc.WeatherPayload{}, fmt.Errorf("fetch weather: %w", err)
	}

	rain := resp.Current.Rain.OneHour
	code := ""
	if len(resp.Current.Weather) > 0 {
		code = strconv.Itoa(resp.Current.Weather[0].ID)
	}
	return domsvc.WeatherPayload{
		RainMM:       rain,
		WeatherCode:  code,
		WeatherIndex: NormalizeRain(rain),
	}, nil
}

// NormalizeRain maps rainfall in mm onto the [0,1] weather index with a soft
// cap at 30mm.
func NormalizeRain(rainMM float64) float64 {
	if rainMM <= 0 {
		return 0
	}
	return math.Min(1.0, rainMM/rainSoftCapMM)
}

var _ domsvc.WeatherProvider = (*Client)(nil)
