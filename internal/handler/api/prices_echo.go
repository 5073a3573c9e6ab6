package api

import (
	"net/http"
	"sort"
	"time"

	models "AgriPull/internal/domain/models"
	domrepo "AgriPull/internal/domain/repository"
	"AgriPull/internal/service/ratelimit"
	"AgriPull/internal/usecase"
	xhttp "AgriPull/pkg/http"
	xlogger "AgriPull/pkg/logger"

	"github.com/labstack/echo/v4"
)

// PricesEchoHandler implements the Echo-based pricing HTTP API.
type PricesEchoHandler struct {
	logger    *xlogger.Logger
	estimator *usecase.PriceEstimator
	syncer    *usecase.WeatherSyncer
	registry  domrepo.MarketRegistry
	prices    domrepo.PriceStore
	weather   domrepo.WeatherStore
	rl        *ratelimit.Limiter
	feedUp    func() bool
}

func NewPricesEchoHandler(
	logger *xlogger.Logger,
	estimator *usecase.PriceEstimator,
	syncer *usecase.WeatherSyncer,
	registry domrepo.MarketRegistry,
	prices domrepo.PriceStore,
	weather domrepo.WeatherStore,
) *PricesEchoHandler {
	return &PricesEchoHandler{
		logger:    logger,
		estimator: estimator,
		syncer:    syncer,
		registry:  registry,
		prices:    prices,
		weather:   weather,
		rl:        ratelimit.New(),
	}
}

// WithFeedStatus wires the market feed connectivity check into /healthz.
func (h *PricesEchoHandler) WithFeedStatus(fn func() bool) *PricesEchoHandler {
	h.feedUp = fn
	return h
}

func (h *PricesEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api")
	g.POST("/estimate", h.Estimate)
	g.GET("/markets", h.Markets)
	g.GET("/weather/latest", h.WeatherLatest)
	g.GET("/weather/history", h.WeatherHistory)
}

func (h *PricesEchoHandler) Estimate(c echo.Context) error {
	if !h.rl.Allow(c.RealIP()+":estimate", 20, 2) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
	}
	req := &models.EstimateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.estimator.Estimate(c.Request().Context(), req)
	if err != nil {
		h.logger.Error("estimate usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PricesEchoHandler) Markets(c echo.Context) error {
	ctx := c.Request().Context()
	markets, err := h.registry.List(ctx)
	if err != nil {
		h.logger.Error("market registry error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i].Name < markets[j].Name })

	out := make([]models.MarketInfo, 0, len(markets))
	for _, m := range markets {
		info := models.MarketInfo{Name: m.Name, County: m.County, Lat: m.Lat, Lon: m.Lon}
		obs, err := h.prices.Latest(ctx, m.Name)
		if err != nil {
			h.logger.Warn("latest price lookup failed",
				xlogger.String("market", m.Name),
				xlogger.Error(err),
			)
		} else if obs != nil {
			info.LatestPrice = &models.LatestPrice{
				PriceKg: obs.PriceKg,
				Date:    time.Unix(obs.Timestamp, 0).UTC().Format("2006-01-02"),
				Source:  obs.Source,
			}
		}
		out = append(out, info)
	}
	return xhttp.ListResponse(c, out, int64(len(out)))
}

func (h *PricesEchoHandler) WeatherLatest(c echo.Context) error {
	if !h.rl.Allow(c.RealIP()+":weather", 10, 1) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
	}
	req := &models.WeatherLatestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	reading, err := h.weather.Latest(ctx, req.Location)
	if err != nil {
		h.logger.Error("weather lookup error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if reading == nil {
		// no stored reading yet, try a live fetch
		reading, err = h.syncer.FetchOne(ctx, req.Location, time.Now().UTC())
		if err != nil {
			h.logger.Error("weather fetch error",
				xlogger.String("location", req.Location),
				xlogger.Error(err),
			)
			return xhttp.AppErrorResponse(c, err)
		}
	}
	if reading == nil {
		return xhttp.NotFoundResponse(c, "no weather data for location")
	}
	return xhttp.SuccessResponse(c, weatherResponse(reading))
}

func (h *PricesEchoHandler) WeatherHistory(c echo.Context) error {
	if !h.rl.Allow(c.RealIP()+":weather_history", 5, 0.5) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
	}
	req := &models.WeatherHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	from := time.Now().UTC().AddDate(0, 0, -req.Days)
	readings, err := h.weather.History(ctx, req.Location, from, req.Days*24)
	if err != nil {
		h.logger.Error("weather history error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	history := make([]models.WeatherResponse, 0, len(readings))
	for i := range readings {
		history = append(history, weatherResponse(&readings[i]))
	}
	return xhttp.SuccessResponse(c, &models.WeatherHistoryResponse{
		Location:      req.Location,
		DaysRequested: req.Days,
		RecordsFound:  len(history),
		History:       history,
	})
}

func (h *PricesEchoHandler) Health(c echo.Context) error {
	status := map[string]interface{}{"status": "ok"}
	if err := h.prices.Health(c.Request().Context()); err != nil {
		status["status"] = "degraded"
		status["clickhouse"] = err.Error()
	} else {
		status["clickhouse"] = "ok"
	}
	if h.feedUp != nil {
		status["feed_connected"] = h.feedUp()
	}
	if status["status"] != "ok" {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, status)
	}
	return xhttp.SuccessResponse(c, status)
}

func weatherResponse(r *models.WeatherReading) models.WeatherResponse {
	return models.WeatherResponse{
		Timestamp:    r.Timestamp.UTC().Format(time.RFC3339),
		RainMM:       r.RainMM,
		WeatherIndex: r.WeatherIndex,
		WeatherCode:  r.WeatherCode,
		Source:       "openweathermap",
	}
}
