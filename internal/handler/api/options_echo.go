package api

import (
	"encoding/json"
	"errors"
	"time"

	models "github.com/louwilcox-cloud/Selling-optionscom/internal/domain/models"
	icache "github.com/louwilcox-cloud/Selling-optionscom/internal/service/cache"
	"github.com/louwilcox-cloud/Selling-optionscom/internal/services/marketclock"
	"github.com/louwilcox-cloud/Selling-optionscom/internal/usecase"
	xhttp "github.com/louwilcox-cloud/Selling-optionscom/pkg/http"
	xlogger "github.com/louwilcox-cloud/Selling-optionscom/pkg/logger"

	"github.com/labstack/echo/v4"
)

// OptionsEchoHandler exposes the options-analytics endpoints over Echo.
type OptionsEchoHandler struct {
	logger   *xlogger.Logger
	analyzer *usecase.SentimentAnalyzer
	lister   *usecase.ExpirationLister
	quotes   *usecase.QuoteService
	forecast *usecase.Forecaster

	cache    icache.BytesCache
	cacheTTL time.Duration

	history   usecase.HistoryReader
	collector *usecase.QuoteCollector
	clock     *marketclock.Clock
}

func NewOptionsEchoHandler(
	logger *xlogger.Logger,
	analyzer *usecase.SentimentAnalyzer,
	lister *usecase.ExpirationLister,
	quotes *usecase.QuoteService,
	forecast *usecase.Forecaster,
) *OptionsEchoHandler {
	return &OptionsEchoHandler{
		logger:   logger,
		analyzer: analyzer,
		lister:   lister,
		quotes:   quotes,
		forecast: forecast,
		cacheTTL: 30 * time.Second,
	}
}

// SetCache enables response caching for the read endpoints.
func (h *OptionsEchoHandler) SetCache(c icache.BytesCache, ttl time.Duration) {
	h.cache = c
	if ttl > 0 {
		h.cacheTTL = ttl
	}
}

// SetHistory wires the snapshot store behind GET /api/history.
func (h *OptionsEchoHandler) SetHistory(s usecase.HistoryReader) { h.history = s }

// SetCollector wires the stream collector for health reporting.
func (h *OptionsEchoHandler) SetCollector(c *usecase.QuoteCollector) { h.collector = c }

// SetClock wires the market clock so health can report the current phase.
func (h *OptionsEchoHandler) SetClock(c *marketclock.Clock) { h.clock = c }

func (h *OptionsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/sentiment", h.Sentiment)
	g.GET("/expirations", h.Expirations)
	g.GET("/quote", h.Quote)
	g.POST("/forecast", h.Forecast)
	g.GET("/history", h.History)
	g.GET("/health", h.Health)
}

func (h *OptionsEchoHandler) Sentiment(c echo.Context) error {
	req := &models.SentimentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	key := "sentiment:" + req.Symbol + ":" + req.Date + ":" + req.Mode
	if b, ok := h.cached(c, key); ok {
		return c.JSONBlob(200, b)
	}

	res, err := h.analyzer.Analyze(c.Request().Context(), req.Symbol, req.Date, req.Mode)
	if err != nil {
		if errors.Is(err, models.ErrInvalidInput) {
			return xhttp.BadRequestResponse(c, xhttp.BadRequestError(err.Error()))
		}
		if errors.Is(err, models.ErrDataUnavailable) {
			return xhttp.ServiceUnavailableResponse(c, xhttp.ServiceUnavailableError("no option data available for "+req.Symbol))
		}
		h.logger.Error("sentiment usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	h.store(key, res)
	return xhttp.SuccessResponse(c, res)
}

func (h *OptionsEchoHandler) Expirations(c echo.Context) error {
	req := &models.ExpirationsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	key := "expirations:" + req.Symbol
	if b, ok := h.cached(c, key); ok {
		return c.JSONBlob(200, b)
	}

	dates, err := h.lister.List(c.Request().Context(), req.Symbol)
	if err != nil {
		if errors.Is(err, models.ErrDataUnavailable) {
			return xhttp.ServiceUnavailableResponse(c, xhttp.ServiceUnavailableError("no expirations available for "+req.Symbol))
		}
		h.logger.Error("expirations usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	res := map[string]interface{}{"symbol": req.Symbol, "dates": dates}
	h.store(key, res)
	return xhttp.SuccessResponse(c, res)
}

func (h *OptionsEchoHandler) Quote(c echo.Context) error {
	req := &models.QuoteRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	price, source, err := h.quotes.Current(c.Request().Context(), req.Symbol)
	if err != nil {
		if errors.Is(err, models.ErrDataUnavailable) {
			return xhttp.ServiceUnavailableResponse(c, xhttp.ServiceUnavailableError("no quote available for "+req.Symbol))
		}
		h.logger.Error("quote usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"symbol": req.Symbol,
		"price":  price,
		"source": source,
	})
}

func (h *OptionsEchoHandler) Forecast(c echo.Context) error {
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	entries := h.forecast.Forecast(c.Request().Context(), req.Symbols)
	return xhttp.ListResponse(c, entries, int64(len(entries)))
}

func (h *OptionsEchoHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.history == nil {
		return xhttp.ServiceUnavailableResponse(c, xhttp.ServiceUnavailableError("snapshot history is not configured"))
	}

	rows, err := h.history.History(c.Request().Context(), req.Symbol, req.Limit)
	if err != nil {
		h.logger.Error("history query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *OptionsEchoHandler) Health(c echo.Context) error {
	status := map[string]interface{}{"status": "ok"}
	if h.clock != nil {
		status["market_phase"] = string(h.clock.Phase(c.Request().Context()))
	}
	if h.collector != nil {
		status["stream_connected"] = h.collector.IsConnected()
	}
	if h.history != nil {
		if err := h.history.Health(c.Request().Context()); err != nil {
			status["status"] = "degraded"
			status["storage"] = err.Error()
		} else {
			status["storage"] = "ok"
		}
	}
	return xhttp.SuccessResponse(c, status)
}

// cached returns a previously stored response body for key, if any.
func (h *OptionsEchoHandler) cached(c echo.Context, key string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	b, ok, err := h.cache.GetBytes(key)
	if err != nil {
		h.logger.Warn("cache get error", xlogger.Error(err))
		return nil, false
	}
	if ok {
		h.logger.Debug("cache hit", xlogger.String("key", key))
	}
	return b, ok
}

func (h *OptionsEchoHandler) store(key string, v interface{}) {
	if h.cache == nil {
		return
	}
	b, err := json.Marshal(xhttp.APIResponse{Status: 200, Message: "OK", Data: v})
	if err != nil {
		return
	}
	if err := h.cache.SetBytes(key, b, h.cacheTTL); err != nil {
		h.logger.Warn("cache set error", xlogger.Error(err))
	}
}
