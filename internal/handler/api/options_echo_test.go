package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/louwilcox-cloud/Selling-optionscom/internal/domain/models"
	"github.com/louwilcox-cloud/Selling-optionscom/internal/domain/repository"
	icache "github.com/louwilcox-cloud/Selling-optionscom/internal/service/cache"
	"github.com/louwilcox-cloud/Selling-optionscom/internal/services/chain"
	"github.com/louwilcox-cloud/Selling-optionscom/internal/services/marketclock"
	"github.com/louwilcox-cloud/Selling-optionscom/internal/services/sentiment"
	"github.com/louwilcox-cloud/Selling-optionscom/internal/usecase"
	applogger "github.com/louwilcox-cloud/Selling-optionscom/pkg/logger"
)

type stubProvider struct {
	records     []repository.RawRecord
	chainErr    error
	expirations []string
	quote       float64
	quoteSrc    string
	calls       int
}

func (s *stubProvider) ChainSnapshot(ctx context.Context, symbol, expiration, cursor string) (*repository.ChainPage, error) {
	s.calls++
	if s.chainErr != nil {
		return nil, s.chainErr
	}
	return &repository.ChainPage{Records: s.records}, nil
}

func (s *stubProvider) ContractListing(ctx context.Context, symbol, expiration, cursor string) (*repository.ChainPage, error) {
	if s.chainErr != nil {
		return nil, s.chainErr
	}
	return &repository.ChainPage{}, nil
}

func (s *stubProvider) PrevSession(ctx context.Context, id string) (*models.PrevSession, error) {
	return nil, nil
}

func (s *stubProvider) Expirations(ctx context.Context, symbol string) ([]string, error) {
	return s.expirations, nil
}

func (s *stubProvider) Quote(ctx context.Context, symbol string) (float64, string, error) {
	return s.quote, s.quoteSrc, nil
}

type nopMetrics struct{}

func (nopMetrics) RecordSnapshotSent(backend, symbol string) {}
func (nopMetrics) RecordError(kind string)                   {}
func (nopMetrics) RecordConsensus(symbol string, p float64)  {}
func (nopMetrics) RecordLastPrice(symbol string, p float64)  {}
func (nopMetrics) RecordLatency(op string, seconds float64)  {}

func raw(id, side string, strike, last float64, vol, oi int) repository.RawRecord {
	return repository.RawRecord{
		"ticker":        id,
		"contract_type": side,
		"strike_price":  strike,
		"lastPrice":     last,
		"volume":        vol,
		"open_interest": oi,
	}
}

func newTestHandler(t *testing.T, p *stubProvider) (*OptionsEchoHandler, *echo.Echo) {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	cal, err := marketclock.NewCalendar("UTC", "09:30", "16:00", nil)
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	clock := marketclock.NewClock(cal, marketclock.WithNow(func() time.Time {
		return time.Date(2024, 9, 18, 12, 0, 0, 0, time.UTC)
	}))
	asm := chain.NewAssembler(p, clock, chain.NewNormalizer(), chain.NewBackfiller(p.PrevSession, 2))
	proc := usecase.NewSnapshotProcessor(nil, nil, nopMetrics{}, "none")
	quotes := usecase.NewQuoteService(p, time.Minute)
	analyzer := usecase.NewSentimentAnalyzer(asm, sentiment.NewEngine(), quotes, proc, nopMetrics{}, l)
	lister := usecase.NewExpirationLister(p, clock, 20)
	forecast := usecase.NewForecaster(analyzer, lister, 2)

	h := NewOptionsEchoHandler(l, analyzer, lister, quotes, forecast)
	e := echo.New()
	h.RegisterRoutes(e)
	return h, e
}

func doRequest(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSentimentEndpoint(t *testing.T) {
	p := &stubProvider{
		records: []repository.RawRecord{
			raw("O:C", "call", 100, 2, 10, 5),
			raw("O:P", "put", 100, 3, 4, 20),
		},
		quote:    100,
		quoteSrc: "last-trade",
	}
	_, e := newTestHandler(t, p)

	rec := doRequest(e, http.MethodGet, "/api/sentiment?symbol=SPY&date=2024-09-20", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Status int                    `json:"status"`
		Data   map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != 200 {
		t.Fatalf("envelope status = %d", resp.Status)
	}
	if got := resp.Data["symbol"]; got != "SPY" {
		t.Fatalf("symbol = %v", got)
	}
	result, ok := resp.Data["result"].(map[string]interface{})
	if !ok {
		t.Fatalf("result missing: %v", resp.Data)
	}
	if got := result["averagePrediction"]; got != 99.5 {
		t.Fatalf("averagePrediction = %v, want 99.5", got)
	}
}

func TestSentimentValidation(t *testing.T) {
	_, e := newTestHandler(t, &stubProvider{})

	for _, target := range []string{
		"/api/sentiment",
		"/api/sentiment?symbol=SPY",
		"/api/sentiment?symbol=SPY&date=20-09-2024",
		"/api/sentiment?symbol=SPY&date=2024-09-20&mode=bogus",
	} {
		rec := doRequest(e, http.MethodGet, target, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: transport status = %d", target, rec.Code)
		}
		var resp struct {
			Status int `json:"status"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s: decode: %v", target, err)
		}
		if resp.Status != http.StatusBadRequest {
			t.Fatalf("%s: envelope status = %d, want 400", target, resp.Status)
		}
	}
}

func TestSentimentDataUnavailable(t *testing.T) {
	p := &stubProvider{chainErr: context.DeadlineExceeded}
	_, e := newTestHandler(t, p)

	rec := doRequest(e, http.MethodGet, "/api/sentiment?symbol=SPY&date=2024-09-20", "")
	var resp struct {
		Status int `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != http.StatusServiceUnavailable {
		t.Fatalf("envelope status = %d, want 503", resp.Status)
	}
}

func TestSentimentCacheSkipsSecondFetch(t *testing.T) {
	p := &stubProvider{
		records: []repository.RawRecord{raw("O:C", "call", 100, 2, 10, 5)},
		quote:   100, quoteSrc: "last-trade",
	}
	h, e := newTestHandler(t, p)
	h.SetCache(icache.NewTTLCache(), time.Minute)

	first := doRequest(e, http.MethodGet, "/api/sentiment?symbol=SPY&date=2024-09-20", "")
	callsAfterFirst := p.calls
	second := doRequest(e, http.MethodGet, "/api/sentiment?symbol=SPY&date=2024-09-20", "")
	if p.calls != callsAfterFirst {
		t.Fatalf("provider called again on cached request")
	}
	a, b := strings.TrimSpace(first.Body.String()), strings.TrimSpace(second.Body.String())
	if a != b {
		t.Fatalf("cached body differs:\n%s\n%s", a, b)
	}
}

func TestExpirationsEndpoint(t *testing.T) {
	p := &stubProvider{expirations: []string{"2024-10-18", "2024-09-20", "2024-01-19"}}
	_, e := newTestHandler(t, p)

	rec := doRequest(e, http.MethodGet, "/api/expirations?symbol=spy", "")
	var resp struct {
		Data struct {
			Symbol string   `json:"symbol"`
			Dates  []string `json:"dates"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// Past dates filtered, remainder ascending.
	want := []string{"2024-09-20", "2024-10-18"}
	if len(resp.Data.Dates) != len(want) {
		t.Fatalf("dates = %v, want %v", resp.Data.Dates, want)
	}
	for i := range want {
		if resp.Data.Dates[i] != want[i] {
			t.Fatalf("dates = %v, want %v", resp.Data.Dates, want)
		}
	}
}

func TestForecastEndpoint(t *testing.T) {
	p := &stubProvider{
		records: []repository.RawRecord{
			raw("O:C", "call", 100, 2, 10, 5),
			raw("O:P", "put", 100, 3, 4, 20),
		},
		expirations: []string{"2024-09-20"},
		quote:       100,
		quoteSrc:    "last-trade",
	}
	_, e := newTestHandler(t, p)

	rec := doRequest(e, http.MethodPost, "/api/forecast", `{"symbols":["SPY","QQQ"]}`)
	var resp struct {
		Data struct {
			Rows  []map[string]interface{} `json:"rows"`
			Total int64                    `json:"total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Total != 2 || len(resp.Data.Rows) != 2 {
		t.Fatalf("total = %d rows = %d", resp.Data.Total, len(resp.Data.Rows))
	}
	if resp.Data.Rows[0]["symbol"] != "SPY" || resp.Data.Rows[1]["symbol"] != "QQQ" {
		t.Fatalf("row order = %v", resp.Data.Rows)
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, e := newTestHandler(t, &stubProvider{})

	rec := doRequest(e, http.MethodGet, "/api/health", "")
	var resp struct {
		Data map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data["status"] != "ok" {
		t.Fatalf("health = %v", resp.Data)
	}
}
