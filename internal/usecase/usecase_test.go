package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/louwilcox-cloud/Selling-optionscom/internal/domain/models"
	"github.com/louwilcox-cloud/Selling-optionscom/internal/domain/repository"
	"github.com/louwilcox-cloud/Selling-optionscom/internal/services/chain"
	"github.com/louwilcox-cloud/Selling-optionscom/internal/services/marketclock"
	"github.com/louwilcox-cloud/Selling-optionscom/internal/services/sentiment"
	applogger "github.com/louwilcox-cloud/Selling-optionscom/pkg/logger"
)

type stubProvider struct {
	records     []repository.RawRecord
	chainErr    error
	expirations []string
	expsErr     error
	quote       float64
	quoteSrc    string
	quoteErr    error
}

func (s *stubProvider) ChainSnapshot(ctx context.Context, symbol, expiration, cursor string) (*repository.ChainPage, error) {
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
	return s.expirations, s.expsErr
}

func (s *stubProvider) Quote(ctx context.Context, symbol string) (float64, string, error) {
	return s.quote, s.quoteSrc, s.quoteErr
}

type nopMetrics struct{}

func (nopMetrics) RecordSnapshotSent(backend, symbol string) {}
func (nopMetrics) RecordError(kind string)                   {}
func (nopMetrics) RecordConsensus(symbol string, p float64)  {}
func (nopMetrics) RecordLastPrice(symbol string, p float64)  {}
func (nopMetrics) RecordLatency(op string, seconds float64)  {}

type captureStore struct {
	stored []*models.SentimentSnapshot
}

func (c *captureStore) Store(ctx context.Context, s *models.SentimentSnapshot) error {
	c.stored = append(c.stored, s)
	return nil
}

func (c *captureStore) Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.SentimentSnapshot, error) {
	return c.stored, nil
}

func (c *captureStore) Health(ctx context.Context) error { return nil }
func (c *captureStore) Close() error                     { return nil }

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func testClock(t *testing.T) *marketclock.Clock {
	t.Helper()
	cal, err := marketclock.NewCalendar("UTC", "09:30", "16:00", nil)
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	// Wednesday 2024-09-18 12:00 UTC, inside the session.
	return marketclock.NewClock(cal, marketclock.WithNow(func() time.Time {
		return time.Date(2024, 9, 18, 12, 0, 0, 0, time.UTC)
	}))
}

func newAnalyzer(t *testing.T, p repository.ChainProvider, store *captureStore, backend string) *SentimentAnalyzer {
	t.Helper()
	asm := chain.NewAssembler(p, testClock(t), chain.NewNormalizer(), chain.NewBackfiller(p.PrevSession, 2))
	proc := NewSnapshotProcessor(nil, store, nopMetrics{}, backend)
	log := testLogger(t)
	return NewSentimentAnalyzer(asm, sentiment.NewEngine(), NewQuoteService(p, time.Minute), proc, nopMetrics{}, log)
}

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

func TestAnalyzeProducesReportAndSnapshot(t *testing.T) {
	p := &stubProvider{
		records: []repository.RawRecord{
			raw("O:C", "call", 100, 2, 10, 5),
			raw("O:P", "put", 100, 3, 4, 20),
		},
		quote:    100,
		quoteSrc: "last-trade",
	}
	store := &captureStore{}
	a := newAnalyzer(t, p, store, "clickhouse")

	r, err := a.Analyze(context.Background(), "spy", "2024-09-20", "auto")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if r.Symbol != "SPY" {
		t.Fatalf("symbol = %q, want normalized upper case", r.Symbol)
	}
	if r.Result.AveragePrediction == nil || *r.Result.AveragePrediction != 99.5 {
		t.Fatalf("averagePrediction = %v", r.Result.AveragePrediction)
	}
	if r.CurrentPrice == nil || *r.CurrentPrice != 100 || r.PriceSource != "last-trade" {
		t.Fatalf("price = %v source = %q", r.CurrentPrice, r.PriceSource)
	}
	if r.PctChange == nil || math.Abs(*r.PctChange+0.5) > 1e-9 {
		t.Fatalf("pctChange = %v, want -0.5", r.PctChange)
	}
	if len(store.stored) != 1 {
		t.Fatalf("snapshots stored = %d, want 1", len(store.stored))
	}
	snap := store.stored[0]
	if snap.Consensus != 99.5 || snap.BullsWant != 102 || snap.BearsWant != 97 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestAnalyzeCountsActiveContracts(t *testing.T) {
	p := &stubProvider{
		records: []repository.RawRecord{
			raw("O:C1", "call", 100, 2, 10, 0),
			raw("O:C2", "call", 105, 1, 0, 0),
			raw("O:C3", "call", 110, 0, 0, 8),
			raw("O:P1", "put", 95, 3, 0, 20),
			raw("O:P2", "put", 90, 0, 0, 0),
		},
		quote:    100,
		quoteSrc: "last-trade",
	}
	a := newAnalyzer(t, p, &captureStore{}, "none")

	r, err := a.Analyze(context.Background(), "SPY", "2024-09-20", "auto")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if r.CallCount != 3 || r.PutCount != 2 {
		t.Fatalf("counts = %d/%d, want 3/2", r.CallCount, r.PutCount)
	}
	// Active means volume > 0 or open interest > 0.
	if r.ActiveCalls != 2 {
		t.Fatalf("activeCalls = %d, want 2", r.ActiveCalls)
	}
	if r.ActivePuts != 1 {
		t.Fatalf("activePuts = %d, want 1", r.ActivePuts)
	}
}

func TestAnalyzeSurvivesQuoteFailure(t *testing.T) {
	p := &stubProvider{
		records: []repository.RawRecord{
			raw("O:C", "call", 100, 2, 10, 5),
			raw("O:P", "put", 100, 3, 4, 20),
		},
		quoteErr: errors.New("quote upstream down"),
	}
	a := newAnalyzer(t, p, &captureStore{}, "none")

	r, err := a.Analyze(context.Background(), "SPY", "2024-09-20", "auto")
	if err != nil {
		t.Fatalf("quote failure must not fail analysis: %v", err)
	}
	if r.CurrentPrice != nil || r.PctChange != nil {
		t.Fatalf("price fields must stay null without a quote: %+v", r)
	}
	if r.Result.AveragePrediction == nil {
		t.Fatalf("prediction must still be computed")
	}
}

func TestAnalyzeUndefinedResultSkipsSnapshot(t *testing.T) {
	p := &stubProvider{
		records: []repository.RawRecord{raw("O:C", "call", 100, 2, 10, 5)},
		quote:   100, quoteSrc: "last-trade",
	}
	store := &captureStore{}
	a := newAnalyzer(t, p, store, "clickhouse")

	r, err := a.Analyze(context.Background(), "SPY", "2024-09-20", "auto")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if r.Result.AveragePrediction != nil {
		t.Fatalf("one-sided chain must leave the prediction undefined")
	}
	if len(store.stored) != 0 {
		t.Fatalf("incomplete results must not be persisted")
	}
}

func TestAnalyzeDataUnavailable(t *testing.T) {
	p := &stubProvider{chainErr: errors.New("upstream 503")}
	a := newAnalyzer(t, p, &captureStore{}, "none")

	_, err := a.Analyze(context.Background(), "SPY", "2024-09-20", "auto")
	if !errors.Is(err, models.ErrDataUnavailable) {
		t.Fatalf("want ErrDataUnavailable, got %v", err)
	}
}

func TestExpirationListerFiltersAndSorts(t *testing.T) {
	// Clock's today is 2024-09-18: past dates and today itself are excluded.
	p := &stubProvider{expirations: []string{
		"2024-10-18", "2024-09-20", "2024-09-20", "2023-01-01", "", "2024-09-27", "2024-09-18",
	}}
	l := NewExpirationLister(p, testClock(t), 20)

	dates, err := l.List(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"2024-09-20", "2024-09-27", "2024-10-18"}
	if len(dates) != len(want) {
		t.Fatalf("dates = %v, want %v", dates, want)
	}
	for i := range want {
		if dates[i] != want[i] {
			t.Fatalf("dates = %v, want %v", dates, want)
		}
	}
}

func TestExpirationListerCap(t *testing.T) {
	p := &stubProvider{expirations: []string{"2024-09-20", "2024-09-27", "2024-10-04"}}
	l := NewExpirationLister(p, testClock(t), 2)

	dates, err := l.List(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(dates) != 2 || dates[1] != "2024-09-27" {
		t.Fatalf("dates = %v, want first two", dates)
	}
}

func TestForecastKeepsOrderAndIsolatesFailures(t *testing.T) {
	good := &stubProvider{
		records: []repository.RawRecord{
			raw("O:C", "call", 100, 2, 10, 5),
			raw("O:P", "put", 100, 3, 4, 20),
		},
		expirations: []string{"2024-09-20"},
		quote:       100, quoteSrc: "last-trade",
	}
	a := newAnalyzer(t, good, &captureStore{}, "none")
	f := NewForecaster(a, NewExpirationLister(good, testClock(t), 20), 2)

	entries := f.Forecast(context.Background(), []string{"SPY", "QQQ"})
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[0].Symbol != "SPY" || entries[1].Symbol != "QQQ" {
		t.Fatalf("order not preserved: %+v", entries)
	}
	if entries[0].Error != "" {
		t.Fatalf("unexpected error: %s", entries[0].Error)
	}
	if entries[0].AvgConsensus != 99.5 {
		t.Fatalf("avgConsensus = %v, want (102+97)/2", entries[0].AvgConsensus)
	}
}

func TestForecastNoExpirations(t *testing.T) {
	p := &stubProvider{expirations: nil, quote: 100, quoteSrc: "last-trade"}
	a := newAnalyzer(t, p, &captureStore{}, "none")
	f := NewForecaster(a, NewExpirationLister(p, testClock(t), 20), 2)

	entries := f.Forecast(context.Background(), []string{"ZZZZ"})
	if entries[0].Error == "" {
		t.Fatalf("expected per-symbol error for missing expirations")
	}
}

func TestQuoteServicePrefersFreshStream(t *testing.T) {
	p := &stubProvider{quote: 50, quoteSrc: "prev-close"}
	q := NewQuoteService(p, time.Minute)

	q.Update("SPY", 101.25)
	price, source, err := q.Current(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if price != 101.25 || source != "stream" {
		t.Fatalf("got %v from %q, want streamed price", price, source)
	}

	// Unknown symbol falls through to the provider.
	price, source, err = q.Current(context.Background(), "QQQ")
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if price != 50 || source != "prev-close" {
		t.Fatalf("got %v from %q, want provider fallback", price, source)
	}
}
