package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/louwilcox-cloud/Selling-optionscom/internal/domain/models"
)

// Forecaster computes bulls/bears targets for a set of symbols against each
// symbol's nearest expiration, fanning out with bounded concurrency.
type Forecaster struct {
	analyzer *SentimentAnalyzer
	lister   *ExpirationLister
	workers  int
}

// NewForecaster creates a Forecaster running at most workers symbols at once.
func NewForecaster(analyzer *SentimentAnalyzer, lister *ExpirationLister, workers int) *Forecaster {
	if workers <= 0 {
		workers = 4
	}
	return &Forecaster{analyzer: analyzer, lister: lister, workers: workers}
}

// Forecast returns one entry per requested symbol, in request order. A
// symbol's failure is carried in its entry and never fails the batch.
func (f *Forecaster) Forecast(ctx context.Context, symbols []string) []models.ForecastEntry {
	out := make([]models.ForecastEntry, len(symbols))

	var wg sync.WaitGroup
	sem := make(chan struct{}, f.workers)
	for i, sym := range symbols {
		wg.Add(1)
		go func(i int, sym string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				out[i] = models.ForecastEntry{Symbol: sym, Error: ctx.Err().Error()}
				return
			}
			out[i] = f.forecastOne(ctx, sym)
		}(i, strings.ToUpper(strings.TrimSpace(sym)))
	}
	wg.Wait()

	return out
}

func (f *Forecaster) forecastOne(ctx context.Context, symbol string) models.ForecastEntry {
	entry := models.ForecastEntry{Symbol: symbol}

	dates, err := f.lister.List(ctx, symbol)
	if err != nil {
		entry.Error = err.Error()
		return entry
	}
	if len(dates) == 0 {
		entry.Error = fmt.Sprintf("no upcoming expirations for %s", symbol)
		return entry
	}

	report, err := f.analyzer.Analyze(ctx, symbol, dates[0], "auto")
	if err != nil {
		entry.Error = err.Error()
		return entry
	}

	if report.CurrentPrice != nil {
		entry.CurrentPrice = *report.CurrentPrice
	}
	res := report.Result
	if res.BullsWant != nil {
		entry.BullsWant = *res.BullsWant
	}
	if res.BearsWant != nil {
		entry.BearsWant = *res.BearsWant
	}
	if res.BullsWant != nil && res.BearsWant != nil {
		entry.AvgConsensus = (*res.BullsWant + *res.BearsWant) / 2
	}
	return entry
}
