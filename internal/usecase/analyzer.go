package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/louwilcox-cloud/Selling-optionscom/internal/domain/models"
	drepo "github.com/louwilcox-cloud/Selling-optionscom/internal/domain/repository"
	"github.com/louwilcox-cloud/Selling-optionscom/internal/services/chain"
	"github.com/louwilcox-cloud/Selling-optionscom/internal/services/sentiment"
	applogger "github.com/louwilcox-cloud/Selling-optionscom/pkg/logger"
)

// SentimentAnalyzer orchestrates one sentiment analysis: assemble the chain,
// run the engine, attach the underlying price, and hand the snapshot to the
// backend processor.
type SentimentAnalyzer struct {
	assembler *chain.Assembler
	engine    *sentiment.Engine
	quotes    *QuoteService
	proc      *SnapshotProcessor
	metrics   drepo.Metrics
	log       *applogger.Logger
}

// NewSentimentAnalyzer creates a SentimentAnalyzer.
func NewSentimentAnalyzer(
	assembler *chain.Assembler,
	engine *sentiment.Engine,
	quotes *QuoteService,
	proc *SnapshotProcessor,
	metrics drepo.Metrics,
	log *applogger.Logger,
) *SentimentAnalyzer {
	return &SentimentAnalyzer{
		assembler: assembler,
		engine:    engine,
		quotes:    quotes,
		proc:      proc,
		metrics:   metrics,
		log:       log,
	}
}

// Analyze computes the sentiment report for (symbol, expiration). mode "eod"
// forces end-of-day rules; anything else follows the market clock.
func (a *SentimentAnalyzer) Analyze(ctx context.Context, symbol, expiration, mode string) (*models.SentimentReport, error) {
	start := time.Now()
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", models.ErrInvalidInput)
	}
	forceEOD := mode == "eod"

	oc, err := a.assembler.Assemble(ctx, symbol, expiration, forceEOD)
	if err != nil {
		a.metrics.RecordError("assemble")
		return nil, err
	}

	result := a.engine.Compute(oc)

	report := &models.SentimentReport{
		Symbol:         symbol,
		ExpirationDate: expiration,
		Mode:           oc.Mode,
		Result:         result,
		CallCount:      len(oc.Calls),
		PutCount:       len(oc.Puts),
		ActiveCalls:    models.ActiveContracts(oc.Calls),
		ActivePuts:     models.ActiveContracts(oc.Puts),
		InvalidRecords: oc.Invalid,
		Backfilled:     oc.Backfilled,
		TotalCallVol:   models.TotalVolume(oc.Calls),
		TotalPutVol:    models.TotalVolume(oc.Puts),
		TotalCallOI:    models.TotalOpenInterest(oc.Calls),
		TotalPutOI:     models.TotalOpenInterest(oc.Puts),
	}

	// The quote is context, not a requirement: analysis still answers when
	// the price lookup fails.
	price, source, qerr := a.quotes.Current(ctx, symbol)
	if qerr != nil {
		a.log.Warn("underlying quote unavailable",
			applogger.String("symbol", symbol),
			applogger.Error(qerr),
		)
	} else {
		report.CurrentPrice = &price
		report.PriceSource = source
		if result.AveragePrediction != nil && price > 0 {
			pct := (*result.AveragePrediction - price) / price * 100
			report.PctChange = &pct
		}
	}

	if result.AveragePrediction != nil {
		a.metrics.RecordConsensus(symbol, *result.AveragePrediction)
	}
	a.metrics.RecordLatency("analyze", time.Since(start).Seconds())

	a.publishSnapshot(ctx, report)

	return report, nil
}

// publishSnapshot hands a complete result to the backend processor. Failures
// are logged and never surface to the API caller.
func (a *SentimentAnalyzer) publishSnapshot(ctx context.Context, r *models.SentimentReport) {
	res := r.Result
	if res.BullsWant == nil || res.BearsWant == nil || res.AveragePrediction == nil {
		return
	}
	snap := &models.SentimentSnapshot{
		Symbol:         r.Symbol,
		ExpirationDate: r.ExpirationDate,
		ComputedAt:     time.Now().UTC(),
		Mode:           r.Mode,
		BullsWant:      *res.BullsWant,
		BearsWant:      *res.BearsWant,
		Consensus:      *res.AveragePrediction,
	}
	if r.CurrentPrice != nil {
		snap.CurrentPrice = *r.CurrentPrice
	}
	if err := a.proc.Process(ctx, snap); err != nil {
		a.log.Error("snapshot backend error",
			applogger.String("symbol", r.Symbol),
			applogger.Error(err),
		)
	}
}
