package chain

import (
	"context"
	"sync"

	"github.com/louwilcox-cloud/Selling-optionscom/internal/domain/models"
	applogger "github.com/louwilcox-cloud/Selling-optionscom/pkg/logger"
)

// PrevSessionLookup resolves a contract's previous-session aggregate by
// identifier. (nil, nil) means the provider has nothing for it.
type PrevSessionLookup func(ctx context.Context, identifier string) (*models.PrevSession, error)

// Backfiller repairs zero trade fields from prior-session data, but only
// under end-of-day rules. In the live phase a zero means "no trade yet
// today" and is preserved exactly as the normalizer produced it.
type Backfiller struct {
	lookup  PrevSessionLookup
	workers int
	log     *applogger.Logger
}

// NewBackfiller creates a Backfiller running at most workers concurrent
// lookups.
func NewBackfiller(lookup PrevSessionLookup, workers int) *Backfiller {
	if workers <= 0 {
		workers = 8
	}
	return &Backfiller{lookup: lookup, workers: workers}
}

// SetLogger injects a structured logger.
func (b *Backfiller) SetLogger(l *applogger.Logger) { b.log = l }

// Apply returns the contracts with zero fields repaired where the mode
// allows it, plus the number of contracts actually modified. Only fields
// that are exactly zero are ever touched: lastPrice from the prior close,
// volume from the prior volume when present. Open interest is never
// backfilled. Per-contract lookup failures leave that contract untouched and
// never abort the rest; cancellation of ctx aborts with its error so callers
// never mistake a partially-backfilled chain for a complete one.
func (b *Backfiller) Apply(ctx context.Context, contracts []models.NormalizedContract, mode models.ChainMode) ([]models.NormalizedContract, int, error) {
	if !mode.EndOfDay() || len(contracts) == 0 || b.lookup == nil {
		return contracts, 0, nil
	}

	out := make([]models.NormalizedContract, len(contracts))
	copy(out, contracts)

	var (
		wg       sync.WaitGroup
		sem      = make(chan struct{}, b.workers)
		mu       sync.Mutex
		modified int
	)

	for i := range out {
		if out[i].LastPrice != 0 || out[i].Identifier == "" {
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			prev, err := b.lookup(ctx, out[i].Identifier)
			if err != nil {
				// A single contract's failure never aborts the chain.
				if b.log != nil {
					b.log.Debug("backfill lookup failed",
						applogger.String("contract", out[i].Identifier),
						applogger.Error(err),
					)
				}
				return
			}
			if prev == nil || prev.Close <= 0 {
				// Nothing to backfill with; zeros stay zeros.
				return
			}
			changed := false
			if out[i].LastPrice == 0 {
				out[i].LastPrice = prev.Close
				changed = true
			}
			if out[i].Volume == 0 && prev.HasVolume && prev.Volume > 0 {
				out[i].Volume = prev.Volume
				changed = true
			}
			if changed {
				mu.Lock()
				modified++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	return out, modified, nil
}
