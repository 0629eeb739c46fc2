package chain

import (
	"context"
	"fmt"
	"sort"

	"github.com/louwilcox-cloud/Selling-optionscom/internal/domain/models"
	"github.com/louwilcox-cloud/Selling-optionscom/internal/domain/repository"
	"github.com/louwilcox-cloud/Selling-optionscom/internal/services/marketclock"
	applogger "github.com/louwilcox-cloud/Selling-optionscom/pkg/logger"
)

const (
	sourceSnapshot = "snapshot"
	sourceListing  = "listing"
)

// Assembler builds a complete OptionsChain for one (symbol, expiration)
// pair: fetch all pages, normalize, split by side, backfill.
type Assembler struct {
	provider repository.ChainProvider
	clock    *marketclock.Clock
	norm     *Normalizer
	backfill *Backfiller
	maxPages int
	log      *applogger.Logger
}

// AssemblerOption configures Assembler.
type AssemblerOption func(*Assembler)

// WithMaxPages caps pagination depth as a safety limit.
func WithMaxPages(n int) AssemblerOption {
	return func(a *Assembler) {
		if n > 0 {
			a.maxPages = n
		}
	}
}

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) AssemblerOption {
	return func(a *Assembler) { a.log = l }
}

// NewAssembler creates an Assembler.
func NewAssembler(provider repository.ChainProvider, clock *marketclock.Clock, norm *Normalizer, backfill *Backfiller, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		provider: provider,
		clock:    clock,
		norm:     norm,
		backfill: backfill,
		maxPages: 10,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble fetches and normalizes the full chain for (symbol, expiration).
// forceEOD applies end-of-day rules regardless of the actual market phase.
// Returns models.ErrDataUnavailable when the provider could not supply any
// chain data at all; a symbol with zero listed contracts is a valid empty
// chain, not an error.
func (a *Assembler) Assemble(ctx context.Context, symbol, expiration string, forceEOD bool) (*models.OptionsChain, error) {
	mode := models.ModeForcedEOD
	if !forceEOD {
		if a.clock.Phase(ctx) == models.PhaseLive {
			mode = models.ModeLive
		} else {
			mode = models.ModeEndOfDay
		}
	}

	source := sourceSnapshot
	records, err := a.fetchAll(ctx, symbol, expiration, a.provider.ChainSnapshot)
	if err != nil {
		if a.log != nil {
			a.log.Warn("chain snapshot unavailable, trying contract listing",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
		source = sourceListing
		records, err = a.fetchAll(ctx, symbol, expiration, a.provider.ContractListing)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %s: %v", models.ErrDataUnavailable, symbol, expiration, err)
		}
		// The listing path carries no trade data, so every contract depends
		// on prior-session backfill and open interest stays zero.
		if mode == models.ModeLive {
			mode = models.ModeForcedEOD
		}
	}

	oc := &models.OptionsChain{
		Symbol:         symbol,
		ExpirationDate: expiration,
		Calls:          []models.NormalizedContract{},
		Puts:           []models.NormalizedContract{},
		Mode:           mode,
		Source:         source,
	}

	for _, raw := range records {
		c, ok := a.norm.Normalize(raw)
		if !ok {
			oc.Invalid++
			continue
		}
		if c.Side == models.SideCall {
			oc.Calls = append(oc.Calls, c)
		} else {
			oc.Puts = append(oc.Puts, c)
		}
	}

	sortByStrike(oc.Calls)
	sortByStrike(oc.Puts)

	calls, nCalls, err := a.backfill.Apply(ctx, oc.Calls, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: backfill aborted: %v", models.ErrDataUnavailable, err)
	}
	puts, nPuts, err := a.backfill.Apply(ctx, oc.Puts, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: backfill aborted: %v", models.ErrDataUnavailable, err)
	}
	oc.Calls, oc.Puts = calls, puts
	oc.Backfilled = models.BackfillCount{Calls: nCalls, Puts: nPuts}

	if a.log != nil {
		a.log.Debug("chain assembled",
			applogger.String("symbol", symbol),
			applogger.String("date", expiration),
			applogger.String("mode", string(mode)),
			applogger.Int("calls", len(oc.Calls)),
			applogger.Int("puts", len(oc.Puts)),
			applogger.Int("invalid", oc.Invalid),
			applogger.Int("backfilled", nCalls+nPuts),
		)
	}
	return oc, nil
}

type pageFetch func(ctx context.Context, symbol, expiration, cursor string) (*repository.ChainPage, error)

// fetchAll follows continuation cursors until exhausted. A failure on any
// page fails the whole fetch; a truncated chain must never pass for a full
// one.
func (a *Assembler) fetchAll(ctx context.Context, symbol, expiration string, fetch pageFetch) ([]repository.RawRecord, error) {
	var records []repository.RawRecord
	cursor := ""
	for page := 0; page < a.maxPages; page++ {
		p, err := fetch(ctx, symbol, expiration, cursor)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		records = append(records, p.Records...)
		if p.Cursor == "" {
			return records, nil
		}
		cursor = p.Cursor
	}
	return nil, fmt.Errorf("pagination exceeded %d pages", a.maxPages)
}

func sortByStrike(cs []models.NormalizedContract) {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].Strike < cs[j].Strike })
}
