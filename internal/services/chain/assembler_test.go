package chain

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/louwilcox-cloud/Selling-optionscom/internal/domain/models"
	"github.com/louwilcox-cloud/Selling-optionscom/internal/domain/repository"
	"github.com/louwilcox-cloud/Selling-optionscom/internal/services/marketclock"
)

type fakeProvider struct {
	snapshotPages []*repository.ChainPage
	snapshotErr   error
	listingPages  []*repository.ChainPage
	listingErr    error
	prev          map[string]*models.PrevSession
}

func (f *fakeProvider) pageAt(pages []*repository.ChainPage, cursor string) (*repository.ChainPage, error) {
	idx := 0
	if cursor != "" {
		if _, err := fmt.Sscanf(cursor, "page-%d", &idx); err != nil {
			return nil, fmt.Errorf("bad cursor %q", cursor)
		}
	}
	if idx >= len(pages) {
		return nil, fmt.Errorf("cursor %q out of range", cursor)
	}
	return pages[idx], nil
}

func (f *fakeProvider) ChainSnapshot(ctx context.Context, symbol, expiration, cursor string) (*repository.ChainPage, error) {
	if f.snapshotErr != nil {
		return nil, f.snapshotErr
	}
	return f.pageAt(f.snapshotPages, cursor)
}

func (f *fakeProvider) ContractListing(ctx context.Context, symbol, expiration, cursor string) (*repository.ChainPage, error) {
	if f.listingErr != nil {
		return nil, f.listingErr
	}
	return f.pageAt(f.listingPages, cursor)
}

func (f *fakeProvider) PrevSession(ctx context.Context, id string) (*models.PrevSession, error) {
	return f.prev[id], nil
}

func (f *fakeProvider) Expirations(ctx context.Context, symbol string) ([]string, error) {
	return nil, nil
}

func (f *fakeProvider) Quote(ctx context.Context, symbol string) (float64, string, error) {
	return 0, "", errors.New("not implemented")
}

func liveClock(t *testing.T) *marketclock.Clock {
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

func eodClock(t *testing.T) *marketclock.Clock {
	t.Helper()
	cal, err := marketclock.NewCalendar("UTC", "09:30", "16:00", nil)
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	return marketclock.NewClock(cal, marketclock.WithNow(func() time.Time {
		return time.Date(2024, 9, 18, 20, 0, 0, 0, time.UTC)
	}))
}

func rawContract(id string, side string, strike, last float64, vol, oi int) repository.RawRecord {
	return repository.RawRecord{
		"ticker":        id,
		"contract_type": side,
		"strike_price":  strike,
		"lastPrice":     last,
		"volume":        vol,
		"open_interest": oi,
	}
}

func newTestAssembler(p repository.ChainProvider, clock *marketclock.Clock) *Assembler {
	bf := NewBackfiller(p.PrevSession, 4)
	return NewAssembler(p, clock, NewNormalizer(), bf)
}

func TestAssembleFollowsAllPages(t *testing.T) {
	// 100 + 100 + 37 records over three pages.
	var pages []*repository.ChainPage
	total := 0
	for pi, count := range []int{100, 100, 37} {
		page := &repository.ChainPage{}
		for i := 0; i < count; i++ {
			total++
			page.Records = append(page.Records,
				rawContract(fmt.Sprintf("O:SPY-%d", total), "call", float64(total), 1.0, 10, 20))
		}
		if pi < 2 {
			page.Cursor = fmt.Sprintf("page-%d", pi+1)
		}
		pages = append(pages, page)
	}
	p := &fakeProvider{snapshotPages: pages}

	oc, err := newTestAssembler(p, liveClock(t)).Assemble(context.Background(), "SPY", "2024-09-20", false)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if len(oc.Calls) != 237 {
		t.Fatalf("calls = %d, want all 237 records across pages", len(oc.Calls))
	}
	if oc.Mode != models.ModeLive || oc.Source != "snapshot" {
		t.Fatalf("mode/source = %s/%s", oc.Mode, oc.Source)
	}
}

func TestAssembleSplitsAndSortsByStrike(t *testing.T) {
	p := &fakeProvider{snapshotPages: []*repository.ChainPage{{
		Records: []repository.RawRecord{
			rawContract("O:C2", "call", 110, 2.0, 5, 5),
			rawContract("O:P1", "put", 95, 1.5, 5, 5),
			rawContract("O:C1", "call", 100, 1.0, 5, 5),
			rawContract("O:P2", "put", 105, 2.5, 5, 5),
		},
	}}}

	oc, err := newTestAssembler(p, liveClock(t)).Assemble(context.Background(), "SPY", "2024-09-20", false)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if len(oc.Calls) != 2 || len(oc.Puts) != 2 {
		t.Fatalf("split = %d calls / %d puts", len(oc.Calls), len(oc.Puts))
	}
	if oc.Calls[0].Strike != 100 || oc.Calls[1].Strike != 110 {
		t.Fatalf("calls not sorted by strike: %v %v", oc.Calls[0].Strike, oc.Calls[1].Strike)
	}
	if oc.Puts[0].Strike != 95 || oc.Puts[1].Strike != 105 {
		t.Fatalf("puts not sorted by strike: %v %v", oc.Puts[0].Strike, oc.Puts[1].Strike)
	}
}

func TestAssembleCountsInvalidRecords(t *testing.T) {
	p := &fakeProvider{snapshotPages: []*repository.ChainPage{{
		Records: []repository.RawRecord{
			rawContract("O:C1", "call", 100, 1.0, 5, 5),
			{"ticker": "O:BAD1", "contract_type": "call"},             // no strike
			{"ticker": "O:BAD2", "strike_price": 50.0},                // no side
			{"ticker": "O:BAD3", "contract_type": "put", "strike_price": -1.0},
		},
	}}}

	oc, err := newTestAssembler(p, liveClock(t)).Assemble(context.Background(), "SPY", "2024-09-20", false)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if oc.Invalid != 3 {
		t.Fatalf("invalid = %d, want 3", oc.Invalid)
	}
	if len(oc.Calls) != 1 || len(oc.Puts) != 0 {
		t.Fatalf("valid split = %d/%d", len(oc.Calls), len(oc.Puts))
	}
}

func TestAssembleEmptyChainIsNotAnError(t *testing.T) {
	p := &fakeProvider{snapshotPages: []*repository.ChainPage{{}}}
	oc, err := newTestAssembler(p, liveClock(t)).Assemble(context.Background(), "ZZZZ", "2024-09-20", false)
	if err != nil {
		t.Fatalf("empty chain must not error: %v", err)
	}
	if oc.Calls == nil || oc.Puts == nil {
		t.Fatalf("sides must be empty slices, not nil")
	}
	if len(oc.Calls) != 0 || len(oc.Puts) != 0 {
		t.Fatalf("expected empty chain")
	}
}

func TestAssembleFallsBackToListing(t *testing.T) {
	p := &fakeProvider{
		snapshotErr: errors.New("upstream 503"),
		listingPages: []*repository.ChainPage{{
			Records: []repository.RawRecord{
				rawContract("O:C1", "call", 100, 0, 0, 0),
			},
		}},
		prev: map[string]*models.PrevSession{
			"O:C1": {Close: 4.2, Volume: 12, HasVolume: true},
		},
	}

	oc, err := newTestAssembler(p, liveClock(t)).Assemble(context.Background(), "SPY", "2024-09-20", false)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if oc.Source != "listing" {
		t.Fatalf("source = %q, want listing", oc.Source)
	}
	// Listing records carry no trade data; end-of-day rules apply so the
	// chain is backfilled even during the live session.
	if !oc.Mode.EndOfDay() {
		t.Fatalf("listing fallback must run under end-of-day rules, mode = %s", oc.Mode)
	}
	if oc.Calls[0].LastPrice != 4.2 || oc.Calls[0].Volume != 12 {
		t.Fatalf("listing contract not backfilled: %+v", oc.Calls[0])
	}
	if oc.Backfilled.Calls != 1 {
		t.Fatalf("backfilled count = %+v", oc.Backfilled)
	}
}

func TestAssembleTotalFailureIsDataUnavailable(t *testing.T) {
	p := &fakeProvider{
		snapshotErr: errors.New("upstream 503"),
		listingErr:  errors.New("upstream 503"),
	}
	_, err := newTestAssembler(p, liveClock(t)).Assemble(context.Background(), "SPY", "2024-09-20", false)
	if !errors.Is(err, models.ErrDataUnavailable) {
		t.Fatalf("want ErrDataUnavailable, got %v", err)
	}
}

func TestAssembleMidPaginationFailureIsDataUnavailable(t *testing.T) {
	p := &fakeProvider{
		snapshotPages: []*repository.ChainPage{{
			Records: []repository.RawRecord{rawContract("O:C1", "call", 100, 1, 1, 1)},
			Cursor:  "page-9",
		}},
		listingErr: errors.New("upstream 503"),
	}
	_, err := newTestAssembler(p, liveClock(t)).Assemble(context.Background(), "SPY", "2024-09-20", false)
	if !errors.Is(err, models.ErrDataUnavailable) {
		t.Fatalf("a truncated chain must be unavailable, got %v", err)
	}
}

func TestAssembleForcedEODBackfills(t *testing.T) {
	p := &fakeProvider{
		snapshotPages: []*repository.ChainPage{{
			Records: []repository.RawRecord{
				rawContract("O:C1", "call", 100, 0, 0, 50),
			},
		}},
		prev: map[string]*models.PrevSession{
			"O:C1": {Close: 3.3, Volume: 7, HasVolume: true},
		},
	}

	oc, err := newTestAssembler(p, liveClock(t)).Assemble(context.Background(), "SPY", "2024-09-20", true)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if oc.Mode != models.ModeForcedEOD {
		t.Fatalf("mode = %s", oc.Mode)
	}
	if oc.Calls[0].LastPrice != 3.3 || oc.Calls[0].Volume != 7 {
		t.Fatalf("forced end-of-day must backfill: %+v", oc.Calls[0])
	}
	if oc.Calls[0].OpenInterest != 50 {
		t.Fatalf("open interest changed: %d", oc.Calls[0].OpenInterest)
	}
}

func TestAssembleEODModeFromClock(t *testing.T) {
	p := &fakeProvider{snapshotPages: []*repository.ChainPage{{
		Records: []repository.RawRecord{rawContract("O:C1", "call", 100, 1, 1, 1)},
	}}}
	oc, err := newTestAssembler(p, eodClock(t)).Assemble(context.Background(), "SPY", "2024-09-20", false)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if oc.Mode != models.ModeEndOfDay {
		t.Fatalf("mode = %s, want eod after the close", oc.Mode)
	}
}
