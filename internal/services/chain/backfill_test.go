package chain

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/louwilcox-cloud/Selling-optionscom/internal/domain/models"
)

func TestBackfillNoopInLiveMode(t *testing.T) {
	calls := 0
	b := NewBackfiller(func(ctx context.Context, id string) (*models.PrevSession, error) {
		calls++
		return &models.PrevSession{Close: 9.99}, nil
	}, 4)

	in := []models.NormalizedContract{
		{Identifier: "O:A", Side: models.SideCall, Strike: 100},
	}
	out, n, err := b.Apply(context.Background(), in, models.ModeLive)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 0 || n != 0 {
		t.Fatalf("live mode must not touch the provider, calls=%d modified=%d", calls, n)
	}
	if out[0].LastPrice != 0 {
		t.Fatalf("live-mode zero must survive, got %v", out[0].LastPrice)
	}
}

func TestBackfillRepairsOnlyZeroFields(t *testing.T) {
	b := NewBackfiller(func(ctx context.Context, id string) (*models.PrevSession, error) {
		return &models.PrevSession{Close: 2.5, Volume: 40, HasVolume: true}, nil
	}, 4)

	in := []models.NormalizedContract{
		{Identifier: "O:A", Side: models.SideCall, Strike: 100, LastPrice: 0, Volume: 0, OpenInterest: 0},
		{Identifier: "O:B", Side: models.SideCall, Strike: 105, LastPrice: 0, Volume: 77, OpenInterest: 5},
		{Identifier: "O:C", Side: models.SideCall, Strike: 110, LastPrice: 1.1, Volume: 0, OpenInterest: 5},
	}
	out, n, err := b.Apply(context.Background(), in, models.ModeEndOfDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("modified = %d, want 2", n)
	}
	if out[0].LastPrice != 2.5 || out[0].Volume != 40 {
		t.Fatalf("fully zero contract not repaired: %+v", out[0])
	}
	if out[0].OpenInterest != 0 {
		t.Fatalf("open interest must never be backfilled, got %d", out[0].OpenInterest)
	}
	if out[1].LastPrice != 2.5 || out[1].Volume != 77 {
		t.Fatalf("nonzero volume must be preserved: %+v", out[1])
	}
	if out[2].LastPrice != 1.1 || out[2].Volume != 0 {
		t.Fatalf("priced contract must stay untouched: %+v", out[2])
	}
	// Input slice is never mutated.
	if in[0].LastPrice != 0 {
		t.Fatalf("input slice mutated")
	}
}

func TestBackfillSwallowsPerContractFailures(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	b := NewBackfiller(func(ctx context.Context, id string) (*models.PrevSession, error) {
		mu.Lock()
		seen[id] = true
		mu.Unlock()
		if id == "O:BAD" {
			return nil, errors.New("upstream 500")
		}
		if id == "O:EMPTY" {
			return nil, nil
		}
		return &models.PrevSession{Close: 3.0}, nil
	}, 2)

	in := []models.NormalizedContract{
		{Identifier: "O:BAD", Side: models.SidePut, Strike: 90},
		{Identifier: "O:EMPTY", Side: models.SidePut, Strike: 95},
		{Identifier: "O:OK", Side: models.SidePut, Strike: 100},
	}
	out, n, err := b.Apply(context.Background(), in, models.ModeForcedEOD)
	if err != nil {
		t.Fatalf("per-contract failures must not abort: %v", err)
	}
	if len(seen) != 3 {
		t.Fatalf("all contracts must be attempted, saw %d", len(seen))
	}
	if n != 1 {
		t.Fatalf("modified = %d, want 1", n)
	}
	if out[0].LastPrice != 0 || out[1].LastPrice != 0 {
		t.Fatalf("failed lookups must leave zeros: %+v %+v", out[0], out[1])
	}
	if out[2].LastPrice != 3.0 {
		t.Fatalf("successful lookup not applied: %+v", out[2])
	}
}

func TestBackfillPropagatesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := NewBackfiller(func(ctx context.Context, id string) (*models.PrevSession, error) {
		return &models.PrevSession{Close: 1.0}, nil
	}, 1)

	in := []models.NormalizedContract{
		{Identifier: "O:A", Side: models.SideCall, Strike: 100},
	}
	_, _, err := b.Apply(ctx, in, models.ModeEndOfDay)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}
