package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/louwilcox-cloud/Selling-optionscom/internal/domain/models"
	drepo "github.com/louwilcox-cloud/Selling-optionscom/internal/domain/repository"
	"github.com/louwilcox-cloud/Selling-optionscom/internal/services/marketclock"
)

// ExpirationLister returns the upcoming expiration dates for a symbol:
// deduplicated, ascending, today or later, capped at maxDates.
type ExpirationLister struct {
	provider drepo.ChainProvider
	clock    *marketclock.Clock
	maxDates int
}

// NewExpirationLister creates an ExpirationLister.
func NewExpirationLister(provider drepo.ChainProvider, clock *marketclock.Clock, maxDates int) *ExpirationLister {
	if maxDates <= 0 {
		maxDates = 20
	}
	return &ExpirationLister{provider: provider, clock: clock, maxDates: maxDates}
}

// List returns the symbol's upcoming expiration dates.
func (l *ExpirationLister) List(ctx context.Context, symbol string) ([]string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	raw, err := l.provider.Expirations(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: expirations %s: %v", models.ErrDataUnavailable, symbol, err)
	}

	today := l.clock.Today()
	seen := make(map[string]struct{}, len(raw))
	dates := make([]string, 0, len(raw))
	for _, d := range raw {
		// Strictly future: a contract expiring today can no longer be traded
		// toward a target.
		if d == "" || d <= today {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}
	sort.Strings(dates)
	if len(dates) > l.maxDates {
		dates = dates[:l.maxDates]
	}
	return dates, nil
}
