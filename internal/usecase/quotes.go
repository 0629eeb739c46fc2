package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	drepo "github.com/louwilcox-cloud/Selling-optionscom/internal/domain/repository"
)

// QuoteService resolves an underlying's current price. Streamed prices are
// held in memory and served while fresh; anything else falls through to the
// REST provider.
type QuoteService struct {
	provider drepo.ChainProvider
	ttl      time.Duration

	mu     sync.RWMutex
	prices map[string]streamedPrice
}

type streamedPrice struct {
	price float64
	at    time.Time
}

// NewQuoteService creates a QuoteService. ttl bounds how long a streamed
// price is considered current.
func NewQuoteService(provider drepo.ChainProvider, ttl time.Duration) *QuoteService {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &QuoteService{
		provider: provider,
		ttl:      ttl,
		prices:   make(map[string]streamedPrice),
	}
}

// Update records a streamed price for symbol.
func (s *QuoteService) Update(symbol string, price float64) {
	if symbol == "" || price <= 0 {
		return
	}
	s.mu.Lock()
	s.prices[symbol] = streamedPrice{price: price, at: time.Now()}
	s.mu.Unlock()
}

// Current returns the symbol's price and the source that supplied it.
func (s *QuoteService) Current(ctx context.Context, symbol string) (float64, string, error) {
	s.mu.RLock()
	p, ok := s.prices[symbol]
	s.mu.RUnlock()
	if ok && time.Since(p.at) < s.ttl {
		return p.price, "stream", nil
	}

	price, source, err := s.provider.Quote(ctx, symbol)
	if err != nil {
		return 0, "", fmt.Errorf("quote %s: %w", symbol, err)
	}
	s.Update(symbol, price)
	return price, source, nil
}
