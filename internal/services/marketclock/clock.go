package marketclock

import (
	"context"
	"sync"
	"time"

	"github.com/louwilcox-cloud/Selling-optionscom/internal/domain/models"
	"github.com/louwilcox-cloud/Selling-optionscom/internal/domain/repository"
)

// Clock resolves the current market phase. It asks the provider's market
// status endpoint first and falls back to the pure calendar when the provider
// cannot answer. Results are cached for a short TTL only; callers depend on
// the phase being accurate to the minute.
type Clock struct {
	cal    *Calendar
	status repository.MarketStatusSource // optional
	ttl    time.Duration
	nowFn  func() time.Time

	mu       sync.Mutex
	cached   models.MarketPhase
	cachedAt time.Time
}

// ClockOption configures Clock.
type ClockOption func(*Clock)

// WithStatusSource sets a provider-backed market status source.
func WithStatusSource(s repository.MarketStatusSource) ClockOption {
	return func(c *Clock) { c.status = s }
}

// WithTTL sets the phase cache TTL.
func WithTTL(ttl time.Duration) ClockOption {
	return func(c *Clock) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithNow injects the time source, for deterministic tests.
func WithNow(fn func() time.Time) ClockOption {
	return func(c *Clock) {
		if fn != nil {
			c.nowFn = fn
		}
	}
}

// NewClock creates a market phase clock over the given calendar.
func NewClock(cal *Calendar, opts ...ClockOption) *Clock {
	c := &Clock{
		cal:   cal,
		ttl:   15 * time.Second,
		nowFn: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Phase returns the current market phase.
func (c *Clock) Phase(ctx context.Context) models.MarketPhase {
	now := c.nowFn()

	c.mu.Lock()
	if c.cached != "" && now.Sub(c.cachedAt) < c.ttl {
		p := c.cached
		c.mu.Unlock()
		return p
	}
	c.mu.Unlock()

	phase := c.resolve(ctx, now)

	c.mu.Lock()
	c.cached = phase
	c.cachedAt = now
	c.mu.Unlock()
	return phase
}

// Today returns the current calendar date in the exchange timezone.
func (c *Clock) Today() string {
	return c.cal.Today(c.nowFn())
}

// Calendar returns the underlying trading calendar.
func (c *Clock) Calendar() *Calendar { return c.cal }

func (c *Clock) resolve(ctx context.Context, now time.Time) models.MarketPhase {
	if c.status != nil {
		if open, err := c.status.MarketOpen(ctx); err == nil {
			if open {
				return models.PhaseLive
			}
			return models.PhaseEndOfDay
		}
	}
	return c.cal.PhaseAt(now)
}
