package repository

import (
	"context"
	"time"

	"github.com/louwilcox-cloud/Selling-optionscom/internal/domain/models"
)

// RawRecord is one provider contract record before normalization. Field names
// vary across provider response shapes; the normalizer resolves them through
// its alias tables.
type RawRecord map[string]interface{}

// ChainPage is one page of raw contract records. A non-empty Cursor means
// more pages follow.
type ChainPage struct {
	Records []RawRecord
	Cursor  string
}

// ChainProvider is the upstream market-data source.
type ChainProvider interface {
	// ChainSnapshot returns one page of contract records with trade data for
	// (symbol, expiration). An empty cursor requests the first page.
	ChainSnapshot(ctx context.Context, symbol, expiration, cursor string) (*ChainPage, error)

	// ContractListing returns one page of contract reference records without
	// trade data. Fallback for when the snapshot endpoint is unavailable.
	ContractListing(ctx context.Context, symbol, expiration, cursor string) (*ChainPage, error)

	// PrevSession returns a contract's previous-session close and volume by
	// identifier, or (nil, nil) when the provider has no data for it.
	PrevSession(ctx context.Context, identifier string) (*models.PrevSession, error)

	// Expirations returns the expiration dates (YYYY-MM-DD, possibly
	// duplicated and unordered) of the symbol's listed contracts.
	Expirations(ctx context.Context, symbol string) ([]string, error)

	// Quote returns the underlying's current or most recent price and the
	// name of the source that supplied it.
	Quote(ctx context.Context, symbol string) (float64, string, error)
}

// MarketStatusSource reports whether the regular session is open, per the
// provider. Errors fall back to the pure calendar clock.
type MarketStatusSource interface {
	MarketOpen(ctx context.Context) (bool, error)
}

// QuoteStream is a live price feed for underlyings.
type QuoteStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.StreamQuote, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// SnapshotPublisher publishes computed sentiment snapshots downstream.
type SnapshotPublisher interface {
	Publish(ctx context.Context, s *models.SentimentSnapshot) error
	Close() error
}

// SnapshotStorage persists sentiment snapshots and serves history queries.
type SnapshotStorage interface {
	Store(ctx context.Context, s *models.SentimentSnapshot) error
	Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.SentimentSnapshot, error)
	Health(ctx context.Context) error
	Close() error
}

// Metrics records operational metrics.
type Metrics interface {
	RecordSnapshotSent(backend, symbol string)
	RecordError(kind string)
	RecordConsensus(symbol string, price float64)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
