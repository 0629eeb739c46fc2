package usecase

import (
	"context"

	"github.com/louwilcox-cloud/Selling-optionscom/internal/domain/models"
	drepo "github.com/louwilcox-cloud/Selling-optionscom/internal/domain/repository"
)

// QuoteCollector consumes the live quote stream and feeds the quote service.
type QuoteCollector struct {
	stream  drepo.QuoteStream
	quotes  *QuoteService
	metrics drepo.Metrics
}

// NewQuoteCollector creates a new QuoteCollector instance.
func NewQuoteCollector(stream drepo.QuoteStream, quotes *QuoteService, metrics drepo.Metrics) *QuoteCollector {
	return &QuoteCollector{stream: stream, quotes: quotes, metrics: metrics}
}

// IsConnected returns true if the quote stream is connected.
func (c *QuoteCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *QuoteCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	qCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, qCh, errCh)
	return nil
}

func (c *QuoteCollector) consume(ctx context.Context, qCh <-chan *models.StreamQuote, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
			}
		case q := <-qCh:
			if q == nil {
				continue
			}
			c.quotes.Update(q.Symbol, q.Price)
			c.metrics.RecordLastPrice(q.Symbol, q.Price)
		}
	}
}

// Stop closes the stream.
func (c *QuoteCollector) Stop() error { return c.stream.Close() }
