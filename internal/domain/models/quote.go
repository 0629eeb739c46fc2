package models

// StreamQuote is one live trade tick for an underlying, as delivered by the
// provider's websocket feed.
type StreamQuote struct {
	Symbol    string
	Price     float64
	Timestamp int64 // unix seconds
}
