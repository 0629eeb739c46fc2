package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/louwilcox-cloud/Selling-optionscom/internal/domain/models"
	drepo "github.com/louwilcox-cloud/Selling-optionscom/internal/domain/repository"
)

// HistoryReader serves past sentiment snapshots for a symbol.
type HistoryReader interface {
	History(ctx context.Context, symbol string, limit int) ([]*models.SentimentSnapshot, error)
	Health(ctx context.Context) error
}

// SnapshotHistory reads recent snapshots out of the configured storage.
type SnapshotHistory struct {
	storage drepo.SnapshotStorage
	window  time.Duration
}

func NewSnapshotHistory(storage drepo.SnapshotStorage, window time.Duration) *SnapshotHistory {
	if window <= 0 {
		window = 90 * 24 * time.Hour
	}
	return &SnapshotHistory{storage: storage, window: window}
}

func (h *SnapshotHistory) History(ctx context.Context, symbol string, limit int) ([]*models.SentimentSnapshot, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	now := time.Now().UTC()
	rows, err := h.storage.Query(ctx, symbol, now.Add(-h.window), now, limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	return rows, nil
}

func (h *SnapshotHistory) Health(ctx context.Context) error {
	return h.storage.Health(ctx)
}

var _ HistoryReader = (*SnapshotHistory)(nil)
