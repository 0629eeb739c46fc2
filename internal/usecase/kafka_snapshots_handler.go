package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/louwilcox-cloud/Selling-optionscom/internal/domain/models"
	domrepo "github.com/louwilcox-cloud/Selling-optionscom/internal/domain/repository"
	pkgkafka "github.com/louwilcox-cloud/Selling-optionscom/pkg/kafka"
)

// KafkaSnapshotsHandler consumes snapshot messages and writes them to
// storage. Runs when the service is deployed with a Kafka backend plus a
// consumer ingesting into ClickHouse.
type KafkaSnapshotsHandler struct {
	topic   string
	storage domrepo.SnapshotStorage
	metrics domrepo.Metrics
}

func NewKafkaSnapshotsHandler(topic string, storage domrepo.SnapshotStorage, metrics domrepo.Metrics) *KafkaSnapshotsHandler {
	return &KafkaSnapshotsHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *KafkaSnapshotsHandler) Topic() string { return h.topic }

func (h *KafkaSnapshotsHandler) Handle(ctx context.Context, b []byte) error {
	var snap models.SentimentSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}

	start := time.Now()
	err := h.storage.Store(ctx, &snap)
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordSnapshotSent("clickhouse", snap.Symbol)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaSnapshotsHandler)(nil)
