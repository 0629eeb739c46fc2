package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/louwilcox-cloud/Selling-optionscom/internal/domain/models"
	"github.com/louwilcox-cloud/Selling-optionscom/internal/domain/repository"
	pkgkafka "github.com/louwilcox-cloud/Selling-optionscom/pkg/kafka"
	applogger "github.com/louwilcox-cloud/Selling-optionscom/pkg/logger"
)

// SnapshotTable is the ClickHouse table holding computed sentiment snapshots.
const SnapshotTable = "sellingoptions.sentiment_snapshots"

// SnapshotSchema creates the snapshot database and table (idempotent).
var SnapshotSchema = []string{
	`CREATE DATABASE IF NOT EXISTS sellingoptions`,
	`CREATE TABLE IF NOT EXISTS ` + SnapshotTable + ` (
		computed_at   DateTime,
		symbol        String,
		expiration    String,
		mode          String,
		bulls_want    Float64,
		bears_want    Float64,
		consensus     Float64,
		current_price Float64
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(computed_at)
	ORDER BY (symbol, computed_at)`,
}

// ClickHouseSnapshotStore implements SnapshotStorage backed by ClickHouse.
type ClickHouseSnapshotStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// NewClickHouseSnapshotStore creates ClickHouse snapshot storage.
func NewClickHouseSnapshotStore(db *sql.DB, table string) *ClickHouseSnapshotStore {
	if table == "" {
		table = SnapshotTable
	}
	return &ClickHouseSnapshotStore{db: db, table: table}
}

// SetLogger injects a structured logger.
func (s *ClickHouseSnapshotStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *ClickHouseSnapshotStore) Store(ctx context.Context, snap *models.SentimentSnapshot) error {
	q := fmt.Sprintf(
		"INSERT INTO %s (computed_at, symbol, expiration, mode, bulls_want, bears_want, consensus, current_price) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		s.table)
	_, err := s.db.ExecContext(ctx, q,
		snap.ComputedAt,
		snap.Symbol,
		snap.ExpirationDate,
		string(snap.Mode),
		snap.BullsWant,
		snap.BearsWant,
		snap.Consensus,
		snap.CurrentPrice,
	)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse snapshot insert error",
				applogger.String("symbol", snap.Symbol),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

func (s *ClickHouseSnapshotStore) Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.SentimentSnapshot, error) {
	start := time.Now()
	q := fmt.Sprintf(
		"SELECT computed_at, symbol, expiration, mode, bulls_want, bears_want, consensus, current_price FROM %s WHERE symbol = ? AND computed_at >= ? AND computed_at <= ? ORDER BY computed_at DESC LIMIT ?",
		s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, from, to, limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse snapshot query error",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []*models.SentimentSnapshot
	for rows.Next() {
		var snap models.SentimentSnapshot
		var mode string
		if err := rows.Scan(&snap.ComputedAt, &snap.Symbol, &snap.ExpirationDate, &mode,
			&snap.BullsWant, &snap.BearsWant, &snap.Consensus, &snap.CurrentPrice); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.Mode = models.ChainMode(mode)
		out = append(out, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse snapshot query ok",
			applogger.String("symbol", symbol),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *ClickHouseSnapshotStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseSnapshotStore) Close() error {
	return nil // Managed by pkg
}

// KafkaSnapshotPublisher implements SnapshotPublisher for Kafka.
type KafkaSnapshotPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaSnapshotPublisher creates Kafka snapshot publisher.
func NewKafkaSnapshotPublisher(producer *pkgkafka.Producer, topic string) repository.SnapshotPublisher {
	return &KafkaSnapshotPublisher{producer: producer, topic: topic}
}

func (p *KafkaSnapshotPublisher) Publish(ctx context.Context, snap *models.SentimentSnapshot) error {
	// Keyed by symbol so one symbol's snapshots stay ordered per partition.
	return p.producer.Publish(ctx, p.topic, []byte(snap.Symbol), snap)
}

func (p *KafkaSnapshotPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
