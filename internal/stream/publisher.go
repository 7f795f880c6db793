// Package stream pushes finished rank records onto a Redis stream for
// downstream consumers (dashboards, alerting).
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/maltedev/amazon-rank-tracker/internal/rank"
)

// RedisClient narrows the go-redis client to what the publisher needs,
// so tests can substitute a fake.
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

type Publisher struct {
	client RedisClient
	stream string
	logger *slog.Logger
}

func NewPublisher(client RedisClient, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = "stream:rank_records"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client: client,
		stream: stream,
		logger: logger.With("component", "publisher"),
	}
}

// PublishRecords emits one stream entry per record. A failed entry
// aborts the batch; callers treat publishing as best-effort.
func (p *Publisher) PublishRecords(ctx context.Context, runID uuid.UUID, records []rank.RankRecord) error {
	for _, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record for %s: %w", rec.ASIN, err)
		}

		id, err := p.client.XAdd(ctx, &redis.XAddArgs{
			Stream: p.stream,
			Values: map[string]interface{}{
				"run_id":  runID.String(),
				"keyword": rec.Keyword,
				"asin":    rec.ASIN,
				"status":  string(rec.Status),
				"payload": string(payload),
			},
		}).Result()
		if err != nil {
			return fmt.Errorf("failed to publish record for %s: %w", rec.ASIN, err)
		}

		p.logger.Debug("record published",
			"stream", p.stream,
			"entry_id", id,
			"asin", rec.ASIN,
		)
	}

	p.logger.Info("records published", "stream", p.stream, "count", len(records))
	return nil
}

func (p *Publisher) Close() error {
	return p.client.Close()
}
