package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ordermgmt/ordercore/pkg/kafka"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = time.Second
)

// Relay drains pending outbox rows and publishes them to Kafka. Rows are
// marked sent only after the broker acknowledged the write, so delivery
// is at-least-once and consumers must dedupe on event_id.
type Relay struct {
	pool   *pgxpool.Pool
	writer *kafkago.Writer

	batchSize    int
	pollInterval time.Duration
}

func NewRelay(pool *pgxpool.Pool, writer *kafkago.Writer) *Relay {
	return &Relay{
		pool:         pool,
		writer:       writer,
		batchSize:    defaultBatchSize,
		pollInterval: defaultPollInterval,
	}
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.drain(ctx); err != nil && ctx.Err() == nil {
				slog.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

func (r *Relay) drain(ctx context.Context) error {
	records, err := FetchPending(ctx, r.pool, r.batchSize)
	if err != nil {
		return err
	}

	for _, rec := range records {
		if err := kafka.PublishJSON(ctx, r.writer, rec.Key, json.RawMessage(rec.Payload)); err != nil {
			return err
		}
		if err := MarkSent(ctx, r.pool, rec.ID); err != nil {
			return err
		}
	}

	return nil
}
