// Package worker publishes audit outbox rows to Kafka. The merge transaction
// writes the row; this worker picks it up afterwards, so Kafka delivery never
// holds up or breaks a merge.
package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	defaultPollInterval = time.Second
	defaultBatchSize    = 100
)

// Worker drains the audit_outbox table into a Kafka topic.
type Worker struct {
	db       *sql.DB
	client   *kgo.Client
	topic    string
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

// New constructs an outbox worker. The topic is created if missing so fresh
// environments work without manual Kafka setup.
func New(ctx context.Context, db *sql.DB, brokers []string, topic string, logger *slog.Logger) (*Worker, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	if resp, err := admin.CreateTopic(ctx, 1, 1, nil, topic); err != nil {
		logger.WarnContext(ctx, "could not ensure audit topic", "topic", topic, "error", err)
	} else if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		logger.WarnContext(ctx, "could not ensure audit topic", "topic", topic, "error", resp.Err)
	}

	return &Worker{
		db:       db,
		client:   client,
		topic:    topic,
		logger:   logger,
		interval: defaultPollInterval,
		batch:    defaultBatchSize,
	}, nil
}

// Run polls the outbox until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer w.client.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.publishBatch(ctx); err != nil {
				w.logger.ErrorContext(ctx, "audit outbox publish failed", "error", err)
			}
		}
	}
}

type outboxRow struct {
	id      string
	payload []byte
}

// publishBatch claims unpublished rows, produces them, and marks them
// published in one transaction so a crash re-delivers rather than loses.
func (w *Worker) publishBatch(ctx context.Context) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin outbox tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, payload FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED`,
		w.batch,
	)
	if err != nil {
		return fmt.Errorf("claim outbox rows: %w", err)
	}

	var pending []outboxRow
	for rows.Next() {
		var r outboxRow
		if err := rows.Scan(&r.id, &r.payload); err != nil {
			rows.Close()
			return fmt.Errorf("scan outbox row: %w", err)
		}
		pending = append(pending, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(pending))
	ids := make([]string, 0, len(pending))
	for _, r := range pending {
		records = append(records, &kgo.Record{
			Topic: w.topic,
			Key:   []byte(r.id),
			Value: r.payload,
		})
		ids = append(ids, r.id)
	}

	if err := w.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce audit events: %w", err)
	}

	for _, rowID := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE audit_outbox SET published_at = now() WHERE id = $1`, rowID); err != nil {
			return fmt.Errorf("mark outbox row published: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit outbox tx: %w", err)
	}

	w.logger.DebugContext(ctx, "audit events published", "count", len(pending))
	return nil
}
