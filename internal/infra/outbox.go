package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/teamsheet/platform/internal/repository"
)

// TopicPrefix prefixes every domain event topic; the aggregate type completes it,
// e.g. teamsheet.match.
const TopicPrefix = "teamsheet."

// OutboxPoller polls the event_outbox table and publishes events to Kafka.
type OutboxPoller struct {
	db        repository.DBTX
	repo      repository.OutboxRepository
	publisher Publisher
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

// NewOutboxPoller creates a new outbox poller.
func NewOutboxPoller(db repository.DBTX, repo repository.OutboxRepository, publisher Publisher, interval time.Duration, batchSize int, logger *slog.Logger) *OutboxPoller {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxPoller{
		db:        db,
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run polls until ctx is cancelled.
func (p *OutboxPoller) Run(ctx context.Context) {
	p.logger.Info("outbox poller started", "interval", p.interval, "batch_size", p.batchSize)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox poller stopped")
			return
		case <-ticker.C:
			if _, err := p.Poll(ctx); err != nil {
				p.logger.Error("outbox poll error", "error", err)
			}
		}
	}
}

// OutboxMessage is the Kafka value of a published event.
type OutboxMessage struct {
	EventID       string          `json:"eventId"`
	AggregateType string          `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     string          `json:"eventType"`
	TeamID        string          `json:"teamId"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// Poll publishes one batch and returns how many events were marked published.
// Events are published in sequence order; the first failure stops the batch so a
// team's events never overtake each other.
func (p *OutboxPoller) Poll(ctx context.Context) (int, error) {
	rows, err := p.repo.FetchUnpublished(ctx, p.db, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	ids := make([]int64, 0, len(rows))
	var publishErr error
	for _, row := range rows {
		var headers map[string]string
		if len(row.Headers) > 0 {
			if err := json.Unmarshal(row.Headers, &headers); err != nil {
				p.logger.Warn("outbox headers unreadable", "event_id", row.EventID, "error", err)
			}
		}

		value, err := json.Marshal(OutboxMessage{
			EventID:       row.EventID.String(),
			AggregateType: string(row.AggregateType),
			AggregateID:   row.AggregateID,
			EventType:     string(row.EventType),
			TeamID:        row.PartitionKey,
			Payload:       row.Payload,
			OccurredAt:    row.OccurredAt,
		})
		if err != nil {
			publishErr = fmt.Errorf("marshal event %s: %w", row.EventID, err)
			break
		}

		topic := TopicPrefix + string(row.AggregateType)
		if err := p.publisher.Publish(ctx, topic, []byte(row.PartitionKey), value, headers); err != nil {
			publishErr = fmt.Errorf("publish event %s: %w", row.EventID, err)
			break
		}
		ids = append(ids, row.SeqID)
	}

	if len(ids) > 0 {
		if err := p.repo.MarkPublished(ctx, p.db, ids); err != nil {
			return 0, fmt.Errorf("mark published: %w", err)
		}
		p.logger.Debug("outbox batch published", "count", len(ids))
	}
	return len(ids), publishErr
}
