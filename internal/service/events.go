package service

import (
	"context"
	"log/slog"

	"github.com/teamsheet/platform/internal/domain"
)

// EventSink records domain events after a mutation has been written.
// repository.OutboxWriter is the Postgres implementation.
type EventSink interface {
	Record(ctx context.Context, draft domain.OutboxDraft) error
}

// LogSink writes events to the log. It is used when no outbox table exists.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(_ context.Context, draft domain.OutboxDraft) error {
	s.logger.Info("domain event",
		"event_type", draft.EventType,
		"aggregate_id", draft.AggregateID,
		"team_id", draft.PartitionKey,
	)
	return nil
}

// record emits an event. The mutation is already committed, so a sink failure is
// logged and not returned.
func record(ctx context.Context, sink EventSink, logger *slog.Logger, draft domain.OutboxDraft) {
	if sink == nil {
		return
	}
	if err := sink.Record(ctx, draft); err != nil {
		logger.Error("record event failed", "event_type", draft.EventType, "aggregate_id", draft.AggregateID, "error", err)
	}
}
