package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/teamsheet/platform/internal/domain"
)

// MessageReader is the part of infra.KafkaConsumer the relay reads from.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// relayedEvent is the subset of a published outbox message the relay inspects.
type relayedEvent struct {
	EventType   string          `json:"eventType"`
	AggregateID string          `json:"aggregateId"`
	TeamID      string          `json:"teamId"`
	Payload     json.RawMessage `json:"payload"`
}

// Relay turns published match events into team announcements. Only suspensions
// and newly opened votes are announced; everything else is skipped.
type Relay struct {
	reader   MessageReader
	notifier Notifier
	logger   *slog.Logger
}

// NewRelay creates a Relay.
func NewRelay(reader MessageReader, notifier Notifier, logger *slog.Logger) *Relay {
	return &Relay{reader: reader, notifier: notifier, logger: logger}
}

// Run reads until ctx is cancelled or the reader fails.
func (r *Relay) Run(ctx context.Context) error {
	for {
		msg, err := r.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		if err := r.Handle(ctx, msg.Value); err != nil {
			r.logger.Warn("relay event failed", "offset", msg.Offset, "error", err)
		}
	}
}

// Handle announces one event when it is worth telling the team about.
func (r *Relay) Handle(ctx context.Context, value []byte) error {
	var evt relayedEvent
	if err := json.Unmarshal(value, &evt); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	text, ok := announcement(evt)
	if !ok {
		return nil
	}
	return r.notifier.Notify(ctx, evt.TeamID, text)
}

func announcement(evt relayedEvent) (string, bool) {
	switch domain.EventType(evt.EventType) {
	case domain.EventMatchStatusChanged:
		var p struct {
			To domain.MatchStatus `json:"to"`
		}
		if json.Unmarshal(evt.Payload, &p) != nil || p.To != domain.MatchSuspended {
			return "", false
		}
		return fmt.Sprintf("Se suspendió el partido #%s.", evt.AggregateID), true
	case domain.EventVotingToggled:
		var p struct {
			Open bool `json:"open"`
		}
		if json.Unmarshal(evt.Payload, &p) != nil || !p.Open {
			return "", false
		}
		return fmt.Sprintf("Ya se puede votar al mejor del partido #%s.", evt.AggregateID), true
	}
	return "", false
}
