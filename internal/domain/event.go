package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates all domain event types.
type EventType string

const (
	EventMatchCreated       EventType = "teamsheet.match.created"
	EventMatchDeleted       EventType = "teamsheet.match.deleted"
	EventMatchStatusChanged EventType = "teamsheet.match.status.changed"
	EventAttendanceChanged  EventType = "teamsheet.match.attendance.changed"
	EventPaymentRecorded    EventType = "teamsheet.match.payment.recorded"
	EventStatsRecorded      EventType = "teamsheet.match.stats.recorded"
	EventRatingsSubmitted   EventType = "teamsheet.match.ratings.submitted"
	EventVotingToggled      EventType = "teamsheet.match.voting.toggled"
	EventLogisticsAssigned  EventType = "teamsheet.match.logistics.assigned"
	EventThirdHalfItemAdded EventType = "teamsheet.match.thirdhalf.added"
	EventPlayerSaved        EventType = "teamsheet.player.saved"
	EventPlayerDeleted      EventType = "teamsheet.player.deleted"
	EventTeamStatusChanged  EventType = "teamsheet.team.status.changed"
)

// AggregateType enumerates the aggregate root types for outbox events.
type AggregateType string

const (
	AggregateMatch  AggregateType = "match"
	AggregatePlayer AggregateType = "player"
	AggregateTeam   AggregateType = "team"
)

// OutboxDraft is the payload written to the event_outbox table.
type OutboxDraft struct {
	EventID       uuid.UUID       `json:"eventId"`
	AggregateType AggregateType   `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     EventType       `json:"eventType"`
	PartitionKey  string          `json:"partitionKey"`
	Headers       json.RawMessage `json:"headers"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// NewEvent builds an outbox draft partitioned by team so a consumer sees one tenant's
// events in order.
func NewEvent(teamID string, aggregate AggregateType, aggregateID string, eventType EventType, payload interface{}) OutboxDraft {
	body, _ := json.Marshal(payload)
	headers, _ := json.Marshal(map[string]string{"teamId": teamID})
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: aggregate,
		AggregateID:   aggregateID,
		EventType:     eventType,
		PartitionKey:  teamID,
		Headers:       headers,
		Payload:       body,
		OccurredAt:    time.Now(),
	}
}
