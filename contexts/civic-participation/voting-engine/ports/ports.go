package ports

import (
	"context"
	"time"

	"agora/contexts/civic-participation/voting-engine/domain/entities"
)

// EventRepository persists vote events and drives lifecycle transitions.
type EventRepository interface {
	SaveEvent(ctx context.Context, event entities.VoteEvent) error
	GetEvent(ctx context.Context, eventID string) (entities.VoteEvent, error)
	// TransitionEvent is a compare-and-swap on status: it moves the event
	// from `from` to `to` only if the stored status still equals `from`,
	// returning ErrConflict otherwise.
	TransitionEvent(ctx context.Context, eventID string, from, to entities.EventStatus, updatedAt time.Time) error
	// ListDueEvents returns pending events whose window has started and open
	// events whose window has ended, for the lifecycle scheduler.
	ListDueEvents(ctx context.Context, now time.Time) ([]entities.VoteEvent, error)
}

// BallotStore owns the per-(event, voter) ballot slot.
type BallotStore interface {
	// PutBallot atomically installs the ballot in the voter's slot,
	// replacing any prior ballot (last write wins). The event must be open
	// at commit time; ErrVotingClosed otherwise. The returned flag reports
	// whether a prior ballot was replaced.
	PutBallot(ctx context.Context, ballot entities.Ballot) (bool, error)
	GetBallot(ctx context.Context, eventID, voterID string) (entities.Ballot, bool, error)
	ListBallots(ctx context.Context, eventID string) ([]entities.Ballot, error)
	CountBallots(ctx context.Context, eventID string) (int, error)
}

// ResultRepository persists tally results. Persistence is all-or-nothing: a
// result lands together with the counting -> completed transition or not at
// all.
type ResultRepository interface {
	// CompleteTally stores the result and marks the event completed in one
	// atomic step. If a result already exists it must match on audit hash;
	// ErrTallyMismatch otherwise.
	CompleteTally(ctx context.Context, result entities.TallyResult) error
	GetResult(ctx context.Context, eventID string) (entities.TallyResult, bool, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// EventEnvelope is the canonical shape of events the engine emits through the
// outbox.
type EventEnvelope struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	OccurredAt    time.Time `json:"occurred_at"`
	SourceService string    `json:"source_service"`
	SchemaVersion int       `json:"schema_version"`
	PartitionKey  string    `json:"partition_key"`
	Data          []byte    `json:"data"`
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxMessage struct {
	OutboxID  string
	EventType string
	Payload   []byte
	CreatedAt time.Time
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, envelope EventEnvelope) error
}
