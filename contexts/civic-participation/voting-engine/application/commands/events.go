package commands

import (
	"context"
	"encoding/json"
	"time"

	"agora/contexts/civic-participation/voting-engine/ports"
)

// Lifecycle and ballot events are partitioned by vote event id so consumers
// observe a stable order per event.
func appendEvent(
	ctx context.Context,
	outbox ports.OutboxWriter,
	idGen ports.IDGenerator,
	eventType string,
	voteEventID string,
	occurredAt time.Time,
	data map[string]any,
) error {
	// Outbox is optional for pure read/test wiring, so nil is treated as no-op.
	if outbox == nil {
		return nil
	}
	eventID, err := idGen.NewID(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return outbox.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:       eventID,
		EventType:     eventType,
		OccurredAt:    occurredAt.UTC(),
		SourceService: "voting-engine",
		SchemaVersion: 1,
		PartitionKey:  voteEventID,
		Data:          payload,
	})
}

func (uc SubmitUseCase) appendEvent(
	ctx context.Context,
	eventType string,
	voteEventID string,
	data map[string]any,
) error {
	return appendEvent(ctx, uc.Outbox, uc.IDGen, eventType, voteEventID, uc.Clock.Now(), data)
}

func (uc LifecycleUseCase) appendEvent(
	ctx context.Context,
	eventType string,
	voteEventID string,
	data map[string]any,
) error {
	return appendEvent(ctx, uc.Outbox, uc.IDGen, eventType, voteEventID, uc.Clock.Now(), data)
}
