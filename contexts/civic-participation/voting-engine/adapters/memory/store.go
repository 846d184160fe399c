// Package memory is the reference store used by tests and local runs. Every
// port is served from process memory behind one lock, which also gives the
// per-(event, voter) ballot slot its serialized-write discipline.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"agora/contexts/civic-participation/voting-engine/domain/entities"
	domainerrors "agora/contexts/civic-participation/voting-engine/domain/errors"
	"agora/contexts/civic-participation/voting-engine/ports"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

type Store struct {
	mu sync.RWMutex

	events  map[string]entities.VoteEvent
	ballots map[string]map[string]entities.Ballot
	results map[string]entities.TallyResult
	outbox  map[string]outboxRecord
}

func NewStore(seed []entities.VoteEvent) *Store {
	events := make(map[string]entities.VoteEvent, len(seed))
	for _, event := range seed {
		events[event.EventID] = event
	}
	return &Store{
		events:  events,
		ballots: make(map[string]map[string]entities.Ballot),
		results: make(map[string]entities.TallyResult),
		outbox:  make(map[string]outboxRecord),
	}
}

func (s *Store) SaveEvent(_ context.Context, event entities.VoteEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.EventID] = event
	return nil
}

func (s *Store) GetEvent(_ context.Context, eventID string) (entities.VoteEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[eventID]
	if !ok {
		return entities.VoteEvent{}, domainerrors.ErrEventNotFound
	}
	return event, nil
}

func (s *Store) TransitionEvent(
	_ context.Context,
	eventID string,
	from, to entities.EventStatus,
	updatedAt time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[eventID]
	if !ok {
		return domainerrors.ErrEventNotFound
	}
	if event.Status != from {
		return domainerrors.ErrConflict
	}
	if !from.CanTransitionTo(to) {
		return domainerrors.ErrInvalidTransition
	}
	event.Status = to
	event.UpdatedAt = updatedAt.UTC()
	s.events[eventID] = event
	return nil
}

func (s *Store) ListDueEvents(_ context.Context, now time.Time) ([]entities.VoteEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	due := make([]entities.VoteEvent, 0)
	for _, event := range s.events {
		switch event.Status {
		case entities.EventStatusPending:
			if !now.Before(event.StartsAt) {
				due = append(due, event)
			}
		case entities.EventStatusOpen:
			if now.After(event.EndsAt) {
				due = append(due, event)
			}
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].EventID < due[j].EventID
	})
	return due, nil
}

// PutBallot installs the ballot in the voter's slot under the store lock,
// re-checking at commit time that the event is still open. Replacement is
// last write wins; two concurrent submissions from the same voter can never
// both land as counted ballots.
func (s *Store) PutBallot(_ context.Context, ballot entities.Ballot) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[ballot.EventID]
	if !ok {
		return false, domainerrors.ErrEventNotFound
	}
	if !event.IsOpenAt(ballot.CastAt) {
		return false, domainerrors.ErrVotingClosed
	}

	slots, ok := s.ballots[ballot.EventID]
	if !ok {
		slots = make(map[string]entities.Ballot)
		s.ballots[ballot.EventID] = slots
	}
	_, replaced := slots[ballot.VoterID]
	slots[ballot.VoterID] = ballot
	return replaced, nil
}

func (s *Store) GetBallot(_ context.Context, eventID, voterID string) (entities.Ballot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ballot, ok := s.ballots[eventID][voterID]
	return ballot, ok, nil
}

func (s *Store) ListBallots(_ context.Context, eventID string) ([]entities.Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Ballot, 0, len(s.ballots[eventID]))
	for _, ballot := range s.ballots[eventID] {
		items = append(items, ballot)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].BallotID < items[j].BallotID
	})
	return items, nil
}

func (s *Store) CountBallots(_ context.Context, eventID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ballots[eventID]), nil
}

// CompleteTally persists the result and completes the event in one locked
// step. A first result is only accepted while the event is in counting, so a
// cancel racing the tally can never leave a result behind. A pre-existing
// result must match on audit hash; nothing is modified on mismatch.
func (s *Store) CompleteTally(_ context.Context, result entities.TallyResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[result.EventID]
	if !ok {
		return domainerrors.ErrEventNotFound
	}
	if existing, found := s.results[result.EventID]; found {
		if existing.AuditHash != result.AuditHash {
			return domainerrors.ErrTallyMismatch
		}
		if event.Status == entities.EventStatusCounting {
			event.Status = entities.EventStatusCompleted
			event.UpdatedAt = result.CountedAt.UTC()
			s.events[result.EventID] = event
		}
		return nil
	}
	if event.Status != entities.EventStatusCounting {
		return domainerrors.ErrInvalidTransition
	}
	s.results[result.EventID] = result
	event.Status = entities.EventStatusCompleted
	event.UpdatedAt = result.CountedAt.UTC()
	s.events[result.EventID] = event
	return nil
}

func (s *Store) GetResult(_ context.Context, eventID string) (entities.TallyResult, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[eventID]
	return result, ok, nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	outboxID := envelope.EventID
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if _, exists := s.outbox[outboxID]; exists {
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:  outboxID,
			EventType: envelope.EventType,
			Payload:   payload,
			CreatedAt: createdAt,
		},
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		items = append(items, row.message)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].OutboxID < items[j].OutboxID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[outboxID]
	if !ok {
		return domainerrors.ErrConflict
	}
	row.published = true
	s.outbox[outboxID] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.EventRepository = (*Store)(nil)
var _ ports.BallotStore = (*Store)(nil)
var _ ports.ResultRepository = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
