package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"agora/contexts/civic-participation/voting-engine/domain/entities"
	domainerrors "agora/contexts/civic-participation/voting-engine/domain/errors"
)

func openEvent(now time.Time) entities.VoteEvent {
	return entities.VoteEvent{
		EventID:  "evt-1",
		Method:   entities.MethodSimpleMajority,
		Options:  []entities.Option{{OptionID: "opt-a"}},
		StartsAt: now.Add(-time.Hour),
		EndsAt:   now.Add(time.Hour),
		Status:   entities.EventStatusOpen,
	}
}

func TestPutBallotKeepsOneBallotPerVoterUnderConcurrency(t *testing.T) {
	now := time.Now().UTC()
	store := NewStore([]entities.VoteEvent{openEvent(now)})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.PutBallot(context.Background(), entities.Ballot{
				BallotID:   fmt.Sprintf("ballot-%02d", i),
				EventID:    "evt-1",
				VoterID:    "voter-1",
				Method:     entities.MethodSimpleMajority,
				Selections: []string{"opt-a"},
				CastAt:     now,
			})
			if err != nil {
				t.Errorf("put ballot failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	count, err := store.CountBallots(context.Background(), "evt-1")
	if err != nil {
		t.Fatalf("count ballots failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one counted ballot, got %d", count)
	}
}

func TestPutBallotRejectsClosedEvent(t *testing.T) {
	now := time.Now().UTC()
	event := openEvent(now)
	event.Status = entities.EventStatusClosed
	store := NewStore([]entities.VoteEvent{event})

	_, err := store.PutBallot(context.Background(), entities.Ballot{
		BallotID:   "ballot-1",
		EventID:    "evt-1",
		VoterID:    "voter-1",
		Method:     entities.MethodSimpleMajority,
		Selections: []string{"opt-a"},
		CastAt:     now,
	})
	if !errors.Is(err, domainerrors.ErrVotingClosed) {
		t.Fatalf("expected voting closed, got %v", err)
	}
}

func TestPutBallotReportsReplacement(t *testing.T) {
	now := time.Now().UTC()
	store := NewStore([]entities.VoteEvent{openEvent(now)})

	ballot := entities.Ballot{
		BallotID:   "ballot-1",
		EventID:    "evt-1",
		VoterID:    "voter-1",
		Method:     entities.MethodSimpleMajority,
		Selections: []string{"opt-a"},
		CastAt:     now,
	}
	replaced, err := store.PutBallot(context.Background(), ballot)
	if err != nil || replaced {
		t.Fatalf("first put: replaced=%v err=%v", replaced, err)
	}
	ballot.BallotID = "ballot-2"
	replaced, err = store.PutBallot(context.Background(), ballot)
	if err != nil || !replaced {
		t.Fatalf("second put: replaced=%v err=%v", replaced, err)
	}
}

func TestTransitionEventIsCompareAndSwap(t *testing.T) {
	now := time.Now().UTC()
	store := NewStore([]entities.VoteEvent{openEvent(now)})

	err := store.TransitionEvent(context.Background(), "evt-1",
		entities.EventStatusOpen, entities.EventStatusClosed, now)
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	err = store.TransitionEvent(context.Background(), "evt-1",
		entities.EventStatusOpen, entities.EventStatusClosed, now)
	if !errors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("expected conflict on stale from-status, got %v", err)
	}
	err = store.TransitionEvent(context.Background(), "evt-missing",
		entities.EventStatusOpen, entities.EventStatusClosed, now)
	if !errors.Is(err, domainerrors.ErrEventNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCompleteTallyRejectsMismatchedResult(t *testing.T) {
	now := time.Now().UTC()
	event := openEvent(now)
	event.Status = entities.EventStatusCounting
	store := NewStore([]entities.VoteEvent{event})

	first := entities.TallyResult{EventID: "evt-1", AuditHash: "digest-1", CountedAt: now}
	if err := store.CompleteTally(context.Background(), first); err != nil {
		t.Fatalf("complete tally failed: %v", err)
	}

	stored, err := store.GetEvent(context.Background(), "evt-1")
	if err != nil {
		t.Fatalf("get event failed: %v", err)
	}
	if stored.Status != entities.EventStatusCompleted {
		t.Fatalf("expected completed status, got %s", stored.Status)
	}

	conflicting := entities.TallyResult{EventID: "evt-1", AuditHash: "digest-2", CountedAt: now}
	if err := store.CompleteTally(context.Background(), conflicting); !errors.Is(err, domainerrors.ErrTallyMismatch) {
		t.Fatalf("expected tally mismatch, got %v", err)
	}

	same := first
	if err := store.CompleteTally(context.Background(), same); err != nil {
		t.Fatalf("idempotent complete failed: %v", err)
	}
}

func TestCompleteTallyRefusesEventNotInCounting(t *testing.T) {
	now := time.Now().UTC()
	for _, status := range []entities.EventStatus{
		entities.EventStatusOpen,
		entities.EventStatusClosed,
		entities.EventStatusCancelled,
	} {
		event := openEvent(now)
		event.Status = status
		store := NewStore([]entities.VoteEvent{event})

		err := store.CompleteTally(context.Background(), entities.TallyResult{
			EventID:   "evt-1",
			AuditHash: "digest-1",
			CountedAt: now,
		})
		if !errors.Is(err, domainerrors.ErrInvalidTransition) {
			t.Fatalf("status %s: expected invalid transition, got %v", status, err)
		}
		if _, found, _ := store.GetResult(context.Background(), "evt-1"); found {
			t.Fatalf("status %s: result persisted despite refusal", status)
		}
		stored, getErr := store.GetEvent(context.Background(), "evt-1")
		if getErr != nil || stored.Status != status {
			t.Fatalf("status %s: event mutated to %s (err %v)", status, stored.Status, getErr)
		}
	}
}

func TestListDueEventsSelectsByWindow(t *testing.T) {
	now := time.Now().UTC()
	pending := entities.VoteEvent{
		EventID:  "evt-pending",
		StartsAt: now.Add(-time.Minute),
		EndsAt:   now.Add(time.Hour),
		Status:   entities.EventStatusPending,
	}
	notYet := entities.VoteEvent{
		EventID:  "evt-later",
		StartsAt: now.Add(time.Hour),
		EndsAt:   now.Add(2 * time.Hour),
		Status:   entities.EventStatusPending,
	}
	ended := entities.VoteEvent{
		EventID:  "evt-ended",
		StartsAt: now.Add(-2 * time.Hour),
		EndsAt:   now.Add(-time.Minute),
		Status:   entities.EventStatusOpen,
	}
	store := NewStore([]entities.VoteEvent{pending, notYet, ended})

	due, err := store.ListDueEvents(context.Background(), now)
	if err != nil {
		t.Fatalf("list due failed: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due events, got %d", len(due))
	}
	if due[0].EventID != "evt-ended" || due[1].EventID != "evt-pending" {
		t.Fatalf("unexpected due order: %s, %s", due[0].EventID, due[1].EventID)
	}
}
