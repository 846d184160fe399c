package commands

import (
	"errors"
	"testing"
	"time"

	"agora/contexts/civic-participation/voting-engine/domain/entities"
	domainerrors "agora/contexts/civic-participation/voting-engine/domain/errors"
)

func TestCanVoteChecksVerificationLevel(t *testing.T) {
	now := time.Now().UTC()
	event := entities.VoteEvent{
		EventID:     "evt-1",
		Status:      entities.EventStatusOpen,
		StartsAt:    now.Add(-time.Hour),
		EndsAt:      now.Add(time.Hour),
		Eligibility: entities.Eligibility{MinVerificationLevel: 2},
	}

	err := CanVote(entities.Voter{VoterID: "v1", VerificationLevel: 1}, event, now)
	if !errors.Is(err, domainerrors.ErrInsufficientVerification) {
		t.Fatalf("expected insufficient verification, got %v", err)
	}
	if err := CanVote(entities.Voter{VoterID: "v1", VerificationLevel: 2}, event, now); err != nil {
		t.Fatalf("expected level 2 to pass, got %v", err)
	}
}

func TestCanVoteChecksGroupMembership(t *testing.T) {
	now := time.Now().UTC()
	event := entities.VoteEvent{
		EventID:     "evt-1",
		Status:      entities.EventStatusOpen,
		StartsAt:    now.Add(-time.Hour),
		EndsAt:      now.Add(time.Hour),
		Eligibility: entities.Eligibility{AllowedGroups: []string{"district-5", "district-7"}},
	}

	err := CanVote(entities.Voter{VoterID: "v1", Groups: []string{"district-9"}}, event, now)
	if !errors.Is(err, domainerrors.ErrNotInAllowedGroup) {
		t.Fatalf("expected group denial, got %v", err)
	}
	voter := entities.Voter{VoterID: "v1", Groups: []string{"district-9", "district-7"}}
	if err := CanVote(voter, event, now); err != nil {
		t.Fatalf("expected membership in one group to pass, got %v", err)
	}
}

func TestCanVoteChecksWindowAndStatus(t *testing.T) {
	now := time.Now().UTC()
	voter := entities.Voter{VoterID: "v1"}
	base := entities.VoteEvent{
		EventID:  "evt-1",
		Status:   entities.EventStatusOpen,
		StartsAt: now.Add(-time.Hour),
		EndsAt:   now.Add(time.Hour),
	}

	if err := CanVote(voter, base, now); err != nil {
		t.Fatalf("expected open event to pass, got %v", err)
	}

	closed := base
	closed.Status = entities.EventStatusClosed
	if err := CanVote(voter, closed, now); !errors.Is(err, domainerrors.ErrVotingClosed) {
		t.Fatalf("expected closed status denial, got %v", err)
	}

	ended := base
	ended.EndsAt = now.Add(-time.Minute)
	if err := CanVote(voter, ended, now); !errors.Is(err, domainerrors.ErrVotingClosed) {
		t.Fatalf("expected ended window denial, got %v", err)
	}

	future := base
	future.StartsAt = now.Add(time.Minute)
	if err := CanVote(voter, future, now); !errors.Is(err, domainerrors.ErrVotingClosed) {
		t.Fatalf("expected not-yet-started denial, got %v", err)
	}
}
