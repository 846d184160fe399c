package votingengine

import (
	"context"
	"errors"
	"testing"
	"time"

	"agora/contexts/civic-participation/voting-engine/application/commands"
	"agora/contexts/civic-participation/voting-engine/domain/entities"
	domainerrors "agora/contexts/civic-participation/voting-engine/domain/errors"
)

func voter(id string) entities.Voter {
	return entities.Voter{VoterID: id, VerificationLevel: 2}
}

func createOpenEvent(t *testing.T, module Module) entities.VoteEvent {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	event, err := module.Lifecycle.CreateVoteEvent(ctx, commands.CreateVoteEventCommand{
		ProcessID: "process-1",
		Title:     "Neighborhood budget",
		Method:    entities.MethodSimpleMajority,
		Options: []commands.OptionSpec{
			{OptionID: "opt-a", Kind: entities.OptionKindProposal, Title: "Park"},
			{OptionID: "opt-b", Kind: entities.OptionKindProposal, Title: "Library"},
		},
		StartsAt:    now.Add(-time.Minute),
		EndsAt:      now.Add(time.Hour),
		Eligibility: entities.Eligibility{MinVerificationLevel: 1},
		CreatedBy:   "admin-1",
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if event.Status != entities.EventStatusPending {
		t.Fatalf("expected pending event, got %s", event.Status)
	}
	if err := module.Lifecycle.OpenEvent(ctx, event.EventID); err != nil {
		t.Fatalf("open event: %v", err)
	}
	return event
}

func TestModuleEndToEndTallyFlow(t *testing.T) {
	module := NewInMemoryModule(nil, nil)
	ctx := context.Background()
	event := createOpenEvent(t, module)

	submissions := map[string]string{
		"voter-1": "opt-a",
		"voter-2": "opt-a",
		"voter-3": "opt-b",
	}
	receipts := make(map[string]string, len(submissions))
	for voterID, optionID := range submissions {
		res, err := module.Submit.SubmitBallot(ctx, commands.SubmitBallotCommand{
			EventID: event.EventID,
			Voter:   voter(voterID),
			Ballot:  entities.RawBallot{Selections: []string{optionID}},
		})
		if err != nil {
			t.Fatalf("submit for %s: %v", voterID, err)
		}
		if res.Replaced {
			t.Fatalf("first submission for %s reported replacement", voterID)
		}
		receipts[voterID] = res.ReceiptHash
	}

	// voter-3 changes their mind; the previous ballot must be superseded,
	// not double counted.
	replacement, err := module.Submit.SubmitBallot(ctx, commands.SubmitBallotCommand{
		EventID: event.EventID,
		Voter:   voter("voter-3"),
		Ballot:  entities.RawBallot{Selections: []string{"opt-a"}},
	})
	if err != nil {
		t.Fatalf("replace ballot: %v", err)
	}
	if !replacement.Replaced {
		t.Fatal("expected replacement to be reported")
	}

	valid, err := module.Results.VerifyReceipt(ctx, event.EventID, "voter-3", replacement.ReceiptHash)
	if err != nil || !valid {
		t.Fatalf("new receipt should verify: valid=%v err=%v", valid, err)
	}
	valid, err = module.Results.VerifyReceipt(ctx, event.EventID, "voter-3", receipts["voter-3"])
	if err != nil || valid {
		t.Fatalf("superseded receipt must not verify: valid=%v err=%v", valid, err)
	}

	view, err := module.Results.GetVoteEvent(ctx, event.EventID)
	if err != nil {
		t.Fatalf("get event view: %v", err)
	}
	if view.Participation != 3 {
		t.Fatalf("expected 3 counted ballots, got %d", view.Participation)
	}

	result, err := module.Lifecycle.CloseAndTally(ctx, event.EventID, "clerk-1")
	if err != nil {
		t.Fatalf("close and tally: %v", err)
	}
	if len(result.WinningOptions) != 1 || result.WinningOptions[0] != "opt-a" {
		t.Fatalf("expected opt-a to win, got %v", result.WinningOptions)
	}
	if !result.MajorityMet {
		t.Fatal("expected unanimous winner to meet majority")
	}
	if result.CountedBy != "clerk-1" {
		t.Fatalf("expected clerk attribution, got %q", result.CountedBy)
	}

	// Re-tallying a completed event returns the stored result unchanged.
	again, err := module.Lifecycle.CloseAndTally(ctx, event.EventID, "clerk-2")
	if err != nil {
		t.Fatalf("re-tally: %v", err)
	}
	if again.AuditHash != result.AuditHash || again.CountedBy != "clerk-1" {
		t.Fatalf("re-tally changed the result: %+v", again)
	}

	stored, err := module.Results.GetResult(ctx, event.EventID)
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if stored.AuditHash != result.AuditHash {
		t.Fatal("stored result diverges from tally output")
	}

	consistent, err := module.Results.VerifyTally(ctx, event.EventID)
	if err != nil || !consistent {
		t.Fatalf("independent recount must match: consistent=%v err=%v", consistent, err)
	}

	// Receipts survive tallying.
	valid, err = module.Results.VerifyReceipt(ctx, event.EventID, "voter-1", receipts["voter-1"])
	if err != nil || !valid {
		t.Fatalf("receipt should outlive the tally: valid=%v err=%v", valid, err)
	}
}

func TestModuleRejectsIneligibleAndLateBallots(t *testing.T) {
	module := NewInMemoryModule(nil, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	event, err := module.Lifecycle.CreateVoteEvent(ctx, commands.CreateVoteEventCommand{
		Title:  "Members only",
		Method: entities.MethodSimpleMajority,
		Options: []commands.OptionSpec{
			{OptionID: "opt-a", Title: "Yes"},
			{OptionID: "opt-b", Title: "No"},
		},
		StartsAt: now.Add(-time.Minute),
		EndsAt:   now.Add(time.Hour),
		Eligibility: entities.Eligibility{
			MinVerificationLevel: 2,
			AllowedGroups:        []string{"district-9"},
		},
		CreatedBy: "admin-1",
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if err := module.Lifecycle.OpenEvent(ctx, event.EventID); err != nil {
		t.Fatalf("open event: %v", err)
	}

	_, err = module.Submit.SubmitBallot(ctx, commands.SubmitBallotCommand{
		EventID: event.EventID,
		Voter:   entities.Voter{VoterID: "voter-1", VerificationLevel: 1, Groups: []string{"district-9"}},
		Ballot:  entities.RawBallot{Selections: []string{"opt-a"}},
	})
	if !errors.Is(err, domainerrors.ErrInsufficientVerification) {
		t.Fatalf("expected verification rejection, got %v", err)
	}

	_, err = module.Submit.SubmitBallot(ctx, commands.SubmitBallotCommand{
		EventID: event.EventID,
		Voter:   entities.Voter{VoterID: "voter-2", VerificationLevel: 3, Groups: []string{"district-4"}},
		Ballot:  entities.RawBallot{Selections: []string{"opt-a"}},
	})
	if !errors.Is(err, domainerrors.ErrNotInAllowedGroup) {
		t.Fatalf("expected group rejection, got %v", err)
	}

	if err := module.Lifecycle.CloseEvent(ctx, event.EventID); err != nil {
		t.Fatalf("close event: %v", err)
	}
	_, err = module.Submit.SubmitBallot(ctx, commands.SubmitBallotCommand{
		EventID: event.EventID,
		Voter:   entities.Voter{VoterID: "voter-3", VerificationLevel: 3, Groups: []string{"district-9"}},
		Ballot:  entities.RawBallot{Selections: []string{"opt-a"}},
	})
	if !errors.Is(err, domainerrors.ErrVotingClosed) {
		t.Fatalf("expected closed rejection, got %v", err)
	}
}

func TestModuleCancelledEventNeverTallies(t *testing.T) {
	module := NewInMemoryModule(nil, nil)
	ctx := context.Background()
	event := createOpenEvent(t, module)

	if _, err := module.Submit.SubmitBallot(ctx, commands.SubmitBallotCommand{
		EventID: event.EventID,
		Voter:   voter("voter-1"),
		Ballot:  entities.RawBallot{Selections: []string{"opt-a"}},
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := module.Lifecycle.CancelEvent(ctx, event.EventID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	// Cancellation is idempotent.
	if err := module.Lifecycle.CancelEvent(ctx, event.EventID); err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}

	if _, err := module.Lifecycle.CloseAndTally(ctx, event.EventID, "clerk-1"); !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Fatalf("expected cancelled event to refuse tallying, got %v", err)
	}
	if _, err := module.Results.GetResult(ctx, event.EventID); !errors.Is(err, domainerrors.ErrResultNotAvailable) {
		t.Fatalf("expected no result for cancelled event, got %v", err)
	}
}

func TestModuleFreezesConfigurationAfterOpening(t *testing.T) {
	module := NewInMemoryModule(nil, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	event, err := module.Lifecycle.CreateVoteEvent(ctx, commands.CreateVoteEventCommand{
		Title:  "Editable",
		Method: entities.MethodSimpleMajority,
		Options: []commands.OptionSpec{
			{OptionID: "opt-a", Title: "Yes"},
			{OptionID: "opt-b", Title: "No"},
		},
		StartsAt:  now.Add(-time.Minute),
		EndsAt:    now.Add(time.Hour),
		CreatedBy: "admin-1",
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}

	update := commands.UpdateVoteEventCommand{
		EventID: event.EventID,
		Title:   "Edited title",
		Options: []commands.OptionSpec{
			{OptionID: "opt-a", Title: "Yes"},
			{OptionID: "opt-b", Title: "No"},
			{OptionID: "opt-c", Title: "Maybe"},
		},
		StartsAt: event.StartsAt,
		EndsAt:   event.EndsAt,
	}
	updated, err := module.Lifecycle.UpdateVoteEvent(ctx, update)
	if err != nil {
		t.Fatalf("update pending event: %v", err)
	}
	if updated.Title != "Edited title" || len(updated.Options) != 3 {
		t.Fatalf("update not applied: %+v", updated)
	}

	if err := module.Lifecycle.OpenEvent(ctx, event.EventID); err != nil {
		t.Fatalf("open event: %v", err)
	}
	if _, err := module.Lifecycle.UpdateVoteEvent(ctx, update); !errors.Is(err, domainerrors.ErrEventImmutable) {
		t.Fatalf("expected open event to be immutable, got %v", err)
	}
}

func TestModuleRejectsDraftSubmission(t *testing.T) {
	module := NewInMemoryModule(nil, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	event, err := module.Lifecycle.CreateVoteEvent(ctx, commands.CreateVoteEventCommand{
		Title:  "Still drafting",
		Method: entities.MethodApproval,
		Options: []commands.OptionSpec{
			{OptionID: "opt-a", Title: "One"},
			{OptionID: "opt-b", Title: "Two"},
		},
		StartsAt:  now.Add(-time.Minute),
		EndsAt:    now.Add(time.Hour),
		CreatedBy: "admin-1",
		Draft:     true,
	})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}

	_, err = module.Submit.SubmitBallot(ctx, commands.SubmitBallotCommand{
		EventID: event.EventID,
		Voter:   voter("voter-1"),
		Ballot:  entities.RawBallot{Selections: []string{"opt-a"}},
	})
	if !errors.Is(err, domainerrors.ErrVotingClosed) {
		t.Fatalf("expected draft to refuse ballots, got %v", err)
	}
	if err := module.Lifecycle.OpenEvent(ctx, event.EventID); !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Fatalf("expected draft to refuse direct open, got %v", err)
	}
}
