package commands

import (
	"context"
	"errors"
	"log/slog"

	application "agora/contexts/civic-participation/voting-engine/application"
	"agora/contexts/civic-participation/voting-engine/domain/audit"
	"agora/contexts/civic-participation/voting-engine/domain/entities"
	domainerrors "agora/contexts/civic-participation/voting-engine/domain/errors"
	"agora/contexts/civic-participation/voting-engine/ports"
)

// SubmitBallotCommand carries one submission attempt. The voter snapshot
// (verification level, groups) comes from upstream identity collaborators.
type SubmitBallotCommand struct {
	EventID string
	Voter   entities.Voter
	Ballot  entities.RawBallot
}

type SubmitBallotResult struct {
	BallotID    string
	ReceiptHash string
	Replaced    bool
}

// SubmitUseCase runs the submission pipeline: eligibility gate, method
// validation, atomic slot write, receipt issuance.
type SubmitUseCase struct {
	Events  ports.EventRepository
	Ballots ports.BallotStore
	Outbox  ports.OutboxWriter
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Logger  *slog.Logger
}

// SubmitBallot accepts or replaces the voter's ballot for an open event.
// Eligibility is evaluated against freshly loaded event state, and the store
// re-checks the open window at commit time, so a close racing the submission
// cannot let a ballot slip in. A lost replace race is retried once before
// surfacing ErrConflict.
func (uc SubmitUseCase) SubmitBallot(
	ctx context.Context,
	cmd SubmitBallotCommand,
) (SubmitBallotResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	if cmd.EventID == "" || cmd.Voter.VoterID == "" {
		return SubmitBallotResult{}, domainerrors.ErrInvalidBallotInput
	}

	event, err := uc.Events.GetEvent(ctx, cmd.EventID)
	if err != nil {
		return SubmitBallotResult{}, err
	}

	now := uc.Clock.Now().UTC()
	if err := CanVote(cmd.Voter, event, now); err != nil {
		logger.Info("ballot rejected by eligibility gate",
			"event", "voting_ballot_rejected",
			"module", "civic-participation/voting-engine",
			"layer", "application",
			"vote_event_id", cmd.EventID,
			"voter_id", cmd.Voter.VoterID,
			"reason", err.Error(),
		)
		return SubmitBallotResult{}, err
	}

	ballot, err := ValidateBallot(event, cmd.Ballot)
	if err != nil {
		logger.Info("ballot failed validation",
			"event", "voting_ballot_invalid",
			"module", "civic-participation/voting-engine",
			"layer", "application",
			"vote_event_id", cmd.EventID,
			"voter_id", cmd.Voter.VoterID,
			"reason", err.Error(),
		)
		return SubmitBallotResult{}, err
	}

	ballotID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return SubmitBallotResult{}, err
	}
	ballot.BallotID = ballotID
	ballot.VoterID = cmd.Voter.VoterID
	ballot.CastAt = now
	ballot.ReceiptHash = audit.Receipt(event.EventID, ballot)

	replaced, err := uc.Ballots.PutBallot(ctx, ballot)
	if errors.Is(err, domainerrors.ErrConflict) {
		// Lost the per-slot race against another write from the same voter;
		// one internal retry reapplies the replace.
		replaced, err = uc.Ballots.PutBallot(ctx, ballot)
	}
	if err != nil {
		logger.Warn("ballot commit failed",
			"event", "voting_ballot_commit_failed",
			"module", "civic-participation/voting-engine",
			"layer", "application",
			"vote_event_id", cmd.EventID,
			"voter_id", cmd.Voter.VoterID,
			"error", err.Error(),
		)
		return SubmitBallotResult{}, err
	}

	eventType := "ballot.accepted"
	if replaced {
		eventType = "ballot.replaced"
	}
	if err := uc.appendEvent(ctx, eventType, event.EventID, map[string]any{
		"vote_event_id": event.EventID,
		"ballot_id":     ballot.BallotID,
		"receipt_hash":  ballot.ReceiptHash,
		"cast_at":       ballot.CastAt,
	}); err != nil {
		return SubmitBallotResult{}, err
	}

	logger.Info("ballot accepted",
		"event", "voting_ballot_accepted",
		"module", "civic-participation/voting-engine",
		"layer", "application",
		"vote_event_id", event.EventID,
		"ballot_id", ballot.BallotID,
		"method", string(event.Method),
		"replaced", replaced,
	)
	return SubmitBallotResult{
		BallotID:    ballot.BallotID,
		ReceiptHash: ballot.ReceiptHash,
		Replaced:    replaced,
	}, nil
}
