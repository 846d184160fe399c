package queries

import (
	"context"

	"agora/contexts/civic-participation/voting-engine/domain/audit"
	"agora/contexts/civic-participation/voting-engine/domain/entities"
	domainerrors "agora/contexts/civic-participation/voting-engine/domain/errors"
	"agora/contexts/civic-participation/voting-engine/domain/tally"
	"agora/contexts/civic-participation/voting-engine/ports"
)

// EventView is the read model for one vote event, including the live
// participation count while the event is still accepting ballots.
type EventView struct {
	Event         entities.VoteEvent
	Participation int
}

type ResultsUseCase struct {
	Events  ports.EventRepository
	Ballots ports.BallotStore
	Results ports.ResultRepository
	Engine  tally.Engine
	Clock   ports.Clock
}

func (uc ResultsUseCase) GetVoteEvent(ctx context.Context, eventID string) (EventView, error) {
	event, err := uc.Events.GetEvent(ctx, eventID)
	if err != nil {
		return EventView{}, err
	}
	participation, err := uc.Ballots.CountBallots(ctx, eventID)
	if err != nil {
		return EventView{}, err
	}
	return EventView{Event: event, Participation: participation}, nil
}

func (uc ResultsUseCase) GetResult(ctx context.Context, eventID string) (entities.TallyResult, error) {
	if _, err := uc.Events.GetEvent(ctx, eventID); err != nil {
		return entities.TallyResult{}, err
	}
	result, found, err := uc.Results.GetResult(ctx, eventID)
	if err != nil {
		return entities.TallyResult{}, err
	}
	if !found {
		return entities.TallyResult{}, domainerrors.ErrResultNotAvailable
	}
	return result, nil
}

// VerifyReceipt recomputes the acceptance-time hash for the voter's counted
// ballot and compares it with the receipt the voter presents. Receipts stay
// valid for the lifetime of the event, tallying included.
func (uc ResultsUseCase) VerifyReceipt(
	ctx context.Context,
	eventID string,
	voterID string,
	receiptHash string,
) (bool, error) {
	if _, err := uc.Events.GetEvent(ctx, eventID); err != nil {
		return false, err
	}
	ballot, found, err := uc.Ballots.GetBallot(ctx, eventID, voterID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	return audit.VerifyReceipt(eventID, ballot, receiptHash), nil
}

// VerifyTally independently recounts the stored ballot set and reports
// whether the recomputed audit digest matches the persisted result. This is
// the external verifiability contract exposed as a read.
func (uc ResultsUseCase) VerifyTally(ctx context.Context, eventID string) (bool, error) {
	event, err := uc.Events.GetEvent(ctx, eventID)
	if err != nil {
		return false, err
	}
	stored, found, err := uc.Results.GetResult(ctx, eventID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, domainerrors.ErrResultNotAvailable
	}
	ballots, err := uc.Ballots.ListBallots(ctx, eventID)
	if err != nil {
		return false, err
	}
	recomputed, err := uc.Engine.Tally(event, ballots, stored.CountedAt)
	if err != nil {
		return false, err
	}
	return recomputed.AuditHash == stored.AuditHash &&
		recomputed.Participation == stored.Participation, nil
}
