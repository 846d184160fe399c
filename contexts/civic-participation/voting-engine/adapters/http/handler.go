package httpadapter

import (
	"context"
	"log/slog"

	"agora/contexts/civic-participation/voting-engine/application/commands"
	"agora/contexts/civic-participation/voting-engine/application/queries"
	"agora/contexts/civic-participation/voting-engine/domain/entities"
	httptransport "agora/contexts/civic-participation/voting-engine/transport/http"
)

type Handler struct {
	Lifecycle commands.LifecycleUseCase
	Ballots   commands.SubmitUseCase
	Results   queries.ResultsUseCase
	Logger    *slog.Logger
}

func (h Handler) CreateVoteEventHandler(
	ctx context.Context,
	actorID string,
	req httptransport.CreateVoteEventRequest,
) (httptransport.VoteEventResponse, error) {
	options := make([]commands.OptionSpec, 0, len(req.Options))
	for _, option := range req.Options {
		options = append(options, commands.OptionSpec{
			OptionID: option.OptionID,
			Kind:     entities.OptionKind(option.Kind),
			Title:    option.Title,
			Cost:     option.Cost,
		})
	}
	event, err := h.Lifecycle.CreateVoteEvent(ctx, commands.CreateVoteEventCommand{
		ProcessID:   req.ProcessID,
		Title:       req.Title,
		Description: req.Description,
		Method:      entities.Method(req.Method),
		Options:     options,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		Eligibility: entities.Eligibility{
			MinVerificationLevel: req.Eligibility.MinVerificationLevel,
			AllowedGroups:        req.Eligibility.AllowedGroups,
		},
		Params: entities.VoteParams{
			MinOptions:               req.Params.MinOptions,
			MaxOptions:               req.Params.MaxOptions,
			TotalBudget:              req.Params.TotalBudget,
			Quorum:                   req.Params.Quorum,
			MajorityThresholdPercent: req.Params.MajorityThresholdPercent,
		},
		CreatedBy: actorID,
		Draft:     req.Draft,
	})
	if err != nil {
		return httptransport.VoteEventResponse{}, err
	}
	return mapEvent(event, 0), nil
}

func (h Handler) UpdateVoteEventHandler(
	ctx context.Context,
	eventID string,
	req httptransport.UpdateVoteEventRequest,
) (httptransport.VoteEventResponse, error) {
	options := make([]commands.OptionSpec, 0, len(req.Options))
	for _, option := range req.Options {
		options = append(options, commands.OptionSpec{
			OptionID: option.OptionID,
			Kind:     entities.OptionKind(option.Kind),
			Title:    option.Title,
			Cost:     option.Cost,
		})
	}
	event, err := h.Lifecycle.UpdateVoteEvent(ctx, commands.UpdateVoteEventCommand{
		EventID:     eventID,
		Title:       req.Title,
		Description: req.Description,
		Options:     options,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		Eligibility: entities.Eligibility{
			MinVerificationLevel: req.Eligibility.MinVerificationLevel,
			AllowedGroups:        req.Eligibility.AllowedGroups,
		},
		Params: entities.VoteParams{
			MinOptions:               req.Params.MinOptions,
			MaxOptions:               req.Params.MaxOptions,
			TotalBudget:              req.Params.TotalBudget,
			Quorum:                   req.Params.Quorum,
			MajorityThresholdPercent: req.Params.MajorityThresholdPercent,
		},
	})
	if err != nil {
		return httptransport.VoteEventResponse{}, err
	}
	return mapEvent(event, 0), nil
}

func (h Handler) GetVoteEventHandler(ctx context.Context, eventID string) (httptransport.VoteEventResponse, error) {
	view, err := h.Results.GetVoteEvent(ctx, eventID)
	if err != nil {
		return httptransport.VoteEventResponse{}, err
	}
	return mapEvent(view.Event, view.Participation), nil
}

func (h Handler) OpenVoteEventHandler(ctx context.Context, eventID string) error {
	return h.Lifecycle.OpenEvent(ctx, eventID)
}

func (h Handler) CancelVoteEventHandler(ctx context.Context, eventID string) error {
	return h.Lifecycle.CancelEvent(ctx, eventID)
}

func (h Handler) SubmitBallotHandler(
	ctx context.Context,
	eventID string,
	req httptransport.SubmitBallotRequest,
) (httptransport.SubmitBallotResponse, error) {
	rankings := make([]entities.RankedPreference, 0, len(req.Rankings))
	for optionID, rank := range req.Rankings {
		rankings = append(rankings, entities.RankedPreference{OptionID: optionID, Rank: rank})
	}
	result, err := h.Ballots.SubmitBallot(ctx, commands.SubmitBallotCommand{
		EventID: eventID,
		Voter: entities.Voter{
			VoterID:           req.VoterID,
			VerificationLevel: req.VerificationLevel,
			Groups:            req.Groups,
		},
		Ballot: entities.RawBallot{
			Selections:  req.Selections,
			Rankings:    rankings,
			Weights:     req.Weights,
			Allocations: req.Allocations,
		},
	})
	if err != nil {
		return httptransport.SubmitBallotResponse{}, err
	}
	return httptransport.SubmitBallotResponse{
		BallotID:    result.BallotID,
		ReceiptHash: result.ReceiptHash,
		Replaced:    result.Replaced,
	}, nil
}

func (h Handler) CloseAndTallyHandler(
	ctx context.Context,
	eventID string,
	req httptransport.TallyActionRequest,
) (httptransport.TallyResultResponse, error) {
	countedBy := req.CountedBy
	if countedBy == "" {
		countedBy = "api"
	}
	result, err := h.Lifecycle.CloseAndTally(ctx, eventID, countedBy)
	if err != nil {
		return httptransport.TallyResultResponse{}, err
	}
	return mapResult(result), nil
}

func (h Handler) GetResultHandler(ctx context.Context, eventID string) (httptransport.TallyResultResponse, error) {
	result, err := h.Results.GetResult(ctx, eventID)
	if err != nil {
		return httptransport.TallyResultResponse{}, err
	}
	return mapResult(result), nil
}

func (h Handler) VerifyReceiptHandler(
	ctx context.Context,
	eventID string,
	req httptransport.VerifyReceiptRequest,
) (httptransport.VerifyReceiptResponse, error) {
	valid, err := h.Results.VerifyReceipt(ctx, eventID, req.VoterID, req.ReceiptHash)
	if err != nil {
		return httptransport.VerifyReceiptResponse{}, err
	}
	return httptransport.VerifyReceiptResponse{Valid: valid}, nil
}

func (h Handler) VerifyTallyHandler(ctx context.Context, eventID string) (httptransport.VerifyTallyResponse, error) {
	consistent, err := h.Results.VerifyTally(ctx, eventID)
	if err != nil {
		return httptransport.VerifyTallyResponse{}, err
	}
	return httptransport.VerifyTallyResponse{Consistent: consistent}, nil
}

func mapEvent(event entities.VoteEvent, participation int) httptransport.VoteEventResponse {
	options := make([]httptransport.OptionResponse, 0, len(event.Options))
	for _, option := range event.Options {
		options = append(options, httptransport.OptionResponse{
			OptionID: option.OptionID,
			Kind:     string(option.Kind),
			Title:    option.Title,
			Cost:     option.Cost,
		})
	}
	return httptransport.VoteEventResponse{
		EventID:     event.EventID,
		ProcessID:   event.ProcessID,
		Title:       event.Title,
		Description: event.Description,
		Method:      string(event.Method),
		Options:     options,
		StartsAt:    event.StartsAt,
		EndsAt:      event.EndsAt,
		Eligibility: httptransport.EligibilityRequest{
			MinVerificationLevel: event.Eligibility.MinVerificationLevel,
			AllowedGroups:        event.Eligibility.AllowedGroups,
		},
		Params: httptransport.VoteParamsRequest{
			MinOptions:               event.Params.MinOptions,
			MaxOptions:               event.Params.MaxOptions,
			TotalBudget:              event.Params.TotalBudget,
			Quorum:                   event.Params.Quorum,
			MajorityThresholdPercent: event.Params.MajorityThresholdPercent,
		},
		Status:        string(event.Status),
		Participation: participation,
		CreatedBy:     event.CreatedBy,
		CreatedAt:     event.CreatedAt,
		UpdatedAt:     event.UpdatedAt,
	}
}

func mapResult(result entities.TallyResult) httptransport.TallyResultResponse {
	optionResults := make([]httptransport.OptionResultResponse, 0, len(result.OptionResults))
	for _, item := range result.OptionResults {
		optionResults = append(optionResults, httptransport.OptionResultResponse{
			OptionID:   item.OptionID,
			Score:      item.Score,
			Percentage: item.Percentage,
			Funded:     item.Funded,
		})
	}
	rounds := make([]httptransport.RunoffRoundResponse, 0, len(result.Rounds))
	for _, round := range result.Rounds {
		rounds = append(rounds, httptransport.RunoffRoundResponse{
			Round:      round.Round,
			Counts:     round.Counts,
			Eliminated: round.Eliminated,
			Exhausted:  round.Exhausted,
		})
	}
	return httptransport.TallyResultResponse{
		EventID:        result.EventID,
		Method:         string(result.Method),
		Participation:  result.Participation,
		OptionResults:  optionResults,
		WinningOptions: result.WinningOptions,
		QuorumMet:      result.QuorumMet,
		MajorityMet:    result.MajorityMet,
		Rounds:         rounds,
		BudgetSpent:    result.BudgetSpent,
		AuditHash:      result.AuditHash,
		CountedAt:      result.CountedAt,
		CountedBy:      result.CountedBy,
	}
}
