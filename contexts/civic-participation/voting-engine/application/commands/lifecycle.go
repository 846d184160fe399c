package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	application "agora/contexts/civic-participation/voting-engine/application"
	"agora/contexts/civic-participation/voting-engine/domain/entities"
	domainerrors "agora/contexts/civic-participation/voting-engine/domain/errors"
	"agora/contexts/civic-participation/voting-engine/domain/tally"
	"agora/contexts/civic-participation/voting-engine/ports"
)

// OptionSpec describes one option at event creation. OptionID may be empty,
// in which case one is generated; ids are frozen once the event opens.
type OptionSpec struct {
	OptionID string
	Kind     entities.OptionKind
	Title    string
	Cost     int64
}

type CreateVoteEventCommand struct {
	ProcessID   string
	Title       string
	Description string
	Method      entities.Method
	Options     []OptionSpec
	StartsAt    time.Time
	EndsAt      time.Time
	Eligibility entities.Eligibility
	Params      entities.VoteParams
	CreatedBy   string
	Draft       bool
}

// LifecycleUseCase owns vote event state transitions and invokes the tally
// engine exactly once per closed event.
type LifecycleUseCase struct {
	Events  ports.EventRepository
	Ballots ports.BallotStore
	Results ports.ResultRepository
	Engine  tally.Engine
	Outbox  ports.OutboxWriter
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Logger  *slog.Logger
}

// CreateVoteEvent validates the full method-specific configuration up front;
// a misconfigured event is rejected at creation, not discovered at tally
// time.
func (uc LifecycleUseCase) CreateVoteEvent(
	ctx context.Context,
	cmd CreateVoteEventCommand,
) (entities.VoteEvent, error) {
	logger := application.ResolveLogger(uc.Logger)

	options := make([]entities.Option, 0, len(cmd.Options))
	for _, spec := range cmd.Options {
		optionID := spec.OptionID
		if optionID == "" {
			generated, err := uc.IDGen.NewID(ctx)
			if err != nil {
				return entities.VoteEvent{}, err
			}
			optionID = generated
		}
		options = append(options, entities.Option{
			OptionID: optionID,
			Kind:     spec.Kind,
			Title:    spec.Title,
			Cost:     spec.Cost,
		})
	}

	now := uc.Clock.Now().UTC()
	status := entities.EventStatusPending
	if cmd.Draft {
		status = entities.EventStatusDraft
	}
	event := entities.VoteEvent{
		ProcessID:   cmd.ProcessID,
		Title:       cmd.Title,
		Description: cmd.Description,
		Method:      cmd.Method,
		Options:     options,
		StartsAt:    cmd.StartsAt.UTC(),
		EndsAt:      cmd.EndsAt.UTC(),
		Eligibility: cmd.Eligibility,
		Params:      cmd.Params,
		Status:      status,
		CreatedBy:   cmd.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := validateEventConfig(event); err != nil {
		logger.Warn("vote event configuration rejected",
			"event", "voting_event_config_rejected",
			"module", "civic-participation/voting-engine",
			"layer", "application",
			"method", string(cmd.Method),
			"error", err.Error(),
		)
		return entities.VoteEvent{}, err
	}

	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.VoteEvent{}, err
	}
	event.EventID = eventID
	if err := uc.Events.SaveEvent(ctx, event); err != nil {
		return entities.VoteEvent{}, err
	}

	logger.Info("vote event created",
		"event", "voting_event_created",
		"module", "civic-participation/voting-engine",
		"layer", "application",
		"vote_event_id", event.EventID,
		"method", string(event.Method),
		"status", string(event.Status),
		"option_count", len(event.Options),
	)
	return event, nil
}

// UpdateVoteEventCommand replaces the mutable configuration of a draft or
// pending event. Options keep their ids where supplied so drafts can be
// edited without invalidating references.
type UpdateVoteEventCommand struct {
	EventID     string
	Title       string
	Description string
	Options     []OptionSpec
	StartsAt    time.Time
	EndsAt      time.Time
	Eligibility entities.Eligibility
	Params      entities.VoteParams
}

// UpdateVoteEvent rewrites event configuration while the event has not yet
// opened. Once ballots can exist the configuration is frozen; edits are
// refused with ErrEventImmutable.
func (uc LifecycleUseCase) UpdateVoteEvent(
	ctx context.Context,
	cmd UpdateVoteEventCommand,
) (entities.VoteEvent, error) {
	event, err := uc.Events.GetEvent(ctx, cmd.EventID)
	if err != nil {
		return entities.VoteEvent{}, err
	}
	if event.Status != entities.EventStatusDraft && event.Status != entities.EventStatusPending {
		return entities.VoteEvent{}, domainerrors.ErrEventImmutable
	}

	options := make([]entities.Option, 0, len(cmd.Options))
	for _, spec := range cmd.Options {
		optionID := spec.OptionID
		if optionID == "" {
			generated, err := uc.IDGen.NewID(ctx)
			if err != nil {
				return entities.VoteEvent{}, err
			}
			optionID = generated
		}
		options = append(options, entities.Option{
			OptionID: optionID,
			Kind:     spec.Kind,
			Title:    spec.Title,
			Cost:     spec.Cost,
		})
	}

	updated := event
	updated.Title = cmd.Title
	updated.Description = cmd.Description
	updated.Options = options
	updated.StartsAt = cmd.StartsAt.UTC()
	updated.EndsAt = cmd.EndsAt.UTC()
	updated.Eligibility = cmd.Eligibility
	updated.Params = cmd.Params
	updated.UpdatedAt = uc.Clock.Now().UTC()
	if err := validateEventConfig(updated); err != nil {
		return entities.VoteEvent{}, err
	}
	if err := uc.Events.SaveEvent(ctx, updated); err != nil {
		return entities.VoteEvent{}, err
	}

	application.ResolveLogger(uc.Logger).Info("vote event updated",
		"event", "voting_event_updated",
		"module", "civic-participation/voting-engine",
		"layer", "application",
		"vote_event_id", updated.EventID,
		"status", string(updated.Status),
		"option_count", len(updated.Options),
	)
	return updated, nil
}

// OpenEvent moves a pending event into its open phase. Safe to invoke
// eagerly: an already-open event is a no-op. Opening before the window
// starts is refused.
func (uc LifecycleUseCase) OpenEvent(ctx context.Context, eventID string) error {
	event, err := uc.Events.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if event.Status == entities.EventStatusOpen {
		return nil
	}
	if event.Status != entities.EventStatusPending {
		return domainerrors.ErrInvalidTransition
	}
	now := uc.Clock.Now().UTC()
	if now.Before(event.StartsAt) {
		return domainerrors.ErrInvalidTransition
	}
	if err := uc.Events.TransitionEvent(ctx, eventID, entities.EventStatusPending, entities.EventStatusOpen, now); err != nil {
		if errors.Is(err, domainerrors.ErrConflict) {
			// Another opener won the race; already open is what we wanted.
			return nil
		}
		return err
	}
	if err := uc.appendEvent(ctx, "vote_event.opened", eventID, map[string]any{
		"vote_event_id": eventID,
		"opened_at":     now,
	}); err != nil {
		return err
	}
	application.ResolveLogger(uc.Logger).Info("vote event opened",
		"event", "voting_event_opened",
		"module", "civic-participation/voting-engine",
		"layer", "application",
		"vote_event_id", eventID,
	)
	return nil
}

// CloseEvent freezes ballot intake. Idempotent when the event is already
// past open.
func (uc LifecycleUseCase) CloseEvent(ctx context.Context, eventID string) error {
	event, err := uc.Events.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	switch event.Status {
	case entities.EventStatusClosed, entities.EventStatusCounting, entities.EventStatusCompleted:
		return nil
	case entities.EventStatusOpen:
	default:
		return domainerrors.ErrInvalidTransition
	}
	now := uc.Clock.Now().UTC()
	if err := uc.Events.TransitionEvent(ctx, eventID, entities.EventStatusOpen, entities.EventStatusClosed, now); err != nil {
		if errors.Is(err, domainerrors.ErrConflict) {
			return nil
		}
		return err
	}
	if err := uc.appendEvent(ctx, "vote_event.closed", eventID, map[string]any{
		"vote_event_id": eventID,
		"closed_at":     now,
	}); err != nil {
		return err
	}
	application.ResolveLogger(uc.Logger).Info("vote event closed",
		"event", "voting_event_closed",
		"module", "civic-participation/voting-engine",
		"layer", "application",
		"vote_event_id", eventID,
	)
	return nil
}

// CancelEvent is the administrative escape hatch, reachable from every state
// before completed. Cancelled events never produce a tally result.
func (uc LifecycleUseCase) CancelEvent(ctx context.Context, eventID string) error {
	event, err := uc.Events.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if event.Status == entities.EventStatusCancelled {
		return nil
	}
	if event.Status == entities.EventStatusCompleted {
		return domainerrors.ErrInvalidTransition
	}
	now := uc.Clock.Now().UTC()
	if err := uc.Events.TransitionEvent(ctx, eventID, event.Status, entities.EventStatusCancelled, now); err != nil {
		return err
	}
	if err := uc.appendEvent(ctx, "vote_event.cancelled", eventID, map[string]any{
		"vote_event_id": eventID,
		"cancelled_at":  now,
	}); err != nil {
		return err
	}
	application.ResolveLogger(uc.Logger).Info("vote event cancelled",
		"event", "voting_event_cancelled",
		"module", "civic-participation/voting-engine",
		"layer", "application",
		"vote_event_id", eventID,
	)
	return nil
}

// CloseAndTally freezes intake if needed, counts the frozen ballot set, and
// persists the result atomically with the completed transition. The
// operation is idempotent: invoked again it returns the stored result, and a
// retry after a crash mid-count recomputes from the immutable ballots and
// must match. A tally failure leaves the event in counting for manual
// intervention; no partial result is ever persisted.
func (uc LifecycleUseCase) CloseAndTally(
	ctx context.Context,
	eventID string,
	countedBy string,
) (entities.TallyResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	event, err := uc.Events.GetEvent(ctx, eventID)
	if err != nil {
		return entities.TallyResult{}, err
	}

	switch event.Status {
	case entities.EventStatusCompleted:
		existing, found, err := uc.Results.GetResult(ctx, eventID)
		if err != nil {
			return entities.TallyResult{}, err
		}
		if !found {
			return entities.TallyResult{}, domainerrors.ErrResultNotAvailable
		}
		return existing, nil
	case entities.EventStatusOpen:
		if err := uc.CloseEvent(ctx, eventID); err != nil {
			return entities.TallyResult{}, err
		}
		event.Status = entities.EventStatusClosed
	case entities.EventStatusClosed, entities.EventStatusCounting:
	default:
		return entities.TallyResult{}, domainerrors.ErrInvalidTransition
	}

	now := uc.Clock.Now().UTC()
	if event.Status == entities.EventStatusClosed {
		err := uc.Events.TransitionEvent(ctx, eventID, entities.EventStatusClosed, entities.EventStatusCounting, now)
		if err != nil && !errors.Is(err, domainerrors.ErrConflict) {
			return entities.TallyResult{}, err
		}
	}

	ballots, err := uc.Ballots.ListBallots(ctx, eventID)
	if err != nil {
		return entities.TallyResult{}, err
	}
	result, err := uc.Engine.Tally(event, ballots, now)
	if err != nil {
		// The event stays in counting; completing with wrong numbers is
		// worse than requiring manual intervention.
		logger.Error("tally failed, event left in counting",
			"event", "voting_tally_failed",
			"module", "civic-participation/voting-engine",
			"layer", "application",
			"vote_event_id", eventID,
			"error", err.Error(),
		)
		return entities.TallyResult{}, err
	}
	result.CountedBy = countedBy

	if existing, found, err := uc.Results.GetResult(ctx, eventID); err != nil {
		return entities.TallyResult{}, err
	} else if found {
		// Retry after a partial failure: recompute-and-compare, never
		// double-apply.
		if existing.AuditHash != result.AuditHash {
			logger.Error("recomputed tally does not match persisted result",
				"event", "voting_tally_mismatch",
				"module", "civic-participation/voting-engine",
				"layer", "application",
				"vote_event_id", eventID,
			)
			return entities.TallyResult{}, domainerrors.ErrTallyMismatch
		}
		err := uc.Events.TransitionEvent(ctx, eventID, entities.EventStatusCounting, entities.EventStatusCompleted, now)
		if err != nil && !errors.Is(err, domainerrors.ErrConflict) {
			return entities.TallyResult{}, err
		}
		return existing, nil
	}

	if err := uc.Results.CompleteTally(ctx, result); err != nil {
		logger.Error("tally persistence failed",
			"event", "voting_tally_persist_failed",
			"module", "civic-participation/voting-engine",
			"layer", "application",
			"vote_event_id", eventID,
			"error", err.Error(),
		)
		return entities.TallyResult{}, err
	}
	if err := uc.appendEvent(ctx, "vote_event.completed", eventID, map[string]any{
		"vote_event_id":   eventID,
		"participation":   result.Participation,
		"quorum_met":      result.QuorumMet,
		"winning_options": result.WinningOptions,
		"audit_hash":      result.AuditHash,
	}); err != nil {
		return entities.TallyResult{}, err
	}

	logger.Info("vote event tallied",
		"event", "voting_event_completed",
		"module", "civic-participation/voting-engine",
		"layer", "application",
		"vote_event_id", eventID,
		"method", string(event.Method),
		"participation", result.Participation,
		"quorum_met", result.QuorumMet,
		"audit_hash", result.AuditHash,
	)
	return result, nil
}

func validateEventConfig(event entities.VoteEvent) error {
	if !event.Method.Valid() || event.Title == "" {
		return domainerrors.ErrInvalidEventConfig
	}
	if event.StartsAt.IsZero() || event.EndsAt.IsZero() || event.EndsAt.Before(event.StartsAt) {
		return domainerrors.ErrInvalidEventConfig
	}
	if len(event.Options) == 0 {
		return domainerrors.ErrInvalidEventConfig
	}
	seen := make(map[string]bool, len(event.Options))
	for _, option := range event.Options {
		if option.OptionID == "" || seen[option.OptionID] {
			return domainerrors.ErrInvalidEventConfig
		}
		seen[option.OptionID] = true
		if option.Cost < 0 {
			return domainerrors.ErrInvalidEventConfig
		}
	}
	if event.Eligibility.MinVerificationLevel < 0 || event.Eligibility.MinVerificationLevel > 4 {
		return domainerrors.ErrInvalidEventConfig
	}
	params := event.Params
	if params.MinOptions < 0 || params.Quorum < 0 || params.TotalBudget < 0 {
		return domainerrors.ErrInvalidEventConfig
	}
	if params.MaxOptions != 0 && params.MaxOptions < params.MinOptions {
		return domainerrors.ErrInvalidEventConfig
	}
	if params.MajorityThresholdPercent < 0 || params.MajorityThresholdPercent > 100 {
		return domainerrors.ErrInvalidEventConfig
	}
	if event.Method == entities.MethodKnapsack && params.TotalBudget <= 0 {
		return domainerrors.ErrInvalidEventConfig
	}
	return nil
}
