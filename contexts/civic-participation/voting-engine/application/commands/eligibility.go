package commands

import (
	"time"

	"agora/contexts/civic-participation/voting-engine/domain/entities"
	domainerrors "agora/contexts/civic-participation/voting-engine/domain/errors"
)

// CanVote is the eligibility gate. It is side-effect free and is evaluated
// against the event state loaded at submission time, never against a cached
// snapshot, so phase transitions cannot be raced around.
func CanVote(voter entities.Voter, event entities.VoteEvent, now time.Time) error {
	if voter.VerificationLevel < event.Eligibility.MinVerificationLevel {
		return domainerrors.ErrInsufficientVerification
	}
	if len(event.Eligibility.AllowedGroups) > 0 && !voter.InAnyGroup(event.Eligibility.AllowedGroups) {
		return domainerrors.ErrNotInAllowedGroup
	}
	if !event.IsOpenAt(now) {
		return domainerrors.ErrVotingClosed
	}
	return nil
}
