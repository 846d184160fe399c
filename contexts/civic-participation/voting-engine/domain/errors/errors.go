package errors

import "errors"

// Eligibility denials. User-facing, never retried.
var (
	ErrInsufficientVerification = errors.New("voter verification level is insufficient")
	ErrNotInAllowedGroup        = errors.New("voter is not in an allowed group")
	ErrVotingClosed             = errors.New("voting is closed for this event")
)

// Ballot validation failures. The caller must correct the input.
var (
	ErrInvalidBallotInput    = errors.New("invalid ballot input")
	ErrUnknownOption         = errors.New("ballot references an unknown option")
	ErrOptionCountOutOfRange = errors.New("selected option count is out of range")
	ErrInvalidRanking        = errors.New("ranking must be contiguous with no duplicates")
	ErrCreditBudgetExceeded  = errors.New("quadratic credit budget exceeded")
	ErrBudgetExceeded        = errors.New("allocation exceeds the event budget")
)

// Store and lifecycle failures.
var (
	ErrEventNotFound      = errors.New("vote event not found")
	ErrConflict           = errors.New("concurrent write conflict")
	ErrInvalidTransition  = errors.New("invalid vote event state transition")
	ErrEventImmutable     = errors.New("vote event is immutable after leaving pending")
	ErrInvalidEventConfig = errors.New("invalid vote event configuration")
	ErrResultNotAvailable = errors.New("tally result is not available yet")
)

// Tally failures. Fatal for the attempt; the event stays in counting for
// manual intervention and no partial result is persisted.
var (
	ErrTallyTimedOut          = errors.New("tally computation exceeded its time bound")
	ErrInconsistentBallotData = errors.New("stored ballot references an impossible option")
	ErrTallyMismatch          = errors.New("recomputed tally differs from the persisted result")
)
