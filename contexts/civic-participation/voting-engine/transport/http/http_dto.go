package http

import "time"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type OptionSpecRequest struct {
	OptionID string `json:"option_id,omitempty"`
	Kind     string `json:"kind"`
	Title    string `json:"title"`
	Cost     int64  `json:"cost,omitempty"`
}

type EligibilityRequest struct {
	MinVerificationLevel int      `json:"min_verification_level"`
	AllowedGroups        []string `json:"allowed_groups,omitempty"`
}

type VoteParamsRequest struct {
	MinOptions               int     `json:"min_options,omitempty"`
	MaxOptions               int     `json:"max_options,omitempty"`
	TotalBudget              int64   `json:"total_budget,omitempty"`
	Quorum                   int     `json:"quorum,omitempty"`
	MajorityThresholdPercent float64 `json:"majority_threshold_percent,omitempty"`
}

type CreateVoteEventRequest struct {
	ProcessID   string              `json:"process_id"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Method      string              `json:"method"`
	Options     []OptionSpecRequest `json:"options"`
	StartsAt    time.Time           `json:"starts_at"`
	EndsAt      time.Time           `json:"ends_at"`
	Eligibility EligibilityRequest  `json:"eligibility"`
	Params      VoteParamsRequest   `json:"params"`
	Draft       bool                `json:"draft,omitempty"`
}

// UpdateVoteEventRequest replaces the mutable configuration of a draft or
// pending event. Method is fixed at creation and cannot change.
type UpdateVoteEventRequest struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Options     []OptionSpecRequest `json:"options"`
	StartsAt    time.Time           `json:"starts_at"`
	EndsAt      time.Time           `json:"ends_at"`
	Eligibility EligibilityRequest  `json:"eligibility"`
	Params      VoteParamsRequest   `json:"params"`
}

type OptionResponse struct {
	OptionID string `json:"option_id"`
	Kind     string `json:"kind"`
	Title    string `json:"title"`
	Cost     int64  `json:"cost,omitempty"`
}

type VoteEventResponse struct {
	EventID       string             `json:"vote_event_id"`
	ProcessID     string             `json:"process_id"`
	Title         string             `json:"title"`
	Description   string             `json:"description,omitempty"`
	Method        string             `json:"method"`
	Options       []OptionResponse   `json:"options"`
	StartsAt      time.Time          `json:"starts_at"`
	EndsAt        time.Time          `json:"ends_at"`
	Eligibility   EligibilityRequest `json:"eligibility"`
	Params        VoteParamsRequest  `json:"params"`
	Status        string             `json:"status"`
	Participation int                `json:"participation"`
	CreatedBy     string             `json:"created_by,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// SubmitBallotRequest carries exactly one method-specific payload. The voter
// snapshot fields are trusted as-is; authentication happens upstream.
type SubmitBallotRequest struct {
	VoterID           string         `json:"voter_id"`
	VerificationLevel int            `json:"verification_level"`
	Groups            []string       `json:"groups,omitempty"`
	Selections        []string       `json:"selections,omitempty"`
	Rankings          map[string]int `json:"rankings,omitempty"`
	Weights           map[string]int `json:"weights,omitempty"`
	Allocations       []string       `json:"allocations,omitempty"`
}

type SubmitBallotResponse struct {
	BallotID    string `json:"ballot_id"`
	ReceiptHash string `json:"receipt_hash"`
	Replaced    bool   `json:"replaced"`
}

type OptionResultResponse struct {
	OptionID   string  `json:"option_id"`
	Score      int64   `json:"score"`
	Percentage float64 `json:"percentage"`
	Funded     bool    `json:"funded,omitempty"`
}

type RunoffRoundResponse struct {
	Round      int              `json:"round"`
	Counts     map[string]int64 `json:"counts"`
	Eliminated []string         `json:"eliminated,omitempty"`
	Exhausted  int              `json:"exhausted"`
}

type TallyResultResponse struct {
	EventID        string                 `json:"vote_event_id"`
	Method         string                 `json:"method"`
	Participation  int                    `json:"participation"`
	OptionResults  []OptionResultResponse `json:"option_results"`
	WinningOptions []string               `json:"winning_options"`
	QuorumMet      bool                   `json:"quorum_met"`
	MajorityMet    bool                   `json:"majority_met"`
	Rounds         []RunoffRoundResponse  `json:"rounds,omitempty"`
	BudgetSpent    int64                  `json:"budget_spent,omitempty"`
	AuditHash      string                 `json:"audit_hash"`
	CountedAt      time.Time              `json:"counted_at"`
	CountedBy      string                 `json:"counted_by,omitempty"`
}

type VerifyReceiptRequest struct {
	VoterID     string `json:"voter_id"`
	ReceiptHash string `json:"receipt_hash"`
}

type VerifyReceiptResponse struct {
	Valid bool `json:"valid"`
}

type VerifyTallyResponse struct {
	Consistent bool `json:"consistent"`
}

type TallyActionRequest struct {
	CountedBy string `json:"counted_by,omitempty"`
}
