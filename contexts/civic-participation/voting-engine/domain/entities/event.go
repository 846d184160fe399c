package entities

import "time"

// Method selects the counting algorithm for a vote event. The method fixes
// both the ballot shape voters may submit and the win rule applied at tally.
type Method string

const (
	MethodSimpleMajority Method = "simple_majority"
	MethodRankedChoice   Method = "ranked_choice"
	MethodApproval       Method = "approval"
	MethodQuadratic      Method = "quadratic"
	MethodKnapsack       Method = "knapsack"
)

func (m Method) Valid() bool {
	switch m {
	case MethodSimpleMajority, MethodRankedChoice, MethodApproval, MethodQuadratic, MethodKnapsack:
		return true
	default:
		return false
	}
}

type OptionKind string

const (
	OptionKindProposal   OptionKind = "proposal"
	OptionKindBudgetItem OptionKind = "budget_item"
	OptionKindCandidate  OptionKind = "candidate"
	OptionKindTextOption OptionKind = "text_option"
)

type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPending   EventStatus = "pending"
	EventStatusOpen      EventStatus = "open"
	EventStatusClosed    EventStatus = "closed"
	EventStatusCounting  EventStatus = "counting"
	EventStatusCompleted EventStatus = "completed"
	EventStatusCancelled EventStatus = "cancelled"
)

// CanTransitionTo encodes the lifecycle order. Cancellation is reachable from
// every state before completed.
func (s EventStatus) CanTransitionTo(to EventStatus) bool {
	if to == EventStatusCancelled {
		return s != EventStatusCompleted && s != EventStatusCancelled
	}
	switch s {
	case EventStatusDraft:
		return to == EventStatusPending
	case EventStatusPending:
		return to == EventStatusOpen
	case EventStatusOpen:
		return to == EventStatusClosed
	case EventStatusClosed:
		return to == EventStatusCounting
	case EventStatusCounting:
		return to == EventStatusCompleted
	default:
		return false
	}
}

// Option is one choice inside a vote event. Option IDs are stable for the
// lifetime of the event; ballots reference them and they are never renumbered
// after the event opens.
type Option struct {
	OptionID string
	Kind     OptionKind
	Title    string
	Cost     int64
}

// Eligibility restricts who may cast a ballot. An empty AllowedGroups set
// means no group restriction.
type Eligibility struct {
	MinVerificationLevel int
	AllowedGroups        []string
}

// VoteParams carries the method-specific knobs. TotalBudget doubles as the
// per-voter credit budget for quadratic events and the shared cost ceiling
// for knapsack events.
type VoteParams struct {
	MinOptions               int
	MaxOptions               int
	TotalBudget              int64
	Quorum                   int
	MajorityThresholdPercent float64
}

// DefaultCreditBudget is the quadratic voice-credit allowance used when an
// event does not set TotalBudget.
const DefaultCreditBudget int64 = 100

// DefaultMajorityThresholdPercent applies when an event does not configure
// its own winning threshold.
const DefaultMajorityThresholdPercent float64 = 50

type VoteEvent struct {
	EventID     string
	ProcessID   string
	Title       string
	Description string
	Method      Method
	Options     []Option
	StartsAt    time.Time
	EndsAt      time.Time
	Eligibility Eligibility
	Params      VoteParams
	Status      EventStatus
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (e VoteEvent) OptionByID(optionID string) (Option, bool) {
	for _, option := range e.Options {
		if option.OptionID == optionID {
			return option, true
		}
	}
	return Option{}, false
}

func (e VoteEvent) HasOption(optionID string) bool {
	_, ok := e.OptionByID(optionID)
	return ok
}

// IsOpenAt reports whether ballots may be committed at the given instant.
// Both the status and the time window must agree.
func (e VoteEvent) IsOpenAt(now time.Time) bool {
	if e.Status != EventStatusOpen {
		return false
	}
	return !now.Before(e.StartsAt) && !now.After(e.EndsAt)
}

func (e VoteEvent) CreditBudget() int64 {
	if e.Params.TotalBudget > 0 {
		return e.Params.TotalBudget
	}
	return DefaultCreditBudget
}

func (e VoteEvent) MajorityThreshold() float64 {
	if e.Params.MajorityThresholdPercent > 0 {
		return e.Params.MajorityThresholdPercent
	}
	return DefaultMajorityThresholdPercent
}

// Voter is the caller-supplied identity snapshot for one submission. The
// engine never resolves verification levels or group membership itself.
type Voter struct {
	VoterID           string
	VerificationLevel int
	Groups            []string
}

func (v Voter) InAnyGroup(groups []string) bool {
	for _, required := range groups {
		for _, got := range v.Groups {
			if got == required {
				return true
			}
		}
	}
	return false
}
