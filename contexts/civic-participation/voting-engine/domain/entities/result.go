package entities

import "time"

// OptionResult is one option's final standing. Score is votes for majority
// methods, approval points for approval, the linear weight sum for quadratic,
// and supporting-ballot count for knapsack.
type OptionResult struct {
	OptionID   string
	Score      int64
	Percentage float64
	Funded     bool
}

// RunoffRound records one instant-runoff elimination round for the audit
// trail. Counts holds first-preference totals among options still standing at
// the start of the round.
type RunoffRound struct {
	Round      int
	Counts     map[string]int64
	Eliminated []string
	Exhausted  int
}

// TallyResult is produced at most once per event lifecycle and is fully
// re-derivable from the stored ballot set: recounting the same ballots must
// yield a byte-identical result, AuditHash included.
type TallyResult struct {
	EventID        string
	Method         Method
	Participation  int
	OptionResults  []OptionResult
	WinningOptions []string
	QuorumMet      bool
	MajorityMet    bool
	Rounds         []RunoffRound
	BudgetSpent    int64
	AuditHash      string
	CountedAt      time.Time
	CountedBy      string
}
