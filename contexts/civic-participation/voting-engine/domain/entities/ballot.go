package entities

import "time"

// RankedPreference is the raw wire form of one ranked-choice entry. The
// validator normalizes a set of these into a best-first Ranking slice.
type RankedPreference struct {
	OptionID string
	Rank     int
}

// RawBallot is voter input before validation. Exactly one of the payload
// fields is expected to be populated, matching the event's method.
type RawBallot struct {
	Selections  []string
	Rankings    []RankedPreference
	Weights     map[string]int
	Allocations []string
}

// Ballot is one voter's accepted choice content, normalized and immutable.
// The Method tag says which payload field is meaningful:
//
//	simple_majority, approval -> Selections (sorted set of option ids)
//	ranked_choice             -> Ranking (option ids, best preference first)
//	quadratic                 -> Weights (option id -> non-negative weight)
//	knapsack                  -> Allocations (sorted fully funded option ids)
//
// Validation guarantees the other fields are empty, so cross-method field
// confusion cannot reach the tally engine.
type Ballot struct {
	BallotID    string
	EventID     string
	VoterID     string
	Method      Method
	Selections  []string
	Ranking     []string
	Weights     map[string]int
	Allocations []string
	ReceiptHash string
	CastAt      time.Time
}

// ReferencedOptions returns every option id the ballot touches, in payload
// order. Used by the tally engine to detect stored ballots that reference
// options missing from the event.
func (b Ballot) ReferencedOptions() []string {
	switch b.Method {
	case MethodRankedChoice:
		return b.Ranking
	case MethodQuadratic:
		ids := make([]string, 0, len(b.Weights))
		for id := range b.Weights {
			ids = append(ids, id)
		}
		return ids
	case MethodKnapsack:
		return b.Allocations
	default:
		return b.Selections
	}
}
