package commands

import (
	"sort"

	"agora/contexts/civic-participation/voting-engine/domain/entities"
	domainerrors "agora/contexts/civic-participation/voting-engine/domain/errors"
)

// ValidateBallot checks a raw ballot against the event's method and returns
// the normalized content. It is a pure function of (event config, ballot) and
// never consults other voters' ballots.
func ValidateBallot(event entities.VoteEvent, raw entities.RawBallot) (entities.Ballot, error) {
	ballot := entities.Ballot{
		EventID: event.EventID,
		Method:  event.Method,
	}
	switch event.Method {
	case entities.MethodSimpleMajority, entities.MethodApproval:
		selections, err := validateSelections(event, raw)
		if err != nil {
			return entities.Ballot{}, err
		}
		ballot.Selections = selections
	case entities.MethodRankedChoice:
		ranking, err := validateRanking(event, raw)
		if err != nil {
			return entities.Ballot{}, err
		}
		ballot.Ranking = ranking
	case entities.MethodQuadratic:
		weights, err := validateWeights(event, raw)
		if err != nil {
			return entities.Ballot{}, err
		}
		ballot.Weights = weights
	case entities.MethodKnapsack:
		allocations, err := validateAllocations(event, raw)
		if err != nil {
			return entities.Ballot{}, err
		}
		ballot.Allocations = allocations
	default:
		return entities.Ballot{}, domainerrors.ErrInvalidEventConfig
	}
	return ballot, nil
}

func validateSelections(event entities.VoteEvent, raw entities.RawBallot) ([]string, error) {
	if len(raw.Rankings) > 0 || len(raw.Weights) > 0 || len(raw.Allocations) > 0 {
		return nil, domainerrors.ErrInvalidBallotInput
	}
	selections := uniqueSorted(raw.Selections)
	for _, optionID := range selections {
		if !event.HasOption(optionID) {
			return nil, domainerrors.ErrUnknownOption
		}
	}
	minCount, maxCount := selectionBounds(event)
	if len(selections) < minCount || len(selections) > maxCount {
		return nil, domainerrors.ErrOptionCountOutOfRange
	}
	return selections, nil
}

// selectionBounds resolves unset parameters: simple majority defaults to a
// single selection, approval to any non-empty subset of the options.
func selectionBounds(event entities.VoteEvent) (int, int) {
	minCount := event.Params.MinOptions
	if minCount <= 0 {
		minCount = 1
	}
	maxCount := event.Params.MaxOptions
	if maxCount <= 0 {
		if event.Method == entities.MethodSimpleMajority {
			maxCount = 1
		} else {
			maxCount = len(event.Options)
		}
	}
	return minCount, maxCount
}

// validateRanking normalizes rank/option pairs into a best-first slice. The
// ranks must form the contiguous sequence 1..k with no repeats, and no option
// may appear twice.
func validateRanking(event entities.VoteEvent, raw entities.RawBallot) ([]string, error) {
	if len(raw.Selections) > 0 || len(raw.Weights) > 0 || len(raw.Allocations) > 0 {
		return nil, domainerrors.ErrInvalidBallotInput
	}
	if len(raw.Rankings) == 0 {
		return nil, domainerrors.ErrInvalidRanking
	}

	byRank := make(map[int]string, len(raw.Rankings))
	seenOptions := make(map[string]bool, len(raw.Rankings))
	for _, preference := range raw.Rankings {
		if !event.HasOption(preference.OptionID) {
			return nil, domainerrors.ErrUnknownOption
		}
		if preference.Rank < 1 || preference.Rank > len(raw.Rankings) {
			return nil, domainerrors.ErrInvalidRanking
		}
		if _, dup := byRank[preference.Rank]; dup {
			return nil, domainerrors.ErrInvalidRanking
		}
		if seenOptions[preference.OptionID] {
			return nil, domainerrors.ErrInvalidRanking
		}
		byRank[preference.Rank] = preference.OptionID
		seenOptions[preference.OptionID] = true
	}

	ranking := make([]string, 0, len(byRank))
	for rank := 1; rank <= len(byRank); rank++ {
		optionID, ok := byRank[rank]
		if !ok {
			return nil, domainerrors.ErrInvalidRanking
		}
		ranking = append(ranking, optionID)
	}
	return ranking, nil
}

func validateWeights(event entities.VoteEvent, raw entities.RawBallot) (map[string]int, error) {
	if len(raw.Selections) > 0 || len(raw.Rankings) > 0 || len(raw.Allocations) > 0 {
		return nil, domainerrors.ErrInvalidBallotInput
	}
	weights := make(map[string]int, len(raw.Weights))
	var credits int64
	for optionID, weight := range raw.Weights {
		if !event.HasOption(optionID) {
			return nil, domainerrors.ErrUnknownOption
		}
		if weight < 0 {
			return nil, domainerrors.ErrInvalidBallotInput
		}
		if weight == 0 {
			continue
		}
		weights[optionID] = weight
		credits += int64(weight) * int64(weight)
	}
	if len(weights) == 0 {
		return nil, domainerrors.ErrInvalidBallotInput
	}
	if credits > event.CreditBudget() {
		return nil, domainerrors.ErrCreditBudgetExceeded
	}
	return weights, nil
}

func validateAllocations(event entities.VoteEvent, raw entities.RawBallot) ([]string, error) {
	if len(raw.Selections) > 0 || len(raw.Rankings) > 0 || len(raw.Weights) > 0 {
		return nil, domainerrors.ErrInvalidBallotInput
	}
	allocations := uniqueSorted(raw.Allocations)
	if len(allocations) == 0 {
		return nil, domainerrors.ErrInvalidBallotInput
	}
	var cost int64
	for _, optionID := range allocations {
		option, ok := event.OptionByID(optionID)
		if !ok {
			return nil, domainerrors.ErrUnknownOption
		}
		cost += option.Cost
	}
	if cost > event.Params.TotalBudget {
		return nil, domainerrors.ErrBudgetExceeded
	}
	return allocations, nil
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}
