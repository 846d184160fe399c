// Package tally turns a frozen ballot set into a TallyResult.
//
// Everything here is pure computation: given the same event configuration and
// ballot set the engine produces a byte-identical result, which is what lets
// any third party re-run the count and confirm the audit digest.
package tally

import (
	"sort"
	"time"

	"agora/contexts/civic-participation/voting-engine/domain/audit"
	"agora/contexts/civic-participation/voting-engine/domain/entities"
	domainerrors "agora/contexts/civic-participation/voting-engine/domain/errors"
)

const defaultTimeout = 30 * time.Second

// Engine computes final results for a closed vote event. The zero value is
// usable; Timeout bounds a single tally run.
type Engine struct {
	Timeout time.Duration
}

// Tally counts the given ballots under the event's method. Ballots must be
// the complete counted set for the event; intake is expected to be frozen.
// Quorum failure is not an error: the result is still produced, with no
// winning options.
func (e Engine) Tally(
	event entities.VoteEvent,
	ballots []entities.Ballot,
	countedAt time.Time,
) (entities.TallyResult, error) {
	deadline := time.Now().Add(e.timeout())

	for _, ballot := range ballots {
		for _, optionID := range ballot.ReferencedOptions() {
			if !event.HasOption(optionID) {
				return entities.TallyResult{}, domainerrors.ErrInconsistentBallotData
			}
		}
	}

	result := entities.TallyResult{
		EventID:       event.EventID,
		Method:        event.Method,
		Participation: len(ballots),
		CountedAt:     countedAt.UTC(),
	}

	var err error
	switch event.Method {
	case entities.MethodSimpleMajority, entities.MethodApproval:
		e.countSelections(event, ballots, &result)
	case entities.MethodRankedChoice:
		err = e.countInstantRunoff(event, ballots, deadline, &result)
	case entities.MethodQuadratic:
		e.countQuadratic(event, ballots, &result)
	case entities.MethodKnapsack:
		e.countKnapsack(event, ballots, &result)
	default:
		err = domainerrors.ErrInvalidEventConfig
	}
	if err != nil {
		return entities.TallyResult{}, err
	}

	result.QuorumMet = event.Params.Quorum <= 0 || result.Participation >= event.Params.Quorum
	if !result.QuorumMet {
		// Counts stay visible for transparency, but nothing wins.
		result.WinningOptions = nil
		result.MajorityMet = false
		result.BudgetSpent = 0
		for i := range result.OptionResults {
			result.OptionResults[i].Funded = false
		}
	}

	result.AuditHash = audit.Digest(ballots)
	return result, nil
}

// countSelections covers simple_majority and approval: every selected option
// on a ballot earns one point, ranked by points descending.
func (e Engine) countSelections(
	event entities.VoteEvent,
	ballots []entities.Ballot,
	result *entities.TallyResult,
) {
	counts := make(map[string]int64)
	for _, ballot := range ballots {
		for _, optionID := range ballot.Selections {
			counts[optionID]++
		}
	}

	results := make([]entities.OptionResult, 0, len(event.Options))
	for _, option := range event.Options {
		score := counts[option.OptionID]
		percentage := 0.0
		if len(ballots) > 0 {
			percentage = float64(score) / float64(len(ballots)) * 100
		}
		results = append(results, entities.OptionResult{
			OptionID:   option.OptionID,
			Score:      score,
			Percentage: percentage,
		})
	}
	sortByScore(results)

	result.OptionResults = results
	leaders := leadingOptions(results)
	result.WinningOptions = leaders
	result.MajorityMet = len(leaders) == 1 &&
		results[0].Percentage >= event.MajorityThreshold()
}

// countQuadratic scores each option by the plain sum of ballot weights. The
// quadratic cost (weight squared) only constrains each voter's own spend at
// validation time.
func (e Engine) countQuadratic(
	event entities.VoteEvent,
	ballots []entities.Ballot,
	result *entities.TallyResult,
) {
	scores := make(map[string]int64)
	var total int64
	for _, ballot := range ballots {
		for optionID, weight := range ballot.Weights {
			scores[optionID] += int64(weight)
			total += int64(weight)
		}
	}

	results := make([]entities.OptionResult, 0, len(event.Options))
	for _, option := range event.Options {
		score := scores[option.OptionID]
		percentage := 0.0
		if total > 0 {
			percentage = float64(score) / float64(total) * 100
		}
		results = append(results, entities.OptionResult{
			OptionID:   option.OptionID,
			Score:      score,
			Percentage: percentage,
		})
	}
	sortByScore(results)

	result.OptionResults = results
	result.WinningOptions = leadingOptions(results)
}

// countInstantRunoff runs ranked-choice elimination rounds. Each round drops
// the lowest first-preference option among those still standing and
// redistributes its ballots to the next standing preference. Exhausted
// ballots leave the majority denominator. A lowest-count tie eliminates all
// tied options at once unless that would empty the field, in which case the
// tie is reported unresolved.
func (e Engine) countInstantRunoff(
	event entities.VoteEvent,
	ballots []entities.Ballot,
	deadline time.Time,
	result *entities.TallyResult,
) error {
	remaining := make(map[string]bool, len(event.Options))
	for _, option := range event.Options {
		remaining[option.OptionID] = true
	}
	lastCounts := make(map[string]int64, len(event.Options))

	active := make([]entities.Ballot, 0, len(ballots))
	for _, ballot := range ballots {
		if len(ballot.Ranking) > 0 {
			active = append(active, ballot)
		}
	}

	var rounds []entities.RunoffRound
	var winning []string
	majorityMet := false

	for round := 1; len(remaining) > 0; round++ {
		if round > len(event.Options)+1 || time.Now().After(deadline) {
			return domainerrors.ErrTallyTimedOut
		}

		counts := make(map[string]int64, len(remaining))
		for id := range remaining {
			counts[id] = 0
		}
		exhausted := 0
		for _, ballot := range active {
			choice, ok := firstStanding(ballot.Ranking, remaining)
			if !ok {
				exhausted++
				continue
			}
			counts[choice]++
		}
		denominator := len(active) - exhausted

		for id := range remaining {
			lastCounts[id] = counts[id]
		}
		record := entities.RunoffRound{
			Round:     round,
			Counts:    counts,
			Exhausted: exhausted,
		}

		leaderID, leaderCount := leader(event.Options, remaining, counts)
		if len(remaining) == 1 {
			winning = []string{leaderID}
			majorityMet = denominator > 0 && leaderCount*2 > int64(denominator)
			rounds = append(rounds, record)
			break
		}
		if denominator > 0 && leaderCount*2 > int64(denominator) {
			winning = []string{leaderID}
			majorityMet = true
			rounds = append(rounds, record)
			break
		}
		if denominator == 0 {
			// Every ballot is exhausted; nothing can ever reach a majority.
			rounds = append(rounds, record)
			break
		}

		lowest := lowestCount(remaining, counts)
		tied := tiedAt(event.Options, remaining, counts, lowest)
		if len(tied) == len(remaining) {
			// Eliminating the whole field resolves nothing.
			rounds = append(rounds, record)
			break
		}
		for _, id := range tied {
			delete(remaining, id)
		}
		record.Eliminated = tied
		rounds = append(rounds, record)
	}

	results := make([]entities.OptionResult, 0, len(event.Options))
	for _, option := range event.Options {
		score := lastCounts[option.OptionID]
		percentage := 0.0
		if len(active) > 0 {
			percentage = float64(score) / float64(len(active)) * 100
		}
		results = append(results, entities.OptionResult{
			OptionID:   option.OptionID,
			Score:      score,
			Percentage: percentage,
		})
	}
	sortByScore(results)

	result.OptionResults = results
	result.WinningOptions = winning
	result.MajorityMet = majorityMet
	result.Rounds = rounds
	return nil
}

// countKnapsack ranks options by supporting-ballot count and greedily funds
// them while the cumulative cost fits the event budget. An option that would
// overshoot the remaining budget is skipped, not partially funded. Support
// ties prefer the cheaper option so more items get funded.
func (e Engine) countKnapsack(
	event entities.VoteEvent,
	ballots []entities.Ballot,
	result *entities.TallyResult,
) {
	support := make(map[string]int64)
	for _, ballot := range ballots {
		for _, optionID := range ballot.Allocations {
			support[optionID]++
		}
	}

	ordered := make([]entities.Option, len(event.Options))
	copy(ordered, event.Options)
	sort.SliceStable(ordered, func(i, j int) bool {
		left, right := ordered[i], ordered[j]
		if support[left.OptionID] != support[right.OptionID] {
			return support[left.OptionID] > support[right.OptionID]
		}
		if left.Cost != right.Cost {
			return left.Cost < right.Cost
		}
		return left.OptionID < right.OptionID
	})

	budget := event.Params.TotalBudget
	var spent int64
	funded := make(map[string]bool)
	var winning []string
	for _, option := range ordered {
		if support[option.OptionID] == 0 {
			continue
		}
		if spent+option.Cost > budget {
			continue
		}
		spent += option.Cost
		funded[option.OptionID] = true
		winning = append(winning, option.OptionID)
	}

	results := make([]entities.OptionResult, 0, len(ordered))
	for _, option := range ordered {
		percentage := 0.0
		if len(ballots) > 0 {
			percentage = float64(support[option.OptionID]) / float64(len(ballots)) * 100
		}
		results = append(results, entities.OptionResult{
			OptionID:   option.OptionID,
			Score:      support[option.OptionID],
			Percentage: percentage,
			Funded:     funded[option.OptionID],
		})
	}

	result.OptionResults = results
	result.WinningOptions = winning
	result.BudgetSpent = spent
}

func (e Engine) timeout() time.Duration {
	if e.Timeout <= 0 {
		return defaultTimeout
	}
	return e.Timeout
}

func firstStanding(ranking []string, remaining map[string]bool) (string, bool) {
	for _, optionID := range ranking {
		if remaining[optionID] {
			return optionID, true
		}
	}
	return "", false
}

// leader walks options in event order so equal counts resolve
// deterministically.
func leader(
	options []entities.Option,
	remaining map[string]bool,
	counts map[string]int64,
) (string, int64) {
	leaderID := ""
	var leaderCount int64 = -1
	for _, option := range options {
		if !remaining[option.OptionID] {
			continue
		}
		if counts[option.OptionID] > leaderCount {
			leaderID = option.OptionID
			leaderCount = counts[option.OptionID]
		}
	}
	return leaderID, leaderCount
}

func lowestCount(remaining map[string]bool, counts map[string]int64) int64 {
	var lowest int64 = -1
	for id := range remaining {
		if lowest < 0 || counts[id] < lowest {
			lowest = counts[id]
		}
	}
	return lowest
}

func tiedAt(
	options []entities.Option,
	remaining map[string]bool,
	counts map[string]int64,
	target int64,
) []string {
	var tied []string
	for _, option := range options {
		if remaining[option.OptionID] && counts[option.OptionID] == target {
			tied = append(tied, option.OptionID)
		}
	}
	return tied
}

func sortByScore(results []entities.OptionResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].OptionID < results[j].OptionID
	})
}

// leadingOptions reports every option sharing the top non-zero score. More
// than one entry means a tie with no single winner.
func leadingOptions(results []entities.OptionResult) []string {
	if len(results) == 0 || results[0].Score == 0 {
		return nil
	}
	top := results[0].Score
	var leaders []string
	for _, r := range results {
		if r.Score != top {
			break
		}
		leaders = append(leaders, r.OptionID)
	}
	return leaders
}
