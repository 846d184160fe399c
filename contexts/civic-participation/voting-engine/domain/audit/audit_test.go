package audit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"agora/contexts/civic-participation/voting-engine/domain/entities"
)

func TestReceiptIgnoresSelectionOrder(t *testing.T) {
	first := entities.Ballot{
		Method:     entities.MethodApproval,
		Selections: []string{"opt-a", "opt-b"},
	}
	second := entities.Ballot{
		Method:     entities.MethodApproval,
		Selections: []string{"opt-b", "opt-a"},
	}

	require.Equal(t, Receipt("evt-1", first), Receipt("evt-1", second))
}

func TestReceiptPreservesRankingOrder(t *testing.T) {
	first := entities.Ballot{
		Method:  entities.MethodRankedChoice,
		Ranking: []string{"opt-a", "opt-b"},
	}
	second := entities.Ballot{
		Method:  entities.MethodRankedChoice,
		Ranking: []string{"opt-b", "opt-a"},
	}

	require.NotEqual(t, Receipt("evt-1", first), Receipt("evt-1", second))
}

func TestReceiptBindsToEvent(t *testing.T) {
	ballot := entities.Ballot{
		Method:     entities.MethodSimpleMajority,
		Selections: []string{"opt-a"},
	}

	require.NotEqual(t, Receipt("evt-1", ballot), Receipt("evt-2", ballot))
}

func TestVerifyReceipt(t *testing.T) {
	ballot := entities.Ballot{
		Method:     entities.MethodSimpleMajority,
		Selections: []string{"opt-a"},
	}
	receipt := Receipt("evt-1", ballot)

	require.True(t, VerifyReceipt("evt-1", ballot, receipt))
	require.False(t, VerifyReceipt("evt-1", ballot, "tampered"))
	require.False(t, VerifyReceipt("evt-1", ballot, ""))

	tampered := ballot
	tampered.Selections = []string{"opt-b"}
	require.False(t, VerifyReceipt("evt-1", tampered, receipt))
}

func TestDigestIsOrderIndependent(t *testing.T) {
	ballots := []entities.Ballot{
		{BallotID: "b1", EventID: "evt-1", Method: entities.MethodSimpleMajority, Selections: []string{"opt-a"}},
		{BallotID: "b2", EventID: "evt-1", Method: entities.MethodSimpleMajority, Selections: []string{"opt-b"}},
	}
	reversed := []entities.Ballot{ballots[1], ballots[0]}

	require.Equal(t, Digest(ballots), Digest(reversed))
}

func TestDigestReflectsBallotContent(t *testing.T) {
	base := []entities.Ballot{
		{BallotID: "b1", EventID: "evt-1", Method: entities.MethodSimpleMajority, Selections: []string{"opt-a"}},
	}
	changed := []entities.Ballot{
		{BallotID: "b1", EventID: "evt-1", Method: entities.MethodSimpleMajority, Selections: []string{"opt-b"}},
	}

	require.NotEqual(t, Digest(base), Digest(changed))
}
