// Package audit computes ballot receipts and whole-event digests.
//
// A receipt is a deterministic hash of one ballot's normalized content plus
// the event id; it is handed to the voter at acceptance for later
// self-verification. The event digest hashes every counted ballot's receipt
// in ballot-id order, so any party holding the full ballot set can recompute
// both and must obtain bit-identical output.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"agora/contexts/civic-participation/voting-engine/domain/entities"
)

// canonicalBallot is the serialization receipts are computed over. Set-like
// payloads are sorted so equivalent ballots hash identically; ranking order
// is preserved because it is meaningful. Map keys are sorted by
// encoding/json.
type canonicalBallot struct {
	EventID     string         `json:"event_id"`
	Method      string         `json:"method"`
	Selections  []string       `json:"selections,omitempty"`
	Ranking     []string       `json:"ranking,omitempty"`
	Weights     map[string]int `json:"weights,omitempty"`
	Allocations []string       `json:"allocations,omitempty"`
}

// Receipt hashes the ballot's normalized content together with the event id.
// Computed once at acceptance and stored alongside the ballot; tallying never
// invalidates it.
func Receipt(eventID string, ballot entities.Ballot) string {
	canonical := canonicalBallot{
		EventID:     eventID,
		Method:      string(ballot.Method),
		Selections:  sortedCopy(ballot.Selections),
		Ranking:     ballot.Ranking,
		Weights:     ballot.Weights,
		Allocations: sortedCopy(ballot.Allocations),
	}
	raw, _ := json.Marshal(canonical)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// VerifyReceipt recomputes the acceptance-time hash and compares it with the
// receipt the voter presents.
func VerifyReceipt(eventID string, ballot entities.Ballot, receipt string) bool {
	return receipt != "" && Receipt(eventID, ballot) == receipt
}

// Digest hashes the receipts of all counted ballots, ordered by ballot id.
// The input slice is not modified.
func Digest(ballots []entities.Ballot) string {
	ordered := make([]entities.Ballot, len(ballots))
	copy(ordered, ballots)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].BallotID < ordered[j].BallotID
	})

	hash := sha256.New()
	for _, ballot := range ordered {
		receipt := ballot.ReceiptHash
		if receipt == "" {
			receipt = Receipt(ballot.EventID, ballot)
		}
		hash.Write([]byte(receipt))
	}
	return hex.EncodeToString(hash.Sum(nil))
}

func sortedCopy(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	sort.Strings(out)
	return out
}
