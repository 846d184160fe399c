// Package votingengine implements the Voting Engine inside the
// civic-participation context.
//
// The module owns vote event lifecycle orchestration (create/open/close/
// cancel), ballot intake with eligibility gating and per-method validation,
// tamper-evident ballot storage with receipt issuance, deterministic tallying
// for all supported voting methods, and lifecycle event production through
// outbox-backed workers. It keeps business rules in application/domain layers
// and isolates infrastructure concerns behind ports and adapters.
package votingengine
