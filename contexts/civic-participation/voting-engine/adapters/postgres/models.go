package postgresadapter

import (
	"encoding/json"
	"time"

	"agora/contexts/civic-participation/voting-engine/domain/entities"
)

type voteEventModel struct {
	ID                   string    `gorm:"column:id;primaryKey"`
	ProcessID            string    `gorm:"column:process_id"`
	Title                string    `gorm:"column:title"`
	Description          string    `gorm:"column:description"`
	Method               string    `gorm:"column:method"`
	StartsAt             time.Time `gorm:"column:starts_at"`
	EndsAt               time.Time `gorm:"column:ends_at"`
	MinVerificationLevel int       `gorm:"column:min_verification_level"`
	AllowedGroups        []byte    `gorm:"column:allowed_groups"`
	MinOptions           int       `gorm:"column:min_options"`
	MaxOptions           int       `gorm:"column:max_options"`
	TotalBudget          int64     `gorm:"column:total_budget"`
	Quorum               int       `gorm:"column:quorum"`
	MajorityThreshold    float64   `gorm:"column:majority_threshold"`
	Status               string    `gorm:"column:status"`
	CreatedBy            string    `gorm:"column:created_by"`
	CreatedAt            time.Time `gorm:"column:created_at"`
	UpdatedAt            time.Time `gorm:"column:updated_at"`
}

func (voteEventModel) TableName() string {
	return "vote_events"
}

func eventModelFromEntity(event entities.VoteEvent) (voteEventModel, error) {
	var groups []byte
	if len(event.Eligibility.AllowedGroups) > 0 {
		encoded, err := json.Marshal(event.Eligibility.AllowedGroups)
		if err != nil {
			return voteEventModel{}, err
		}
		groups = encoded
	}
	return voteEventModel{
		ID:                   event.EventID,
		ProcessID:            event.ProcessID,
		Title:                event.Title,
		Description:          event.Description,
		Method:               string(event.Method),
		StartsAt:             event.StartsAt.UTC(),
		EndsAt:               event.EndsAt.UTC(),
		MinVerificationLevel: event.Eligibility.MinVerificationLevel,
		AllowedGroups:        groups,
		MinOptions:           event.Params.MinOptions,
		MaxOptions:           event.Params.MaxOptions,
		TotalBudget:          event.Params.TotalBudget,
		Quorum:               event.Params.Quorum,
		MajorityThreshold:    event.Params.MajorityThresholdPercent,
		Status:               string(event.Status),
		CreatedBy:            event.CreatedBy,
		CreatedAt:            event.CreatedAt.UTC(),
		UpdatedAt:            event.UpdatedAt.UTC(),
	}, nil
}

func (m voteEventModel) toEntity(optionRows []voteOptionModel) (entities.VoteEvent, error) {
	var groups []string
	if len(m.AllowedGroups) > 0 {
		if err := json.Unmarshal(m.AllowedGroups, &groups); err != nil {
			return entities.VoteEvent{}, err
		}
	}
	options := make([]entities.Option, 0, len(optionRows))
	for _, row := range optionRows {
		options = append(options, entities.Option{
			OptionID: row.OptionID,
			Kind:     entities.OptionKind(row.Kind),
			Title:    row.Title,
			Cost:     row.Cost,
		})
	}
	return entities.VoteEvent{
		EventID:     m.ID,
		ProcessID:   m.ProcessID,
		Title:       m.Title,
		Description: m.Description,
		Method:      entities.Method(m.Method),
		Options:     options,
		StartsAt:    m.StartsAt.UTC(),
		EndsAt:      m.EndsAt.UTC(),
		Eligibility: entities.Eligibility{
			MinVerificationLevel: m.MinVerificationLevel,
			AllowedGroups:        groups,
		},
		Params: entities.VoteParams{
			MinOptions:               m.MinOptions,
			MaxOptions:               m.MaxOptions,
			TotalBudget:              m.TotalBudget,
			Quorum:                   m.Quorum,
			MajorityThresholdPercent: m.MajorityThreshold,
		},
		Status:    entities.EventStatus(m.Status),
		CreatedBy: m.CreatedBy,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}, nil
}

// Options live in their own table, written once at event creation and never
// mutated afterwards; ballots rely on the ids staying stable.
type voteOptionModel struct {
	EventID  string `gorm:"column:event_id;primaryKey"`
	OptionID string `gorm:"column:option_id;primaryKey"`
	Position int    `gorm:"column:position"`
	Kind     string `gorm:"column:kind"`
	Title    string `gorm:"column:title"`
	Cost     int64  `gorm:"column:cost"`
}

func (voteOptionModel) TableName() string {
	return "vote_event_options"
}

func optionModelsFromEntity(event entities.VoteEvent) []voteOptionModel {
	rows := make([]voteOptionModel, 0, len(event.Options))
	for i, option := range event.Options {
		rows = append(rows, voteOptionModel{
			EventID:  event.EventID,
			OptionID: option.OptionID,
			Position: i,
			Kind:     string(option.Kind),
			Title:    option.Title,
			Cost:     option.Cost,
		})
	}
	return rows
}

type ballotContent struct {
	Selections  []string       `json:"selections,omitempty"`
	Ranking     []string       `json:"ranking,omitempty"`
	Weights     map[string]int `json:"weights,omitempty"`
	Allocations []string       `json:"allocations,omitempty"`
}

type ballotModel struct {
	ID          string    `gorm:"column:id"`
	EventID     string    `gorm:"column:event_id;primaryKey"`
	VoterID     string    `gorm:"column:voter_id;primaryKey"`
	Method      string    `gorm:"column:method"`
	Content     []byte    `gorm:"column:content"`
	ReceiptHash string    `gorm:"column:receipt_hash"`
	CastAt      time.Time `gorm:"column:cast_at"`
}

func (ballotModel) TableName() string {
	return "ballots"
}

func ballotModelFromEntity(ballot entities.Ballot) (ballotModel, error) {
	content, err := json.Marshal(ballotContent{
		Selections:  ballot.Selections,
		Ranking:     ballot.Ranking,
		Weights:     ballot.Weights,
		Allocations: ballot.Allocations,
	})
	if err != nil {
		return ballotModel{}, err
	}
	return ballotModel{
		ID:          ballot.BallotID,
		EventID:     ballot.EventID,
		VoterID:     ballot.VoterID,
		Method:      string(ballot.Method),
		Content:     content,
		ReceiptHash: ballot.ReceiptHash,
		CastAt:      ballot.CastAt.UTC(),
	}, nil
}

func (m ballotModel) toEntity() (entities.Ballot, error) {
	var content ballotContent
	if err := json.Unmarshal(m.Content, &content); err != nil {
		return entities.Ballot{}, err
	}
	return entities.Ballot{
		BallotID:    m.ID,
		EventID:     m.EventID,
		VoterID:     m.VoterID,
		Method:      entities.Method(m.Method),
		Selections:  content.Selections,
		Ranking:     content.Ranking,
		Weights:     content.Weights,
		Allocations: content.Allocations,
		ReceiptHash: m.ReceiptHash,
		CastAt:      m.CastAt.UTC(),
	}, nil
}

type tallyResultModel struct {
	EventID       string    `gorm:"column:event_id;primaryKey"`
	Method        string    `gorm:"column:method"`
	Participation int       `gorm:"column:participation"`
	QuorumMet     bool      `gorm:"column:quorum_met"`
	MajorityMet   bool      `gorm:"column:majority_met"`
	AuditHash     string    `gorm:"column:audit_hash"`
	Payload       []byte    `gorm:"column:payload"`
	CountedAt     time.Time `gorm:"column:counted_at"`
	CountedBy     string    `gorm:"column:counted_by"`
}

func (tallyResultModel) TableName() string {
	return "tally_results"
}

func resultModelFromEntity(result entities.TallyResult) (tallyResultModel, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return tallyResultModel{}, err
	}
	return tallyResultModel{
		EventID:       result.EventID,
		Method:        string(result.Method),
		Participation: result.Participation,
		QuorumMet:     result.QuorumMet,
		MajorityMet:   result.MajorityMet,
		AuditHash:     result.AuditHash,
		Payload:       payload,
		CountedAt:     result.CountedAt.UTC(),
		CountedBy:     result.CountedBy,
	}, nil
}

func (m tallyResultModel) toEntity() (entities.TallyResult, error) {
	var result entities.TallyResult
	if err := json.Unmarshal(m.Payload, &result); err != nil {
		return entities.TallyResult{}, err
	}
	return result, nil
}

type outboxModel struct {
	OutboxID    string     `gorm:"column:outbox_id;primaryKey"`
	EventType   string     `gorm:"column:event_type"`
	Payload     []byte     `gorm:"column:payload"`
	Status      string     `gorm:"column:status"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	PublishedAt *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "voting_outbox"
}
