package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"agora/contexts/civic-participation/voting-engine/domain/entities"
	domainerrors "agora/contexts/civic-participation/voting-engine/domain/errors"
	"agora/contexts/civic-participation/voting-engine/ports"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

// AutoMigrate creates or updates the voting tables. Intended for local and
// test environments; production schemas are managed by migrations.
func (r *Repository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&voteEventModel{},
		&voteOptionModel{},
		&ballotModel{},
		&tallyResultModel{},
		&outboxModel{},
	)
}

func (r *Repository) SaveEvent(ctx context.Context, event entities.VoteEvent) error {
	row, err := eventModelFromEntity(event)
	if err != nil {
		return r.logError("voting_repo_save_event_encode_failed", err, "vote_event_id", event.EventID)
	}
	optionRows := optionModelsFromEntity(event)

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if len(optionRows) > 0 {
			if err := tx.Create(&optionRows).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return r.logError("voting_repo_save_event_failed", err, "vote_event_id", event.EventID)
	}
	return nil
}

func (r *Repository) GetEvent(ctx context.Context, eventID string) (entities.VoteEvent, error) {
	return r.getEvent(ctx, r.db, eventID, false)
}

func (r *Repository) getEvent(
	ctx context.Context,
	db *gorm.DB,
	eventID string,
	forShare bool,
) (entities.VoteEvent, error) {
	tx := db.WithContext(ctx).Where("id = ?", eventID)
	if forShare {
		tx = tx.Clauses(clause.Locking{Strength: "SHARE"})
	}
	var row voteEventModel
	if err := tx.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.VoteEvent{}, domainerrors.ErrEventNotFound
		}
		return entities.VoteEvent{}, r.logError("voting_repo_get_event_failed", err, "vote_event_id", eventID)
	}

	var optionRows []voteOptionModel
	if err := db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("position ASC").
		Find(&optionRows).Error; err != nil {
		return entities.VoteEvent{}, r.logError("voting_repo_get_options_failed", err, "vote_event_id", eventID)
	}
	return row.toEntity(optionRows)
}

func (r *Repository) TransitionEvent(
	ctx context.Context,
	eventID string,
	from, to entities.EventStatus,
	updatedAt time.Time,
) error {
	if !from.CanTransitionTo(to) {
		return domainerrors.ErrInvalidTransition
	}
	result := r.db.WithContext(ctx).
		Model(&voteEventModel{}).
		Where("id = ?", eventID).
		Where("status = ?", string(from)).
		Updates(map[string]any{
			"status":     string(to),
			"updated_at": updatedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("voting_repo_transition_failed", result.Error,
			"vote_event_id", eventID,
			"from", string(from),
			"to", string(to),
		)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&voteEventModel{}).
			Where("id = ?", eventID).
			Count(&count).Error; err != nil {
			return r.logError("voting_repo_transition_check_failed", err, "vote_event_id", eventID)
		}
		if count == 0 {
			return domainerrors.ErrEventNotFound
		}
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) ListDueEvents(ctx context.Context, now time.Time) ([]entities.VoteEvent, error) {
	var rows []voteEventModel
	err := r.db.WithContext(ctx).
		Where("(status = ? AND starts_at <= ?) OR (status = ? AND ends_at < ?)",
			string(entities.EventStatusPending), now.UTC(),
			string(entities.EventStatusOpen), now.UTC(),
		).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, r.logError("voting_repo_list_due_failed", err)
	}

	events := make([]entities.VoteEvent, 0, len(rows))
	for _, row := range rows {
		event, err := r.getEvent(ctx, r.db, row.ID, false)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

// PutBallot commits the ballot inside one transaction: the event row is
// locked shared to fence against a concurrent close, the open window is
// re-checked, and the slot write is an atomic upsert on the
// (event_id, voter_id) unique key so a same-voter race resolves to last
// write wins instead of two counted ballots.
func (r *Repository) PutBallot(ctx context.Context, ballot entities.Ballot) (bool, error) {
	replaced := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, err := r.getEvent(ctx, tx, ballot.EventID, true)
		if err != nil {
			return err
		}
		if !event.IsOpenAt(ballot.CastAt) {
			return domainerrors.ErrVotingClosed
		}

		var count int64
		if err := tx.Model(&ballotModel{}).
			Where("event_id = ?", ballot.EventID).
			Where("voter_id = ?", ballot.VoterID).
			Count(&count).Error; err != nil {
			return err
		}
		replaced = count > 0

		row, err := ballotModelFromEntity(ballot)
		if err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "event_id"}, {Name: "voter_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"id":           row.ID,
				"method":       row.Method,
				"content":      row.Content,
				"receipt_hash": row.ReceiptHash,
				"cast_at":      row.CastAt,
			}),
		}).Create(&row).Error
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrVotingClosed) || errors.Is(err, domainerrors.ErrEventNotFound) {
			return false, err
		}
		if isUniqueViolation(err) {
			return false, domainerrors.ErrConflict
		}
		return false, r.logError("voting_repo_put_ballot_failed", err,
			"vote_event_id", ballot.EventID,
			"ballot_id", ballot.BallotID,
		)
	}
	return replaced, nil
}

func (r *Repository) GetBallot(ctx context.Context, eventID, voterID string) (entities.Ballot, bool, error) {
	var row ballotModel
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Where("voter_id = ?", voterID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Ballot{}, false, nil
		}
		return entities.Ballot{}, false, r.logError("voting_repo_get_ballot_failed", err,
			"vote_event_id", eventID,
		)
	}
	ballot, err := row.toEntity()
	if err != nil {
		return entities.Ballot{}, false, r.logError("voting_repo_decode_ballot_failed", err,
			"ballot_id", row.ID,
		)
	}
	return ballot, true, nil
}

func (r *Repository) ListBallots(ctx context.Context, eventID string) ([]entities.Ballot, error) {
	var rows []ballotModel
	if err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("voting_repo_list_ballots_failed", err, "vote_event_id", eventID)
	}
	ballots := make([]entities.Ballot, 0, len(rows))
	for _, row := range rows {
		ballot, err := row.toEntity()
		if err != nil {
			return nil, r.logError("voting_repo_decode_ballot_failed", err, "ballot_id", row.ID)
		}
		ballots = append(ballots, ballot)
	}
	return ballots, nil
}

func (r *Repository) CountBallots(ctx context.Context, eventID string) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&ballotModel{}).
		Where("event_id = ?", eventID).
		Count(&count).Error; err != nil {
		return 0, r.logError("voting_repo_count_ballots_failed", err, "vote_event_id", eventID)
	}
	return int(count), nil
}

// CompleteTally inserts the result and flips counting -> completed in the
// same transaction. Persistence is all-or-nothing: on any failure the event
// stays in counting with no result row.
func (r *Repository) CompleteTally(ctx context.Context, result entities.TallyResult) error {
	row, err := resultModelFromEntity(result)
	if err != nil {
		return r.logError("voting_repo_encode_result_failed", err, "vote_event_id", result.EventID)
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		create := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).Create(&row)
		if create.Error != nil {
			return create.Error
		}
		if create.RowsAffected == 0 {
			var existing tallyResultModel
			if err := tx.Where("event_id = ?", row.EventID).First(&existing).Error; err != nil {
				return err
			}
			if existing.AuditHash != row.AuditHash {
				return domainerrors.ErrTallyMismatch
			}
		}

		update := tx.Model(&voteEventModel{}).
			Where("id = ?", row.EventID).
			Where("status = ?", string(entities.EventStatusCounting)).
			Updates(map[string]any{
				"status":     string(entities.EventStatusCompleted),
				"updated_at": result.CountedAt.UTC(),
			})
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected == 0 {
			var status string
			if err := tx.Model(&voteEventModel{}).
				Select("status").
				Where("id = ?", row.EventID).
				Scan(&status).Error; err != nil {
				return err
			}
			if status != string(entities.EventStatusCompleted) {
				return domainerrors.ErrInvalidTransition
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrTallyMismatch) || errors.Is(err, domainerrors.ErrInvalidTransition) {
			return err
		}
		return r.logError("voting_repo_complete_tally_failed", err, "vote_event_id", result.EventID)
	}
	return nil
}

func (r *Repository) GetResult(ctx context.Context, eventID string) (entities.TallyResult, bool, error) {
	var row tallyResultModel
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.TallyResult{}, false, nil
		}
		return entities.TallyResult{}, false, r.logError("voting_repo_get_result_failed", err,
			"vote_event_id", eventID,
		)
	}
	result, err := row.toEntity()
	if err != nil {
		return entities.TallyResult{}, false, r.logError("voting_repo_decode_result_failed", err,
			"vote_event_id", eventID,
		)
	}
	return result, true, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("voting_repo_append_outbox_encode_failed", err, "event_id", envelope.EventID)
	}
	row := outboxModel{
		OutboxID:  envelope.EventID,
		EventType: envelope.EventType,
		Payload:   payload,
		Status:    outboxStatusPending,
		CreatedAt: envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("voting_repo_append_outbox_failed", create.Error, "outbox_id", row.OutboxID)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("voting_repo_list_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:  row.OutboxID,
			EventType: row.EventType,
			Payload:   append([]byte(nil), row.Payload...),
			CreatedAt: row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("voting_repo_mark_outbox_failed", result.Error, "outbox_id", outboxID)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "civic-participation/voting-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("voting repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.EventRepository = (*Repository)(nil)
var _ ports.BallotStore = (*Repository)(nil)
var _ ports.ResultRepository = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
