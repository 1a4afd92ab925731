package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/mo"

	// necessary import to wire up the postgres driver
	_ "github.com/lib/pq"

	"github.com/JatinSri1909/slack-connect-server/core"
	dbtx "github.com/JatinSri1909/slack-connect-server/db/tx"
	"github.com/JatinSri1909/slack-connect-server/models"
)

type PostgresScheduledMessagesRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for scheduled_messages table
var scheduledMessagesColumns = []string{
	"id",
	"slack_team_id",
	"channel_id",
	"channel_name",
	"message",
	"scheduled_time",
	"status",
	"created_at",
	"updated_at",
}

func NewPostgresScheduledMessagesRepository(db *sqlx.DB, schema string) *PostgresScheduledMessagesRepository {
	return &PostgresScheduledMessagesRepository{db: db, schema: schema}
}

func (r *PostgresScheduledMessagesRepository) CreateScheduledMessage(
	ctx context.Context,
	message *models.ScheduledMessage,
) error {
	insertColumns := []string{
		"id",
		"slack_team_id",
		"channel_id",
		"channel_name",
		"message",
		"scheduled_time",
		"status",
		"created_at",
		"updated_at",
	}
	columnsStr := strings.Join(insertColumns, ", ")
	returningStr := strings.Join(scheduledMessagesColumns, ", ")

	query := fmt.Sprintf(`
		INSERT INTO %s.scheduled_messages (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING %s`, r.schema, columnsStr, returningStr)

	querier := dbtx.GetTransactional(ctx, r.db)
	err := querier.QueryRowxContext(
		ctx,
		query,
		message.ID,
		message.SlackTeamID,
		message.ChannelID,
		message.ChannelName,
		message.Message,
		message.ScheduledTime,
		message.Status,
	).StructScan(message)
	if err != nil {
		return fmt.Errorf("failed to create scheduled message: %w", err)
	}

	return nil
}

func (r *PostgresScheduledMessagesRepository) GetScheduledMessageByID(
	ctx context.Context,
	id string,
) (mo.Option[*models.ScheduledMessage], error) {
	if !core.IsValidID(id) {
		return mo.None[*models.ScheduledMessage](), fmt.Errorf("message ID must be a valid prefixed ULID")
	}

	columnsStr := strings.Join(scheduledMessagesColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.scheduled_messages
		WHERE id = $1`, columnsStr, r.schema)

	querier := dbtx.GetTransactional(ctx, r.db)
	var message models.ScheduledMessage
	err := querier.GetContext(ctx, &message, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mo.None[*models.ScheduledMessage](), nil
		}
		return mo.None[*models.ScheduledMessage](), fmt.Errorf("failed to get scheduled message by ID: %w", err)
	}

	return mo.Some(&message), nil
}

func (r *PostgresScheduledMessagesRepository) GetPendingMessagesByTeamID(
	ctx context.Context,
	teamID string,
) ([]*models.ScheduledMessage, error) {
	if teamID == "" {
		return nil, fmt.Errorf("team ID cannot be empty")
	}

	columnsStr := strings.Join(scheduledMessagesColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.scheduled_messages
		WHERE slack_team_id = $1 AND status = $2
		ORDER BY scheduled_time ASC`, columnsStr, r.schema)

	var messages []*models.ScheduledMessage
	err := r.db.SelectContext(ctx, &messages, query, teamID, models.ScheduledMessageStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending messages by team ID: %w", err)
	}

	return messages, nil
}

// GetDueMessages returns all pending messages whose scheduled time has passed,
// in ascending scheduled_time order.
func (r *PostgresScheduledMessagesRepository) GetDueMessages(
	ctx context.Context,
	now time.Time,
) ([]*models.ScheduledMessage, error) {
	columnsStr := strings.Join(scheduledMessagesColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.scheduled_messages
		WHERE status = $1 AND scheduled_time <= $2
		ORDER BY scheduled_time ASC`, columnsStr, r.schema)

	var messages []*models.ScheduledMessage
	err := r.db.SelectContext(ctx, &messages, query, models.ScheduledMessageStatusPending, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get due messages: %w", err)
	}

	return messages, nil
}

// ClaimScheduledMessage atomically transitions a message from pending to
// processing. The conditional update is the row's exclusivity gate: a false
// return means another claimer won the race (or the row was cancelled
// concurrently) and the caller must not process the message.
func (r *PostgresScheduledMessagesRepository) ClaimScheduledMessage(
	ctx context.Context,
	id string,
) (bool, error) {
	if !core.IsValidID(id) {
		return false, fmt.Errorf("message ID must be a valid prefixed ULID")
	}

	query := fmt.Sprintf(`
		UPDATE %s.scheduled_messages
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`, r.schema)

	querier := dbtx.GetTransactional(ctx, r.db)
	result, err := querier.ExecContext(
		ctx,
		query,
		models.ScheduledMessageStatusProcessing,
		id,
		models.ScheduledMessageStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim scheduled message: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rowsAffected > 0, nil
}

// FinalizeScheduledMessage transitions a claimed message from processing to a
// terminal status (sent or failed). The status filter keeps the transition
// one-directional.
func (r *PostgresScheduledMessagesRepository) FinalizeScheduledMessage(
	ctx context.Context,
	id string,
	status models.ScheduledMessageStatus,
) (bool, error) {
	if !core.IsValidID(id) {
		return false, fmt.Errorf("message ID must be a valid prefixed ULID")
	}
	if status != models.ScheduledMessageStatusSent && status != models.ScheduledMessageStatusFailed {
		return false, fmt.Errorf("finalize status must be sent or failed, got: %s", status)
	}

	query := fmt.Sprintf(`
		UPDATE %s.scheduled_messages
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`, r.schema)

	querier := dbtx.GetTransactional(ctx, r.db)
	result, err := querier.ExecContext(ctx, query, status, id, models.ScheduledMessageStatusProcessing)
	if err != nil {
		return false, fmt.Errorf("failed to finalize scheduled message: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rowsAffected > 0, nil
}

// CancelScheduledMessage transitions a message from pending to cancelled.
// Returns false when the row does not exist, belongs to another workspace, or
// has already left pending - cancellation is only meaningful before a claim.
func (r *PostgresScheduledMessagesRepository) CancelScheduledMessage(
	ctx context.Context,
	id string,
	teamID string,
) (bool, error) {
	if !core.IsValidID(id) {
		return false, fmt.Errorf("message ID must be a valid prefixed ULID")
	}
	if teamID == "" {
		return false, fmt.Errorf("team ID cannot be empty")
	}

	query := fmt.Sprintf(`
		UPDATE %s.scheduled_messages
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND slack_team_id = $3 AND status = $4`, r.schema)

	querier := dbtx.GetTransactional(ctx, r.db)
	result, err := querier.ExecContext(
		ctx,
		query,
		models.ScheduledMessageStatusCancelled,
		id,
		teamID,
		models.ScheduledMessageStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to cancel scheduled message: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rowsAffected > 0, nil
}

// DeletePendingMessage physically removes a message that is still pending.
// This is the only delete path the pipeline exposes; claimed and terminal rows
// are never deleted.
func (r *PostgresScheduledMessagesRepository) DeletePendingMessage(
	ctx context.Context,
	id string,
	teamID string,
) (bool, error) {
	if !core.IsValidID(id) {
		return false, fmt.Errorf("message ID must be a valid prefixed ULID")
	}
	if teamID == "" {
		return false, fmt.Errorf("team ID cannot be empty")
	}

	query := fmt.Sprintf(`
		DELETE FROM %s.scheduled_messages
		WHERE id = $1 AND slack_team_id = $2 AND status = $3`, r.schema)

	querier := dbtx.GetTransactional(ctx, r.db)
	result, err := querier.ExecContext(ctx, query, id, teamID, models.ScheduledMessageStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to delete pending message: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *PostgresScheduledMessagesRepository) CountPendingMessages(ctx context.Context) (int, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM %s.scheduled_messages
		WHERE status = $1`, r.schema)

	var count int
	err := r.db.GetContext(ctx, &count, query, models.ScheduledMessageStatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending messages: %w", err)
	}

	return count, nil
}
