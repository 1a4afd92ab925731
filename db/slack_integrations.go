package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/samber/mo"

	// necessary import to wire up the postgres driver
	_ "github.com/lib/pq"

	dbtx "github.com/JatinSri1909/slack-connect-server/db/tx"
	"github.com/JatinSri1909/slack-connect-server/models"
)

type PostgresSlackIntegrationsRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for slack_integrations table
var slackIntegrationsColumns = []string{
	"id",
	"slack_team_id",
	"slack_team_name",
	"access_token",
	"refresh_token",
	"bot_token",
	"token_expires_at",
	"created_at",
	"updated_at",
}

func NewPostgresSlackIntegrationsRepository(db *sqlx.DB, schema string) *PostgresSlackIntegrationsRepository {
	return &PostgresSlackIntegrationsRepository{db: db, schema: schema}
}

// UpsertSlackIntegration creates or replaces the credential record for a
// workspace. All token fields are written together in a single statement so a
// refresh can never leave a partially updated record behind.
func (r *PostgresSlackIntegrationsRepository) UpsertSlackIntegration(
	ctx context.Context,
	integration *models.SlackIntegration,
) error {
	insertColumns := []string{
		"id",
		"slack_team_id",
		"slack_team_name",
		"access_token",
		"refresh_token",
		"bot_token",
		"token_expires_at",
		"created_at",
		"updated_at",
	}
	columnsStr := strings.Join(insertColumns, ", ")
	returningStr := strings.Join(slackIntegrationsColumns, ", ")

	query := fmt.Sprintf(`
		INSERT INTO %s.slack_integrations (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (slack_team_id) DO UPDATE SET
			slack_team_name = EXCLUDED.slack_team_name,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			bot_token = EXCLUDED.bot_token,
			token_expires_at = EXCLUDED.token_expires_at,
			updated_at = NOW()
		RETURNING %s`, r.schema, columnsStr, returningStr)

	querier := dbtx.GetTransactional(ctx, r.db)
	err := querier.QueryRowxContext(
		ctx,
		query,
		integration.ID,
		integration.SlackTeamID,
		integration.SlackTeamName,
		integration.AccessToken,
		integration.RefreshToken,
		integration.BotToken,
		integration.TokenExpiresAt,
	).StructScan(integration)
	if err != nil {
		return fmt.Errorf("failed to upsert slack integration: %w", err)
	}

	return nil
}

func (r *PostgresSlackIntegrationsRepository) GetSlackIntegrationByTeamID(
	ctx context.Context,
	teamID string,
) (mo.Option[*models.SlackIntegration], error) {
	if teamID == "" {
		return mo.None[*models.SlackIntegration](), fmt.Errorf("team ID cannot be empty")
	}

	columnsStr := strings.Join(slackIntegrationsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.slack_integrations
		WHERE slack_team_id = $1`, columnsStr, r.schema)

	querier := dbtx.GetTransactional(ctx, r.db)
	var integration models.SlackIntegration
	err := querier.GetContext(ctx, &integration, query, teamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mo.None[*models.SlackIntegration](), nil
		}
		return mo.None[*models.SlackIntegration](), fmt.Errorf("failed to get slack integration by team ID: %w", err)
	}

	return mo.Some(&integration), nil
}

func (r *PostgresSlackIntegrationsRepository) GetAllSlackIntegrations(
	ctx context.Context,
) ([]*models.SlackIntegration, error) {
	columnsStr := strings.Join(slackIntegrationsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.slack_integrations
		ORDER BY created_at DESC`, columnsStr, r.schema)

	var integrations []*models.SlackIntegration
	err := r.db.SelectContext(ctx, &integrations, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get all slack integrations: %w", err)
	}

	return integrations, nil
}

// DeleteSlackIntegrationByTeamID removes the credential record for a
// workspace. Used when a refresh attempt proves the refresh token itself
// invalid, forcing re-authorization.
func (r *PostgresSlackIntegrationsRepository) DeleteSlackIntegrationByTeamID(
	ctx context.Context,
	teamID string,
) (bool, error) {
	if teamID == "" {
		return false, fmt.Errorf("team ID cannot be empty")
	}

	query := fmt.Sprintf(`DELETE FROM %s.slack_integrations WHERE slack_team_id = $1`, r.schema)

	querier := dbtx.GetTransactional(ctx, r.db)
	result, err := querier.ExecContext(ctx, query, teamID)
	if err != nil {
		return false, fmt.Errorf("failed to delete slack integration: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rowsAffected > 0, nil
}
