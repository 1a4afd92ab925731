package credentials

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/samber/mo"

	"github.com/JatinSri1909/slack-connect-server/clients"
	"github.com/JatinSri1909/slack-connect-server/core"
	"github.com/JatinSri1909/slack-connect-server/db"
	"github.com/JatinSri1909/slack-connect-server/models"
	"github.com/JatinSri1909/slack-connect-server/services/txmanager"
)

// CredentialsService is the credential store: it produces a currently-valid
// access token for a workspace, transparently refreshing expired tokens and
// invalidating the record when the refresh token itself is rejected.
type CredentialsService struct {
	integrationsRepo *db.PostgresSlackIntegrationsRepository
	oauthClient      clients.SlackOAuthClient
	txManager        *txmanager.TransactionManager

	// now is overridable for tests
	now func() time.Time
}

func NewCredentialsService(
	integrationsRepo *db.PostgresSlackIntegrationsRepository,
	oauthClient clients.SlackOAuthClient,
	txManager *txmanager.TransactionManager,
) *CredentialsService {
	return &CredentialsService{
		integrationsRepo: integrationsRepo,
		oauthClient:      oauthClient,
		txManager:        txManager,
		now:              time.Now,
	}
}

// ExchangeOAuthCode performs the one-time authorization-code grant and
// persists the resulting credential record, replacing any previous record for
// the same workspace.
func (s *CredentialsService) ExchangeOAuthCode(
	ctx context.Context,
	code, redirectURL string,
) (*models.SlackIntegration, error) {
	log.Printf("📋 Starting OAuth code exchange")
	if code == "" {
		return nil, core.NewValidationError("code", "cannot be empty")
	}

	oauthResponse, err := s.oauthClient.ExchangeOAuthCode(ctx, code, redirectURL)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange OAuth code with Slack: %w", err)
	}

	if oauthResponse.TeamID == "" {
		return nil, fmt.Errorf("team ID not found in Slack OAuth response")
	}
	if oauthResponse.AccessToken == "" {
		return nil, fmt.Errorf("access token not found in Slack OAuth response")
	}

	integration := s.integrationFromOAuthResponse(oauthResponse)
	if err := s.integrationsRepo.UpsertSlackIntegration(ctx, integration); err != nil {
		return nil, fmt.Errorf("failed to persist slack integration: %w", err)
	}

	log.Printf("📋 Completed successfully - stored credential for team: %s (%s)",
		integration.SlackTeamName, integration.SlackTeamID)
	return integration, nil
}

// ResolveBotToken returns a currently-valid bot-capable token for the
// workspace, refreshing it first when expired. Terminal failures
// (core.ErrNoCredential, core.ErrCredentialExpired, core.ErrReauthRequired)
// must not be retried by callers.
func (s *CredentialsService) ResolveBotToken(ctx context.Context, teamID string) (string, error) {
	if teamID == "" {
		return "", core.NewValidationError("team_id", "cannot be empty")
	}

	maybeIntegration, err := s.integrationsRepo.GetSlackIntegrationByTeamID(ctx, teamID)
	if err != nil {
		return "", fmt.Errorf("failed to load credential for team %s: %w", teamID, err)
	}
	if !maybeIntegration.IsPresent() {
		return "", fmt.Errorf("team %s: %w", teamID, core.ErrNoCredential)
	}
	integration := maybeIntegration.MustGet()

	if !integration.IsTokenExpired(s.now()) {
		return integration.PreferredBotToken(), nil
	}

	if integration.RefreshToken == nil || *integration.RefreshToken == "" {
		return "", fmt.Errorf("team %s: %w", teamID, core.ErrCredentialExpired)
	}

	log.Printf("📋 Access token expired for team %s, refreshing", teamID)
	return s.refreshCredential(ctx, integration)
}

// refreshCredential exchanges the refresh token for new tokens and persists
// all token fields atomically. A rejected refresh token deletes the record and
// surfaces core.ErrReauthRequired; any other failure is left to the caller's
// policy (not retried here).
func (s *CredentialsService) refreshCredential(
	ctx context.Context,
	integration *models.SlackIntegration,
) (string, error) {
	oauthResponse, err := s.oauthClient.RefreshOAuthToken(ctx, *integration.RefreshToken)
	if err != nil {
		if errors.Is(err, clients.ErrInvalidRefreshToken) {
			log.Printf("⚠️ Refresh token rejected for team %s, deleting credential", integration.SlackTeamID)
			if _, deleteErr := s.integrationsRepo.DeleteSlackIntegrationByTeamID(ctx, integration.SlackTeamID); deleteErr != nil {
				log.Printf("❌ Failed to delete invalid credential for team %s: %v", integration.SlackTeamID, deleteErr)
			}
			return "", fmt.Errorf("team %s: %w", integration.SlackTeamID, core.ErrReauthRequired)
		}
		return "", fmt.Errorf("failed to refresh token for team %s: %w", integration.SlackTeamID, err)
	}

	if oauthResponse.AccessToken == "" {
		return "", fmt.Errorf("refresh response for team %s carried no access token", integration.SlackTeamID)
	}

	integration.AccessToken = oauthResponse.AccessToken
	if oauthResponse.RefreshToken != "" {
		integration.RefreshToken = &oauthResponse.RefreshToken
	}
	integration.TokenExpiresAt = s.expiryFromSeconds(oauthResponse.ExpiresIn)

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.integrationsRepo.UpsertSlackIntegration(txCtx, integration)
	})
	if err != nil {
		return "", fmt.Errorf("failed to persist refreshed credential for team %s: %w", integration.SlackTeamID, err)
	}

	log.Printf("📋 Completed successfully - refreshed credential for team: %s", integration.SlackTeamID)
	return integration.PreferredBotToken(), nil
}

// InvalidateCredential deletes the credential record for a workspace so
// subsequent resolves fail fast with core.ErrNoCredential
func (s *CredentialsService) InvalidateCredential(ctx context.Context, teamID string) error {
	log.Printf("📋 Starting to invalidate credential for team: %s", teamID)
	if teamID == "" {
		return core.NewValidationError("team_id", "cannot be empty")
	}

	deleted, err := s.integrationsRepo.DeleteSlackIntegrationByTeamID(ctx, teamID)
	if err != nil {
		return fmt.Errorf("failed to invalidate credential: %w", err)
	}
	if !deleted {
		return core.ErrNotFound
	}

	log.Printf("📋 Completed successfully - invalidated credential for team: %s", teamID)
	return nil
}

// GetWorkspaceByTeamID loads the credential record for one workspace
func (s *CredentialsService) GetWorkspaceByTeamID(
	ctx context.Context,
	teamID string,
) (mo.Option[*models.SlackIntegration], error) {
	if teamID == "" {
		return mo.None[*models.SlackIntegration](), core.NewValidationError("team_id", "cannot be empty")
	}

	return s.integrationsRepo.GetSlackIntegrationByTeamID(ctx, teamID)
}

// GetAllWorkspaces lists every connected workspace, used by the admin status endpoint
func (s *CredentialsService) GetAllWorkspaces(ctx context.Context) ([]*models.SlackIntegration, error) {
	integrations, err := s.integrationsRepo.GetAllSlackIntegrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get workspaces: %w", err)
	}

	return integrations, nil
}

func (s *CredentialsService) integrationFromOAuthResponse(
	oauthResponse *clients.SlackOAuthResponse,
) *models.SlackIntegration {
	integration := &models.SlackIntegration{
		ID:             core.NewID("si"),
		SlackTeamID:    oauthResponse.TeamID,
		SlackTeamName:  oauthResponse.TeamName,
		AccessToken:    oauthResponse.AccessToken,
		TokenExpiresAt: s.expiryFromSeconds(oauthResponse.ExpiresIn),
	}
	if oauthResponse.RefreshToken != "" {
		integration.RefreshToken = &oauthResponse.RefreshToken
	}
	return integration
}

func (s *CredentialsService) expiryFromSeconds(expiresIn int) *time.Time {
	if expiresIn <= 0 {
		return nil
	}
	expiresAt := s.now().Add(time.Duration(expiresIn) * time.Second)
	return &expiresAt
}
