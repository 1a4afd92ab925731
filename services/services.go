package services

import (
	"context"
	"time"

	"github.com/samber/mo"

	"github.com/JatinSri1909/slack-connect-server/clients"
	"github.com/JatinSri1909/slack-connect-server/models"
	"github.com/JatinSri1909/slack-connect-server/services/transport"
)

// CredentialsService defines the interface for the per-workspace credential store
type CredentialsService interface {
	ExchangeOAuthCode(ctx context.Context, code, redirectURL string) (*models.SlackIntegration, error)
	ResolveBotToken(ctx context.Context, teamID string) (string, error)
	InvalidateCredential(ctx context.Context, teamID string) error
	GetWorkspaceByTeamID(ctx context.Context, teamID string) (mo.Option[*models.SlackIntegration], error)
	GetAllWorkspaces(ctx context.Context) ([]*models.SlackIntegration, error)
}

// MessagesService defines the interface for the scheduling control surface
type MessagesService interface {
	ScheduleMessage(
		ctx context.Context,
		teamID, channelID, channelName, body string,
		scheduledTime time.Time,
	) (*models.ScheduledMessage, error)
	ListPendingMessages(ctx context.Context, teamID string) ([]*models.ScheduledMessage, error)
	CancelMessage(ctx context.Context, id, teamID string) (bool, error)
}

// TransportService defines the interface for workspace-scoped Slack operations
type TransportService interface {
	Deliver(ctx context.Context, teamID, channelID, body string) error
	ListChannels(ctx context.Context, teamID string) ([]clients.SlackChannel, error)
	JoinChannel(ctx context.Context, teamID, channelID string) (*transport.JoinChannelResult, error)
}

// DeliveryTrigger runs one delivery cycle out-of-band, subject to the
// scheduler's single-flight guard
type DeliveryTrigger interface {
	TriggerNow(ctx context.Context) error
}
