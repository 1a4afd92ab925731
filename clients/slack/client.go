package slack

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/slack-go/slack"

	"github.com/JatinSri1909/slack-connect-server/clients"
	"github.com/JatinSri1909/slack-connect-server/core"
)

// SlackClient implements the clients.SlackClient interface using the slack-go/slack SDK
type SlackClient struct {
	client *slack.Client
}

// NewSlackClient creates a new Slack client with the provided auth token
func NewSlackClient(authToken string) clients.SlackClient {
	return &SlackClient{
		client: slack.New(authToken),
	}
}

// SlackOAuthClient implements clients.SlackOAuthClient with the application's
// client credentials bound at construction
type SlackOAuthClient struct {
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

// NewSlackOAuthClient creates a new Slack client for OAuth token operations only
func NewSlackOAuthClient(clientID, clientSecret string) clients.SlackOAuthClient {
	return &SlackOAuthClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{},
	}
}

// ExchangeOAuthCode exchanges an OAuth authorization code for access tokens
func (c *SlackOAuthClient) ExchangeOAuthCode(
	ctx context.Context,
	code, redirectURL string,
) (*clients.SlackOAuthResponse, error) {
	response, err := slack.GetOAuthV2ResponseContext(ctx, c.httpClient, c.clientID, c.clientSecret, code, redirectURL)
	if err != nil {
		return nil, translateError(err)
	}

	return oauthResponseFromSDK(response), nil
}

// RefreshOAuthToken exchanges a refresh token for a new access/refresh token
// pair. A rejection of the refresh token itself is translated into
// clients.ErrInvalidRefreshToken so callers can distinguish it from a
// transient token-endpoint failure.
func (c *SlackOAuthClient) RefreshOAuthToken(
	ctx context.Context,
	refreshToken string,
) (*clients.SlackOAuthResponse, error) {
	response, err := slack.RefreshOAuthV2TokenContext(ctx, c.httpClient, c.clientID, c.clientSecret, refreshToken)
	if err != nil {
		if hasAPIErrorCode(err, "invalid_refresh_token") ||
			hasAPIErrorCode(err, "invalid_grant_type") ||
			hasAPIErrorCode(err, "token_revoked") ||
			hasAPIErrorCode(err, "invalid_grant") {
			return nil, fmt.Errorf("%w: %v", clients.ErrInvalidRefreshToken, err)
		}
		return nil, translateError(err)
	}

	return oauthResponseFromSDK(response), nil
}

func oauthResponseFromSDK(response *slack.OAuthV2Response) *clients.SlackOAuthResponse {
	return &clients.SlackOAuthResponse{
		AccessToken:  response.AccessToken,
		RefreshToken: response.RefreshToken,
		ExpiresIn:    response.ExpiresIn,
		TeamID:       response.Team.ID,
		TeamName:     response.Team.Name,
		BotUserID:    response.BotUserID,
	}
}

// ListChannels lists public and private channels visible to the bot
func (c *SlackClient) ListChannels(ctx context.Context) ([]clients.SlackChannel, error) {
	var channels []clients.SlackChannel
	cursor := ""

	for {
		page, nextCursor, err := c.client.GetConversationsContext(ctx, &slack.GetConversationsParameters{
			Types:           []string{"public_channel", "private_channel"},
			ExcludeArchived: true,
			Limit:           200,
			Cursor:          cursor,
		})
		if err != nil {
			return nil, translateError(err)
		}

		for _, channel := range page {
			channels = append(channels, channelFromSDK(&channel))
		}

		if nextCursor == "" {
			return channels, nil
		}
		cursor = nextCursor
	}
}

// GetChannelInfo fetches metadata for a single channel
func (c *SlackClient) GetChannelInfo(ctx context.Context, channelID string) (*clients.SlackChannel, error) {
	channel, err := c.client.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{
		ChannelID: channelID,
	})
	if err != nil {
		return nil, translateChannelError(err, channelID)
	}

	result := channelFromSDK(channel)
	return &result, nil
}

// JoinChannel attempts to join the given channel. Private, missing and
// archived channels are translated into the distinguished clients errors.
func (c *SlackClient) JoinChannel(ctx context.Context, channelID string) (*clients.SlackChannel, error) {
	channel, _, _, err := c.client.JoinConversationContext(ctx, channelID)
	if err != nil {
		return nil, translateChannelError(err, channelID)
	}

	result := channelFromSDK(channel)
	return &result, nil
}

// PostMessage sends a message to a Slack channel
func (c *SlackClient) PostMessage(
	ctx context.Context,
	channelID, text string,
) (*clients.SlackPostMessageResponse, error) {
	channel, timestamp, err := c.client.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
	if err != nil {
		if hasAPIErrorCode(err, "not_in_channel") || hasAPIErrorCode(err, "not_in_group") {
			return nil, &core.NotInChannelError{ChannelID: channelID}
		}
		return nil, translateError(err)
	}

	return &clients.SlackPostMessageResponse{
		Channel:   channel,
		Timestamp: timestamp,
	}, nil
}

func channelFromSDK(channel *slack.Channel) clients.SlackChannel {
	return clients.SlackChannel{
		ID:         channel.ID,
		Name:       channel.Name,
		IsPrivate:  channel.IsPrivate,
		IsArchived: channel.IsArchived,
		IsMember:   channel.IsMember,
	}
}

// translateError maps SDK-level failures into the application's error
// taxonomy: 429 responses become core.RateLimitedError carrying the server's
// Retry-After hint, network failures and 5xx responses become
// core.TransientError, and API error codes pass through unchanged so callers
// can match on them.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var rateLimited *slack.RateLimitedError
	if errors.As(err, &rateLimited) {
		return &core.RateLimitedError{RetryAfter: rateLimited.RetryAfter}
	}

	var statusCode slack.StatusCodeError
	if errors.As(err, &statusCode) && statusCode.Code >= 500 {
		return &core.TransientError{Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &core.TransientError{Err: err}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &core.TransientError{Err: err}
	}

	return err
}

// hasAPIErrorCode checks whether err carries the given Slack API error code
func hasAPIErrorCode(err error, code string) bool {
	if err == nil {
		return false
	}

	var apiErr slack.SlackErrorResponse
	if errors.As(err, &apiErr) {
		return apiErr.Err == code
	}

	return strings.Contains(err.Error(), code)
}

// translateChannelError maps channel-condition API codes into the
// distinguished clients errors before falling back to translateError
func translateChannelError(err error, channelID string) error {
	switch {
	case hasAPIErrorCode(err, "channel_not_found"):
		return fmt.Errorf("channel %s: %w", channelID, clients.ErrChannelNotFound)
	case hasAPIErrorCode(err, "is_archived"):
		return fmt.Errorf("channel %s: %w", channelID, clients.ErrChannelArchived)
	case hasAPIErrorCode(err, "method_not_supported_for_channel_type") || hasAPIErrorCode(err, "channel_is_private"):
		return fmt.Errorf("channel %s: %w", channelID, clients.ErrChannelPrivate)
	default:
		return translateError(err)
	}
}
