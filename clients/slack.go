package clients

import (
	"context"
	"errors"
)

// ErrInvalidRefreshToken is returned by RefreshOAuthToken when the token
// endpoint rejects the refresh token itself, as opposed to failing
// transiently. This is a terminal signal - the workspace must re-authorize.
var ErrInvalidRefreshToken = errors.New("refresh token rejected by token endpoint")

// Channel-condition errors, distinguished so callers can render actionable
// messages instead of a generic failure.
var (
	ErrChannelNotFound = errors.New("channel not found")
	ErrChannelArchived = errors.New("channel is archived")
	ErrChannelPrivate  = errors.New("channel is private and joinable only by manual invite")
)

// SlackOAuthResponse carries the fields of a token exchange or refresh that
// this application persists
type SlackOAuthResponse struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int // seconds; zero when the token does not expire
	TeamID       string
	TeamName     string
	BotUserID    string
}

type SlackChannel struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsPrivate  bool   `json:"is_private"`
	IsArchived bool   `json:"is_archived"`
	IsMember   bool   `json:"is_member"`
}

type SlackPostMessageResponse struct {
	Channel   string
	Timestamp string
}

// SlackOAuthClient performs token-endpoint operations. It needs no workspace
// token, only the application's client credentials.
type SlackOAuthClient interface {
	ExchangeOAuthCode(ctx context.Context, code, redirectURL string) (*SlackOAuthResponse, error)
	RefreshOAuthToken(ctx context.Context, refreshToken string) (*SlackOAuthResponse, error)
}

// SlackClient performs workspace-scoped API operations with a bound auth token
type SlackClient interface {
	ListChannels(ctx context.Context) ([]SlackChannel, error)
	GetChannelInfo(ctx context.Context, channelID string) (*SlackChannel, error)
	JoinChannel(ctx context.Context, channelID string) (*SlackChannel, error)
	PostMessage(ctx context.Context, channelID, text string) (*SlackPostMessageResponse, error)
}

// SlackClientFactory builds a workspace-scoped client for a resolved token.
// Injected so the transport can be tested without the real SDK.
type SlackClientFactory func(authToken string) SlackClient
