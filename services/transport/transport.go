package transport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/JatinSri1909/slack-connect-server/clients"
	"github.com/JatinSri1909/slack-connect-server/core"
	"github.com/JatinSri1909/slack-connect-server/services/retry"
)

// Slack's chat.postMessage text limit, counted in characters
const maxMessageLength = 4000

var (
	teamIDPattern    = regexp.MustCompile(`^T[A-Z0-9]{6,12}$`)
	channelIDPattern = regexp.MustCompile(`^[CGD][A-Z0-9]{6,12}$`)
	unsafeMarkup     = regexp.MustCompile(`(?i)(<\s*script|javascript\s*:|on\w+\s*=)`)
)

// CredentialResolver produces a bot-capable token for a workspace
type CredentialResolver interface {
	ResolveBotToken(ctx context.Context, teamID string) (string, error)
}

// JoinChannelResult reports the outcome of a join attempt. Reason is set when
// Joined is false and distinguishes conditions the caller can act on.
type JoinChannelResult struct {
	Joined    bool   `json:"joined"`
	IsPrivate bool   `json:"is_private"`
	Reason    string `json:"reason,omitempty"`
}

const (
	JoinReasonPrivate  = "private"
	JoinReasonNotFound = "not_found"
	JoinReasonArchived = "archived"
)

// MessageTransport delivers one message to one channel in one workspace,
// resolving credentials and tolerating channel-membership gaps.
type MessageTransport struct {
	credentials   CredentialResolver
	clientFactory clients.SlackClientFactory
	apiPolicy     retry.Policy
}

func NewMessageTransport(
	credentials CredentialResolver,
	clientFactory clients.SlackClientFactory,
	apiPolicy retry.Policy,
) *MessageTransport {
	return &MessageTransport{
		credentials:   credentials,
		clientFactory: clientFactory,
		apiPolicy:     apiPolicy,
	}
}

// Deliver validates input, resolves a token, joins the channel best-effort and
// posts the message with bounded retries. Validation failures never reach the
// retry executor; a join failure never aborts the send attempt.
func (t *MessageTransport) Deliver(ctx context.Context, teamID, channelID, body string) error {
	if err := validateTeamID(teamID); err != nil {
		return err
	}
	if err := validateChannelID(channelID); err != nil {
		return err
	}
	sanitized, err := SanitizeMessageBody(body)
	if err != nil {
		return err
	}

	// Token resolution may hit the OAuth refresh endpoint, so it runs under
	// the same retry policy as other API calls. Terminal credential errors are
	// rejected by the predicate and surface on the first attempt.
	var token string
	err = t.apiPolicy.Execute(ctx, fmt.Sprintf("resolve credential for %s", teamID), func() error {
		var resolveErr error
		token, resolveErr = t.credentials.ResolveBotToken(ctx, teamID)
		return resolveErr
	})
	if err != nil {
		return fmt.Errorf("failed to resolve credential for delivery: %w", err)
	}

	client := t.clientFactory(token)

	// The bot may already be a member, or the channel may be private and
	// joinable only by manual invite - either way the send attempt decides.
	if _, joinErr := client.JoinChannel(ctx, channelID); joinErr != nil {
		log.Printf("⚠️ Could not join channel %s before sending, proceeding anyway: %v", channelID, joinErr)
	}

	err = t.apiPolicy.Execute(ctx, fmt.Sprintf("post message to %s", channelID), func() error {
		_, postErr := client.PostMessage(ctx, channelID, sanitized)
		return postErr
	})
	if err != nil {
		var notInChannel *core.NotInChannelError
		if errors.As(err, &notInChannel) {
			return notInChannel
		}
		return fmt.Errorf("failed to post message to channel %s: %w", channelID, err)
	}

	return nil
}

// ListChannels lists the channels visible to the workspace's bot
func (t *MessageTransport) ListChannels(ctx context.Context, teamID string) ([]clients.SlackChannel, error) {
	if err := validateTeamID(teamID); err != nil {
		return nil, err
	}

	token, err := t.credentials.ResolveBotToken(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve credential: %w", err)
	}

	var channels []clients.SlackChannel
	client := t.clientFactory(token)
	err = t.apiPolicy.Execute(ctx, "list channels", func() error {
		var listErr error
		channels, listErr = client.ListChannels(ctx)
		return listErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list channels for team %s: %w", teamID, err)
	}

	return channels, nil
}

// JoinChannel attempts to join the target channel, distinguishing private,
// missing and archived channels from generic failures
func (t *MessageTransport) JoinChannel(
	ctx context.Context,
	teamID, channelID string,
) (*JoinChannelResult, error) {
	if err := validateTeamID(teamID); err != nil {
		return nil, err
	}
	if err := validateChannelID(channelID); err != nil {
		return nil, err
	}

	token, err := t.credentials.ResolveBotToken(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve credential: %w", err)
	}

	client := t.clientFactory(token)
	channel, err := client.JoinChannel(ctx, channelID)
	if err != nil {
		switch {
		case errors.Is(err, clients.ErrChannelPrivate):
			return &JoinChannelResult{IsPrivate: true, Reason: JoinReasonPrivate}, nil
		case errors.Is(err, clients.ErrChannelNotFound):
			return &JoinChannelResult{Reason: JoinReasonNotFound}, nil
		case errors.Is(err, clients.ErrChannelArchived):
			return &JoinChannelResult{Reason: JoinReasonArchived}, nil
		default:
			return nil, fmt.Errorf("failed to join channel %s: %w", channelID, err)
		}
	}

	return &JoinChannelResult{Joined: true, IsPrivate: channel.IsPrivate}, nil
}

func validateTeamID(teamID string) error {
	if !teamIDPattern.MatchString(teamID) {
		return core.NewValidationError("team_id", "must be a Slack team ID like T00000001")
	}
	return nil
}

func validateChannelID(channelID string) error {
	if !channelIDPattern.MatchString(channelID) {
		return core.NewValidationError("channel_id", "must be a Slack channel ID like C000000001")
	}
	return nil
}

// SanitizeMessageBody strips control characters, rejects unsafe markup and
// enforces the platform's length cap. Returned errors are ValidationErrors and
// must not reach the retry executor.
func SanitizeMessageBody(body string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, body)

	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return "", core.NewValidationError("message", "cannot be empty")
	}
	if utf8.RuneCountInString(cleaned) > maxMessageLength {
		return "", core.NewValidationError("message", fmt.Sprintf("exceeds %d character limit", maxMessageLength))
	}
	if unsafeMarkup.MatchString(cleaned) {
		return "", core.NewValidationError("message", "contains unsafe markup")
	}

	return cleaned, nil
}
