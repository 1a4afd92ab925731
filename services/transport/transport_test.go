package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JatinSri1909/slack-connect-server/clients"
	slackclient "github.com/JatinSri1909/slack-connect-server/clients/slack"
	"github.com/JatinSri1909/slack-connect-server/core"
	"github.com/JatinSri1909/slack-connect-server/services/retry"
)

type stubCredentialResolver struct {
	token string
	err   error
	calls int
}

func (s *stubCredentialResolver) ResolveBotToken(ctx context.Context, teamID string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.token, nil
}

func fastAPIPolicy() retry.Policy {
	policy := retry.APICallPolicy()
	policy.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return policy
}

func newTestTransport(mockClient *slackclient.MockSlackClient, resolver CredentialResolver) *MessageTransport {
	factory := func(authToken string) clients.SlackClient { return mockClient }
	return NewMessageTransport(resolver, factory, fastAPIPolicy())
}

func TestDeliver(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockClient := slackclient.NewMockSlackClient()
		var postedBody string
		mockClient.MockPostMessage = func(ctx context.Context, channelID, text string) (*clients.SlackPostMessageResponse, error) {
			postedBody = text
			return &clients.SlackPostMessageResponse{Channel: channelID, Timestamp: "1.2"}, nil
		}
		resolver := &stubCredentialResolver{token: "xoxb-token"}
		transport := newTestTransport(mockClient, resolver)

		err := transport.Deliver(context.Background(), "T00000001", "C000000001", "  hello world  ")

		require.NoError(t, err)
		assert.Equal(t, "hello world", postedBody)
		assert.Equal(t, 1, resolver.calls)
	})

	t.Run("InvalidInputNeverReachesAPI", func(t *testing.T) {
		mockClient := slackclient.NewMockSlackClient()
		postCalls := 0
		mockClient.MockPostMessage = func(ctx context.Context, channelID, text string) (*clients.SlackPostMessageResponse, error) {
			postCalls++
			return nil, nil
		}
		resolver := &stubCredentialResolver{token: "xoxb-token"}
		transport := newTestTransport(mockClient, resolver)

		cases := []struct {
			name               string
			teamID, channelID  string
			body               string
		}{
			{"BadTeamID", "not-a-team", "C000000001", "hello"},
			{"BadChannelID", "T00000001", "bogus", "hello"},
			{"EmptyBody", "T00000001", "C000000001", "   "},
			{"UnsafeMarkup", "T00000001", "C000000001", "<script>alert(1)</script>"},
			{"OverlongBody", "T00000001", "C000000001", strings.Repeat("a", 4001)},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				err := transport.Deliver(context.Background(), tc.teamID, tc.channelID, tc.body)
				require.Error(t, err)
				assert.True(t, core.IsValidationError(err))
			})
		}

		assert.Equal(t, 0, postCalls)
		assert.Equal(t, 0, resolver.calls)
	})

	t.Run("JoinFailureDoesNotAbortSend", func(t *testing.T) {
		mockClient := slackclient.NewMockSlackClient()
		mockClient.MockJoinChannel = func(ctx context.Context, channelID string) (*clients.SlackChannel, error) {
			return nil, fmt.Errorf("channel %s: %w", channelID, clients.ErrChannelPrivate)
		}
		postCalls := 0
		mockClient.MockPostMessage = func(ctx context.Context, channelID, text string) (*clients.SlackPostMessageResponse, error) {
			postCalls++
			return &clients.SlackPostMessageResponse{Channel: channelID, Timestamp: "1.2"}, nil
		}
		transport := newTestTransport(mockClient, &stubCredentialResolver{token: "xoxb-token"})

		err := transport.Deliver(context.Background(), "T00000001", "C000000001", "hello")

		require.NoError(t, err)
		assert.Equal(t, 1, postCalls)
	})

	t.Run("NotInChannelIsDistinguished", func(t *testing.T) {
		mockClient := slackclient.NewMockSlackClient()
		mockClient.MockPostMessage = func(ctx context.Context, channelID, text string) (*clients.SlackPostMessageResponse, error) {
			return nil, &core.NotInChannelError{ChannelID: channelID}
		}
		transport := newTestTransport(mockClient, &stubCredentialResolver{token: "xoxb-token"})

		err := transport.Deliver(context.Background(), "T00000001", "C000000001", "hello")

		require.Error(t, err)
		var notInChannel *core.NotInChannelError
		require.ErrorAs(t, err, &notInChannel)
		assert.Equal(t, "C000000001", notInChannel.ChannelID)
		assert.Contains(t, notInChannel.Error(), "/invite")
	})

	t.Run("TransientFailureRetriedThenSucceeds", func(t *testing.T) {
		mockClient := slackclient.NewMockSlackClient()
		postCalls := 0
		mockClient.MockPostMessage = func(ctx context.Context, channelID, text string) (*clients.SlackPostMessageResponse, error) {
			postCalls++
			if postCalls < 3 {
				return nil, &core.TransientError{Err: errors.New("slack server error: 503")}
			}
			return &clients.SlackPostMessageResponse{Channel: channelID, Timestamp: "1.2"}, nil
		}
		transport := newTestTransport(mockClient, &stubCredentialResolver{token: "xoxb-token"})

		err := transport.Deliver(context.Background(), "T00000001", "C000000001", "hello")

		require.NoError(t, err)
		assert.Equal(t, 3, postCalls)
	})

	t.Run("CredentialErrorSurfacesUnretried", func(t *testing.T) {
		mockClient := slackclient.NewMockSlackClient()
		postCalls := 0
		mockClient.MockPostMessage = func(ctx context.Context, channelID, text string) (*clients.SlackPostMessageResponse, error) {
			postCalls++
			return nil, nil
		}
		resolver := &stubCredentialResolver{err: fmt.Errorf("team T00000001: %w", core.ErrNoCredential)}
		transport := newTestTransport(mockClient, resolver)

		err := transport.Deliver(context.Background(), "T00000001", "C000000001", "hello")

		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrNoCredential)
		assert.Equal(t, 0, postCalls)
		assert.Equal(t, 1, resolver.calls)
	})
}

func TestJoinChannel(t *testing.T) {
	t.Run("Joined", func(t *testing.T) {
		mockClient := slackclient.NewMockSlackClient()
		transport := newTestTransport(mockClient, &stubCredentialResolver{token: "xoxb-token"})

		result, err := transport.JoinChannel(context.Background(), "T00000001", "C000000001")

		require.NoError(t, err)
		assert.True(t, result.Joined)
	})

	t.Run("DistinguishesChannelConditions", func(t *testing.T) {
		cases := []struct {
			name    string
			joinErr error
			reason  string
			private bool
		}{
			{"Private", clients.ErrChannelPrivate, JoinReasonPrivate, true},
			{"NotFound", clients.ErrChannelNotFound, JoinReasonNotFound, false},
			{"Archived", clients.ErrChannelArchived, JoinReasonArchived, false},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				mockClient := slackclient.NewMockSlackClient()
				mockClient.MockJoinChannel = func(ctx context.Context, channelID string) (*clients.SlackChannel, error) {
					return nil, fmt.Errorf("channel %s: %w", channelID, tc.joinErr)
				}
				transport := newTestTransport(mockClient, &stubCredentialResolver{token: "xoxb-token"})

				result, err := transport.JoinChannel(context.Background(), "T00000001", "C000000001")

				require.NoError(t, err)
				assert.False(t, result.Joined)
				assert.Equal(t, tc.reason, result.Reason)
				assert.Equal(t, tc.private, result.IsPrivate)
			})
		}
	})

	t.Run("GenericFailurePropagates", func(t *testing.T) {
		mockClient := slackclient.NewMockSlackClient()
		mockClient.MockJoinChannel = func(ctx context.Context, channelID string) (*clients.SlackChannel, error) {
			return nil, errors.New("boom")
		}
		transport := newTestTransport(mockClient, &stubCredentialResolver{token: "xoxb-token"})

		_, err := transport.JoinChannel(context.Background(), "T00000001", "C000000001")

		require.Error(t, err)
	})
}

func TestSanitizeMessageBody(t *testing.T) {
	t.Run("StripsControlCharacters", func(t *testing.T) {
		sanitized, err := SanitizeMessageBody("hel\x00lo\nworld\t!")
		require.NoError(t, err)
		assert.Equal(t, "hello\nworld\t!", sanitized)
	})

	t.Run("RejectsUnsafeMarkup", func(t *testing.T) {
		for _, body := range []string{"<script>x</script>", "click javascript:alert(1)", `<img onerror=x>`} {
			_, err := SanitizeMessageBody(body)
			require.Error(t, err, "body %q should be rejected", body)
			assert.True(t, core.IsValidationError(err))
		}
	})

	t.Run("AcceptsMaxLengthBody", func(t *testing.T) {
		sanitized, err := SanitizeMessageBody(strings.Repeat("a", 4000))
		require.NoError(t, err)
		assert.Len(t, sanitized, 4000)
	})

	t.Run("LengthCapCountsRunesNotBytes", func(t *testing.T) {
		sanitized, err := SanitizeMessageBody(strings.Repeat("안", 4000))
		require.NoError(t, err)
		assert.Equal(t, 4000, utf8.RuneCountInString(sanitized))

		_, err = SanitizeMessageBody(strings.Repeat("안", 4001))
		require.Error(t, err)
		assert.True(t, core.IsValidationError(err))
	})
}
