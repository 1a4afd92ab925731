package messages

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JatinSri1909/slack-connect-server/core"
	"github.com/JatinSri1909/slack-connect-server/db"
	"github.com/JatinSri1909/slack-connect-server/models"
	"github.com/JatinSri1909/slack-connect-server/testutils"
)

func setupTestMessagesService(t *testing.T) (*MessagesService, *db.PostgresScheduledMessagesRepository, string, func()) {
	cfg, dbConn := testutils.RequireTestDatabase(t)

	integrationsRepo := db.NewPostgresSlackIntegrationsRepository(dbConn, cfg.DatabaseSchema)
	messagesRepo := db.NewPostgresScheduledMessagesRepository(dbConn, cfg.DatabaseSchema)

	testIntegration := testutils.CreateTestSlackIntegration(t, integrationsRepo)
	service := NewMessagesService(messagesRepo)

	cleanup := func() {
		_, _ = dbConn.Exec(
			fmt.Sprintf(`DELETE FROM %s.scheduled_messages WHERE slack_team_id = $1`, cfg.DatabaseSchema),
			testIntegration.SlackTeamID,
		)
		_, _ = integrationsRepo.DeleteSlackIntegrationByTeamID(context.Background(), testIntegration.SlackTeamID)
		dbConn.Close()
	}

	return service, messagesRepo, testIntegration.SlackTeamID, cleanup
}

func TestMessagesService(t *testing.T) {
	service, messagesRepo, teamID, cleanup := setupTestMessagesService(t)
	defer cleanup()

	t.Run("ScheduleMessage", func(t *testing.T) {
		t.Run("Success", func(t *testing.T) {
			scheduledTime := time.Now().Add(1 * time.Hour)

			message, err := service.ScheduleMessage(
				context.Background(),
				teamID,
				"C000000001",
				"general",
				"hello future",
				scheduledTime,
			)

			require.NoError(t, err)
			assert.NotEmpty(t, message.ID)
			assert.True(t, core.IsValidID(message.ID))
			assert.Equal(t, models.ScheduledMessageStatusPending, message.Status)
			assert.False(t, message.CreatedAt.IsZero())
			assert.False(t, message.UpdatedAt.IsZero())
		})

		t.Run("PastTimePersistsNothing", func(t *testing.T) {
			before, err := service.ListPendingMessages(context.Background(), teamID)
			require.NoError(t, err)

			_, err = service.ScheduleMessage(
				context.Background(),
				teamID,
				"C000000001",
				"general",
				"too late",
				time.Now().Add(-1*time.Second),
			)

			require.Error(t, err)
			assert.True(t, core.IsValidationError(err))

			after, err := service.ListPendingMessages(context.Background(), teamID)
			require.NoError(t, err)
			assert.Len(t, after, len(before))
		})

		t.Run("ExactlyNowIsRejected", func(t *testing.T) {
			now := time.Now()
			service.now = func() time.Time { return now }
			defer func() { service.now = time.Now }()

			_, err := service.ScheduleMessage(context.Background(), teamID, "C000000001", "general", "x", now)

			require.Error(t, err)
			assert.True(t, core.IsValidationError(err))
		})

		t.Run("MissingFields", func(t *testing.T) {
			future := time.Now().Add(time.Hour)
			cases := []struct {
				name                                string
				teamID, channelID, channelName, body string
			}{
				{"EmptyTeamID", "", "C000000001", "general", "x"},
				{"EmptyChannelID", teamID, "", "general", "x"},
				{"EmptyChannelName", teamID, "C000000001", "", "x"},
				{"EmptyMessage", teamID, "C000000001", "general", ""},
			}
			for _, tc := range cases {
				t.Run(tc.name, func(t *testing.T) {
					_, err := service.ScheduleMessage(
						context.Background(),
						tc.teamID,
						tc.channelID,
						tc.channelName,
						tc.body,
						future,
					)
					require.Error(t, err)
					assert.True(t, core.IsValidationError(err))
				})
			}
		})
	})

	t.Run("ListPendingMessages", func(t *testing.T) {
		t.Run("AscendingScheduledTimeOrder", func(t *testing.T) {
			later := testutils.CreateTestScheduledMessage(t, messagesRepo, teamID, time.Now().Add(3*time.Hour))
			sooner := testutils.CreateTestScheduledMessage(t, messagesRepo, teamID, time.Now().Add(2*time.Hour))

			pending, err := service.ListPendingMessages(context.Background(), teamID)

			require.NoError(t, err)
			soonerIdx, laterIdx := -1, -1
			for i, m := range pending {
				if m.ID == sooner.ID {
					soonerIdx = i
				}
				if m.ID == later.ID {
					laterIdx = i
				}
			}
			require.NotEqual(t, -1, soonerIdx)
			require.NotEqual(t, -1, laterIdx)
			assert.Less(t, soonerIdx, laterIdx)
		})
	})

	t.Run("CancelMessage", func(t *testing.T) {
		t.Run("PendingRowIsCancelled", func(t *testing.T) {
			message := testutils.CreateTestScheduledMessage(t, messagesRepo, teamID, time.Now().Add(time.Hour))

			cancelled, err := service.CancelMessage(context.Background(), message.ID, teamID)

			require.NoError(t, err)
			assert.True(t, cancelled)

			maybeMessage, err := messagesRepo.GetScheduledMessageByID(context.Background(), message.ID)
			require.NoError(t, err)
			require.True(t, maybeMessage.IsPresent())
			assert.Equal(t, models.ScheduledMessageStatusCancelled, maybeMessage.MustGet().Status)
		})

		t.Run("SecondCancelReturnsFalse", func(t *testing.T) {
			message := testutils.CreateTestScheduledMessage(t, messagesRepo, teamID, time.Now().Add(time.Hour))

			first, err := service.CancelMessage(context.Background(), message.ID, teamID)
			require.NoError(t, err)
			require.True(t, first)

			second, err := service.CancelMessage(context.Background(), message.ID, teamID)
			require.NoError(t, err)
			assert.False(t, second)
		})

		t.Run("ClaimedRowCannotBeCancelled", func(t *testing.T) {
			message := testutils.CreateTestScheduledMessage(t, messagesRepo, teamID, time.Now().Add(time.Hour))

			claimed, err := messagesRepo.ClaimScheduledMessage(context.Background(), message.ID)
			require.NoError(t, err)
			require.True(t, claimed)

			cancelled, err := service.CancelMessage(context.Background(), message.ID, teamID)

			require.NoError(t, err)
			assert.False(t, cancelled)

			maybeMessage, err := messagesRepo.GetScheduledMessageByID(context.Background(), message.ID)
			require.NoError(t, err)
			require.True(t, maybeMessage.IsPresent())
			assert.Equal(t, models.ScheduledMessageStatusProcessing, maybeMessage.MustGet().Status)
		})

		t.Run("UnknownIDReturnsFalse", func(t *testing.T) {
			cancelled, err := service.CancelMessage(context.Background(), core.NewID("sm"), teamID)

			require.NoError(t, err)
			assert.False(t, cancelled)
		})

		t.Run("WrongWorkspaceReturnsFalse", func(t *testing.T) {
			message := testutils.CreateTestScheduledMessage(t, messagesRepo, teamID, time.Now().Add(time.Hour))

			cancelled, err := service.CancelMessage(context.Background(), message.ID, "T0OTHERTEAM")

			require.NoError(t, err)
			assert.False(t, cancelled)
		})
	})

	t.Run("DeletePendingMessage", func(t *testing.T) {
		t.Run("RemovesPendingRow", func(t *testing.T) {
			message := testutils.CreateTestScheduledMessage(t, messagesRepo, teamID, time.Now().Add(time.Hour))

			deleted, err := messagesRepo.DeletePendingMessage(context.Background(), message.ID, teamID)

			require.NoError(t, err)
			assert.True(t, deleted)

			maybeMessage, err := messagesRepo.GetScheduledMessageByID(context.Background(), message.ID)
			require.NoError(t, err)
			assert.False(t, maybeMessage.IsPresent())
		})

		t.Run("ClaimedRowIsKept", func(t *testing.T) {
			message := testutils.CreateTestScheduledMessage(t, messagesRepo, teamID, time.Now().Add(time.Hour))

			claimed, err := messagesRepo.ClaimScheduledMessage(context.Background(), message.ID)
			require.NoError(t, err)
			require.True(t, claimed)

			deleted, err := messagesRepo.DeletePendingMessage(context.Background(), message.ID, teamID)

			require.NoError(t, err)
			assert.False(t, deleted)
		})
	})
}
