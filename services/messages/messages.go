package messages

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/JatinSri1909/slack-connect-server/core"
	"github.com/JatinSri1909/slack-connect-server/db"
	"github.com/JatinSri1909/slack-connect-server/models"
)

// MessagesService is the control surface of the scheduled-delivery pipeline:
// it records future send intents and exposes list/cancel over them. Claiming
// and finalizing are solely the delivery scheduler's business.
type MessagesService struct {
	messagesRepo *db.PostgresScheduledMessagesRepository

	// now is overridable for tests
	now func() time.Time
}

func NewMessagesService(messagesRepo *db.PostgresScheduledMessagesRepository) *MessagesService {
	return &MessagesService{
		messagesRepo: messagesRepo,
		now:          time.Now,
	}
}

// ScheduleMessage durably records a future send intent. The scheduled time
// must be strictly in the future; nothing is persisted on validation failure.
func (s *MessagesService) ScheduleMessage(
	ctx context.Context,
	teamID, channelID, channelName, body string,
	scheduledTime time.Time,
) (*models.ScheduledMessage, error) {
	log.Printf("📋 Starting to schedule message for team %s in channel %s", teamID, channelID)
	if teamID == "" {
		return nil, core.NewValidationError("team_id", "cannot be empty")
	}
	if channelID == "" {
		return nil, core.NewValidationError("channel_id", "cannot be empty")
	}
	if channelName == "" {
		return nil, core.NewValidationError("channel_name", "cannot be empty")
	}
	if body == "" {
		return nil, core.NewValidationError("message", "cannot be empty")
	}
	if !scheduledTime.After(s.now()) {
		return nil, core.NewValidationError("scheduled_time", "must be strictly in the future")
	}

	message := &models.ScheduledMessage{
		ID:            core.NewID("sm"),
		SlackTeamID:   teamID,
		ChannelID:     channelID,
		ChannelName:   channelName,
		Message:       body,
		ScheduledTime: scheduledTime,
		Status:        models.ScheduledMessageStatusPending,
	}
	if err := s.messagesRepo.CreateScheduledMessage(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to create scheduled message: %w", err)
	}

	log.Printf("📋 Completed successfully - scheduled message %s for %s", message.ID, message.ScheduledTime)
	return message, nil
}

// ListPendingMessages returns the workspace's pending messages in ascending
// scheduled_time order
func (s *MessagesService) ListPendingMessages(
	ctx context.Context,
	teamID string,
) ([]*models.ScheduledMessage, error) {
	if teamID == "" {
		return nil, core.NewValidationError("team_id", "cannot be empty")
	}

	pending, err := s.messagesRepo.GetPendingMessagesByTeamID(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending messages: %w", err)
	}

	return pending, nil
}

// CancelMessage transitions a pending message to cancelled. It returns true
// only when a pending row was transitioned; false - not an error - when the
// row is missing, belongs to another workspace, or has already been claimed.
func (s *MessagesService) CancelMessage(ctx context.Context, id, teamID string) (bool, error) {
	log.Printf("📋 Starting to cancel message %s for team %s", id, teamID)
	if !core.IsValidID(id) {
		return false, core.NewValidationError("id", "must be a valid message ID")
	}
	if teamID == "" {
		return false, core.NewValidationError("team_id", "cannot be empty")
	}

	cancelled, err := s.messagesRepo.CancelScheduledMessage(ctx, id, teamID)
	if err != nil {
		return false, fmt.Errorf("failed to cancel message: %w", err)
	}

	log.Printf("📋 Completed successfully - cancel of message %s: %t", id, cancelled)
	return cancelled, nil
}
