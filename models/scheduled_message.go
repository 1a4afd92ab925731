package models

import (
	"time"
)

type ScheduledMessageStatus string

const (
	ScheduledMessageStatusPending    ScheduledMessageStatus = "pending"
	ScheduledMessageStatusProcessing ScheduledMessageStatus = "processing"
	ScheduledMessageStatusSent       ScheduledMessageStatus = "sent"
	ScheduledMessageStatusFailed     ScheduledMessageStatus = "failed"
	ScheduledMessageStatusCancelled  ScheduledMessageStatus = "cancelled"
)

// IsTerminal reports whether the status permits no further transitions
func (s ScheduledMessageStatus) IsTerminal() bool {
	switch s {
	case ScheduledMessageStatusSent, ScheduledMessageStatusFailed, ScheduledMessageStatusCancelled:
		return true
	default:
		return false
	}
}

// ScheduledMessage is a persisted future send intent. Status transitions are
// one-directional: pending -> processing -> {sent | failed}, with cancelled
// reachable only from pending.
type ScheduledMessage struct {
	ID            string                 `db:"id"             json:"id"`
	SlackTeamID   string                 `db:"slack_team_id"  json:"slack_team_id"`
	ChannelID     string                 `db:"channel_id"     json:"channel_id"`
	ChannelName   string                 `db:"channel_name"   json:"channel_name"`
	Message       string                 `db:"message"        json:"message"`
	ScheduledTime time.Time              `db:"scheduled_time" json:"scheduled_time"`
	Status        ScheduledMessageStatus `db:"status"         json:"status"`
	CreatedAt     time.Time              `db:"created_at"     json:"created_at"`
	UpdatedAt     time.Time              `db:"updated_at"     json:"updated_at"`
}
