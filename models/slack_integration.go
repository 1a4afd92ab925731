package models

import (
	"time"
)

// SlackIntegration is the credential record for one Slack workspace. There is
// at most one live record per team ID; token fields are always replaced
// together through an atomic upsert.
type SlackIntegration struct {
	ID             string     `db:"id"               json:"id"`
	SlackTeamID    string     `db:"slack_team_id"    json:"slack_team_id"`
	SlackTeamName  string     `db:"slack_team_name"  json:"slack_team_name"`
	AccessToken    string     `db:"access_token"     json:"-"`
	RefreshToken   *string    `db:"refresh_token"    json:"-"`
	BotToken       *string    `db:"bot_token"        json:"-"`
	TokenExpiresAt *time.Time `db:"token_expires_at" json:"token_expires_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at"       json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"       json:"updated_at"`
}

// IsTokenExpired reports whether the access token has an expiry that has passed
func (si *SlackIntegration) IsTokenExpired(now time.Time) bool {
	return si.TokenExpiresAt != nil && !now.Before(*si.TokenExpiresAt)
}

// PreferredBotToken returns the distinct bot token when present, falling back
// to the access token
func (si *SlackIntegration) PreferredBotToken() string {
	if si.BotToken != nil && *si.BotToken != "" {
		return *si.BotToken
	}
	return si.AccessToken
}
