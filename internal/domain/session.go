// Package domain contains core domain types for the hand-off gateway.
package domain

import (
	"time"
)

// UserSession is the per-user hand-off record. BotHandled is the single
// source of truth for routing: true means automated handling (bot/NLU),
// false means the conversation is pinned to a human agent.
type UserSession struct {
	UserID         string    `json:"user_id"`
	BotHandled     bool      `json:"bot_handled"`
	LastMessagedAt time.Time `json:"last_messaged_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IdleLongerThan reports whether the session has seen no inbound activity
// for more than the given number of minutes, relative to now.
func (s *UserSession) IdleLongerThan(minutes int, now time.Time) bool {
	idle := now.Sub(s.LastMessagedAt)
	return int(idle.Minutes()) > minutes
}
