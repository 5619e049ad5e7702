// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"time"

	tele "gopkg.in/telebot.v3"

	"shadowrank/internal/model"
)

// ProfileKey is the telebot context key holding the sender's profile.
const ProfileKey = "profile"

// replyTimeout bounds the store work behind a single command.
const replyTimeout = 10 * time.Second

// ProfileFrom returns the profile resolved by the profile middleware.
func ProfileFrom(c tele.Context) (*model.Profile, bool) {
	p, ok := c.Get(ProfileKey).(*model.Profile)
	return p, ok && p != nil
}

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), replyTimeout)
}
