package bot

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"shadowrank/internal/config"
	"shadowrank/internal/handler"
	"shadowrank/internal/metrics"
	"shadowrank/internal/model"
)

// ProfileResolver finds or creates the profile linked to a Telegram account.
type ProfileResolver interface {
	EnsureTelegramProfile(ctx context.Context, telegramID int64, username, displayName string) (*model.Profile, bool, error)
}

// Limiter admits or rejects an event for a key.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// WhitelistMiddleware drops updates from group chats that are not allowed.
// Private chats are always served.
func WhitelistMiddleware(cfg *config.BotConfig) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			chat := c.Chat()
			if chat == nil || c.Sender() == nil {
				return nil
			}
			if chat.Type != tele.ChatPrivate && !cfg.IsChatAllowed(chat.ID) {
				log.Debug().
					Int64("chat_id", chat.ID).
					Msg("Ignoring command from non-whitelisted chat")
				return nil
			}
			return next(c)
		}
	}
}

// ProfileMiddleware resolves the sender's profile, creating it on first
// contact, and stores it under handler.ProfileKey.
func ProfileMiddleware(profiles ProfileResolver) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil || sender.IsBot {
				return nil
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			p, created, err := profiles.EnsureTelegramProfile(ctx, sender.ID, sender.Username, displayName(sender))
			if err != nil {
				log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to resolve profile")
				return c.Reply("❌ Could not load your profile, please try again later.")
			}
			if created {
				log.Info().Int64("user_id", sender.ID).Str("profile_id", p.ID.String()).Msg("New hunter joined via Telegram")
			}

			c.Set(handler.ProfileKey, p)
			return next(c)
		}
	}
}

// RateLimitMiddleware rejects commands from senders over their limit.
func RateLimitMiddleware(limiter Limiter, scope string) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil {
				return nil
			}
			key := scope + ":" + strconv.FormatInt(sender.ID, 10)
			if !limiter.Allow(context.Background(), key) {
				metrics.RLBlocked.WithLabelValues("telegram:" + scope).Inc()
				return c.Reply("⏳ Slow down, hunter. Try again in a minute.")
			}
			metrics.RLRequests.WithLabelValues("telegram:" + scope).Inc()
			return next(c)
		}
	}
}

// LoggingMiddleware logs all incoming messages and counts commands.
func LoggingMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			chat := c.Chat()

			logEvent := log.Debug()
			if sender != nil {
				logEvent = logEvent.
					Int64("user_id", sender.ID).
					Str("username", sender.Username)
			}
			if chat != nil {
				logEvent = logEvent.
					Int64("chat_id", chat.ID).
					Str("chat_type", string(chat.Type))
			}
			logEvent.
				Str("text", c.Text()).
				Msg("Received message")

			if cmd := commandOf(c.Text()); cmd != "" {
				metrics.BotCommands.WithLabelValues(cmd).Inc()
			}
			return next(c)
		}
	}
}

// RecoveryMiddleware creates a middleware that recovers from panics.
func RecoveryMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Msg("Recovered from panic in handler")
					err = c.Reply("❌ Internal error, please try again later.")
				}
			}()
			return next(c)
		}
	}
}

var commands = map[string]bool{
	"/start": true, "/help": true, "/me": true, "/quests": true,
	"/add": true, "/once": true, "/done": true, "/top": true, "/tz": true,
}

// commandOf extracts a known "/cmd" from "/cmd@botname args".
func commandOf(text string) string {
	cmd, _, _ := strings.Cut(text, " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	if !commands[cmd] {
		return ""
	}
	return cmd
}

func displayName(u *tele.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
