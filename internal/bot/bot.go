// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"shadowrank/internal/config"
	"shadowrank/internal/handler"
	"shadowrank/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot *tele.Bot
	cfg *config.Config

	profileHandler *handler.ProfileHandler
	questHandler   *handler.QuestHandler
	rankingHandler *handler.RankingHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config      *config.Config
	Profiles    *service.ProfileService
	Quests      *service.QuestService
	Engine      *service.Engine
	Boards      *service.BoardService
	Leaderboard *service.LeaderboardService
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("Telegram handler failed")
		},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:            teleBot,
		cfg:            deps.Config,
		profileHandler: handler.NewProfileHandler(deps.Profiles, deps.Boards, deps.Engine),
		questHandler:   handler.NewQuestHandler(deps.Quests, deps.Boards, deps.Engine),
		rankingHandler: handler.NewRankingHandler(deps.Leaderboard),
	}

	b.registerMiddleware(deps.Profiles)
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware(profiles ProfileResolver) {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(&b.cfg.Bot))
	b.bot.Use(LoggingMiddleware())
	b.bot.Use(ProfileMiddleware(profiles))
}

// registerHandlers registers all command handlers.
func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.profileHandler.HandleStart)
	b.bot.Handle("/help", b.profileHandler.HandleStart)
	b.bot.Handle("/me", b.profileHandler.HandleMe)
	b.bot.Handle("/tz", b.profileHandler.HandleTimezone)

	b.bot.Handle("/quests", b.questHandler.HandleQuests)
	b.bot.Handle("/add", b.questHandler.HandleAddDaily)
	b.bot.Handle("/once", b.questHandler.HandleAddOnce)

	limiter := ratelimit.New(&ratelimit.Config{
		Rate:     b.cfg.Bot.DoneRate,
		Burst:    b.cfg.Bot.DoneBurst,
		Interval: b.cfg.Bot.DoneInterval,
	})
	b.bot.Handle("/done", b.questHandler.HandleDone, RateLimitMiddleware(limiter, "done"))

	b.bot.Handle("/top", b.rankingHandler.HandleTop)
}

// Start starts the bot polling. It blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Str("username", b.bot.Me.Username).Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
