// Package main is the entry point for the ShadowRank progression service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"shadowrank/internal/bot"
	"shadowrank/internal/config"
	api "shadowrank/internal/http"
	"shadowrank/internal/http/handlers"
	"shadowrank/internal/http/middleware"
	"shadowrank/internal/metrics"
	"shadowrank/internal/pkg/db"
	"shadowrank/internal/progression"
	"shadowrank/internal/repository"
	"shadowrank/internal/repository/memstore"
	"shadowrank/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogger(&cfg.Log)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	log.Info().Str("storage", cfg.Storage.Driver).Msg("Configuration loaded successfully")

	// Create context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(ctx, cfg)
	defer closeStore()

	// Progression tables (already validated)
	levels, _ := progression.NewLevelTable(cfg.Progression.LevelBase, cfg.Progression.LevelStep)
	breakpoints, _ := cfg.Progression.Breakpoints()
	ranks, _ := progression.NewRankClassifier(breakpoints)
	rewards, _ := cfg.Progression.Rewards()
	loc, _ := cfg.Progression.Location()

	// Initialize services
	engine := service.NewEngine(store, service.EngineConfig{
		Levels:          levels,
		Ranks:           ranks,
		DefaultLocation: loc,
		RetryAttempts:   cfg.Progression.RetryAttempts,
		RetryDelay:      cfg.Progression.RetryDelay,
		LockTimeout:     cfg.Progression.LockTimeout,
	})
	prometheus.MustRegister(metrics.NewProfileLocksGauge(engine.ActiveLocks))
	profiles := service.NewProfileService(store, levels, ranks)
	quests := service.NewQuestService(store, rewards)
	boards := service.NewBoardService(store, profiles, engine)
	leaderboard := service.NewLeaderboardService(store, service.LeaderboardConfig{
		DefaultLimit: cfg.Leaderboard.DefaultLimit,
		MaxLimit:     cfg.Leaderboard.MaxLimit,
		CacheTTL:     cfg.Leaderboard.CacheTTL,
		CacheSize:    cfg.Leaderboard.CacheSize,
	})
	tokens := service.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	checks := map[string]handlers.CheckFunc{"store": store.Ping}

	// Redis-backed rate limiting is optional and fails open
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = middleware.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, rate limiting disabled")
		} else {
			defer redisClient.Close()
			checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		}
	}
	limiter := middleware.NewRateLimiter(redisClient, cfg.Redis.CompleteLimit, cfg.Redis.CompleteWindow)

	// HTTP server
	gin.SetMode(cfg.Server.Mode)
	router := api.NewRouter(
		handlers.NewHandler(profiles, quests, engine, boards, leaderboard, tokens),
		handlers.NewHealthHandler(cfg.Server.Version, checks),
		limiter,
	)
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Telegram bot is optional
	var telegramBot *bot.Bot
	if cfg.Bot.Token != "" {
		telegramBot, err = bot.New(&bot.Dependencies{
			Config:      cfg,
			Profiles:    profiles,
			Quests:      quests,
			Engine:      engine,
			Boards:      boards,
			Leaderboard: leaderboard,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create bot")
		}
		go telegramBot.Start()
	}

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info().Msg("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if telegramBot != nil {
		telegramBot.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	log.Info().Msg("Stopped gracefully")
}

// setupLogger configures the global zerolog logger.
func setupLogger(cfg *config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

// openStore connects the configured backend. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func()) {
	if cfg.Storage.Driver == config.StorageMemory {
		log.Warn().Msg("Using in-memory storage; data is lost on restart")
		return memstore.New(), func() {}
	}

	pool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	return repository.NewPostgresStore(pool.Pool), pool.Close
}
