// Package config provides configuration management using viper.
// It supports loading from YAML files, a .env file and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"shadowrank/internal/model"
	"shadowrank/internal/progression"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Bot         BotConfig         `mapstructure:"bot"`
	Log         LogConfig         `mapstructure:"log"`
	Progression ProgressionConfig `mapstructure:"progression"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Version         string        `mapstructure:"version"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	ConnectAttempts int           `mapstructure:"connect_attempts"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

// RedisConfig holds the rate limiter's Redis connection. An empty Addr
// disables rate limiting.
type RedisConfig struct {
	Addr           string        `mapstructure:"addr"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	CompleteLimit  int           `mapstructure:"complete_limit"`
	CompleteWindow time.Duration `mapstructure:"complete_window"`
}

// AuthConfig holds request identity configuration.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// BotConfig holds Telegram bot configuration. An empty Token disables the bot.
type BotConfig struct {
	Token string `mapstructure:"token"`
	// AllowedChats restricts group chats; empty allows every chat.
	AllowedChats []int64       `mapstructure:"allowed_chats"`
	DoneRate     int           `mapstructure:"done_rate"`
	DoneBurst    int           `mapstructure:"done_burst"`
	DoneInterval time.Duration `mapstructure:"done_interval"`
}

// IsChatAllowed checks if a group chat may use the bot.
func (b *BotConfig) IsChatAllowed(chatID int64) bool {
	if len(b.AllowedChats) == 0 {
		return true
	}
	for _, id := range b.AllowedChats {
		if id == chatID {
			return true
		}
	}
	return false
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ProgressionConfig tunes the XP curve, rank ladder and completion engine.
type ProgressionConfig struct {
	LevelBase         int64            `mapstructure:"level_base"`
	LevelStep         int64            `mapstructure:"level_step"`
	RankBreakpoints   string           `mapstructure:"rank_breakpoints"`
	DifficultyRewards map[string]int64 `mapstructure:"difficulty_rewards"`
	DefaultTimezone   string           `mapstructure:"default_timezone"`
	RetryAttempts     int              `mapstructure:"retry_attempts"`
	RetryDelay        time.Duration    `mapstructure:"retry_delay"`
	LockTimeout       time.Duration    `mapstructure:"lock_timeout"`
}

// LeaderboardConfig holds leaderboard configuration.
type LeaderboardConfig struct {
	DefaultLimit int           `mapstructure:"default_limit"`
	MaxLimit     int           `mapstructure:"max_limit"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	CacheSize    int           `mapstructure:"cache_size"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. AUTH_JWT_SECRET, DATABASE_HOST, PROGRESSION_LEVEL_BASE
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.version", "dev")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "shadowrank")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "shadowrank")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.connect_attempts", 5)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("storage.driver", StoragePostgres)

	// Keys without a real default are still registered so that the
	// environment can supply them through Unmarshal.
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.complete_limit", 30)
	v.SetDefault("redis.complete_window", "1m")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "24h")

	v.SetDefault("bot.token", "")
	v.SetDefault("bot.allowed_chats", []int64{})
	v.SetDefault("bot.done_rate", 5)
	v.SetDefault("bot.done_burst", 10)
	v.SetDefault("bot.done_interval", "1m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("progression.level_base", 100)
	v.SetDefault("progression.level_step", 50)
	v.SetDefault("progression.rank_breakpoints", "1:E,5:D,10:C,20:B,35:A,50:S")
	v.SetDefault("progression.difficulty_rewards", map[string]int64{
		"E": 10, "D": 20, "C": 35, "B": 50, "A": 75, "S": 100,
	})
	v.SetDefault("progression.default_timezone", "UTC")
	v.SetDefault("progression.retry_attempts", 3)
	v.SetDefault("progression.retry_delay", "10ms")
	v.SetDefault("progression.lock_timeout", "5s")

	v.SetDefault("leaderboard.default_limit", 50)
	v.SetDefault("leaderboard.max_limit", 100)
	v.SetDefault("leaderboard.cache_ttl", "30s")
	v.SetDefault("leaderboard.cache_size", 16)
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case StoragePostgres, StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if _, err := progression.NewLevelTable(c.Progression.LevelBase, c.Progression.LevelStep); err != nil {
		errs = append(errs, fmt.Errorf("progression: %w", err))
	}
	if _, err := c.Progression.Breakpoints(); err != nil {
		errs = append(errs, fmt.Errorf("progression.rank_breakpoints: %w", err))
	}
	if _, err := c.Progression.Rewards(); err != nil {
		errs = append(errs, fmt.Errorf("progression.difficulty_rewards: %w", err))
	}
	if _, err := c.Progression.Location(); err != nil {
		errs = append(errs, fmt.Errorf("progression.default_timezone: %w", err))
	}
	if c.Progression.RetryAttempts < 1 {
		errs = append(errs, errors.New("progression.retry_attempts must be at least 1"))
	}
	if c.Bot.Token != "" && (c.Bot.DoneRate < 1 || c.Bot.DoneBurst < 1 || c.Bot.DoneInterval <= 0) {
		errs = append(errs, errors.New("bot.done_rate, bot.done_burst and bot.done_interval must be positive"))
	}
	if c.Leaderboard.DefaultLimit < 1 || c.Leaderboard.DefaultLimit > c.Leaderboard.MaxLimit {
		errs = append(errs, fmt.Errorf("leaderboard.default_limit must be within 1..%d", c.Leaderboard.MaxLimit))
	}

	return errors.Join(errs...)
}

// Breakpoints parses the "level:rank,level:rank" breakpoint list and
// validates it with the rank classifier's rules.
func (p *ProgressionConfig) Breakpoints() ([]progression.Breakpoint, error) {
	var bps []progression.Breakpoint
	for _, part := range strings.Split(p.RankBreakpoints, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		levelStr, rankStr, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("malformed breakpoint %q", part)
		}
		level, err := strconv.ParseInt(strings.TrimSpace(levelStr), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("breakpoint %q: %w", part, err)
		}
		rank, err := model.ParseRank(strings.ToUpper(strings.TrimSpace(rankStr)))
		if err != nil {
			return nil, fmt.Errorf("breakpoint %q: %w", part, err)
		}
		bps = append(bps, progression.Breakpoint{MinLevel: level, Rank: rank})
	}

	if _, err := progression.NewRankClassifier(bps); err != nil {
		return nil, err
	}
	return bps, nil
}

// Rewards returns the default XP reward per quest difficulty. Every rank must
// have a positive reward.
func (p *ProgressionConfig) Rewards() (map[model.Rank]int64, error) {
	rewards := make(map[model.Rank]int64, len(model.Ranks))
	for key, xp := range p.DifficultyRewards {
		rank, err := model.ParseRank(strings.ToUpper(key))
		if err != nil {
			return nil, err
		}
		if xp <= 0 {
			return nil, fmt.Errorf("reward for %s must be positive, got %d", rank, xp)
		}
		rewards[rank] = xp
	}
	for _, rank := range model.Ranks {
		if _, ok := rewards[rank]; !ok {
			return nil, fmt.Errorf("missing reward for %s", rank)
		}
	}
	return rewards, nil
}

// Location resolves the default timezone used when a request carries none.
func (p *ProgressionConfig) Location() (*time.Location, error) {
	return time.LoadLocation(p.DefaultTimezone)
}
