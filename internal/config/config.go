package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken string         `yaml:"discord_token"`
	DatabaseURL  string         `yaml:"database_url"`
	RedisAddr    string         `yaml:"redis_addr"`
	LogLevel     string         `yaml:"log_level"`
	HomeGuildID  string         `yaml:"home_guild_id"`
	Health       HealthConfig   `yaml:"health"`
	AntiRaid     AntiRaidConfig `yaml:"antiraid"`
	Points       PointsConfig   `yaml:"points"`
	BanLimit     BanLimitConfig `yaml:"ban_limit"`
	Welcome      WelcomeConfig  `yaml:"welcome"`
	AFK          AFKConfig      `yaml:"afk"`
	Presence     PresenceConfig `yaml:"presence"`
	AoC          AoCConfig      `yaml:"aoc"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// AntiRaidConfig carries the spam detector policy. Policy selects which of the
// two historical detection strategies runs; the numeric knobs default to that
// strategy's observed values and can be overridden individually.
type AntiRaidConfig struct {
	Policy             string `yaml:"policy"`
	WindowSeconds      int    `yaml:"window_seconds"`
	ChannelThreshold   int    `yaml:"channel_threshold"`
	RepetitionCeiling  int    `yaml:"repetition_ceiling"`
	GracePeriodSeconds int    `yaml:"grace_period_seconds"`
	MaxLogSize         int    `yaml:"max_log_size"`
	RoleGateEnabled    bool   `yaml:"role_gate_enabled"`
	UntrustedRoleID    string `yaml:"untrusted_role_id"`
	BaitChannelID      string `yaml:"bait_channel_id"`
	ModLogChannelID    string `yaml:"mod_log_channel_id"`
	AppealURL          string `yaml:"appeal_url"`
	SweepMinutes       int    `yaml:"sweep_minutes"`
}

type PointsConfig struct {
	MinPoints        int `yaml:"min_points"`
	LeaderboardLimit int `yaml:"leaderboard_limit"`
	CacheTTLSeconds  int `yaml:"cache_ttl_seconds"`
}

type BanLimitConfig struct {
	MaxBans     int `yaml:"max_bans"`
	WindowHours int `yaml:"window_hours"`
}

type WelcomeConfig struct {
	ChannelID    string `yaml:"channel_id"`
	RoleID       string `yaml:"role_id"`
	RoleDays     int    `yaml:"role_days"`
	SweepMinutes int    `yaml:"sweep_minutes"`
}

type AFKConfig struct {
	SweepMinutes int `yaml:"sweep_minutes"`
}

type PresenceConfig struct {
	Statuses        []string `yaml:"statuses"`
	IntervalSeconds int      `yaml:"interval_seconds"`
}

// AoCConfig enables the Advent of Code leaderboard feature when a session
// cookie is present.
type AoCConfig struct {
	SessionCookie  string `yaml:"session_cookie"`
	LeaderboardID  string `yaml:"leaderboard_id"`
	InviteCode     string `yaml:"invite_code"`
	Year           int    `yaml:"year"`
	RefreshMinutes int    `yaml:"refresh_minutes"`
}

const (
	PolicyChannelBreadth = "channel_breadth"
	PolicyPostJoinBurst  = "post_join_burst"
)

func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Health:   HealthConfig{Enabled: true, Addr: ":8080"},
		AntiRaid: AntiRaidConfig{
			Policy:             PolicyChannelBreadth,
			WindowSeconds:      20,
			ChannelThreshold:   3,
			RepetitionCeiling:  2,
			GracePeriodSeconds: 480,
			MaxLogSize:         100,
			RoleGateEnabled:    true,
			AppealURL:          "https://discord.gg/X9aQKymWpk",
			SweepMinutes:       10,
		},
		Points:   PointsConfig{MinPoints: 1, LeaderboardLimit: 10, CacheTTLSeconds: 30},
		BanLimit: BanLimitConfig{MaxBans: 3, WindowHours: 24},
		Welcome:  WelcomeConfig{RoleDays: 7, SweepMinutes: 10},
		AFK:      AFKConfig{SweepMinutes: 10},
		Presence: PresenceConfig{
			Statuses:        []string{"watching Tortoise Community", "solving Leetcode problems"},
			IntervalSeconds: 50,
		},
		AoC: AoCConfig{
			LeaderboardID:  "4922988",
			InviteCode:     "4922988-d5f6845a",
			Year:           2025,
			RefreshMinutes: 30,
		},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}

	cfg.AntiRaid.Policy = normalizePolicy(cfg.AntiRaid.Policy)
	ApplyPolicyPreset(&cfg.AntiRaid)
	clampIntervals(&cfg)

	return cfg, nil
}

// clampIntervals floors the loop intervals so a zeroed yaml value cannot
// produce a zero-period ticker.
func clampIntervals(cfg *Config) {
	if cfg.AFK.SweepMinutes <= 0 {
		cfg.AFK.SweepMinutes = 10
	}
	if cfg.Welcome.SweepMinutes <= 0 {
		cfg.Welcome.SweepMinutes = 10
	}
	if cfg.AoC.RefreshMinutes <= 0 {
		cfg.AoC.RefreshMinutes = 30
	}
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabaseURL = envString("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisAddr = envString("REDIS_ADDR", cfg.RedisAddr)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.HomeGuildID = envString("HOME_GUILD_ID", cfg.HomeGuildID)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.AntiRaid.Policy = envString("ANTIRAID_POLICY", cfg.AntiRaid.Policy)
	cfg.AntiRaid.WindowSeconds = envInt("ANTIRAID_WINDOW_SECONDS", cfg.AntiRaid.WindowSeconds)
	cfg.AntiRaid.ChannelThreshold = envInt("ANTIRAID_CHANNEL_THRESHOLD", cfg.AntiRaid.ChannelThreshold)
	cfg.AntiRaid.RepetitionCeiling = envInt("ANTIRAID_REPETITION_CEILING", cfg.AntiRaid.RepetitionCeiling)
	cfg.AntiRaid.GracePeriodSeconds = envInt("ANTIRAID_GRACE_PERIOD_SECONDS", cfg.AntiRaid.GracePeriodSeconds)
	cfg.AntiRaid.MaxLogSize = envInt("ANTIRAID_MAX_LOG_SIZE", cfg.AntiRaid.MaxLogSize)
	cfg.AntiRaid.SweepMinutes = envInt("ANTIRAID_SWEEP_MINUTES", cfg.AntiRaid.SweepMinutes)
	cfg.AntiRaid.RoleGateEnabled = envBool("ANTIRAID_ROLE_GATE_ENABLED", cfg.AntiRaid.RoleGateEnabled)
	cfg.AntiRaid.UntrustedRoleID = envString("ANTIRAID_UNTRUSTED_ROLE_ID", cfg.AntiRaid.UntrustedRoleID)
	cfg.AntiRaid.BaitChannelID = envString("ANTIRAID_BAIT_CHANNEL_ID", cfg.AntiRaid.BaitChannelID)
	cfg.AntiRaid.ModLogChannelID = envString("ANTIRAID_MOD_LOG_CHANNEL_ID", cfg.AntiRaid.ModLogChannelID)
	cfg.AntiRaid.AppealURL = envString("ANTIRAID_APPEAL_URL", cfg.AntiRaid.AppealURL)
	cfg.BanLimit.MaxBans = envInt("BAN_LIMIT_MAX", cfg.BanLimit.MaxBans)
	cfg.BanLimit.WindowHours = envInt("BAN_LIMIT_WINDOW_HOURS", cfg.BanLimit.WindowHours)
	cfg.Welcome.ChannelID = envString("WELCOME_CHANNEL_ID", cfg.Welcome.ChannelID)
	cfg.Welcome.RoleID = envString("WELCOME_ROLE_ID", cfg.Welcome.RoleID)
	cfg.Welcome.RoleDays = envInt("WELCOME_ROLE_DAYS", cfg.Welcome.RoleDays)
	cfg.Welcome.SweepMinutes = envInt("WELCOME_SWEEP_MINUTES", cfg.Welcome.SweepMinutes)
	cfg.AFK.SweepMinutes = envInt("AFK_SWEEP_MINUTES", cfg.AFK.SweepMinutes)
	cfg.AoC.SessionCookie = envString("AOC_COOKIE", cfg.AoC.SessionCookie)
	cfg.AoC.LeaderboardID = envString("AOC_LEADERBOARD_ID", cfg.AoC.LeaderboardID)
	cfg.AoC.InviteCode = envString("AOC_INVITE_CODE", cfg.AoC.InviteCode)
	cfg.AoC.Year = envInt("AOC_YEAR", cfg.AoC.Year)
	cfg.AoC.RefreshMinutes = envInt("AOC_REFRESH_MINUTES", cfg.AoC.RefreshMinutes)
}

// ApplyPolicyPreset fills strategy-specific defaults for knobs the operator
// left at zero. The channel-breadth preset matches the deployed untrusted-role
// detector; post-join-burst matches the join-grace variant, which drops the
// repetition requirement and scrutinizes every fresh joiner regardless of role.
func ApplyPolicyPreset(cfg *AntiRaidConfig) {
	switch cfg.Policy {
	case PolicyPostJoinBurst:
		if cfg.ChannelThreshold <= 0 {
			cfg.ChannelThreshold = 4
		}
		cfg.RepetitionCeiling = 0
		cfg.RoleGateEnabled = false
	default:
		if cfg.ChannelThreshold <= 0 {
			cfg.ChannelThreshold = 3
		}
		if cfg.RepetitionCeiling <= 0 {
			cfg.RepetitionCeiling = 2
		}
	}
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = 20
	}
	if cfg.GracePeriodSeconds <= 0 {
		cfg.GracePeriodSeconds = 480
	}
	if cfg.MaxLogSize <= 0 {
		cfg.MaxLogSize = 100
	}
	if cfg.SweepMinutes <= 0 {
		cfg.SweepMinutes = 10
	}
}

func normalizePolicy(value string) string {
	switch strings.ToLower(value) {
	case PolicyPostJoinBurst:
		return PolicyPostJoinBurst
	default:
		return PolicyChannelBreadth
	}
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
