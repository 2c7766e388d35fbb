package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Server     ServerConfig
	Slack      SlackConfig
	Coach      CoachConfig
	Safety     SafetyConfig
	SelfHosted bool
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// JWTConfig holds JWT authentication settings for the API surface.
type JWTConfig struct {
	Secret string //nolint:gosec // G117: JWT signing secret config
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// SlackConfig holds the admin alert channel settings.
type SlackConfig struct {
	BotToken       string
	AdminChannelID string
}

// CoachConfig holds the coach model backend settings. Empty APIKey runs
// the coach on its deterministic templates.
type CoachConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// SafetyConfig holds the orchestration and audit tunables.
type SafetyConfig struct {
	CapabilityTimeout    time.Duration
	SessionIdleTTL       time.Duration
	SessionSweepInterval time.Duration
	UserRatePerSecond    float64
	UserBurst            int
	CleanupInterval      time.Duration
	QueueDrainInterval   time.Duration
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production,
// sensitive values (JWT secret, DB password) must be set explicitly.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("COMPANION_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("COMPANION_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("COMPANION_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("COMPANION_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("COMPANION_SERVER_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	coachTimeout, err := getEnvDuration("COMPANION_COACH_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	capTimeout, err := getEnvDuration("COMPANION_CAPABILITY_TIMEOUT", 20*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	sessionTTL, err := getEnvDuration("COMPANION_SESSION_IDLE_TTL", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	sweepInterval, err := getEnvDuration("COMPANION_SESSION_SWEEP_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cleanupInterval, err := getEnvDuration("COMPANION_AUDIT_CLEANUP_INTERVAL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	drainInterval, err := getEnvDuration("COMPANION_AUDIT_DRAIN_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	userRate, err := getEnvFloat("COMPANION_USER_RATE_PER_SECOND", 1)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	userBurst, err := getEnvInt("COMPANION_USER_BURST", 5)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	selfHosted, err := getEnvBool("COMPANION_SELF_HOSTED", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("COMPANION_CORS_ORIGINS", []string{"http://localhost:5173"})

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("COMPANION_DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("COMPANION_DB_USER", "companion"),
			Password: getEnv("COMPANION_DB_PASSWORD", ""),
			DBName:   getEnv("COMPANION_DB_NAME", "companion_dev"),
			SSLMode:  getEnv("COMPANION_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("COMPANION_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("COMPANION_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret: getEnv("COMPANION_JWT_SECRET", ""),
		},
		Server: ServerConfig{
			Addr:         getEnv("COMPANION_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  corsOrigins,
		},
		Slack: SlackConfig{
			BotToken:       getEnv("COMPANION_SLACK_BOT_TOKEN", ""),
			AdminChannelID: getEnv("COMPANION_SLACK_ADMIN_CHANNEL", ""),
		},
		Coach: CoachConfig{
			APIKey:  getEnv("COMPANION_COACH_API_KEY", ""),
			BaseURL: getEnv("COMPANION_COACH_BASE_URL", ""),
			Model:   getEnv("COMPANION_COACH_MODEL", ""),
			Timeout: coachTimeout,
		},
		Safety: SafetyConfig{
			CapabilityTimeout:    capTimeout,
			SessionIdleTTL:       sessionTTL,
			SessionSweepInterval: sweepInterval,
			UserRatePerSecond:    userRate,
			UserBurst:            userBurst,
			CleanupInterval:      cleanupInterval,
			QueueDrainInterval:   drainInterval,
		},
		SelfHosted: selfHosted,
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	// JWT secret is required (no insecure default).
	if c.JWT.Secret == "" {
		return errors.New("COMPANION_JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("COMPANION_JWT_SECRET must be at least 32 characters")
	}

	// DB SSL mode warning for non-self-hosted deployments.
	if c.Database.SSLMode == "disable" && !c.SelfHosted {
		log.Warn().Msg("COMPANION_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
	}

	// Bounds checks.
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("COMPANION_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("COMPANION_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("COMPANION_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("COMPANION_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Safety.CapabilityTimeout <= 0 {
		return fmt.Errorf("COMPANION_CAPABILITY_TIMEOUT must be positive, got %s", c.Safety.CapabilityTimeout)
	}
	if c.Safety.SessionIdleTTL <= 0 {
		return fmt.Errorf("COMPANION_SESSION_IDLE_TTL must be positive, got %s", c.Safety.SessionIdleTTL)
	}
	if c.Safety.UserRatePerSecond <= 0 {
		return fmt.Errorf("COMPANION_USER_RATE_PER_SECOND must be positive, got %g", c.Safety.UserRatePerSecond)
	}
	if c.Safety.UserBurst < 1 {
		return fmt.Errorf("COMPANION_USER_BURST must be >= 1, got %d", c.Safety.UserBurst)
	}
	if c.Slack.BotToken != "" && c.Slack.AdminChannelID == "" {
		return errors.New("COMPANION_SLACK_ADMIN_CHANNEL is required when the Slack bot token is set")
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
