package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	slacklib "github.com/slack-go/slack"

	"github.com/vitracka/companion/internal/audit"
	"github.com/vitracka/companion/internal/capability"
	"github.com/vitracka/companion/internal/config"
	"github.com/vitracka/companion/internal/notify"
	"github.com/vitracka/companion/internal/orchestrator"
	"github.com/vitracka/companion/internal/safety"
	"github.com/vitracka/companion/internal/server"
	"github.com/vitracka/companion/internal/store/postgres"
	redisstore "github.com/vitracka/companion/internal/store/redis"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Initialize structured logging from environment.
	logLevel := os.Getenv("COMPANION_LOG_LEVEL")
	level, parseErr := zerolog.ParseLevel(logLevel)
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logFormat := os.Getenv("COMPANION_LOG_FORMAT")
	if logFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	ctx := context.Background()

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}

	// Connect to PostgreSQL.
	store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
	if err != nil {
		return err
	}
	defer store.Close()

	// Connect to Redis (alert pub/sub and the safety-write fallback queue).
	pubsub, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer pubsub.Close()

	// Slack admin channel, when configured.
	var slackNotifier *notify.SlackNotifier
	if cfg.Slack.BotToken != "" {
		slackClient := slacklib.New(cfg.Slack.BotToken)
		slackNotifier = notify.NewSlackNotifier(slackClient, cfg.Slack.AdminChannelID)
		log.Info().Str("channel", cfg.Slack.AdminChannelID).Msg("slack admin alerts enabled")
	}

	// Audit log over the durable store, with the Redis fallback queue for
	// safety writes and the admin alert feed.
	auditOpts := []audit.Option{
		audit.WithFallbackQueue(pubsub),
		audit.WithAlertPublisher(pubsub),
	}
	auditLog := audit.New(store.Audit(), auditOpts...)
	if err := auditLog.InitChain(ctx); err != nil {
		return err
	}

	// Safety classifier and the specialist capability registry.
	classifier := safety.NewClassifier()

	registry := capability.NewRegistry()
	registry.Register(capability.NewCoach(capability.CoachConfig{
		APIKey:  cfg.Coach.APIKey,
		BaseURL: cfg.Coach.BaseURL,
		Model:   cfg.Coach.Model,
		Timeout: cfg.Coach.Timeout,
	}))
	registry.Register(capability.NewProgress())
	registry.Register(capability.NewNutrition())
	registry.Register(capability.NewGamification())

	sessions := orchestrator.NewSessionRegistry(cfg.Safety.SessionIdleTTL)
	limiter := orchestrator.NewUserLimiter(cfg.Safety.UserRatePerSecond, cfg.Safety.UserBurst)

	var orchOpts []orchestrator.Option
	if slackNotifier != nil {
		orchOpts = append(orchOpts, orchestrator.WithAdminNotifier(slackNotifier))
	}
	orch := orchestrator.New(
		classifier,
		auditLog,
		store.Profiles(),
		registry,
		sessions,
		limiter,
		cfg.Safety.CapabilityTimeout,
		orchOpts...,
	)

	// Notification policy and the weekly reminder scheduler.
	deliverers := []notify.Deliverer{
		notify.NewPushDeliverer(),
		notify.NewEmailDeliverer(),
	}
	if slackNotifier != nil {
		deliverers = append(deliverers, slackNotifier)
	}
	policy := notify.NewPolicy(store.NotificationSettings(), deliverers, auditLog)
	scheduler := notify.NewScheduler(store.WeeklyReminders(), store.Profiles(), policy)

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Background loops.
	go sessions.Run(ctx, cfg.Safety.SessionSweepInterval)
	go limiter.Run(ctx, 10*time.Minute)
	go auditLog.Run(ctx, cfg.Safety.QueueDrainInterval)
	go auditLog.RunCleanup(ctx, cfg.Safety.CleanupInterval)
	go scheduler.Run(ctx, time.Minute)

	// Create HTTP server with all routes wired.
	srv := server.New(ctx, cfg, orch, auditLog, policy, pubsub)

	// Start server in background goroutine.
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}
