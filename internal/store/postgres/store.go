// Package postgres implements the durable stores over pgx: the audit
// store, notification settings, weekly reminder schedules, and the
// read-only user profile view.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitracka/companion/internal/domain"
)

type Store struct {
	pool      *pgxpool.Pool
	audit     *AuditRepo
	settings  *NotificationSettingsRepo
	reminders *WeeklyReminderRepo
	profiles  *UserProfileRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{
		pool:      pool,
		audit:     NewAuditRepo(pool),
		settings:  NewNotificationSettingsRepo(pool),
		reminders: NewWeeklyReminderRepo(pool),
		profiles:  NewUserProfileRepo(pool),
	}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Audit() domain.AuditStore { return s.audit }

func (s *Store) NotificationSettings() domain.NotificationSettingsStore { return s.settings }

func (s *Store) WeeklyReminders() domain.WeeklyReminderStore { return s.reminders }

func (s *Store) Profiles() domain.UserProfileStore { return s.profiles }
