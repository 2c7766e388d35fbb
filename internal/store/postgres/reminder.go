package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitracka/companion/internal/domain"
)

type WeeklyReminderRepo struct {
	pool *pgxpool.Pool
}

func NewWeeklyReminderRepo(pool *pgxpool.Pool) *WeeklyReminderRepo {
	return &WeeklyReminderRepo{pool: pool}
}

const reminderColumns = `user_id, day_of_week, hour, minute, allow_tone_change,
	last_sent, next_scheduled`

func (r *WeeklyReminderRepo) Get(ctx context.Context, userID string) (*domain.WeeklyReminderSettings, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+reminderColumns+` FROM weekly_reminders WHERE user_id = $1`,
		userID,
	)
	settings, err := scanReminder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("weeklyReminderRepo.Get: user %q: %w", userID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("weeklyReminderRepo.Get: %w", err)
	}
	return settings, nil
}

func (r *WeeklyReminderRepo) Set(ctx context.Context, settings *domain.WeeklyReminderSettings) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO weekly_reminders (`+reminderColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id) DO UPDATE SET
		   day_of_week = $2, hour = $3, minute = $4, allow_tone_change = $5,
		   last_sent = $6, next_scheduled = $7`,
		settings.UserID, int(settings.DayOfWeek), settings.Hour, settings.Minute,
		settings.ToneAdjustment.AllowToneChange, settings.LastSent, settings.NextScheduled,
	)
	if err != nil {
		return fmt.Errorf("weeklyReminderRepo.Set: %w", err)
	}
	return nil
}

func (r *WeeklyReminderRepo) ListDue(ctx context.Context, now time.Time) ([]*domain.WeeklyReminderSettings, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+reminderColumns+` FROM weekly_reminders WHERE next_scheduled <= $1`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("weeklyReminderRepo.ListDue: %w", err)
	}
	defer rows.Close()

	var due []*domain.WeeklyReminderSettings
	for rows.Next() {
		settings, scanErr := scanReminder(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("weeklyReminderRepo.ListDue: %w", scanErr)
		}
		due = append(due, settings)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("weeklyReminderRepo.ListDue: rows: %w", err)
	}

	return due, nil
}

func scanReminder(row pgx.Row) (*domain.WeeklyReminderSettings, error) {
	var (
		s         domain.WeeklyReminderSettings
		dayOfWeek int
	)
	if err := row.Scan(
		&s.UserID, &dayOfWeek, &s.Hour, &s.Minute,
		&s.ToneAdjustment.AllowToneChange, &s.LastSent, &s.NextScheduled,
	); err != nil {
		return nil, err
	}
	s.DayOfWeek = time.Weekday(dayOfWeek)
	return &s, nil
}
