package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vitracka/companion/internal/domain"
)

const weeklyReminderMessage = "It's check-in time! Don't forget to log your weight this week - " +
	"make sure you keep the streak going."

// Scheduler sends weekly check-in reminders through the notification
// policy, so pause and opt-out preferences apply (reminders are not
// safety messages). Tone adaptation runs when the user's settings allow it.
type Scheduler struct {
	reminders domain.WeeklyReminderStore
	profiles  domain.UserProfileStore
	policy    *Policy
	now       func() time.Time
}

// NewScheduler creates the weekly reminder scheduler.
func NewScheduler(reminders domain.WeeklyReminderStore, profiles domain.UserProfileStore, policy *Policy) *Scheduler {
	return &Scheduler{
		reminders: reminders,
		profiles:  profiles,
		policy:    policy,
		now:       time.Now,
	}
}

// Tick sends every due reminder once and reschedules it. Returns the
// number of reminders attempted.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.reminders.ListDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("notify.Scheduler.Tick: %w", err)
	}

	sent := 0
	for _, reminder := range due {
		if err := s.sendOne(ctx, reminder, now); err != nil {
			log.Error().Err(err).Str("user_id", reminder.UserID).Msg("notify: weekly reminder failed")
			continue
		}
		sent++
	}
	return sent, nil
}

func (s *Scheduler) sendOne(ctx context.Context, reminder *domain.WeeklyReminderSettings, now time.Time) error {
	profile, err := s.profiles.Get(ctx, reminder.UserID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("load profile: %w", err)
	}

	message := AdaptTone(weeklyReminderMessage, profile, reminder)

	if _, err := s.policy.Deliver(ctx, &DeliveryRequest{
		UserID:  reminder.UserID,
		Type:    domain.NotificationWeeklyReminder,
		Content: message,
	}); err != nil {
		return fmt.Errorf("deliver: %w", err)
	}

	sentAt := now
	reminder.LastSent = &sentAt
	reminder.NextScheduled = reminder.NextOccurrence(now)
	if err := s.reminders.Set(ctx, reminder); err != nil {
		return fmt.Errorf("reschedule: %w", err)
	}
	return nil
}

// Run ticks the scheduler on an interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.Tick(ctx); err != nil {
				log.Error().Err(err).Msg("notify: reminder tick failed")
			} else if n > 0 {
				log.Info().Int("sent", n).Msg("notify: weekly reminders sent")
			}
		}
	}
}
