package domain

import (
	"context"
	"time"
)

// NotificationType identifies what kind of notification is being sent.
type NotificationType string

const (
	NotificationSafety         NotificationType = "safety"
	NotificationCoaching       NotificationType = "coaching"
	NotificationWeeklyReminder NotificationType = "weekly_reminder"
	NotificationProgress       NotificationType = "progress"
	NotificationGamification   NotificationType = "gamification"
	NotificationSystem         NotificationType = "system"
)

// DeliveryMethod is a channel a notification can be delivered through.
type DeliveryMethod string

const (
	MethodPush  DeliveryMethod = "push"
	MethodEmail DeliveryMethod = "email"
	MethodSlack DeliveryMethod = "slack"
)

// PauseSettings lets a user pause non-safety notifications, optionally
// until a given time.
type PauseSettings struct {
	IsPaused    bool
	PausedUntil *time.Time
}

// Active reports whether the pause is in effect at the given time.
func (p PauseSettings) Active(now time.Time) bool {
	if !p.IsPaused {
		return false
	}
	return p.PausedUntil == nil || now.Before(*p.PausedUntil)
}

// NotificationSettings holds a user's delivery preferences. The safety type
// is immutable: it can never be disabled, opted out of, or paused. Normalize
// enforces that before any settings write.
type NotificationSettings struct {
	UserID        string
	Methods       map[DeliveryMethod]bool
	MaxPerDay     int
	EnabledTypes  map[NotificationType]bool
	OptedOutTypes []NotificationType
	Pause         PauseSettings
	UpdatedAt     time.Time
}

// DefaultNotificationSettings returns the settings applied to users who
// have never customized delivery.
func DefaultNotificationSettings(userID string) *NotificationSettings {
	return &NotificationSettings{
		UserID: userID,
		Methods: map[DeliveryMethod]bool{
			MethodPush: true,
		},
		MaxPerDay: 5,
		EnabledTypes: map[NotificationType]bool{
			NotificationSafety:         true,
			NotificationCoaching:       true,
			NotificationWeeklyReminder: true,
			NotificationProgress:       true,
			NotificationGamification:   true,
		},
	}
}

// Normalize enforces the safety invariants: safety stays enabled and is
// stripped from the opt-out list. Called on every settings write path.
func (s *NotificationSettings) Normalize() {
	if s.EnabledTypes == nil {
		s.EnabledTypes = make(map[NotificationType]bool)
	}
	s.EnabledTypes[NotificationSafety] = true

	kept := s.OptedOutTypes[:0]
	for _, t := range s.OptedOutTypes {
		if t != NotificationSafety {
			kept = append(kept, t)
		}
	}
	s.OptedOutTypes = kept
}

// IsOptedOut reports whether the user has opted out of the given type.
func (s *NotificationSettings) IsOptedOut(t NotificationType) bool {
	for _, opted := range s.OptedOutTypes {
		if opted == t {
			return true
		}
	}
	return false
}

// EnabledMethods returns the delivery methods the user has switched on.
func (s *NotificationSettings) EnabledMethods() []DeliveryMethod {
	var methods []DeliveryMethod
	for m, on := range s.Methods {
		if on {
			methods = append(methods, m)
		}
	}
	return methods
}

// ToneAdjustment controls whether reminder copy may be rewritten to match
// the user's coaching style.
type ToneAdjustment struct {
	AllowToneChange bool
}

// WeeklyReminderSettings schedules the weekly check-in reminder. Mutated by
// the reminder scheduler, read by the notification policy for tone
// rewriting.
type WeeklyReminderSettings struct {
	UserID         string
	DayOfWeek      time.Weekday
	Hour           int
	Minute         int
	ToneAdjustment ToneAdjustment
	LastSent       *time.Time
	NextScheduled  time.Time
}

// NextOccurrence computes the first scheduled slot strictly after the
// given time.
func (w *WeeklyReminderSettings) NextOccurrence(after time.Time) time.Time {
	next := time.Date(after.Year(), after.Month(), after.Day(), w.Hour, w.Minute, 0, 0, after.Location())
	daysAhead := (int(w.DayOfWeek) - int(after.Weekday()) + 7) % 7
	next = next.AddDate(0, 0, daysAhead)
	if !next.After(after) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

// NotificationSettingsStore persists per-user delivery preferences.
type NotificationSettingsStore interface {
	Get(ctx context.Context, userID string) (*NotificationSettings, error)
	Set(ctx context.Context, settings *NotificationSettings) error
}

// WeeklyReminderStore persists weekly reminder schedules.
type WeeklyReminderStore interface {
	Get(ctx context.Context, userID string) (*WeeklyReminderSettings, error)
	Set(ctx context.Context, settings *WeeklyReminderSettings) error
	ListDue(ctx context.Context, now time.Time) ([]*WeeklyReminderSettings, error)
}
