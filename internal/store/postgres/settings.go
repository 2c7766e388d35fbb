package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitracka/companion/internal/domain"
)

type NotificationSettingsRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationSettingsRepo(pool *pgxpool.Pool) *NotificationSettingsRepo {
	return &NotificationSettingsRepo{pool: pool}
}

// settingsDoc is the JSON shape stored alongside the user key. Preferences
// change shape more often than the schema should.
type settingsDoc struct {
	Methods       map[domain.DeliveryMethod]bool     `json:"methods"`
	MaxPerDay     int                                `json:"max_per_day"`
	EnabledTypes  map[domain.NotificationType]bool   `json:"enabled_types"`
	OptedOutTypes []domain.NotificationType          `json:"opted_out_types,omitempty"`
	Pause         domain.PauseSettings               `json:"pause"`
}

func (r *NotificationSettingsRepo) Get(ctx context.Context, userID string) (*domain.NotificationSettings, error) {
	var (
		doc       []byte
		settings  domain.NotificationSettings
	)
	err := r.pool.QueryRow(ctx,
		`SELECT preferences, updated_at FROM notification_settings WHERE user_id = $1`,
		userID,
	).Scan(&doc, &settings.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("notificationSettingsRepo.Get: user %q: %w", userID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("notificationSettingsRepo.Get: %w", err)
	}

	var d settingsDoc
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, fmt.Errorf("notificationSettingsRepo.Get: unmarshal: %w", err)
	}

	settings.UserID = userID
	settings.Methods = d.Methods
	settings.MaxPerDay = d.MaxPerDay
	settings.EnabledTypes = d.EnabledTypes
	settings.OptedOutTypes = d.OptedOutTypes
	settings.Pause = d.Pause
	settings.Normalize()

	return &settings, nil
}

// Set upserts the user's preferences. Normalize runs before the write so
// the safety invariants hold in storage, not just in memory.
func (r *NotificationSettingsRepo) Set(ctx context.Context, settings *domain.NotificationSettings) error {
	settings.Normalize()

	doc, err := json.Marshal(settingsDoc{
		Methods:       settings.Methods,
		MaxPerDay:     settings.MaxPerDay,
		EnabledTypes:  settings.EnabledTypes,
		OptedOutTypes: settings.OptedOutTypes,
		Pause:         settings.Pause,
	})
	if err != nil {
		return fmt.Errorf("notificationSettingsRepo.Set: marshal: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO notification_settings (user_id, preferences, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET preferences = $2, updated_at = $3`,
		settings.UserID, doc, settings.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("notificationSettingsRepo.Set: %w", err)
	}

	return nil
}
