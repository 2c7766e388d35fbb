package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/vitracka/companion/internal/domain"
	"github.com/vitracka/companion/internal/server/middleware"
)

// NotificationSettingsDTO is the wire shape of a user's delivery
// preferences.
type NotificationSettingsDTO struct {
	Methods       map[string]bool `json:"methods"`
	MaxPerDay     int             `json:"max_per_day"`
	EnabledTypes  map[string]bool `json:"enabled_types"`
	OptedOutTypes []string        `json:"opted_out_types"`
	IsPaused      bool            `json:"is_paused"`
	PausedUntil   *time.Time      `json:"paused_until,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func toSettingsDTO(s *domain.NotificationSettings) NotificationSettingsDTO {
	dto := NotificationSettingsDTO{
		Methods:       make(map[string]bool, len(s.Methods)),
		MaxPerDay:     s.MaxPerDay,
		EnabledTypes:  make(map[string]bool, len(s.EnabledTypes)),
		OptedOutTypes: make([]string, 0, len(s.OptedOutTypes)),
		IsPaused:      s.Pause.IsPaused,
		PausedUntil:   s.Pause.PausedUntil,
		UpdatedAt:     s.UpdatedAt,
	}
	for m, on := range s.Methods {
		dto.Methods[string(m)] = on
	}
	for t, on := range s.EnabledTypes {
		dto.EnabledTypes[string(t)] = on
	}
	for _, t := range s.OptedOutTypes {
		dto.OptedOutTypes = append(dto.OptedOutTypes, string(t))
	}
	return dto
}

type GetSettingsInput struct{}

type GetSettingsOutput struct {
	Body NotificationSettingsDTO
}

type UpdateSettingsInput struct {
	Body struct {
		Methods      map[string]bool `json:"methods,omitempty" doc:"Delivery methods to enable or disable"`
		MaxPerDay    int             `json:"max_per_day,omitempty" minimum:"0" maximum:"50" doc:"Daily non-safety notification cap"`
		EnabledTypes map[string]bool `json:"enabled_types,omitempty" doc:"Notification types to enable or disable; safety cannot be disabled"`
		IsPaused     bool            `json:"is_paused,omitempty" doc:"Pause non-safety notifications"`
		PausedUntil  *time.Time      `json:"paused_until,omitempty" doc:"Automatic pause expiry"`
	}
}

type UpdateSettingsOutput struct {
	Body NotificationSettingsDTO
}

type OptOutInput struct {
	Body struct {
		Type string `json:"type" minLength:"1" doc:"Notification type to opt out of; 'safety' is rejected"`
	}
}

type OptInInput struct {
	Body struct {
		Type string `json:"type" minLength:"1" doc:"Notification type to opt back into"`
	}
}

type OptToggleOutput struct {
	Body NotificationSettingsDTO
}

// RegisterNotificationRoutes wires the per-user notification preference
// surface. The authenticated user can only read and change their own
// settings.
func RegisterNotificationRoutes(api huma.API, policy NotificationPolicy) {
	huma.Register(api, huma.Operation{
		OperationID: "get-notification-settings",
		Method:      http.MethodGet,
		Path:        "/notifications/settings",
		Summary:     "Get notification settings",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, _ *GetSettingsInput) (*GetSettingsOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("authentication required")
		}

		settings, err := policy.Settings(ctx, userID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load settings")
		}

		return &GetSettingsOutput{Body: toSettingsDTO(settings)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-notification-settings",
		Method:      http.MethodPut,
		Path:        "/notifications/settings",
		Summary:     "Update notification settings",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, input *UpdateSettingsInput) (*UpdateSettingsOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("authentication required")
		}

		current, err := policy.Settings(ctx, userID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load settings")
		}

		if input.Body.Methods != nil {
			current.Methods = make(map[domain.DeliveryMethod]bool, len(input.Body.Methods))
			for m, on := range input.Body.Methods {
				current.Methods[domain.DeliveryMethod(m)] = on
			}
		}
		if input.Body.EnabledTypes != nil {
			current.EnabledTypes = make(map[domain.NotificationType]bool, len(input.Body.EnabledTypes))
			for t, on := range input.Body.EnabledTypes {
				current.EnabledTypes[domain.NotificationType(t)] = on
			}
		}
		if input.Body.MaxPerDay > 0 {
			current.MaxPerDay = input.Body.MaxPerDay
		}
		current.Pause = domain.PauseSettings{
			IsPaused:    input.Body.IsPaused,
			PausedUntil: input.Body.PausedUntil,
		}

		err = policy.UpdateSettings(ctx, current)
		if err != nil {
			if errors.Is(err, domain.ErrValidation) {
				return nil, huma.Error422UnprocessableEntity(err.Error())
			}
			return nil, huma.Error500InternalServerError("failed to update settings")
		}

		return &UpdateSettingsOutput{Body: toSettingsDTO(current)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "opt-out-notification-type",
		Method:      http.MethodPost,
		Path:        "/notifications/opt-out",
		Summary:     "Opt out of a notification type",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, input *OptOutInput) (*OptToggleOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("authentication required")
		}

		err := policy.OptOut(ctx, userID, domain.NotificationType(input.Body.Type))
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrSafetyOptOut):
				return nil, huma.Error422UnprocessableEntity("safety notifications cannot be opted out of")
			case errors.Is(err, domain.ErrValidation):
				return nil, huma.Error422UnprocessableEntity(err.Error())
			default:
				return nil, huma.Error500InternalServerError("failed to opt out")
			}
		}

		settings, err := policy.Settings(ctx, userID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load settings")
		}
		return &OptToggleOutput{Body: toSettingsDTO(settings)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "opt-in-notification-type",
		Method:      http.MethodPost,
		Path:        "/notifications/opt-in",
		Summary:     "Opt back into a notification type",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, input *OptInInput) (*OptToggleOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("authentication required")
		}

		err := policy.OptIn(ctx, userID, domain.NotificationType(input.Body.Type))
		if err != nil {
			if errors.Is(err, domain.ErrValidation) {
				return nil, huma.Error422UnprocessableEntity(err.Error())
			}
			return nil, huma.Error500InternalServerError("failed to opt in")
		}

		settings, err := policy.Settings(ctx, userID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load settings")
		}
		return &OptToggleOutput{Body: toSettingsDTO(settings)}, nil
	})
}
