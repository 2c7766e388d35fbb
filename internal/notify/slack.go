package notify

import (
	"context"
	"fmt"

	slacklib "github.com/slack-go/slack"

	"github.com/vitracka/companion/internal/domain"
)

// SlackAPI is the subset of the Slack client the notifier uses.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slacklib.MsgOption) (string, string, error)
}

// SlackNotifier posts to a fixed admin channel. It serves two roles: the
// "slack" delivery method for user notifications routed to staff, and the
// AdminNotifier the orchestrator raises safety alerts through.
type SlackNotifier struct {
	api       SlackAPI
	channelID string
}

// NewSlackNotifier creates a notifier posting to the given channel.
func NewSlackNotifier(api SlackAPI, channelID string) *SlackNotifier {
	return &SlackNotifier{api: api, channelID: channelID}
}

func (s *SlackNotifier) Method() domain.DeliveryMethod { return domain.MethodSlack }

// Deliver posts a notification line to the admin channel.
func (s *SlackNotifier) Deliver(ctx context.Context, userID, content string) error {
	text := fmt.Sprintf("Notification for user %s: %s", userID, content)
	if _, _, err := s.api.PostMessageContext(ctx, s.channelID, slacklib.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("notify.SlackNotifier.Deliver: %w", err)
	}
	return nil
}

// SafetyAlert posts a structured safety alert for the on-call reviewer.
// The alert carries identifiers and enum fields only. The orchestrator
// raises it before the audit layer redacts the event, so event free text
// must never be added to these blocks unredacted.
func (s *SlackNotifier) SafetyAlert(ctx context.Context, event *domain.SafetyAuditEvent) error {
	blocks := []slacklib.Block{
		slacklib.NewHeaderBlock(slacklib.NewTextBlockObject(slacklib.PlainTextType, "Safety intervention", false, false)),
		slacklib.NewSectionBlock(nil, []*slacklib.TextBlockObject{
			slacklib.NewTextBlockObject(slacklib.MarkdownType, fmt.Sprintf("*Trigger:* %s", event.TriggerType), false, false),
			slacklib.NewTextBlockObject(slacklib.MarkdownType, fmt.Sprintf("*Escalation:* %s", event.EscalationLevel), false, false),
			slacklib.NewTextBlockObject(slacklib.MarkdownType, fmt.Sprintf("*User:* %s", event.UserID), false, false),
			slacklib.NewTextBlockObject(slacklib.MarkdownType, fmt.Sprintf("*Session:* %s", event.SessionID), false, false),
		}, nil),
		slacklib.NewContextBlock("", slacklib.NewTextBlockObject(slacklib.MarkdownType, "Review required in the admin audit console.", false, false)),
	}

	if _, _, err := s.api.PostMessageContext(ctx, s.channelID, slacklib.MsgOptionBlocks(blocks...)); err != nil {
		return fmt.Errorf("notify.SlackNotifier.SafetyAlert: %w", err)
	}
	return nil
}
