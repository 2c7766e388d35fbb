package capability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"github.com/vitracka/companion/internal/domain"
)

const coachSystemPrompt = "You are a compassionate weight-management coach. " +
	"Use shame-free language: never guilt, judgment, or 'you failed'. Reframe " +
	"setbacks as learning. Keep replies to two or three sentences and end with " +
	"encouragement."

// CoachConfig configures the model-backed coach adapter. When APIKey is
// empty the coach runs on its deterministic templates only.
type CoachConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Coach is the conversational coaching capability. It calls a chat model
// when configured and falls back to style-specific templates when the
// model is unavailable or errors, so coaching never hard-fails a turn.
type Coach struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewCoach creates the coach capability.
func NewCoach(cfg CoachConfig) *Coach {
	c := &Coach{
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
	if c.model == "" {
		c.model = openai.GPT4oMini
	}
	if c.timeout <= 0 {
		c.timeout = 15 * time.Second
	}
	if cfg.APIKey != "" {
		clientConfig := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
		c.client = openai.NewClientWithConfig(clientConfig)
	}
	return c
}

func (c *Coach) Name() string { return NameCoach }

// Handle produces a coaching reply for the user's message.
func (c *Coach) Handle(ctx context.Context, req *Request) (*Response, error) {
	if c.client == nil {
		return &Response{Text: c.templateReply(req)}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   300,
		Temperature: 0.7,
		Messages:    c.buildMessages(req),
	})
	if err != nil || len(resp.Choices) == 0 {
		log.Warn().Err(err).Str("user_id", req.UserID).Msg("capability: coach model call failed, using template reply")
		return &Response{Text: c.templateReply(req)}, nil
	}

	return &Response{Text: strings.TrimSpace(resp.Choices[0].Message.Content)}, nil
}

func (c *Coach) buildMessages(req *Request) []openai.ChatCompletionMessage {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: coachSystemPrompt},
	}
	if ctxLine := profileContext(req.Profile); ctxLine != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: ctxLine,
		})
	}

	// Carry a short tail of the session history for continuity.
	history := req.History
	if len(history) > 6 {
		history = history[len(history)-6:]
	}
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == domain.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	return append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Message,
	})
}

func profileContext(p *domain.UserProfile) string {
	if p == nil {
		return ""
	}
	var parts []string
	if p.CoachingStyle != "" {
		parts = append(parts, fmt.Sprintf("Use a %s coaching style.", p.CoachingStyle))
	}
	if p.OnGLP1 {
		parts = append(parts, "The user is on a GLP-1 medication: focus on nutrition quality over quantity and acknowledge appetite changes.")
	}
	switch p.GoalType {
	case domain.GoalLoss:
		parts = append(parts, "The user is actively losing weight.")
	case domain.GoalMaintenance:
		parts = append(parts, "The user is maintaining their weight.")
	case domain.GoalTransition:
		parts = append(parts, "The user is transitioning to maintenance.")
	}
	return strings.Join(parts, " ")
}

// templateReply is the deterministic fallback, varied by coaching style.
func (c *Coach) templateReply(req *Request) string {
	style := domain.StyleGentle
	name := ""
	glp1 := false
	if req.Profile != nil {
		if req.Profile.CoachingStyle != "" {
			style = req.Profile.CoachingStyle
		}
		name = req.Profile.Name
		glp1 = req.Profile.OnGLP1
	}

	greeting := "Thanks for checking in"
	if name != "" {
		greeting = "Thanks for checking in, " + name
	}

	var body string
	switch style {
	case domain.StylePragmatic:
		body = "Let's look at what the data says and pick one practical adjustment for this week."
	case domain.StyleUpbeat:
		body = "You showed up today, and that counts! Let's build on that energy with one small win."
	case domain.StyleStructured:
		body = "Let's slot one concrete step into your routine and review how it went at your next check-in."
	default:
		body = "Whatever this week looked like, you're building new habits, and progress isn't linear. What feels manageable right now?"
	}

	reply := greeting + ". " + body
	if glp1 {
		reply += " Since your appetite may be smaller these days, keep an eye on protein and hydration."
	}
	return reply
}
