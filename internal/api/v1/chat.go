package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/vitracka/companion/internal/domain"
	"github.com/vitracka/companion/internal/orchestrator"
	"github.com/vitracka/companion/internal/server/middleware"
)

type ChatInput struct {
	Body struct {
		Message   string         `json:"message" minLength:"1" maxLength:"10000" doc:"User message"`
		SessionID string         `json:"session_id,omitempty" doc:"Conversation session ID; a new session is started when omitted"`
		Context   map[string]any `json:"context,omitempty" doc:"Optional request context (e.g. capability override)"`
	}
}

type ChatOutput struct {
	Body struct {
		Response         string         `json:"response" doc:"Composed assistant response"`
		SessionID        string         `json:"session_id" doc:"Session the turn was recorded under"`
		InvolvedAgents   []string       `json:"involved_agents" doc:"Capabilities that contributed to the response"`
		SafetyOverride   bool           `json:"safety_override" doc:"True when the safety authority replaced the specialist output"`
		RequiresFollowUp bool           `json:"requires_follow_up" doc:"True when a human follow-up is expected"`
		Context          map[string]any `json:"context,omitempty" doc:"Opaque context echoed back to the caller"`
	}
}

func RegisterChatRoutes(api huma.API, orch ChatOrchestrator) {
	huma.Register(api, huma.Operation{
		OperationID: "chat",
		Method:      http.MethodPost,
		Path:        "/chat",
		Summary:     "Send a message to the companion",
		Tags:        []string{"Chat"},
	}, func(ctx context.Context, input *ChatInput) (*ChatOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("authentication required")
		}

		sessionID := input.Body.SessionID
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		result, err := orch.Process(ctx, &orchestrator.Request{
			UserID:    userID,
			Message:   input.Body.Message,
			SessionID: sessionID,
			Context:   input.Body.Context,
		})
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrValidation):
				return nil, huma.Error422UnprocessableEntity(err.Error())
			case errors.Is(err, domain.ErrRateLimited):
				return nil, huma.Error429TooManyRequests("too many messages, slow down")
			default:
				return nil, huma.Error500InternalServerError("failed to process message")
			}
		}

		out := &ChatOutput{}
		out.Body.Response = result.FinalResponse
		out.Body.SessionID = result.SessionID
		out.Body.InvolvedAgents = result.InvolvedAgents
		out.Body.SafetyOverride = result.SafetyOverride
		out.Body.RequiresFollowUp = result.RequiresFollowUp
		out.Body.Context = result.Context
		return out, nil
	})
}
