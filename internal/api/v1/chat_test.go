package v1_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/vitracka/companion/internal/api/v1"
	"github.com/vitracka/companion/internal/domain"
	"github.com/vitracka/companion/internal/orchestrator"
	"github.com/vitracka/companion/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// Context helpers — inject user/role into context for DoCtx
// ---------------------------------------------------------------------------

func userCtx(userID string) context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, middleware.ContextKeyUserID, userID)
	ctx = context.WithValue(ctx, middleware.ContextKeyUserRole, middleware.RoleMember)
	return ctx
}

// ---------------------------------------------------------------------------
// Mock ChatOrchestrator
// ---------------------------------------------------------------------------

type mockChatOrchestrator struct {
	processFunc func(ctx context.Context, req *orchestrator.Request) (*orchestrator.Result, error)
}

func (m *mockChatOrchestrator) Process(ctx context.Context, req *orchestrator.Request) (*orchestrator.Result, error) {
	return m.processFunc(ctx, req)
}

// echoOrchestrator returns a mock that answers every request with a fixed
// reply and echoes the request's session ID back.
func echoOrchestrator(reply string) *mockChatOrchestrator {
	return &mockChatOrchestrator{
		processFunc: func(_ context.Context, req *orchestrator.Request) (*orchestrator.Result, error) {
			return &orchestrator.Result{
				FinalResponse:  reply,
				InvolvedAgents: []string{"coach"},
				SessionID:      req.SessionID,
				Context:        req.Context,
			}, nil
		},
	}
}

// ---------------------------------------------------------------------------
// TestChat
// ---------------------------------------------------------------------------

func TestChat_StartsNewSessionWhenOmitted(t *testing.T) {
	t.Parallel()

	var seenSessionID string
	orch := &mockChatOrchestrator{
		processFunc: func(_ context.Context, req *orchestrator.Request) (*orchestrator.Result, error) {
			seenSessionID = req.SessionID
			return &orchestrator.Result{FinalResponse: "hi", SessionID: req.SessionID}, nil
		},
	}
	_, api := humatest.New(t)
	v1.RegisterChatRoutes(api, orch)

	resp := api.PostCtx(userCtx("user-1"), "/chat", map[string]any{
		"message": "hello",
	})

	require.Equal(t, http.StatusOK, resp.Code)
	require.NotEmpty(t, seenSessionID, "handler must mint a session ID for the first message")
	_, err := uuid.Parse(seenSessionID)
	require.NoError(t, err)

	var body struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, seenSessionID, body.SessionID, "minted session ID must be echoed back")
}

func TestChat_PassesThroughProvidedSession(t *testing.T) {
	t.Parallel()

	sessionID := uuid.NewString()
	var seenSessionID string
	orch := &mockChatOrchestrator{
		processFunc: func(_ context.Context, req *orchestrator.Request) (*orchestrator.Result, error) {
			seenSessionID = req.SessionID
			return &orchestrator.Result{FinalResponse: "hi", SessionID: req.SessionID}, nil
		},
	}
	_, api := humatest.New(t)
	v1.RegisterChatRoutes(api, orch)

	resp := api.PostCtx(userCtx("user-1"), "/chat", map[string]any{
		"message":    "hello again",
		"session_id": sessionID,
	})

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, sessionID, seenSessionID)
}

func TestChat_ReturnsFullResult(t *testing.T) {
	t.Parallel()

	_, api := humatest.New(t)
	v1.RegisterChatRoutes(api, echoOrchestrator("welcome back"))

	resp := api.PostCtx(userCtx("user-1"), "/chat", map[string]any{
		"message": "how am I doing?",
		"context": map[string]any{"capability": "progress"},
	})

	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Response       string         `json:"response"`
		InvolvedAgents []string       `json:"involved_agents"`
		Context        map[string]any `json:"context"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "welcome back", body.Response)
	assert.Equal(t, []string{"coach"}, body.InvolvedAgents)
	assert.Equal(t, "progress", body.Context["capability"])
}

func TestChat_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "validation error maps to 422", err: domain.ErrValidation, wantStatus: http.StatusUnprocessableEntity},
		{name: "rate limit maps to 429", err: domain.ErrRateLimited, wantStatus: http.StatusTooManyRequests},
		{name: "unknown error maps to 500", err: context.DeadlineExceeded, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			orch := &mockChatOrchestrator{
				processFunc: func(_ context.Context, _ *orchestrator.Request) (*orchestrator.Result, error) {
					return nil, tt.err
				},
			}
			_, api := humatest.New(t)
			v1.RegisterChatRoutes(api, orch)

			resp := api.PostCtx(userCtx("user-1"), "/chat", map[string]any{
				"message": "hello",
			})

			assert.Equal(t, tt.wantStatus, resp.Code)
		})
	}
}

func TestChat_NoUserInContext_Returns401(t *testing.T) {
	t.Parallel()

	_, api := humatest.New(t)
	v1.RegisterChatRoutes(api, echoOrchestrator("never reached"))

	resp := api.PostCtx(context.Background(), "/chat", map[string]any{
		"message": "hello",
	})

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}
