package capability_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitracka/companion/internal/capability"
	"github.com/vitracka/companion/internal/domain"
)

func TestCoach_TemplateReplyByStyle(t *testing.T) {
	t.Parallel()

	// No API key configured: the deterministic templates answer.
	coach := capability.NewCoach(capability.CoachConfig{})

	tests := []struct {
		name    string
		profile *domain.UserProfile
		want    string
	}{
		{
			name:    "nil profile defaults to gentle",
			profile: nil,
			want:    "progress isn't linear",
		},
		{
			name:    "pragmatic",
			profile: &domain.UserProfile{UserID: "u1", CoachingStyle: domain.StylePragmatic},
			want:    "practical adjustment",
		},
		{
			name:    "upbeat",
			profile: &domain.UserProfile{UserID: "u1", CoachingStyle: domain.StyleUpbeat},
			want:    "You showed up today",
		},
		{
			name:    "structured",
			profile: &domain.UserProfile{UserID: "u1", CoachingStyle: domain.StyleStructured},
			want:    "concrete step",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, err := coach.Handle(t.Context(), &capability.Request{
				UserID:  "u1",
				Message: "how am I doing?",
				Profile: tt.profile,
			})
			require.NoError(t, err)
			assert.Contains(t, resp.Text, tt.want)
		})
	}
}

func TestCoach_TemplatePersonalization(t *testing.T) {
	t.Parallel()

	coach := capability.NewCoach(capability.CoachConfig{})

	resp, err := coach.Handle(t.Context(), &capability.Request{
		UserID:  "u1",
		Message: "checking in",
		Profile: &domain.UserProfile{
			UserID: "u1",
			Name:   "Sam",
			OnGLP1: true,
		},
	})
	require.NoError(t, err)

	assert.Contains(t, resp.Text, "Sam")
	assert.Contains(t, resp.Text, "protein and hydration")
}

func TestSpecialists_ProfileShapedReplies(t *testing.T) {
	t.Parallel()

	t.Run("progress reframes plateaus for loss goal", func(t *testing.T) {
		t.Parallel()

		resp, err := capability.NewProgress().Handle(t.Context(), &capability.Request{
			UserID:  "u1",
			Message: "why is my weight stuck?",
			Profile: &domain.UserProfile{UserID: "u1", GoalType: domain.GoalLoss},
		})
		require.NoError(t, err)
		assert.Contains(t, resp.Text, "Plateaus are a normal part of loss")
	})

	t.Run("progress treats flat trend as success in maintenance", func(t *testing.T) {
		t.Parallel()

		resp, err := capability.NewProgress().Handle(t.Context(), &capability.Request{
			UserID:  "u1",
			Message: "weight unchanged",
			Profile: &domain.UserProfile{UserID: "u1", GoalType: domain.GoalMaintenance},
		})
		require.NoError(t, err)
		assert.Contains(t, resp.Text, "maintenance")
	})

	t.Run("nutrition is GLP-1 aware", func(t *testing.T) {
		t.Parallel()

		resp, err := capability.NewNutrition().Handle(t.Context(), &capability.Request{
			UserID:  "u1",
			Message: "not very hungry lately",
			Profile: &domain.UserProfile{UserID: "u1", OnGLP1: true},
		})
		require.NoError(t, err)
		assert.Contains(t, resp.Text, "GLP-1")
		assert.Contains(t, resp.Text, "not a lack of willpower")
	})

	t.Run("gamification scales to preference", func(t *testing.T) {
		t.Parallel()

		quiet, err := capability.NewGamification().Handle(t.Context(), &capability.Request{
			UserID:  "u1",
			Message: "streak?",
			Profile: &domain.UserProfile{UserID: "u1", Gamification: domain.GamificationLow},
		})
		require.NoError(t, err)
		assert.Contains(t, quiet.Text, "No leaderboards")

		loud, err := capability.NewGamification().Handle(t.Context(), &capability.Request{
			UserID:  "u1",
			Message: "streak?",
			Profile: &domain.UserProfile{UserID: "u1", Gamification: domain.GamificationHigh},
		})
		require.NoError(t, err)
		assert.Contains(t, loud.Text, "challenge tier")
	})
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	registry := capability.NewRegistry()
	registry.Register(capability.NewCoach(capability.CoachConfig{}))
	registry.Register(capability.NewProgress())

	t.Run("get known capability", func(t *testing.T) {
		t.Parallel()

		c, err := registry.Get(capability.NameCoach)
		require.NoError(t, err)
		assert.Equal(t, capability.NameCoach, c.Name())
	})

	t.Run("get unknown capability", func(t *testing.T) {
		t.Parallel()

		_, err := registry.Get("astrology")
		require.ErrorIs(t, err, capability.ErrUnknownCapability)
	})

	t.Run("select preserves order and skips unknowns", func(t *testing.T) {
		t.Parallel()

		selected := registry.Select([]string{capability.NameProgress, "astrology", capability.NameCoach})
		require.Len(t, selected, 2)
		assert.Equal(t, capability.NameProgress, selected[0].Name())
		assert.Equal(t, capability.NameCoach, selected[1].Name())
	})
}
