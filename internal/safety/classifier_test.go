package safety_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitracka/companion/internal/domain"
	"github.com/vitracka/companion/internal/safety"
)

func TestClassify_SafeMessage(t *testing.T) {
	t.Parallel()

	c := safety.NewClassifier()

	verdict, err := c.Classify(t.Context(), "had a great walk today and hit my step goal", nil)
	require.NoError(t, err)

	assert.Equal(t, domain.TriggerNone, verdict.TriggerType)
	assert.False(t, verdict.IsIntervention)
	assert.False(t, verdict.OverridesOtherAgents)
	assert.True(t, verdict.Safe())
}

func TestClassify_CrisisPhrases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		message      string
		wantTrigger  domain.TriggerType
		wantLevel    domain.EscalationLevel
		wantOverride bool
		wantResource string
	}{
		{
			name:         "suicidal ideation",
			message:      "I just want to kill myself",
			wantTrigger:  domain.TriggerSelfHarm,
			wantLevel:    domain.EscalationCritical,
			wantOverride: true,
			wantResource: "988",
		},
		{
			name:         "self harm",
			message:      "lately I've been thinking about hurting myself",
			wantTrigger:  domain.TriggerSelfHarm,
			wantLevel:    domain.EscalationHigh,
			wantOverride: true,
			wantResource: "988",
		},
		{
			name:         "disordered eating",
			message:      "I've been starving myself to hit the number",
			wantTrigger:  domain.TriggerEatingDisorder,
			wantLevel:    domain.EscalationHigh,
			wantOverride: true,
			wantResource: "1-800-931-2237",
		},
		{
			name:         "medical emergency",
			message:      "I have chest pain and my arm is numb",
			wantTrigger:  domain.TriggerMedicalEmergency,
			wantLevel:    domain.EscalationCritical,
			wantOverride: true,
			wantResource: "911",
		},
		{
			name:         "uppercase input",
			message:      "I WANT TO KILL MYSELF",
			wantTrigger:  domain.TriggerSelfHarm,
			wantLevel:    domain.EscalationCritical,
			wantOverride: true,
			wantResource: "988",
		},
	}

	c := safety.NewClassifier()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			verdict, err := c.Classify(t.Context(), tt.message, nil)
			require.NoError(t, err)

			assert.Equal(t, tt.wantTrigger, verdict.TriggerType)
			assert.Equal(t, tt.wantLevel, verdict.EscalationLevel)
			assert.True(t, verdict.IsIntervention)
			assert.Equal(t, tt.wantOverride, verdict.OverridesOtherAgents)
			assert.Equal(t, tt.wantOverride, verdict.AdminNotificationRequired)
			assert.Contains(t, verdict.ResponseText, tt.wantResource)
		})
	}
}

func TestClassify_DepressionSoftNudge(t *testing.T) {
	t.Parallel()

	c := safety.NewClassifier()

	verdict, err := c.Classify(t.Context(), "everything feels hopeless this week", nil)
	require.NoError(t, err)

	assert.Equal(t, domain.TriggerDepression, verdict.TriggerType)
	assert.Equal(t, domain.EscalationMedium, verdict.EscalationLevel)
	assert.True(t, verdict.IsIntervention)
	assert.False(t, verdict.OverridesOtherAgents)
	assert.False(t, verdict.AdminNotificationRequired)
	assert.NotEmpty(t, verdict.ResponseText)
}

func TestClassify_WordBoundaries(t *testing.T) {
	t.Parallel()

	c := safety.NewClassifier()

	// "splurge" must not match the "purge" lexicon entry.
	verdict, err := c.Classify(t.Context(), "I let myself splurge on dessert yesterday", nil)
	require.NoError(t, err)

	assert.Equal(t, domain.TriggerNone, verdict.TriggerType)
	assert.False(t, verdict.IsIntervention)
}

func TestClassify_RiskFactorRaisesEscalation(t *testing.T) {
	t.Parallel()

	c := safety.NewClassifier()
	profile := &domain.UserProfile{
		UserID: "u1",
		Safety: domain.SafetyProfile{
			RiskFactors: []domain.TriggerType{domain.TriggerEatingDisorder},
		},
	}

	// "hate my body" is medium on its own; the matching risk factor bumps
	// it to high, which crosses the override threshold.
	verdict, err := c.Classify(t.Context(), "I hate my body so much", profile)
	require.NoError(t, err)

	assert.Equal(t, domain.TriggerEatingDisorder, verdict.TriggerType)
	assert.Equal(t, domain.EscalationHigh, verdict.EscalationLevel)
	assert.True(t, verdict.OverridesOtherAgents)
}

func TestClassify_PersonalTriggerWordAlone(t *testing.T) {
	t.Parallel()

	c := safety.NewClassifier()
	profile := &domain.UserProfile{
		UserID: "u1",
		Safety: domain.SafetyProfile{
			RiskFactors:  []domain.TriggerType{domain.TriggerEatingDisorder},
			TriggerWords: []string{"weigh-in"},
		},
	}

	verdict, err := c.Classify(t.Context(), "dreading tomorrow's weigh-in", profile)
	require.NoError(t, err)

	assert.Equal(t, domain.TriggerEatingDisorder, verdict.TriggerType)
	assert.Equal(t, domain.EscalationMedium, verdict.EscalationLevel)
	assert.True(t, verdict.IsIntervention)
	assert.False(t, verdict.OverridesOtherAgents)
}

func TestClassify_PersonalTriggerWordRaisesLexiconMatch(t *testing.T) {
	t.Parallel()

	c := safety.NewClassifier()
	profile := &domain.UserProfile{
		UserID: "u1",
		Safety: domain.SafetyProfile{
			TriggerWords: []string{"scale"},
		},
	}

	verdict, err := c.Classify(t.Context(), "the scale makes me hate my body", profile)
	require.NoError(t, err)

	assert.Equal(t, domain.TriggerEatingDisorder, verdict.TriggerType)
	assert.Equal(t, domain.EscalationHigh, verdict.EscalationLevel)
}

func TestClassify_CancelledContext(t *testing.T) {
	t.Parallel()

	c := safety.NewClassifier()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := c.Classify(ctx, "hello", nil)
	require.Error(t, err)
}

func TestFailClosed(t *testing.T) {
	t.Parallel()

	t.Run("error forces intervention", func(t *testing.T) {
		t.Parallel()

		verdict := safety.FailClosed(nil, context.Canceled)

		assert.True(t, verdict.IsIntervention)
		assert.True(t, verdict.OverridesOtherAgents)
		assert.True(t, verdict.AdminNotificationRequired)
		assert.True(t, verdict.EscalationLevel.AtLeast(domain.EscalationHigh))
		assert.NotEmpty(t, verdict.ResponseText)
	})

	t.Run("nil verdict forces intervention", func(t *testing.T) {
		t.Parallel()

		verdict := safety.FailClosed(nil, nil)

		assert.True(t, verdict.OverridesOtherAgents)
	})

	t.Run("healthy verdict passes through", func(t *testing.T) {
		t.Parallel()

		clean := &domain.SafetyVerdict{TriggerType: domain.TriggerNone, EscalationLevel: domain.EscalationLow}
		verdict := safety.FailClosed(clean, nil)

		assert.Same(t, clean, verdict)
	})
}
