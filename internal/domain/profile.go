package domain

import "context"

// CoachingStyle controls the voice used by coaching capabilities and
// reminder tone adaptation.
type CoachingStyle string

const (
	StyleGentle     CoachingStyle = "gentle"
	StylePragmatic  CoachingStyle = "pragmatic"
	StyleUpbeat     CoachingStyle = "upbeat"
	StyleStructured CoachingStyle = "structured"
)

// GoalType is the user's current weight-management phase.
type GoalType string

const (
	GoalLoss        GoalType = "loss"
	GoalMaintenance GoalType = "maintenance"
	GoalTransition  GoalType = "transition"
)

// GamificationPreference controls how competitive capability language gets.
type GamificationPreference string

const (
	GamificationLow      GamificationPreference = "low"
	GamificationModerate GamificationPreference = "moderate"
	GamificationHigh     GamificationPreference = "high"
)

// SafetyProfile holds per-user risk signals that bias classifier
// sensitivity. Read-only input to the safety classifier.
type SafetyProfile struct {
	RiskFactors  []TriggerType
	TriggerWords []string
}

// HasRiskFactor reports whether t is among the user's known risk factors.
func (p SafetyProfile) HasRiskFactor(t TriggerType) bool {
	for _, rf := range p.RiskFactors {
		if rf == t {
			return true
		}
	}
	return false
}

// UserProfile is the read-only user context consumed by the classifier,
// capabilities, and tone adaptation. Profile CRUD lives outside this core.
type UserProfile struct {
	UserID        string
	Name          string
	CoachingStyle CoachingStyle
	OnGLP1        bool
	GoalType      GoalType
	Gamification  GamificationPreference
	Safety        SafetyProfile
}

// UserProfileStore is the read-only profile collaborator.
type UserProfileStore interface {
	Get(ctx context.Context, userID string) (*UserProfile, error)
}
