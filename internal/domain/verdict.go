package domain

// TriggerType identifies the category of risk a classified message matched.
type TriggerType string

const (
	TriggerNone             TriggerType = "none"
	TriggerEatingDisorder   TriggerType = "eating_disorder"
	TriggerSelfHarm         TriggerType = "self_harm"
	TriggerDepression       TriggerType = "depression"
	TriggerMedicalEmergency TriggerType = "medical_emergency"
)

// EscalationLevel is the ordinal severity of a detected risk signal.
type EscalationLevel string

const (
	EscalationLow      EscalationLevel = "low"
	EscalationMedium   EscalationLevel = "medium"
	EscalationHigh     EscalationLevel = "high"
	EscalationCritical EscalationLevel = "critical"
)

var escalationRank = map[EscalationLevel]int{
	EscalationLow:      1,
	EscalationMedium:   2,
	EscalationHigh:     3,
	EscalationCritical: 4,
}

// AtLeast reports whether l is at or above the given level.
func (l EscalationLevel) AtLeast(other EscalationLevel) bool {
	return escalationRank[l] >= escalationRank[other]
}

// Next returns the level one tier above l. Critical stays critical.
func (l EscalationLevel) Next() EscalationLevel {
	switch l {
	case EscalationLow:
		return EscalationMedium
	case EscalationMedium:
		return EscalationHigh
	default:
		return EscalationCritical
	}
}

// SafetyVerdict is the result of classifying one piece of text.
// Produced fresh per classification call and never mutated afterwards.
type SafetyVerdict struct {
	TriggerType               TriggerType
	EscalationLevel           EscalationLevel
	IsIntervention            bool
	OverridesOtherAgents      bool
	ResponseText              string
	AdminNotificationRequired bool
}

// Safe reports whether the verdict carries no intervention at all.
func (v *SafetyVerdict) Safe() bool {
	return v.TriggerType == TriggerNone && !v.IsIntervention
}
