package safety

import "github.com/vitracka/companion/internal/domain"

// lexiconEntry maps one phrase to the trigger it signals and the base
// escalation it carries before profile biasing.
type lexiconEntry struct {
	phrase  string
	trigger domain.TriggerType
	level   domain.EscalationLevel
}

// lexicon is checked in order; the highest-ranked match wins. Phrases are
// lowercase and matched on word boundaries against case-folded input.
var lexicon = []lexiconEntry{
	// Medical emergencies.
	{"chest pain", domain.TriggerMedicalEmergency, domain.EscalationCritical},
	{"can't breathe", domain.TriggerMedicalEmergency, domain.EscalationCritical},
	{"cannot breathe", domain.TriggerMedicalEmergency, domain.EscalationCritical},
	{"heart attack", domain.TriggerMedicalEmergency, domain.EscalationCritical},
	{"overdose", domain.TriggerMedicalEmergency, domain.EscalationCritical},
	{"passed out", domain.TriggerMedicalEmergency, domain.EscalationHigh},
	{"fainted", domain.TriggerMedicalEmergency, domain.EscalationHigh},

	// Self-harm and suicidal ideation.
	{"kill myself", domain.TriggerSelfHarm, domain.EscalationCritical},
	{"end my life", domain.TriggerSelfHarm, domain.EscalationCritical},
	{"suicide", domain.TriggerSelfHarm, domain.EscalationCritical},
	{"suicidal", domain.TriggerSelfHarm, domain.EscalationCritical},
	{"want to die", domain.TriggerSelfHarm, domain.EscalationCritical},
	{"better off dead", domain.TriggerSelfHarm, domain.EscalationCritical},
	{"hurt myself", domain.TriggerSelfHarm, domain.EscalationHigh},
	{"hurting myself", domain.TriggerSelfHarm, domain.EscalationHigh},
	{"harm myself", domain.TriggerSelfHarm, domain.EscalationHigh},
	{"self harm", domain.TriggerSelfHarm, domain.EscalationHigh},
	{"self-harm", domain.TriggerSelfHarm, domain.EscalationHigh},
	{"cutting myself", domain.TriggerSelfHarm, domain.EscalationHigh},

	// Disordered eating.
	{"starve myself", domain.TriggerEatingDisorder, domain.EscalationHigh},
	{"starving myself", domain.TriggerEatingDisorder, domain.EscalationHigh},
	{"purge", domain.TriggerEatingDisorder, domain.EscalationHigh},
	{"purging", domain.TriggerEatingDisorder, domain.EscalationHigh},
	{"throw up after eating", domain.TriggerEatingDisorder, domain.EscalationHigh},
	{"make myself sick", domain.TriggerEatingDisorder, domain.EscalationHigh},
	{"haven't eaten in days", domain.TriggerEatingDisorder, domain.EscalationHigh},
	{"laxatives to lose", domain.TriggerEatingDisorder, domain.EscalationHigh},
	{"hate my body", domain.TriggerEatingDisorder, domain.EscalationMedium},
	{"skip every meal", domain.TriggerEatingDisorder, domain.EscalationMedium},

	// Depression signals. These soft-nudge rather than override.
	{"hopeless", domain.TriggerDepression, domain.EscalationMedium},
	{"worthless", domain.TriggerDepression, domain.EscalationMedium},
	{"no point anymore", domain.TriggerDepression, domain.EscalationMedium},
	{"can't get out of bed", domain.TriggerDepression, domain.EscalationLow},
	{"so tired of everything", domain.TriggerDepression, domain.EscalationLow},
	{"giving up", domain.TriggerDepression, domain.EscalationLow},
}

// Crisis resource copy. High/critical responses always reference
// professional help; never algorithmic silence.
const (
	selfHarmResponse = "I'm really glad you told me. What you're feeling matters, and you " +
		"deserve support from a real person right now. Please reach out to the 988 Suicide & " +
		"Crisis Lifeline (call or text 988) or text HOME to 741741 to reach the Crisis Text " +
		"Line. If you are in immediate danger, call 911. I'm here with you, but a trained " +
		"counselor can help in ways I can't."

	eatingDisorderResponse = "Thank you for trusting me with this. Struggles with food and " +
		"body image are serious, and you deserve real support. Please consider contacting the " +
		"NEDA Helpline at 1-800-931-2237 or texting NEDA to 741741. A professional can help " +
		"you find a path that protects both your health and your goals."

	medicalEmergencyResponse = "This sounds like it could be a medical emergency. Please stop " +
		"and call 911 (or your local emergency number) right now, or have someone take you to " +
		"the nearest emergency room. Your safety comes first - everything else can wait."

	depressionNudge = "It sounds like things have been heavy lately, and I want you to know " +
		"that's nothing to be ashamed of. If these feelings stick around, talking with a " +
		"therapist or counselor can really help - the 988 Lifeline (call or text 988) is " +
		"always there too. Would you like to keep talking about what's been going on?"

	genericCrisisResponse = "I'm concerned about what you've shared. You deserve support from " +
		"a real person: please reach out to the 988 Suicide & Crisis Lifeline (call or text " +
		"988), or call 911 if you are in immediate danger."
)

// responseFor picks the intervention copy for a trigger at a given level.
func responseFor(trigger domain.TriggerType, level domain.EscalationLevel) string {
	switch trigger {
	case domain.TriggerSelfHarm:
		return selfHarmResponse
	case domain.TriggerEatingDisorder:
		if level.AtLeast(domain.EscalationHigh) {
			return eatingDisorderResponse
		}
		return depressionNudge
	case domain.TriggerMedicalEmergency:
		return medicalEmergencyResponse
	case domain.TriggerDepression:
		if level.AtLeast(domain.EscalationHigh) {
			return selfHarmResponse
		}
		return depressionNudge
	default:
		return genericCrisisResponse
	}
}
