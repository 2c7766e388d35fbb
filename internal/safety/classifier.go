// Package safety implements the lexicon-based risk classifier that gates
// every inbound message and every candidate capability output. It is the
// fail-closed backstop of the whole system, so it stays deterministic and
// free of runtime dependencies.
package safety

import (
	"context"
	"regexp"
	"strings"

	"github.com/vitracka/companion/internal/domain"
)

type matcher struct {
	re      *regexp.Regexp
	trigger domain.TriggerType
	level   domain.EscalationLevel
}

// Classifier evaluates text against the risk lexicon, biased by the user's
// safety profile. Stateless with respect to external systems; safe for
// unbounded concurrent use.
type Classifier struct {
	matchers []matcher
}

// NewClassifier compiles the lexicon into word-boundary matchers.
func NewClassifier() *Classifier {
	matchers := make([]matcher, 0, len(lexicon))
	for _, entry := range lexicon {
		matchers = append(matchers, matcher{
			re:      phrasePattern(entry.phrase),
			trigger: entry.trigger,
			level:   entry.level,
		})
	}
	return &Classifier{matchers: matchers}
}

func phrasePattern(phrase string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(strings.ToLower(phrase)) + `\b`)
}

// Classify evaluates one piece of text and returns a fresh verdict. The
// profile may be nil; when present, its risk factors and personal trigger
// words raise sensitivity by one escalation tier.
func (c *Classifier) Classify(ctx context.Context, text string, profile *domain.UserProfile) (*domain.SafetyVerdict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	folded := strings.ToLower(text)

	var (
		trigger domain.TriggerType
		level   domain.EscalationLevel
		found   bool
	)
	for _, m := range c.matchers {
		if !m.re.MatchString(folded) {
			continue
		}
		if !found || !level.AtLeast(m.level) {
			trigger, level, found = m.trigger, m.level, true
		}
		if level == domain.EscalationCritical {
			break
		}
	}

	personalHit := profile != nil && matchesTriggerWord(folded, profile.Safety.TriggerWords)

	if !found {
		if personalHit {
			// A personal trigger word alone warrants a soft check-in.
			trigger = primaryRiskFactor(profile)
			level = domain.EscalationMedium
			found = true
		} else {
			return &domain.SafetyVerdict{
				TriggerType:     domain.TriggerNone,
				EscalationLevel: domain.EscalationLow,
			}, nil
		}
	} else {
		if personalHit {
			level = level.Next()
		}
		if profile != nil && profile.Safety.HasRiskFactor(trigger) {
			level = level.Next()
		}
	}

	return buildVerdict(trigger, level), nil
}

func matchesTriggerWord(folded string, words []string) bool {
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" && strings.Contains(folded, w) {
			return true
		}
	}
	return false
}

func primaryRiskFactor(profile *domain.UserProfile) domain.TriggerType {
	if len(profile.Safety.RiskFactors) > 0 {
		return profile.Safety.RiskFactors[0]
	}
	return domain.TriggerDepression
}

func buildVerdict(trigger domain.TriggerType, level domain.EscalationLevel) *domain.SafetyVerdict {
	hard := level.AtLeast(domain.EscalationHigh)
	return &domain.SafetyVerdict{
		TriggerType:               trigger,
		EscalationLevel:           level,
		IsIntervention:            true,
		OverridesOtherAgents:      hard,
		AdminNotificationRequired: hard,
		ResponseText:              responseFor(trigger, level),
	}
}

// ForcedVerdict is the fail-closed fallback: classifier unavailability must
// never downgrade safety, so callers substitute this high-escalation
// intervention when classification itself fails.
func ForcedVerdict() *domain.SafetyVerdict {
	return &domain.SafetyVerdict{
		TriggerType:               domain.TriggerNone,
		EscalationLevel:           domain.EscalationHigh,
		IsIntervention:            true,
		OverridesOtherAgents:      true,
		AdminNotificationRequired: true,
		ResponseText:              genericCrisisResponse,
	}
}

// FailClosed converts a classification error (or nil verdict) into the
// forced high-escalation verdict.
func FailClosed(v *domain.SafetyVerdict, err error) *domain.SafetyVerdict {
	if err != nil || v == nil {
		return ForcedVerdict()
	}
	return v
}
