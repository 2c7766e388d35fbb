package notify

import (
	"regexp"

	"github.com/vitracka/companion/internal/domain"
)

// toneRule rewrites one imperative phrasing into a softer form.
type toneRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// toneRules is the per-style rewrite table. Only the gentle style rewrites;
// pragmatic, upbeat, and structured voices keep their copy as written.
var toneRules = map[domain.CoachingStyle][]toneRule{
	domain.StyleGentle: {
		{regexp.MustCompile(`(?i)\byou should\b`), "you might consider"},
		{regexp.MustCompile(`(?i)\byou must\b`), "it could help to"},
		{regexp.MustCompile(`(?i)\byou need to\b`), "when you're ready, try to"},
		{regexp.MustCompile(`(?i)\byou have to\b`), "it may be worth trying to"},
		{regexp.MustCompile(`(?i)\bdon't forget to\b`), "a gentle reminder to"},
		{regexp.MustCompile(`(?i)\bmake sure you\b`), "see if you can"},
	},
}

// AdaptTone rewrites imperative phrasing to match the user's coaching
// style, but only when the reminder settings permit tone changes. Styles
// without rewrite rules return the message unchanged.
func AdaptTone(message string, profile *domain.UserProfile, reminder *domain.WeeklyReminderSettings) string {
	if reminder == nil || !reminder.ToneAdjustment.AllowToneChange {
		return message
	}
	if profile == nil {
		return message
	}

	rules, ok := toneRules[profile.CoachingStyle]
	if !ok {
		return message
	}
	for _, rule := range rules {
		message = rule.pattern.ReplaceAllString(message, rule.replacement)
	}
	return message
}
