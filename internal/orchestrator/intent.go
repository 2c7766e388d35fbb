package orchestrator

import (
	"strings"

	"github.com/vitracka/companion/internal/capability"
)

// intentKeywords routes messages to capabilities by simple keyword
// matching. A caller may bypass this with an explicit "capability" key in
// the request context. The coach always participates as the default voice.
var intentKeywords = map[string][]string{
	capability.NameProgress: {
		"weight", "weigh", "progress", "trend", "plateau", "scale", "stall",
	},
	capability.NameNutrition: {
		"eat", "eating", "meal", "food", "protein", "recipe", "hungry",
		"snack", "calorie", "nutrition",
	},
	capability.NameGamification: {
		"streak", "badge", "points", "challenge", "achievement", "leaderboard",
	},
}

// classifyIntent returns the ordered capability names for a message.
func classifyIntent(message string, reqContext map[string]any) []string {
	if explicit, ok := reqContext["capability"].(string); ok && explicit != "" {
		return []string{explicit}
	}

	folded := strings.ToLower(message)
	names := []string{capability.NameCoach}
	for _, name := range []string{capability.NameProgress, capability.NameNutrition, capability.NameGamification} {
		for _, kw := range intentKeywords[name] {
			if strings.Contains(folded, kw) {
				names = append(names, name)
				break
			}
		}
	}
	return names
}
