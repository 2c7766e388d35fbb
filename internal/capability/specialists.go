package capability

import (
	"context"

	"github.com/vitracka/companion/internal/domain"
)

// The progress, nutrition, and gamification capabilities answer from
// deterministic templates shaped by the user's profile. The real analytics
// and search backends are external collaborators; these adapters define the
// contract they plug into.

// Progress analyzes weigh-in trends and reframes plateaus.
type Progress struct{}

func NewProgress() *Progress { return &Progress{} }

func (p *Progress) Name() string { return NameProgress }

func (p *Progress) Handle(ctx context.Context, req *Request) (*Response, error) {
	goal := domain.GoalLoss
	if req.Profile != nil && req.Profile.GoalType != "" {
		goal = req.Profile.GoalType
	}

	var text string
	switch goal {
	case domain.GoalMaintenance:
		text = "Your weight has been holding steady, which is exactly what maintenance looks like. " +
			"Day-to-day fluctuation is normal water and food weight, not a trend."
	case domain.GoalTransition:
		text = "You're in the transition phase, so the goal is stability rather than further loss. " +
			"A flat trend line over a few weeks is a win here."
	default:
		text = "Looking at your recent entries, the overall trend matters far more than any single " +
			"weigh-in. Plateaus are a normal part of loss - your body is adjusting, not failing."
	}
	return &Response{Text: text}, nil
}

// Nutrition gives quality-focused eating guidance, GLP-1 aware.
type Nutrition struct{}

func NewNutrition() *Nutrition { return &Nutrition{} }

func (n *Nutrition) Name() string { return NameNutrition }

func (n *Nutrition) Handle(ctx context.Context, req *Request) (*Response, error) {
	text := "Focus on nutrient density: protein at each meal, plenty of fiber, and water through " +
		"the day. Small consistent choices beat perfect days."
	if req.Profile != nil && req.Profile.OnGLP1 {
		text = "With a GLP-1 medication, smaller portions are expected - that's the medicine " +
			"working, not a lack of willpower. Prioritize protein and hydration so the food you do " +
			"eat carries the nutrients you need."
	}
	return &Response{Text: text}, nil
}

// Gamification reports streaks and challenges, scaled to the user's
// appetite for competition.
type Gamification struct{}

func NewGamification() *Gamification { return &Gamification{} }

func (g *Gamification) Name() string { return NameGamification }

func (g *Gamification) Handle(ctx context.Context, req *Request) (*Response, error) {
	pref := domain.GamificationModerate
	if req.Profile != nil && req.Profile.Gamification != "" {
		pref = req.Profile.Gamification
	}

	var text string
	switch pref {
	case domain.GamificationHigh:
		text = "Your logging streak is alive - keep it rolling and you'll unlock the next " +
			"challenge tier. Ready to set a head-to-head goal for the week?"
	case domain.GamificationLow:
		text = "You've been consistent with your check-ins lately. No leaderboards, just a quiet " +
			"note that the habit is sticking."
	default:
		text = "Nice streak going! Each check-in adds to it, and consistency is the real " +
			"achievement being tracked."
	}
	return &Response{Text: text}, nil
}
