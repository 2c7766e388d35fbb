package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitracka/companion/internal/domain"
)

// UserProfileRepo is the read-only view of user profiles this core
// consumes. Profile CRUD belongs to the account service.
type UserProfileRepo struct {
	pool *pgxpool.Pool
}

func NewUserProfileRepo(pool *pgxpool.Pool) *UserProfileRepo {
	return &UserProfileRepo{pool: pool}
}

func (r *UserProfileRepo) Get(ctx context.Context, userID string) (*domain.UserProfile, error) {
	var (
		p            domain.UserProfile
		riskFactors  []string
		triggerWords []string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, name, coaching_style, on_glp1, goal_type,
		        gamification_preference, risk_factors, trigger_words
		 FROM user_profiles WHERE user_id = $1`,
		userID,
	).Scan(
		&p.UserID, &p.Name, &p.CoachingStyle, &p.OnGLP1, &p.GoalType,
		&p.Gamification, &riskFactors, &triggerWords,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("userProfileRepo.Get: user %q: %w", userID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("userProfileRepo.Get: %w", err)
	}

	p.Safety.TriggerWords = triggerWords
	p.Safety.RiskFactors = make([]domain.TriggerType, 0, len(riskFactors))
	for _, rf := range riskFactors {
		p.Safety.RiskFactors = append(p.Safety.RiskFactors, domain.TriggerType(rf))
	}

	return &p, nil
}
