package analytics

import (
	"context"
	"fmt"

	"github.com/portalo/portalo/internal/model"
)

// PlanSource returns the plan name of a user.
type PlanSource interface {
	UserPlan(ctx context.Context, userID string) (string, error)
}

// PlanEntitlements answers feature checks from the user's plan.
type PlanEntitlements struct {
	plans PlanSource
}

// NewPlanEntitlements creates a new PlanEntitlements.
func NewPlanEntitlements(plans PlanSource) *PlanEntitlements {
	return &PlanEntitlements{plans: plans}
}

// Allowed reports whether the user's plan grants feature.
func (e *PlanEntitlements) Allowed(ctx context.Context, userID string, feature model.Feature) (bool, error) {
	limits, err := e.limits(ctx, userID)
	if err != nil {
		return false, err
	}
	return limits.Allows(feature), nil
}

// AnalyticsDays returns how many days of history the user's plan covers.
func (e *PlanEntitlements) AnalyticsDays(ctx context.Context, userID string) (int, error) {
	limits, err := e.limits(ctx, userID)
	if err != nil {
		return 0, err
	}
	return limits.AnalyticsDays, nil
}

func (e *PlanEntitlements) limits(ctx context.Context, userID string) (model.PlanLimits, error) {
	plan, err := e.plans.UserPlan(ctx, userID)
	if err != nil {
		return model.PlanLimits{}, fmt.Errorf("load plan: %w", err)
	}
	return model.LimitsFor(plan), nil
}
