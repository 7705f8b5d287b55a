package model

// Plan names as stored in users.plan.
const (
	PlanFree     = "free"
	PlanPro      = "pro"
	PlanBusiness = "business"
)

// Feature is a plan-gated capability.
type Feature string

// FeatureProAnalytics gates custom date ranges, new/returning visitors,
// the live feed, CSV export and analytics sharing.
const FeatureProAnalytics Feature = "pro_analytics"

// PlanLimits describes what a plan grants.
type PlanLimits struct {
	ProAnalytics  bool
	AnalyticsDays int
}

// Plans maps plan names to their limits.
var Plans = map[string]PlanLimits{
	PlanFree:     {ProAnalytics: false, AnalyticsDays: 7},
	PlanPro:      {ProAnalytics: true, AnalyticsDays: 90},
	PlanBusiness: {ProAnalytics: true, AnalyticsDays: 365},
}

// LimitsFor returns the limits of the named plan. Unknown plans get free limits.
func LimitsFor(plan string) PlanLimits {
	if l, ok := Plans[plan]; ok {
		return l
	}
	return Plans[PlanFree]
}

// Allows reports whether the plan grants feature f.
func (l PlanLimits) Allows(f Feature) bool {
	switch f {
	case FeatureProAnalytics:
		return l.ProAnalytics
	default:
		return false
	}
}
