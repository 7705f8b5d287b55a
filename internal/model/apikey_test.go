package model

import (
	"testing"
	"time"
)

func TestAPIKey_HasScope(t *testing.T) {
	testCases := []struct {
		name      string
		keyScopes []string
		checkFor  string
		want      bool
	}{
		{"read key reads", []string{ScopeAnalyticsRead}, ScopeAnalyticsRead, true},
		{"read key cannot share", []string{ScopeAnalyticsRead}, ScopeAnalyticsShare, false},
		{"share without read", []string{ScopeAnalyticsShare}, ScopeAnalyticsRead, false},
		{"admin implies read", []string{ScopeAdmin}, ScopeAnalyticsRead, true},
		{"admin implies share", []string{ScopeAdmin}, ScopeAnalyticsShare, true},
		{"empty scopes", nil, ScopeAnalyticsRead, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			key := &APIKey{Scopes: tc.keyScopes}
			if got := key.HasScope(tc.checkFor); got != tc.want {
				t.Errorf("HasScope(%s) = %v, want %v", tc.checkFor, got, tc.want)
			}
			if got := key.AuthContext().HasScope(tc.checkFor); got != tc.want {
				t.Errorf("AuthContext().HasScope(%s) = %v, want %v", tc.checkFor, got, tc.want)
			}
		})
	}
}

func TestAPIKey_AuthContext(t *testing.T) {
	key := &APIKey{
		ID:            "key-1",
		UserID:        "user-1",
		KeyPrefix:     "a1b2c3d4",
		Env:           KeyEnvTest,
		Scopes:        []string{ScopeAnalyticsRead},
		RateLimitTier: TierBusiness,
		CreatedAt:     time.Now(),
	}

	ac := key.AuthContext()
	if ac.KeyID != "key-1" || ac.UserID != "user-1" || ac.KeyPrefix != "a1b2c3d4" || ac.KeyEnv != KeyEnvTest {
		t.Errorf("identity not carried over: %+v", ac)
	}
	if ac.RateLimit() != RateLimitFor(TierBusiness) {
		t.Errorf("RateLimit() = %+v, want business bucket", ac.RateLimit())
	}
}

func TestAPIKey_IsRevoked(t *testing.T) {
	key := &APIKey{}
	if key.IsRevoked() {
		t.Error("new key should not be revoked")
	}
	now := time.Now()
	key.RevokedAt = &now
	if !key.IsRevoked() {
		t.Error("key with revoked_at should be revoked")
	}
}

func TestRateLimitFor(t *testing.T) {
	testCases := []struct {
		tier          string
		wantRPM       int
		wantBurst     int
		wantUnlimited bool
	}{
		{TierFree, 60, 10, false},
		{TierPro, 600, 50, false},
		{TierBusiness, 1200, 100, false},
		{TierInternal, 0, 0, true},
		{"unknown", 60, 10, false},
	}

	for _, tc := range testCases {
		t.Run(tc.tier, func(t *testing.T) {
			l := RateLimitFor(tc.tier)
			if l.RequestsPerMinute != tc.wantRPM {
				t.Errorf("RPM = %d, want %d", l.RequestsPerMinute, tc.wantRPM)
			}
			if l.Burst != tc.wantBurst {
				t.Errorf("Burst = %d, want %d", l.Burst, tc.wantBurst)
			}
			if l.Unlimited() != tc.wantUnlimited {
				t.Errorf("Unlimited() = %v, want %v", l.Unlimited(), tc.wantUnlimited)
			}
		})
	}
}

func TestTierForPlan(t *testing.T) {
	testCases := map[string]string{
		PlanFree:     TierFree,
		PlanPro:      TierPro,
		PlanBusiness: TierBusiness,
		"enterprise": TierFree,
	}
	for plan, want := range testCases {
		if got := TierForPlan(plan); got != want {
			t.Errorf("TierForPlan(%q) = %q, want %q", plan, got, want)
		}
		if !IsValidTier(TierForPlan(plan)) {
			t.Errorf("TierForPlan(%q) is not a valid tier", plan)
		}
	}
	if IsValidTier("unlimited") {
		t.Error("unlimited is not a tier")
	}
}

func TestParseScopes(t *testing.T) {
	testCases := []struct {
		name    string
		in      string
		want    []string
		wantErr bool
	}{
		{"blank gets defaults", "", DefaultScopes, false},
		{"single", "analytics:read", []string{ScopeAnalyticsRead}, false},
		{"trims and dedupes", " analytics:read , analytics:share,analytics:read", []string{ScopeAnalyticsRead, ScopeAnalyticsShare}, false},
		{"admin", "admin", []string{ScopeAdmin}, false},
		{"unknown", "analytics:read,webhook", nil, true},
		{"legacy read", "read", nil, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseScopes(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseScopes(%q) = %v, want error", tc.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseScopes(%q) error: %v", tc.in, err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("ParseScopes(%q) = %v, want %v", tc.in, got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("ParseScopes(%q)[%d] = %q, want %q", tc.in, i, got[i], tc.want[i])
				}
			}
		})
	}
}
