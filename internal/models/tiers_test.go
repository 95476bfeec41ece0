package models

import "testing"

func TestStyleForTierCoversExactlyFourTiers(t *testing.T) {
	seen := map[string]bool{}
	for tier := 1; tier <= 4; tier++ {
		style, err := StyleForTier(tier)
		if err != nil {
			t.Fatalf("tier %d: unexpected error %v", tier, err)
		}
		if style.Tier != tier {
			t.Fatalf("tier %d: style carries tier %d", tier, style.Tier)
		}
		if seen[style.Color] {
			t.Fatalf("tier %d: duplicate color %s", tier, style.Color)
		}
		seen[style.Color] = true
	}

	for _, tier := range []int{0, 5, -1, 42} {
		if _, err := StyleForTier(tier); err == nil {
			t.Fatalf("tier %d: expected error, no fallback scheme exists", tier)
		}
	}
}

func TestAgeSeverityThresholds(t *testing.T) {
	cases := []struct {
		age  int
		want string
	}{
		{0, SeverityDefault},
		{14, SeverityDefault},
		{15, SeverityWarning},
		{30, SeverityWarning},
		{31, SeverityCritical},
		{400, SeverityCritical},
	}
	for _, tc := range cases {
		if got := AgeSeverity(tc.age); got != tc.want {
			t.Fatalf("age %d: expected %s, got %s", tc.age, tc.want, got)
		}
	}
}

func TestResolvedStatusImpliesResolvedAt(t *testing.T) {
	c := AgedCase{Status: StatusResolved}
	if !c.Terminal() {
		t.Fatalf("resolved must be terminal")
	}
	c.Status = StatusAbandoned
	if !c.Terminal() {
		t.Fatalf("abandoned must be terminal")
	}
	c.Status = StatusEscalated
	if c.Terminal() {
		t.Fatalf("escalated cases are still open")
	}
}
