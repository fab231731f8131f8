package policy

import (
	"errors"
	"testing"
)

func TestLimitsFor(t *testing.T) {
	tests := []struct {
		plan          string
		maxDuration   int
		maxPerDay     int
		unlimited     bool
		watermarkWant bool
	}{
		{plan: "entry", maxDuration: 6, maxPerDay: 1, watermarkWant: true},
		{plan: "pro", maxDuration: 60, maxPerDay: 10},
		{plan: "diamond", maxDuration: 180, unlimited: true},
		{plan: "lifetime", maxDuration: 180, unlimited: true},
		{plan: "Entry", maxDuration: 6, maxPerDay: 1, watermarkWant: true},
		{plan: "  LIFETIME ", maxDuration: 180, unlimited: true},
	}
	for _, tc := range tests {
		t.Run(tc.plan, func(t *testing.T) {
			limits, err := LimitsFor(tc.plan)
			if err != nil {
				t.Fatalf("LimitsFor(%q) error: %v", tc.plan, err)
			}
			if limits.MaxDuration != tc.maxDuration {
				t.Fatalf("MaxDuration = %d, want %d", limits.MaxDuration, tc.maxDuration)
			}
			if limits.Unlimited() != tc.unlimited {
				t.Fatalf("Unlimited = %v, want %v", limits.Unlimited(), tc.unlimited)
			}
			if !tc.unlimited && *limits.MaxPerDay != tc.maxPerDay {
				t.Fatalf("MaxPerDay = %d, want %d", *limits.MaxPerDay, tc.maxPerDay)
			}
			if limits.WatermarkRequired != tc.watermarkWant {
				t.Fatalf("WatermarkRequired = %v, want %v", limits.WatermarkRequired, tc.watermarkWant)
			}
		})
	}
}

func TestLimitsForUnknownPlan(t *testing.T) {
	for _, plan := range []string{"", "free", "enterprise", "entry-plus"} {
		if _, err := LimitsFor(plan); !errors.Is(err, ErrUnknownPlan) {
			t.Fatalf("LimitsFor(%q) error = %v, want ErrUnknownPlan", plan, err)
		}
	}
}

func TestLimitsForReturnsIndependentCopies(t *testing.T) {
	first, _ := LimitsFor(PlanEntry)
	*first.MaxPerDay = 99
	second, _ := LimitsFor(PlanEntry)
	if *second.MaxPerDay != 1 {
		t.Fatalf("table mutated through returned limits: MaxPerDay = %d", *second.MaxPerDay)
	}
}

func TestLimitsForIsDeterministic(t *testing.T) {
	for _, plan := range Plans() {
		a, errA := LimitsFor(plan)
		b, errB := LimitsFor(plan)
		if errA != nil || errB != nil {
			t.Fatalf("LimitsFor(%q) errors: %v, %v", plan, errA, errB)
		}
		if a.MaxDuration != b.MaxDuration || a.WatermarkRequired != b.WatermarkRequired || a.Unlimited() != b.Unlimited() {
			t.Fatalf("LimitsFor(%q) not deterministic: %+v vs %+v", plan, a, b)
		}
	}
}
