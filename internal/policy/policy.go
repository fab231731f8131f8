// Package policy maps subscription plans to their generation limits.
package policy

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// ErrUnknownPlan is returned for plan identifiers outside the supported set.
var ErrUnknownPlan = errors.New("unknown plan")

// Plan identifiers.
const (
	PlanEntry    = "entry"
	PlanPro      = "pro"
	PlanDiamond  = "diamond"
	PlanLifetime = "lifetime"
)

// Limits captures what a plan allows for a single order.
type Limits struct {
	MaxDuration       int
	MaxPerDay         *int
	WatermarkRequired bool
}

// Unlimited reports whether the plan has no daily quota.
func (l Limits) Unlimited() bool {
	return l.MaxPerDay == nil
}

func perDay(n int) *int { return &n }

var table = map[string]Limits{
	PlanEntry:    {MaxDuration: 6, MaxPerDay: perDay(1), WatermarkRequired: true},
	PlanPro:      {MaxDuration: 60, MaxPerDay: perDay(10)},
	PlanDiamond:  {MaxDuration: 180},
	PlanLifetime: {MaxDuration: 180},
}

// Normalize folds a plan identifier to its canonical form. "Entry" and
// " ENTRY " both become "entry". A Caser is stateful, so one is built per call.
func Normalize(plan string) string {
	return cases.Fold().String(strings.TrimSpace(plan))
}

// LimitsFor returns the limits for plan. The returned MaxPerDay pointer is a
// fresh copy the caller may keep.
func LimitsFor(plan string) (Limits, error) {
	limits, ok := table[Normalize(plan)]
	if !ok {
		return Limits{}, fmt.Errorf("%w: %q", ErrUnknownPlan, plan)
	}
	if limits.MaxPerDay != nil {
		limits.MaxPerDay = perDay(*limits.MaxPerDay)
	}
	return limits, nil
}

// Plans lists the supported plan identifiers.
func Plans() []string {
	return []string{PlanEntry, PlanPro, PlanDiamond, PlanLifetime}
}
