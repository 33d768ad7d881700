package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// referenceRule is the spec scenario: resident weekday-morning coupon.
func referenceRule() CouponRule {
	return CouponRule{
		Segment:         SegmentResident,
		Days:            []string{"Mon", "Tue", "Wed", "Thu", "Fri"},
		TimeFrom:        "08:00",
		TimeTo:          "10:00",
		DiscountPct:     15,
		MinSpend:        5000,
		CareFundRatePct: 1,
		Code:            "JEJU-D-TEST01",
	}
}

func at(hour, min int) time.Time {
	// 2025-10-21 is a Tuesday.
	return time.Date(2025, 10, 21, hour, min, 0, 0, time.UTC)
}

func TestEvaluate_EligibleScenario(t *testing.T) {
	res := Evaluate(referenceRule(), 15000, SegmentResident, at(9, 0))

	require.True(t, res.Eligible)
	require.Empty(t, res.Reason)
	require.Equal(t, int64(2250), res.Discount)
	require.Equal(t, int64(150), res.CareFund)
}

func TestEvaluate_DayNotApplicable(t *testing.T) {
	// 2025-10-25 is a Saturday.
	saturday := time.Date(2025, 10, 25, 9, 0, 0, 0, time.UTC)

	res := Evaluate(referenceRule(), 15000, SegmentResident, saturday)

	require.False(t, res.Eligible)
	require.Equal(t, ReasonDayNotApplicable, res.Reason)
}

func TestEvaluate_SegmentGate(t *testing.T) {
	rule := referenceRule()

	res := Evaluate(rule, 15000, SegmentTourist, at(9, 0))
	require.False(t, res.Eligible)
	require.Equal(t, ReasonSegmentMismatch, res.Reason)

	// Rule without a segment applies to anyone.
	open := rule
	open.Segment = ""
	res = Evaluate(open, 15000, SegmentTourist, at(9, 0))
	require.True(t, res.Eligible)

	// Caller presenting no segment passes a segment-gated rule.
	res = Evaluate(rule, 15000, "", at(9, 0))
	require.True(t, res.Eligible)
}

func TestEvaluate_TimeWindowBoundsInclusive(t *testing.T) {
	rule := referenceRule()

	cases := []struct {
		name     string
		now      time.Time
		eligible bool
	}{
		{"exactly at time_from", at(8, 0), true},
		{"exactly at time_to", at(10, 0), true},
		{"one minute before window", at(7, 59), false},
		{"one minute after window", at(10, 1), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Evaluate(rule, 15000, SegmentResident, tc.now)
			require.Equal(t, tc.eligible, res.Eligible)
			if !tc.eligible {
				require.Equal(t, ReasonTimeNotApplicable, res.Reason)
			}
		})
	}
}

func TestEvaluate_BelowMinSpend(t *testing.T) {
	rule := referenceRule()

	res := Evaluate(rule, 4999, SegmentResident, at(9, 0))
	require.False(t, res.Eligible)
	require.Equal(t, ReasonBelowMinSpend, res.Reason)

	// Exactly at min_spend qualifies.
	res = Evaluate(rule, 5000, SegmentResident, at(9, 0))
	require.True(t, res.Eligible)
}

func TestEvaluate_CheckOrderIsTheTieBreak(t *testing.T) {
	rule := referenceRule()
	saturday := time.Date(2025, 10, 25, 23, 0, 0, 0, time.UTC)

	// Wrong segment, wrong day, wrong time, below min spend all at once:
	// the segment check runs first and wins.
	res := Evaluate(rule, 100, SegmentTourist, saturday)
	require.Equal(t, ReasonSegmentMismatch, res.Reason)

	// Fix the segment: the day check is next.
	res = Evaluate(rule, 100, SegmentResident, saturday)
	require.Equal(t, ReasonDayNotApplicable, res.Reason)

	// Fix the day: the time window is next.
	res = Evaluate(rule, 100, SegmentResident, at(23, 0))
	require.Equal(t, ReasonTimeNotApplicable, res.Reason)

	// Fix the time: minimum spend is last.
	res = Evaluate(rule, 100, SegmentResident, at(9, 0))
	require.Equal(t, ReasonBelowMinSpend, res.Reason)
}

func TestEvaluate_RoundingTiesAwayFromZero(t *testing.T) {
	rule := referenceRule()
	rule.MinSpend = 0

	// 50 * 15% = 7.5 → 8 (ties away from zero, not banker's rounding).
	res := Evaluate(rule, 50, SegmentResident, at(9, 0))
	require.True(t, res.Eligible)
	require.Equal(t, int64(8), res.Discount)

	// 50 * 1% = 0.5 → 1.
	require.Equal(t, int64(1), res.CareFund)

	// Zero care fund rate yields zero contribution.
	rule.CareFundRatePct = 0
	res = Evaluate(rule, 15000, SegmentResident, at(9, 0))
	require.Equal(t, int64(0), res.CareFund)
}

func TestEvaluate_DiscountLaw(t *testing.T) {
	rule := referenceRule()
	amounts := []int64{5000, 7777, 10000, 15000, 123456}

	for _, amt := range amounts {
		res := Evaluate(rule, amt, SegmentResident, at(9, 30))
		require.True(t, res.Eligible, "amount %d", amt)
		require.Equal(t, roundPct(amt, rule.DiscountPct), res.Discount)
		require.Equal(t, roundPct(amt, rule.CareFundRatePct), res.CareFund)
	}
}

func TestEvaluate_InvalidRuleFailsClosed(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CouponRule)
	}{
		{"empty days", func(r *CouponRule) { r.Days = nil }},
		{"discount over 100", func(r *CouponRule) { r.DiscountPct = 150 }},
		{"negative discount", func(r *CouponRule) { r.DiscountPct = -1 }},
		{"fund rate over 100", func(r *CouponRule) { r.CareFundRatePct = 101 }},
		{"negative min spend", func(r *CouponRule) { r.MinSpend = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule := referenceRule()
			tc.mutate(&rule)

			res := Evaluate(rule, 15000, SegmentResident, at(9, 0))
			require.False(t, res.Eligible)
			require.Equal(t, ReasonInvalidRule, res.Reason)
		})
	}
}

func TestWeekdayTag(t *testing.T) {
	// 2025-10-20 is a Monday; walk the whole week.
	monday := time.Date(2025, 10, 20, 12, 0, 0, 0, time.UTC)
	for i, want := range Weekdays {
		got := WeekdayTag(monday.AddDate(0, 0, i))
		require.Equal(t, want, got)
	}
}
