package rules

import (
	"math"
	"time"
)

// Ineligibility reason codes, surfaced verbatim to the caller for display.
const (
	ReasonSegmentMismatch   = "segment mismatch"
	ReasonDayNotApplicable  = "day not applicable"
	ReasonTimeNotApplicable = "time window not applicable"
	ReasonBelowMinSpend     = "below minimum spend"
	ReasonInvalidRule       = "invalid rule parameters"
)

// Result is the outcome of evaluating a rule against a presented cart.
// Ineligibility is an expected condition, not an error: Reason carries the
// first failed check's code.
type Result struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
	Discount int64  `json:"discount"`
	CareFund int64  `json:"care_fund"`
}

func ineligible(reason string) Result {
	return Result{Eligible: false, Reason: reason}
}

// Evaluate decides whether a rule applies to a cart amount for an optional
// customer segment at the given instant, and computes the discount and care
// fund contribution when it does.
//
// The checks run in a fixed order and short-circuit on the first failure;
// the order is the tie-break policy that determines which reason is reported:
// segment, weekday, time window, minimum spend. Time window bounds are
// inclusive on both ends, compared as zero-padded "HH:MM" strings (equivalent
// to numeric minute comparison). Amounts round to the nearest integer won,
// ties away from zero.
//
// Evaluate is pure: it never touches persisted state, so the same token can
// be verified any number of times with identical results. Appending the care
// fund contribution to the fund ledger is the caller's decision.
func Evaluate(rule CouponRule, cartAmount int64, segment Segment, now time.Time) Result {
	// Fail closed on rules whose parameters are outside the contract.
	// Decode only checks structure; semantic ranges are checked here.
	if !validParams(rule) {
		return ineligible(ReasonInvalidRule)
	}

	if rule.Segment != "" && segment != "" && segment != rule.Segment {
		return ineligible(ReasonSegmentMismatch)
	}

	if !containsDay(rule.Days, WeekdayTag(now)) {
		return ineligible(ReasonDayNotApplicable)
	}

	current := now.Format("15:04")
	if !(rule.TimeFrom <= current && current <= rule.TimeTo) {
		return ineligible(ReasonTimeNotApplicable)
	}

	if cartAmount < rule.MinSpend {
		return ineligible(ReasonBelowMinSpend)
	}

	return Result{
		Eligible: true,
		Discount: roundPct(cartAmount, rule.DiscountPct),
		CareFund: roundPct(cartAmount, rule.CareFundRatePct),
	}
}

func validParams(rule CouponRule) bool {
	if len(rule.Days) == 0 {
		return false
	}
	if rule.DiscountPct < 0 || rule.DiscountPct > 100 {
		return false
	}
	if rule.CareFundRatePct < 0 || rule.CareFundRatePct > 100 {
		return false
	}
	if rule.MinSpend < 0 {
		return false
	}
	return true
}

func containsDay(days []string, tag string) bool {
	for _, d := range days {
		if d == tag {
			return true
		}
	}
	return false
}

// roundPct computes amount * pct / 100 rounded to the nearest integer,
// ties away from zero.
func roundPct(amount int64, pct int) int64 {
	return int64(math.Round(float64(amount) * float64(pct) / 100))
}
