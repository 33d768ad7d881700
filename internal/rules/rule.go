package rules

import (
	"math/rand/v2"
	"time"
)

// Segment restricts which customer category a coupon rule applies to.
type Segment string

const (
	SegmentResident Segment = "resident"
	SegmentTourist  Segment = "tourist"
)

// Valid reports whether the segment is one of the known categories.
func (s Segment) Valid() bool {
	return s == SegmentResident || s == SegmentTourist
}

// Weekdays is the fixed, locale-independent set of weekday tags used in
// coupon rules, Monday first.
var Weekdays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// WeekdayTag returns the rule weekday tag for t.
func WeekdayTag(t time.Time) string {
	// time.Weekday is Sunday-based; the tag set is Monday-based.
	return Weekdays[(int(t.Weekday())+6)%7]
}

// IsWeekdayTag reports whether tag is one of the seven known weekday tags.
func IsWeekdayTag(tag string) bool {
	for _, d := range Weekdays {
		if d == tag {
			return true
		}
	}
	return false
}

// CouponRule is a time/segment-gated discount rule. It is immutable once
// issued and travels by value inside the QR/URL token; the token is the sole
// source of truth at verification time; rules are never stored server-side.
type CouponRule struct {
	Segment         Segment  `json:"segment,omitempty"` // empty means any segment
	Days            []string `json:"days"`              // weekday tags, order preserved for display
	TimeFrom        string   `json:"time_from"`         // "HH:MM", inclusive
	TimeTo          string   `json:"time_to"`           // "HH:MM", inclusive
	DiscountPct     int      `json:"discount_pct"`      // 0-100
	MinSpend        int64    `json:"min_spend"`         // KRW, integer minor units
	CareFundRatePct int      `json:"care_fund_rate_pct"` // 0-100
	Code            string   `json:"code"`              // human-presentable coupon code
}

const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewCode generates a coupon code of the form "<prefix>-<6 uppercase
// alphanumerics>". Uniqueness is best-effort: collision probability is
// accepted as negligible at expected volumes. Callers wanting strict
// uniqueness layer their own collision check on top.
func NewCode(prefix string) string {
	b := make([]byte, 6)
	for i := range b {
		b[i] = codeCharset[rand.IntN(len(codeCharset))]
	}
	return prefix + "-" + string(b)
}
