package models

import (
	"time"

	"github.com/gisulro/jeju-sme-strategy-app/internal/rules"
)

// DateLayout is the wire/storage format for calendar dates.
const DateLayout = "2006-01-02"

// RiskTier classifies a registered resident's baseline risk.
type RiskTier string

const (
	RiskNormal   RiskTier = "normal"
	RiskCaution  RiskTier = "caution"
	RiskHighRisk RiskTier = "high_risk"
)

// Valid reports whether the tier is one of the known values.
func (r RiskTier) Valid() bool {
	return r == RiskNormal || r == RiskCaution || r == RiskHighRisk
}

// Senior is a registry entry for an at-risk resident. The PIN is the sole
// check-in authentication secret; it is stored and compared in clear text
// and never serialized into API responses.
type Senior struct {
	SeniorID       string   `json:"senior_id"`
	Name           string   `json:"name"`
	Phone          string   `json:"phone"`
	Address        string   `json:"address"`
	Caregiver      string   `json:"caregiver"`
	CaregiverPhone string   `json:"caregiver_phone"`
	RiskTier       RiskTier `json:"risk_tier"`
	WelfarePoints  int64    `json:"welfare_points"`
	PIN            string   `json:"-"`
	// LastVisitDate is a DateLayout date; empty means never visited.
	LastVisitDate string `json:"last_visit_date,omitempty"`
}

// VisitRecord is an append-only check-in record. SeniorID is a reference,
// not ownership: the record outlives any in-memory view of the Senior.
type VisitRecord struct {
	ID        string    `json:"id"` // uuid
	Timestamp time.Time `json:"timestamp"`
	SeniorID  string    `json:"senior_id"`
	Name      string    `json:"name"`
	Store     string    `json:"store"`
	Systolic  int       `json:"systolic"`
	Diastolic int       `json:"diastolic"`
	WeightKg  float64   `json:"weight_kg"`
	Notes     string    `json:"notes"`
}

// EntryType tags a fund ledger entry as money in or money out. Amounts are
// always non-negative; direction is expressed only through the tag.
type EntryType string

const (
	EntryIn  EntryType = "in"
	EntryOut EntryType = "out"
)

// Valid reports whether the entry type is one of the known values.
func (t EntryType) Valid() bool {
	return t == EntryIn || t == EntryOut
}

// FundEntry is an append-only care fund ledger record. DonationRate is a
// display-only annotation and takes no part in balance math.
type FundEntry struct {
	ID           string    `json:"id"` // uuid
	Timestamp    time.Time `json:"timestamp"`
	Type         EntryType `json:"type"`
	Amount       int64     `json:"amount"` // KRW, integer minor units
	Store        string    `json:"store"`
	Memo         string    `json:"memo"`
	DonationRate int       `json:"donation_rate"`
}

// Roadmap phases, ordered short to long for display sorting.
const (
	PhaseShortTerm = "short_term" // 1-6 months
	PhaseMidTerm   = "mid_term"   // 6-12 months
	PhaseLongTerm  = "long_term"  // 1-3 years
)

// PhaseRank orders roadmap phases; unknown phases sort last.
func PhaseRank(phase string) int {
	switch phase {
	case PhaseShortTerm:
		return 0
	case PhaseMidTerm:
		return 1
	case PhaseLongTerm:
		return 2
	default:
		return 99
	}
}

// Action is a roadmap entry: a plain record with no business rule attached.
type Action struct {
	ID          string `json:"id"` // uuid
	Phase       string `json:"phase"`
	Task        string `json:"task"`
	Owner       string `json:"owner"`
	CostKRW     int64  `json:"cost_krw"`
	DueDate     string `json:"due_date"` // DateLayout
	Status      string `json:"status"`   // planned | in_progress | done | on_hold
	Segment     string `json:"segment"`
	ImpactScore int    `json:"impact_score"` // 1-5
}

// RegisterSeniorRequest is the payload for registering a resident.
type RegisterSeniorRequest struct {
	Name           string   `json:"name"`
	Phone          string   `json:"phone"`
	Address        string   `json:"address"`
	Caregiver      string   `json:"caregiver"`
	CaregiverPhone string   `json:"caregiver_phone"`
	RiskTier       RiskTier `json:"risk_tier"`
	WelfarePoints  int64    `json:"welfare_points"`
	// PIN is optional; a 4-digit PIN is generated when absent.
	PIN string `json:"pin,omitempty"`
}

// RegisterSeniorResponse returns the assigned identifier and the PIN.
// This is the only time the PIN is ever sent back.
type RegisterSeniorResponse struct {
	SeniorID string `json:"senior_id"`
	PIN      string `json:"pin"`
}

// CheckinRequest is the payload for a PIN-gated visit recording.
type CheckinRequest struct {
	PIN          string  `json:"pin"`
	Store        string  `json:"store"`
	Systolic     int     `json:"systolic"`
	Diastolic    int     `json:"diastolic"`
	WeightKg     float64 `json:"weight_kg"`
	Notes        string  `json:"notes"`
	EarnedPoints int64   `json:"earned_points"`
}

// IssueCouponRequest carries the rule parameters collected by the caller.
type IssueCouponRequest struct {
	Segment         rules.Segment `json:"segment,omitempty"`
	Days            []string      `json:"days"`
	TimeFrom        string        `json:"time_from"`
	TimeTo          string        `json:"time_to"`
	DiscountPct     int           `json:"discount_pct"`
	MinSpend        int64         `json:"min_spend"`
	CareFundRatePct int           `json:"care_fund_rate_pct"`
	Prefix          string        `json:"prefix,omitempty"`
}

// IssueCouponResponse returns the issued rule plus its transport forms.
type IssueCouponResponse struct {
	Rule      rules.CouponRule `json:"rule"`
	Token     string           `json:"token"`
	VerifyURL string           `json:"verify_url"`
}

// VerifyCouponResponse is the outcome of decoding and evaluating a token.
type VerifyCouponResponse struct {
	Code   string       `json:"code"`
	Result rules.Result `json:"result"`
}

// DecodedCouponResponse is served on the landing URL a QR scan opens: the
// decoded rule, plus an evaluation result when a cart amount was presented.
type DecodedCouponResponse struct {
	Rule   rules.CouponRule `json:"rule"`
	Result *rules.Result    `json:"result,omitempty"`
}

// FundEntryRequest is the payload for appending a fund ledger entry.
type FundEntryRequest struct {
	Type         EntryType `json:"type"`
	Amount       int64     `json:"amount"`
	Store        string    `json:"store"`
	Memo         string    `json:"memo"`
	DonationRate int       `json:"donation_rate"`
}

// AtRiskSenior is a registry entry annotated with its visit recency.
type AtRiskSenior struct {
	Senior
	DaysSinceVisit int64 `json:"days_since_visit"`
	NeverVisited   bool  `json:"never_visited"`
}

// FundBalanceResponse carries the recomputed care fund balance.
type FundBalanceResponse struct {
	Balance int64 `json:"balance"`
}

// DashboardMetrics is the lightweight operations snapshot.
type DashboardMetrics struct {
	Seniors     int       `json:"seniors"`
	Visits      int       `json:"visits"`
	AtRisk      int       `json:"at_risk"`
	FundEntries int       `json:"fund_entries"`
	FundBalance int64     `json:"fund_balance"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
