package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/gisulro/jeju-sme-strategy-app/internal/models"
	"github.com/gisulro/jeju-sme-strategy-app/internal/rules"
)

var (
	timeOfDayRegex = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
	pinRegex       = regexp.MustCompile(`^\d{4,6}$`)
	seniorIDRegex  = regexp.MustCompile(`^S\d{6}$`)
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// ValidateIssueCouponRequest checks structural and semantic fields of a rule
// at issue time. These are the same semantic ranges the evaluator enforces
// at verification time; checking here gives the issuer a field-level error
// instead of a blanket ineligibility.
func ValidateIssueCouponRequest(req models.IssueCouponRequest) error {
	if req.Segment != "" && !req.Segment.Valid() {
		return &ValidationError{
			Field:   "segment",
			Message: "must be resident or tourist",
		}
	}

	if len(req.Days) == 0 {
		return &ValidationError{
			Field:   "days",
			Message: "must not be empty",
		}
	}

	seen := make(map[string]bool)
	for i, day := range req.Days {
		if !rules.IsWeekdayTag(day) {
			return &ValidationError{
				Field:   fmt.Sprintf("days[%d]", i),
				Message: fmt.Sprintf("unknown weekday tag: %s", day),
			}
		}
		if seen[day] {
			return &ValidationError{
				Field:   "days",
				Message: fmt.Sprintf("duplicate weekday tag: %s", day),
			}
		}
		seen[day] = true
	}

	if err := validateTimeOfDay(req.TimeFrom, "time_from"); err != nil {
		return err
	}
	if err := validateTimeOfDay(req.TimeTo, "time_to"); err != nil {
		return err
	}

	if req.DiscountPct < 0 || req.DiscountPct > 100 {
		return &ValidationError{
			Field:   "discount_pct",
			Message: "must be between 0 and 100",
		}
	}

	if req.MinSpend < 0 {
		return &ValidationError{
			Field:   "min_spend",
			Message: "must be non-negative",
		}
	}

	if req.CareFundRatePct < 0 || req.CareFundRatePct > 100 {
		return &ValidationError{
			Field:   "care_fund_rate_pct",
			Message: "must be between 0 and 100",
		}
	}

	if len(req.Prefix) > 16 {
		return &ValidationError{
			Field:   "prefix",
			Message: "cannot exceed 16 characters",
		}
	}

	return nil
}

// ValidateRegisterSenior checks a registration payload. PIN is optional;
// when supplied it must be 4-6 digits.
func ValidateRegisterSenior(req models.RegisterSeniorRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return &ValidationError{
			Field:   "name",
			Message: "is required",
		}
	}

	if req.RiskTier != "" && !req.RiskTier.Valid() {
		return &ValidationError{
			Field:   "risk_tier",
			Message: "must be normal, caution or high_risk",
		}
	}

	if req.WelfarePoints < 0 {
		return &ValidationError{
			Field:   "welfare_points",
			Message: "must be non-negative",
		}
	}

	if req.PIN != "" && !pinRegex.MatchString(req.PIN) {
		return &ValidationError{
			Field:   "pin",
			Message: "must be 4-6 digits",
		}
	}

	return nil
}

// ValidateSeniorID checks the "S<6 digits>" identifier shape.
func ValidateSeniorID(id string) error {
	if id == "" {
		return &ValidationError{
			Field:   "senior_id",
			Message: "is required",
		}
	}
	if !seniorIDRegex.MatchString(id) {
		return &ValidationError{
			Field:   "senior_id",
			Message: "must be S followed by 6 digits",
		}
	}
	return nil
}

// ValidateCheckinRequest checks a visit recording payload. Vitals bounds
// mirror the collection form's ranges; zero values mean "not measured".
func ValidateCheckinRequest(req models.CheckinRequest) error {
	if req.PIN == "" {
		return &ValidationError{
			Field:   "pin",
			Message: "is required",
		}
	}

	if req.Systolic < 0 || req.Systolic > 400 {
		return &ValidationError{
			Field:   "systolic",
			Message: "must be between 0 and 400",
		}
	}

	if req.Diastolic < 0 || req.Diastolic > 300 {
		return &ValidationError{
			Field:   "diastolic",
			Message: "must be between 0 and 300",
		}
	}

	if req.WeightKg < 0 || req.WeightKg > 300 {
		return &ValidationError{
			Field:   "weight_kg",
			Message: "must be between 0 and 300",
		}
	}

	if req.EarnedPoints < 0 {
		return &ValidationError{
			Field:   "earned_points",
			Message: "must be non-negative",
		}
	}

	return nil
}

// ValidateFundEntry checks a fund ledger append payload.
func ValidateFundEntry(typ models.EntryType, amount int64, rate int) error {
	if !typ.Valid() {
		return &ValidationError{
			Field:   "type",
			Message: "must be in or out",
		}
	}

	if amount < 0 {
		return &ValidationError{
			Field:   "amount",
			Message: "must be non-negative",
		}
	}

	maxAmount := int64(1_000_000_000)
	if amount > maxAmount {
		return &ValidationError{
			Field:   "amount",
			Message: "exceeds maximum allowed amount",
		}
	}

	if rate < 0 || rate > 100 {
		return &ValidationError{
			Field:   "donation_rate",
			Message: "must be between 0 and 100",
		}
	}

	return nil
}

// ValidateAction checks a roadmap action payload.
func ValidateAction(a models.Action) error {
	if strings.TrimSpace(a.Task) == "" {
		return &ValidationError{
			Field:   "task",
			Message: "is required",
		}
	}

	switch a.Phase {
	case models.PhaseShortTerm, models.PhaseMidTerm, models.PhaseLongTerm:
	default:
		return &ValidationError{
			Field:   "phase",
			Message: "must be short_term, mid_term or long_term",
		}
	}

	if a.CostKRW < 0 {
		return &ValidationError{
			Field:   "cost_krw",
			Message: "must be non-negative",
		}
	}

	if a.DueDate != "" {
		if _, err := time.Parse(models.DateLayout, a.DueDate); err != nil {
			return &ValidationError{
				Field:   "due_date",
				Message: "must be a YYYY-MM-DD date",
			}
		}
	}

	if a.ImpactScore < 1 || a.ImpactScore > 5 {
		return &ValidationError{
			Field:   "impact_score",
			Message: "must be between 1 and 5",
		}
	}

	return nil
}

func validateTimeOfDay(value, fieldName string) error {
	if value == "" {
		return &ValidationError{
			Field:   fieldName,
			Message: "is required",
		}
	}
	if !timeOfDayRegex.MatchString(value) {
		return &ValidationError{
			Field:   fieldName,
			Message: "must be a zero-padded HH:MM 24-hour time",
		}
	}
	return nil
}

// SanitizeString strips control characters and trims whitespace.
func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

// ValidateTimeString parses an RFC3339 timestamp.
func ValidateTimeString(timeStr string) (time.Time, error) {
	if timeStr == "" {
		return time.Time{}, &ValidationError{
			Field:   "time",
			Message: "is required",
		}
	}

	t, err := time.Parse(time.RFC3339, timeStr)
	if err != nil {
		return time.Time{}, &ValidationError{
			Field:   "time",
			Message: "must be a valid RFC3339 timestamp",
		}
	}

	return t, nil
}
