package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
)

// ErrMalformedRule is the sentinel for transport decode failures. Use
// errors.Is to match; errors.As against *MalformedRuleError gives the detail.
var ErrMalformedRule = errors.New("malformed coupon rule")

// MalformedRuleError reports a token that could not be decoded into a
// structurally valid rule.
type MalformedRuleError struct {
	Reason string
	Err    error
}

func (e *MalformedRuleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed coupon rule: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed coupon rule: %s", e.Reason)
}

func (e *MalformedRuleError) Unwrap() error { return ErrMalformedRule }

// Encode serializes a rule into a URL-safe token suitable for a query
// parameter: percent-encoded JSON with the wire keys of the rule type.
// Encode(r) round-trips through Decode to a field-for-field equal rule,
// including the verbatim order of Days.
func Encode(rule CouponRule) (string, error) {
	data, err := json.Marshal(rule)
	if err != nil {
		return "", fmt.Errorf("failed to encode rule: %w", err)
	}
	return url.QueryEscape(string(data)), nil
}

// Decode parses a transport token back into a rule. It fails with a
// MalformedRuleError when the token is not parseable or a required field is
// missing. Semantic range checks (e.g. discount_pct > 100) belong to
// Evaluate, not here.
func Decode(token string) (CouponRule, error) {
	if token == "" {
		return CouponRule{}, &MalformedRuleError{Reason: "empty token"}
	}

	raw, err := url.QueryUnescape(token)
	if err != nil {
		return CouponRule{}, &MalformedRuleError{Reason: "invalid percent-encoding", Err: err}
	}

	var rule CouponRule
	if err := json.Unmarshal([]byte(raw), &rule); err != nil {
		return CouponRule{}, &MalformedRuleError{Reason: "invalid JSON payload", Err: err}
	}

	if err := checkStructure(rule); err != nil {
		return CouponRule{}, err
	}

	return rule, nil
}

// checkStructure enforces presence of required fields only.
func checkStructure(rule CouponRule) error {
	if len(rule.Days) == 0 {
		return &MalformedRuleError{Reason: "days must not be empty"}
	}
	if rule.TimeFrom == "" {
		return &MalformedRuleError{Reason: "time_from is required"}
	}
	if rule.TimeTo == "" {
		return &MalformedRuleError{Reason: "time_to is required"}
	}
	if rule.Code == "" {
		return &MalformedRuleError{Reason: "code is required"}
	}
	return nil
}
