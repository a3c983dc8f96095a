package service

import (
	"regexp"
	"strconv"
	"strings"
)

// Scalar and flag normalization for raw CSV cells. Source exports are
// loosely typed: the same boolean concept arrives as "Yes", "y" or "TRUE",
// numbers arrive embedded in free text ("72 kg"), and absent values arrive
// as empty or whitespace-only cells. Every function here returns a nil
// pointer for "not documented" and never panics; absence of data must never
// be silently treated as a negative clinical finding.

var decimalPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

var truthyTokens = map[string]bool{
	"yes":  true,
	"y":    true,
	"true": true,
}

var falsyTokens = map[string]bool{
	"no":    true,
	"n":     true,
	"false": true,
}

// NormalizeString trims the raw cell and returns nil when nothing remains.
func NormalizeString(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// NormalizeNumber extracts the first decimal token from the raw cell.
// Non-numeric or missing input yields nil.
func NormalizeNumber(raw string) *float64 {
	token := decimalPattern.FindString(raw)
	if token == "" {
		return nil
	}
	value, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return nil
	}
	return &value
}

// NormalizeInt extracts the first numeric token and truncates it.
func NormalizeInt(raw string) *int {
	value := NormalizeNumber(raw)
	if value == nil {
		return nil
	}
	i := int(*value)
	return &i
}

// NormalizePercent extracts a numeric value and clamps it to [0,100].
// Used for percentage fields such as PD-L1 expression.
func NormalizePercent(raw string) *float64 {
	value := NormalizeNumber(raw)
	if value == nil {
		return nil
	}
	clamped := *value
	if clamped < 0 {
		clamped = 0
	}
	if clamped > 100 {
		clamped = 100
	}
	return &clamped
}

// NormalizeBool matches the raw cell case-insensitively against the accepted
// token sets. Anything outside both sets, including "Unknown", yields nil
// (unknown, not false).
func NormalizeBool(raw string) *bool {
	token := strings.ToLower(strings.TrimSpace(raw))
	if token == "" {
		return nil
	}
	if truthyTokens[token] {
		v := true
		return &v
	}
	if falsyTokens[token] {
		v := false
		return &v
	}
	return nil
}
