// Package sql provides safety checks for SQL-adjacent text stored in the
// schema catalog (example-query prompts, metric filter conditions).
package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult contains the result of an injection check on a field value.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	FieldName   string // Name of the field that failed the check
	FieldValue  string // The value that was checked
}

// CheckFieldForInjection uses libinjection to detect SQL injection patterns
// in a free-text field before it is persisted to the catalog.
//
// Returns nil if no injection is detected, or an InjectionCheckResult with
// details about the detected pattern.
//
// Example:
//
//	// Safe value - no injection
//	result := CheckFieldForInjection("prompt", "total revenue by region")
//	// result == nil
//
//	// Injection attempt detected
//	result := CheckFieldForInjection("prompt", "'; DROP TABLE users--")
//	// result.IsSQLi == true
//	// result.Fingerprint == "s&1c" (or similar)
func CheckFieldForInjection(fieldName, value string) *InjectionCheckResult {
	if value == "" {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if isSQLi {
		return &InjectionCheckResult{
			IsSQLi:      true,
			Fingerprint: string(fingerprint),
			FieldName:   fieldName,
			FieldValue:  value,
		}
	}

	return nil
}

// CheckFields validates a set of named free-text fields for SQL injection
// attempts.
//
// Returns a slice of InjectionCheckResult for each field that failed the
// check. Returns an empty slice if all fields are clean.
func CheckFields(fields map[string]string) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for name, value := range fields {
		if result := CheckFieldForInjection(name, value); result != nil {
			results = append(results, result)
		}
	}
	return results
}
