// Package phone normalizes phone numbers to the canonical WhatsApp format
// used as the client identity key. Write-time and lookup-time must agree,
// so every path that stores or matches a phone goes through Normalize.
package phone

import "strings"

// Mexican country code plus the mobile prefix WhatsApp expects.
const countryMobilePrefix = "521"

// Normalize strips punctuation and returns a digits-only international
// number. 10-digit numbers are assumed domestic and get the country+mobile
// prefix; numbers already carrying it pass through. Idempotent.
func Normalize(raw string) string {
	digits := onlyDigits(raw)
	if digits == "" {
		return ""
	}

	switch {
	case len(digits) == 10:
		return countryMobilePrefix + digits
	case len(digits) == 12 && strings.HasPrefix(digits, "52"):
		// 52 + 10 digits, missing the mobile "1"
		return countryMobilePrefix + digits[2:]
	default:
		return digits
	}
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
