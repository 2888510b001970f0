// Package phone canonicalizes Kenyan mobile numbers into the MSISDN form the
// gateway expects (254 followed by a nine digit subscriber number).
package phone

import (
	"regexp"
	"strings"

	"mpesa-service/internal/apperrors"
)

const (
	CountryCode      = "254"
	subscriberLength = 9
)

var (
	canonical   = regexp.MustCompile(`^2547\d{8}$`)
	allDigits   = regexp.MustCompile(`^\d+$`)
	separators  = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
	acceptedMsg = "expected 07XXXXXXXX, +2547XXXXXXXX, 2547XXXXXXXX or 7XXXXXXXX"
)

// Normalize maps a locally formatted number onto 2547XXXXXXXX. Inputs matching
// none of the accepted shapes are passed through and rejected by validation.
func Normalize(input string) (string, error) {
	n := separators.Replace(strings.TrimSpace(input))

	switch {
	case strings.HasPrefix(n, "0"):
		n = CountryCode + n[1:]
	case strings.HasPrefix(n, "+"+CountryCode):
		n = n[1:]
	case strings.HasPrefix(n, CountryCode):
	case len(n) == subscriberLength && allDigits.MatchString(n):
		n = CountryCode + n
	}

	if !canonical.MatchString(n) {
		return "", apperrors.Validation("phone", "invalid phone number "+quote(input)+", "+acceptedMsg)
	}
	return n, nil
}

// Valid reports whether s is already canonical.
func Valid(s string) bool {
	return canonical.MatchString(s)
}

func quote(s string) string {
	return `"` + s + `"`
}
