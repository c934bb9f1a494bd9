package domain

import "strings"

const (
	// CountryCode is the dialing code every canonical phone starts with.
	CountryCode = "58"

	canonicalPhoneLength  = 12
	nationalPhoneLength   = 10
	trunkPhoneLength      = 11
	subscriberPhoneLength = 7
)

var mobilePrefixes = map[string]struct{}{
	"412": {},
	"414": {},
	"416": {},
	"424": {},
	"426": {},
}

// NormalizePhone coerces raw input into the canonical 58PPPNNNNNNN form.
// The boolean is false when the input cannot be turned into a mobile number.
func NormalizePhone(raw string) (string, bool) {
	digits := stripNonDigits(raw)
	if digits == "" {
		return "", false
	}

	if strings.HasPrefix(digits, "00") {
		digits = strings.TrimLeft(digits, "0")
	}

	if strings.HasPrefix(digits, CountryCode) && len(digits) > canonicalPhoneLength {
		digits = digits[len(digits)-canonicalPhoneLength:]
	}

	if len(digits) == trunkPhoneLength && digits[0] == '0' {
		digits = CountryCode + digits[1:]
	}

	if len(digits) == nationalPhoneLength && IsMobilePrefix(digits[:3]) {
		digits = CountryCode + digits
	}

	if len(digits) != canonicalPhoneLength || !strings.HasPrefix(digits, CountryCode) {
		return "", false
	}
	if !IsMobilePrefix(digits[2:5]) || len(digits[5:]) != subscriberPhoneLength {
		return "", false
	}

	return digits, true
}

// IsMobilePrefix reports whether the three digits name a mobile operator.
func IsMobilePrefix(prefix string) bool {
	_, ok := mobilePrefixes[prefix]
	return ok
}

func stripNonDigits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
