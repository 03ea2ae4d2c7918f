package normalize

import (
	"strings"
)

// DefaultCountryCode is prepended to phone numbers written without one.
const DefaultCountryCode = "+1"

// Phone reduces s to E.164-like form. Numbers without a leading + get
// countryCode prepended; the result must carry 8 to 15 digits.
func Phone(s, countryCode string) (string, bool) {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	p := b.String()
	if p == "" || p == "+" {
		return "", false
	}

	if !strings.HasPrefix(p, "+") {
		cc := strings.TrimPrefix(countryCode, "+")
		// A national number already prefixed with the country code.
		if strings.HasPrefix(p, cc) && len(p) == len(cc)+10 {
			p = "+" + p
		} else {
			p = "+" + cc + p
		}
	}

	digits := len(p) - 1
	if digits < 8 || digits > 15 {
		return "", false
	}
	return p, true
}
