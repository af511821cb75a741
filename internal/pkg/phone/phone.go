package phone

import (
	"strings"

	"github.com/yuutasakka/zeroshin-verify/internal/domain"
)

// mobilePrefixes are the accepted Japanese mobile number ranges.
var mobilePrefixes = []string{"070", "080", "090"}

// Normalize converts full-width digits to half-width and strips every
// non-digit rune (hyphens, spaces, parentheses).
func Normalize(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= '０' && r <= '９': // full-width digits
			b.WriteRune('0' + (r - '０'))
		}
	}
	return b.String()
}

// Validate checks a normalized number against the accepted mobile ranges.
// Mobile numbers are 11 digits starting with 070/080/090.
func Validate(normalized string) error {
	if len(normalized) != 11 {
		return domain.ErrInvalidPhone
	}
	for _, p := range mobilePrefixes {
		if strings.HasPrefix(normalized, p) {
			return nil
		}
	}
	return domain.ErrInvalidPhone
}

// NormalizeAndValidate is the common entry point for user input.
func NormalizeAndValidate(raw string) (string, error) {
	n := Normalize(raw)
	if err := Validate(n); err != nil {
		return "", err
	}
	return n, nil
}
