package session

import (
	"fmt"
	"strings"
)

// ValidationError reports a phone number that cannot be normalized.
type ValidationError struct {
	Raw string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("session: invalid phone number %q", e.Raw)
}

// NormalizePhone canonicalizes a user-entered phone number to "+<digits>".
// Spaces, dashes, dots and parentheses are stripped; everything else must be
// digits with an optional leading plus. The canonical form is the registry
// key and the basis of the credential file name.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return "", &ValidationError{Raw: raw}
		}
	}
	digits := b.String()
	if len(digits) < 8 || len(digits) > 15 {
		return "", &ValidationError{Raw: raw}
	}
	return "+" + digits, nil
}
