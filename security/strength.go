package security

import (
	"strings"
	"unicode"
)

const specialCharacters = "!@#$%^&*()_+-=[]{}|;:,.<>?"

// ValidatePasswordStrength checks password against the minimum policy:
// at least 8 characters with an upper-case letter, a lower-case letter, a
// digit, and a special character. The returned reason names the first
// failing rule and is safe to show to end users.
func ValidatePasswordStrength(password string) (bool, string) {
	if len(password) < 8 {
		return false, "Password must be at least 8 characters long"
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
		if strings.ContainsRune(specialCharacters, r) {
			hasSpecial = true
		}
	}

	switch {
	case !hasUpper:
		return false, "Password must contain at least one uppercase letter"
	case !hasLower:
		return false, "Password must contain at least one lowercase letter"
	case !hasDigit:
		return false, "Password must contain at least one digit"
	case !hasSpecial:
		return false, "Password must contain at least one special character"
	}

	return true, "Password meets strength requirements"
}
