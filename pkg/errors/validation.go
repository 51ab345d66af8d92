package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidateContactName validates the name field of a lead submission.
func ValidateContactName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return New(ErrCodeInvalidInput, "name cannot be empty")
	}
	if len([]rune(name)) > 200 {
		return New(ErrCodeInvalidInput, "name too long (max 200 characters)")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "name contains invalid control characters")
		}
	}
	return nil
}

// phoneRegex accepts international and local formats: digits with optional
// leading +, spaces, dashes and parentheses.
var phoneRegex = regexp.MustCompile(`^\+?[0-9][0-9 ()\-]{4,24}$`)

// ValidatePhone validates the phone field of a lead submission.
func ValidatePhone(phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return New(ErrCodeInvalidInput, "phone cannot be empty")
	}
	if !phoneRegex.MatchString(phone) {
		return New(ErrCodeInvalidInput, "invalid phone number: %q", phone)
	}
	return nil
}
