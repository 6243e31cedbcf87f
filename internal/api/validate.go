package api

import (
	"regexp"
	"unicode/utf8"
)

// maxEmailLen is the maximum length for email addresses (RFC 5321).
const maxEmailLen = 254

// maxPasswordLen is the maximum length for passwords.
const maxPasswordLen = 256

// maxMessageLen is the maximum length for SMS message bodies.
const maxMessageLen = 1000

// maxNumberLen is the maximum length of a raw dial string accepted over the
// API. Longer than the keypad cap to admit full E.164 strings with spacing.
const maxNumberLen = 32

// emailRe is a basic email format regex. Not exhaustive; validates structure only.
var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// numberRe validates dialable input: digits, '+', '*', '#' and spaces.
var numberRe = regexp.MustCompile(`^[0-9+*# ]+$`)

// validateStringLen checks that a string does not exceed maxLen runes.
// Returns an error message if invalid, empty string if OK.
func validateStringLen(field, value string, maxLen int) string {
	if utf8.RuneCountInString(value) > maxLen {
		return field + " exceeds maximum length"
	}
	return ""
}

// validateRequiredStringLen checks that a non-empty string does not exceed maxLen runes.
func validateRequiredStringLen(field, value string, maxLen int) string {
	if value == "" {
		return field + " is required"
	}
	return validateStringLen(field, value, maxLen)
}

// validateEmail checks that a string is a valid-looking email address.
func validateEmail(field, value string) string {
	if value == "" {
		return field + " is required"
	}
	if len(value) > maxEmailLen {
		return field + " exceeds maximum length"
	}
	if !emailRe.MatchString(value) {
		return field + " is not a valid email address"
	}
	return ""
}

// validateNumber checks that a string is a plausible dial string.
func validateNumber(field, value string) string {
	if value == "" {
		return field + " is required"
	}
	if len(value) > maxNumberLen {
		return field + " exceeds maximum length"
	}
	if !numberRe.MatchString(value) {
		return field + " contains invalid characters"
	}
	return ""
}

// containsControlChars checks whether a string has control characters
// (except common whitespace like \n, \r, \t).
func containsControlChars(s string) bool {
	for _, r := range s {
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			return true
		}
	}
	return false
}

// validateNoControlChars rejects strings with control characters.
func validateNoControlChars(field, value string) string {
	if containsControlChars(value) {
		return field + " contains invalid characters"
	}
	return ""
}
