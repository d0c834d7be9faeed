// Package validation implements the input rules for account registration
// and profile edits.
package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// PasswordSpecials is the set of characters that satisfy the special
// character requirement. Passwords may contain no other symbols.
const PasswordSpecials = "@$!%*#?&"

const (
	minUsernameLen = 4
	minPasswordLen = 6
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Error reports which field failed and a message fit for the form.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Field + ": " + e.Message
}

type Registration struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// ValidateRegistration checks every rule and returns the first failure.
func ValidateRegistration(r Registration) error {
	if err := ValidateUsername(r.Username); err != nil {
		return err
	}
	if err := ValidateEmail(r.Email); err != nil {
		return err
	}
	if err := ValidatePassword(r.Password); err != nil {
		return err
	}
	if strings.TrimSpace(r.FirstName) == "" || strings.TrimSpace(r.LastName) == "" {
		return &Error{Field: "name", Message: "First and Last name are required."}
	}
	return nil
}

// ValidateUsername counts the value as submitted. Callers trim before
// storing.
func ValidateUsername(username string) error {
	if utf8.RuneCountInString(username) < minUsernameLen {
		return &Error{Field: "username", Message: "Username must be longer than 3 characters."}
	}
	return nil
}

func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return &Error{Field: "email", Message: "Invalid email address."}
	}
	return nil
}

// ValidatePassword requires a letter, a digit and a special character, each
// checked on its own, plus the minimum length and the allowed alphabet.
func ValidatePassword(password string) error {
	var letter, digit, special bool
	valid := len(password) >= minPasswordLen
	for _, c := range password {
		switch {
		case isASCIILetter(c):
			letter = true
		case c >= '0' && c <= '9':
			digit = true
		case strings.ContainsRune(PasswordSpecials, c):
			special = true
		default:
			valid = false
		}
	}
	if !valid || !letter || !digit || !special {
		return &Error{
			Field:   "password",
			Message: "Password must be at least 6 characters and include letters, numbers, and special characters.",
		}
	}
	return nil
}

func isASCIILetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
