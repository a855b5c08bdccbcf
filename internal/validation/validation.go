// Package validation checks user input from the sign-in and account forms.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 72 // bcrypt ignores anything longer
	MaxNameLength     = 100
)

// Error describes a rejected form field
type Error struct {
	Field   string
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return Error{Field: "email", Message: "email is required"}
	}
	if !emailRegex.MatchString(email) {
		return Error{Field: "email", Message: "invalid email format"}
	}
	return nil
}

func ValidatePassword(password string) error {
	switch {
	case password == "":
		return Error{Field: "password", Message: "password is required"}
	case len(password) < MinPasswordLength:
		return Error{Field: "password", Message: fmt.Sprintf("password must be at least %d characters", MinPasswordLength)}
	case len(password) > MaxPasswordLength:
		return Error{Field: "password", Message: fmt.Sprintf("password must be at most %d bytes", MaxPasswordLength)}
	}
	return nil
}

func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	switch {
	case n == 0:
		return Error{Field: "name", Message: "name is required"}
	case n < 2:
		return Error{Field: "name", Message: "name must be at least 2 characters"}
	case n > MaxNameLength:
		return Error{Field: "name", Message: "name is too long"}
	}
	return nil
}

// SafeNext returns next if it is a local path, otherwise fallback.
// It guards the post-login redirect against open redirects.
func SafeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	// Browsers drop tabs and newlines, so "/\t/host" would become "//host"
	if strings.IndexFunc(next, unicode.IsControl) >= 0 {
		return fallback
	}
	return next
}
