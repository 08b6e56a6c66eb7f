package client

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/bezrook/internal/client/models"
	"github.com/dmitrijs2005/bezrook/internal/common"
)

const (
	MinLoginLength    = 3
	MinPasswordLength = 10

	// PasswordSymbols is the punctuation set a password must draw from.
	PasswordSymbols = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`
)

var (
	loginPattern = regexp.MustCompile(`^[A-Za-z0-9.\-]+$`)
	codePattern  = regexp.MustCompile(fmt.Sprintf(`^[0-9]{%d}$`, common.CodeLength))
)

// ValidateLogin checks length first, then the charset.
func ValidateLogin(login string) error {
	if utf8.RuneCountInString(login) < MinLoginLength {
		return &ValidationError{Field: "login", Reason: "login too short"}
	}
	if !loginPattern.MatchString(login) {
		return &ValidationError{Field: "login", Reason: "login may contain only latin letters, digits, dot and dash"}
	}
	return nil
}

// ValidatePassword reports the first missing password property.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return &ValidationError{Field: "password", Reason: "password too short"}
	}

	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(PasswordSymbols, r):
			symbol = true
		}
	}

	switch {
	case !lower:
		return &ValidationError{Field: "password", Reason: "password must contain a lowercase letter"}
	case !upper:
		return &ValidationError{Field: "password", Reason: "password must contain an uppercase letter"}
	case !digit:
		return &ValidationError{Field: "password", Reason: "password must contain a digit"}
	case !symbol:
		return &ValidationError{Field: "password", Reason: "password must contain a symbol (!@#$%^&* etc.)"}
	}
	return nil
}

// ValidateCredentials is the registration check: login rules win over
// password rules.
func ValidateCredentials(c models.Credentials) error {
	if err := ValidateLogin(c.Login); err != nil {
		return err
	}
	return ValidatePassword(c.Password)
}

// ValidateRegistration adds the repeated-password check. A mismatch is
// reported before password complexity, as the sign-up form does.
func ValidateRegistration(c models.Credentials, repeat string) error {
	if err := ValidateLogin(c.Login); err != nil {
		return err
	}
	if c.Password != repeat {
		return &ValidationError{Field: "password_repeat", Reason: "passwords do not match"}
	}
	return ValidatePassword(c.Password)
}

// validateLoginForm is the lighter check used before POST /api/login:
// existing accounts may predate the password rules.
func validateLoginForm(c models.Credentials) error {
	if err := ValidateLogin(c.Login); err != nil {
		return err
	}
	if c.Password == "" {
		return &ValidationError{Field: "password", Reason: "password is required"}
	}
	return nil
}

// ValidateCode accepts exactly six decimal digits.
func ValidateCode(code string) error {
	if !codePattern.MatchString(code) {
		return &ValidationError{Field: "code", Reason: "enter the 6-digit code"}
	}
	return nil
}
