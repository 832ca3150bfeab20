package password

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrWeak is wrapped by every [*PolicyError].
var ErrWeak = errors.New("password does not meet strength policy")

// Policy is a password strength rule set.
type Policy struct {
	MinLength    int
	RequireUpper bool
	RequireLower bool
	RequireDigit bool
}

// DefaultPolicy requires 8 characters with at least one upper case letter,
// one lower case letter and one digit.
func DefaultPolicy() Policy {
	return Policy{MinLength: 8, RequireUpper: true, RequireLower: true, RequireDigit: true}
}

// PolicyError lists every rule a password failed.
type PolicyError struct {
	Failures []string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("%v: %s", ErrWeak, strings.Join(e.Failures, "; "))
}

func (e *PolicyError) Unwrap() error { return ErrWeak }

// Validate returns nil or a *PolicyError. Length counts runes.
func (p Policy) Validate(password string) error {
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}

	var failures []string
	if utf8.RuneCountInString(password) < p.MinLength {
		failures = append(failures, fmt.Sprintf("must be at least %d characters", p.MinLength))
	}
	if p.RequireUpper && !upper {
		failures = append(failures, "must contain an uppercase letter")
	}
	if p.RequireLower && !lower {
		failures = append(failures, "must contain a lowercase letter")
	}
	if p.RequireDigit && !digit {
		failures = append(failures, "must contain a digit")
	}

	if len(failures) > 0 {
		return &PolicyError{Failures: failures}
	}
	return nil
}
