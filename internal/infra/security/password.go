package security

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

const passwordSymbols = "@$!%*#?&"

// PasswordValidationError represents a single password policy violation.
type PasswordValidationError struct {
	Code    string
	Message string
}

// Error implements error for PasswordValidationError.
func (e *PasswordValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// PasswordRule validates a password according to a specific policy rule.
type PasswordRule interface {
	Validate(password string) error
}

// PasswordRuleFunc adapts a function to be used as a PasswordRule.
type PasswordRuleFunc func(password string) error

// Validate executes the underlying rule function.
func (f PasswordRuleFunc) Validate(password string) error {
	return f(password)
}

// PasswordValidator applies a sequence of password rules.
type PasswordValidator struct {
	rules []PasswordRule
}

// NewPasswordValidator constructs a validator with the provided rules.
func NewPasswordValidator(rules ...PasswordRule) *PasswordValidator {
	copied := make([]PasswordRule, len(rules))
	copy(copied, rules)
	return &PasswordValidator{rules: copied}
}

// Validate executes all rules and returns the first encountered violation.
func (v *PasswordValidator) Validate(password string) error {
	if v == nil {
		return fmt.Errorf("password validator not configured")
	}
	for _, rule := range v.rules {
		if err := rule.Validate(password); err != nil {
			return err
		}
	}
	return nil
}

// RegistrationPasswordValidator returns the policy applied to new account
// passwords: at least 8 characters drawn exclusively from letters, digits,
// and the approved symbol set, with at least one of each class present.
func RegistrationPasswordValidator() *PasswordValidator {
	return NewPasswordValidator(
		MinLengthRule(8),
		AllowedCharactersRule(),
		RequireLowercaseRule(),
		RequireUppercaseRule(),
		RequireDigitRule(),
		RequireSymbolRule(),
		RequirePasswordStrengthRule(1),
	)
}

// ResetPasswordValidator returns the relaxed policy applied on password
// reset, which only enforces a minimum length.
func ResetPasswordValidator() *PasswordValidator {
	return NewPasswordValidator(MinLengthRule(6))
}

// MinLengthRule ensures the password has at least min characters.
func MinLengthRule(min int) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if len([]rune(password)) < min {
			return &PasswordValidationError{
				Code:    "min_length",
				Message: fmt.Sprintf("password must be at least %d characters long", min),
			}
		}
		return nil
	})
}

// AllowedCharactersRule restricts the password alphabet to letters, digits,
// and the approved symbol set.
func AllowedCharactersRule() PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		for _, r := range password {
			switch {
			case r >= 'a' && r <= 'z':
			case r >= 'A' && r <= 'Z':
			case r >= '0' && r <= '9':
			case strings.ContainsRune(passwordSymbols, r):
			default:
				return &PasswordValidationError{
					Code:    "allowed_characters",
					Message: fmt.Sprintf("password may only contain letters, digits, and %s", passwordSymbols),
				}
			}
		}
		return nil
	})
}

// RequireLowercaseRule ensures the password contains at least one lowercase letter.
func RequireLowercaseRule() PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		for _, r := range password {
			if unicode.IsLower(r) {
				return nil
			}
		}
		return &PasswordValidationError{
			Code:    "lowercase",
			Message: "password must include at least one lowercase letter",
		}
	})
}

// RequireUppercaseRule ensures the password contains at least one uppercase letter.
func RequireUppercaseRule() PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		for _, r := range password {
			if unicode.IsUpper(r) {
				return nil
			}
		}
		return &PasswordValidationError{
			Code:    "uppercase",
			Message: "password must include at least one uppercase letter",
		}
	})
}

// RequireDigitRule ensures the password contains at least one digit.
func RequireDigitRule() PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		for _, r := range password {
			if unicode.IsDigit(r) {
				return nil
			}
		}
		return &PasswordValidationError{
			Code:    "digit",
			Message: "password must include at least one digit",
		}
	})
}

// RequireSymbolRule ensures the password contains at least one approved symbol.
func RequireSymbolRule() PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		for _, r := range password {
			if strings.ContainsRune(passwordSymbols, r) {
				return nil
			}
		}
		return &PasswordValidationError{
			Code:    "symbol",
			Message: fmt.Sprintf("password must include at least one of %s", passwordSymbols),
		}
	})
}

// RequirePasswordStrengthRule enforces a minimum zxcvbn score to reject trivially guessable passwords.
func RequirePasswordStrengthRule(minScore int, userInputs ...string) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if minScore <= 0 {
			return nil
		}
		if minScore > 4 {
			minScore = 4
		}

		result := zxcvbn.PasswordStrength(password, userInputs)
		if result.Score >= minScore {
			return nil
		}

		return &PasswordValidationError{
			Code:    "weak_password",
			Message: "password is too weak; choose a more complex value",
		}
	})
}

// PasswordExpired reports whether a password set on createdOn must be rotated.
// The comparison is calendar based: the password expires once more than
// maxAgeDays whole days separate the two UTC dates.
func PasswordExpired(createdOn, now time.Time, maxAgeDays int) bool {
	if maxAgeDays <= 0 || createdOn.IsZero() {
		return false
	}

	created := truncateToDay(createdOn)
	today := truncateToDay(now)

	days := int(today.Sub(created).Hours() / 24)
	return days > maxAgeDays
}

func truncateToDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
