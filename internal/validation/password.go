// Package validation holds input rules shared by services.
package validation

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Password policy names accepted by PolicyByName.
const (
	PolicyDefault = "default"
	PolicyStrict  = "strict"
)

const (
	minPasswordLength       = 8
	strictMinPasswordLength = 12
	maxPasswordLength       = 128
	maxSimilarity           = 0.7
)

//go:embed common_passwords.txt
var commonPasswordList string

var commonPasswords = func() map[string]struct{} {
	set := make(map[string]struct{})
	for _, line := range strings.Split(commonPasswordList, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set[strings.ToLower(line)] = struct{}{}
	}
	return set
}()

var nonWord = regexp.MustCompile(`\W+`)

// UserAttributes are compared against a candidate password.
type UserAttributes struct {
	Email string
	Name  string
}

// PasswordValidator returns an error describing why password is rejected.
type PasswordValidator func(password string, attrs UserAttributes) error

// PasswordPolicy runs its validators in order.
type PasswordPolicy []PasswordValidator

// Validate returns every message produced by the policy.
func (p PasswordPolicy) Validate(password string, attrs UserAttributes) []string {
	var msgs []string
	for _, v := range p {
		if err := v(password, attrs); err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	return msgs
}

// DefaultPolicy accepts passwords of reasonable length that are not
// numeric, common, or derived from the user's own attributes.
func DefaultPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinimumLength(minPasswordLength),
		NotNumeric,
		NotCommon,
		NotSimilarToAttributes,
	}
}

// StrictPolicy adds length bounds and character-class requirements.
func StrictPolicy() PasswordPolicy {
	return append(DefaultPolicy(),
		MinimumLength(strictMinPasswordLength),
		MaximumLength(maxPasswordLength),
		CharacterClasses,
	)
}

// PolicyByName resolves a configured policy name.
func PolicyByName(name string) (PasswordPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyDefault:
		return DefaultPolicy(), nil
	case PolicyStrict:
		return StrictPolicy(), nil
	default:
		return nil, fmt.Errorf("unknown password policy %q", name)
	}
}

// MinimumLength rejects passwords shorter than n characters.
func MinimumLength(n int) PasswordValidator {
	return func(password string, _ UserAttributes) error {
		if utf8.RuneCountInString(password) < n {
			return fmt.Errorf("This password is too short. It must contain at least %d characters.", n)
		}
		return nil
	}
}

// MaximumLength rejects passwords longer than n characters.
func MaximumLength(n int) PasswordValidator {
	return func(password string, _ UserAttributes) error {
		if utf8.RuneCountInString(password) > n {
			return fmt.Errorf("This password is too long. It must contain at most %d characters.", n)
		}
		return nil
	}
}

// NotNumeric rejects passwords made only of digits.
func NotNumeric(password string, _ UserAttributes) error {
	if password == "" {
		return nil
	}
	for _, r := range password {
		if !unicode.IsDigit(r) {
			return nil
		}
	}
	return errors.New("This password is entirely numeric.")
}

// NotCommon rejects passwords found in the embedded common list.
func NotCommon(password string, _ UserAttributes) error {
	if _, ok := commonPasswords[strings.ToLower(strings.TrimSpace(password))]; ok {
		return errors.New("This password is too common.")
	}
	return nil
}

// NotSimilarToAttributes rejects passwords too close to the email or name.
func NotSimilarToAttributes(password string, attrs UserAttributes) error {
	if password == "" {
		return nil
	}
	lowered := strings.ToLower(password)
	checks := []struct {
		label string
		value string
	}{
		{"email address", attrs.Email},
		{"name", attrs.Name},
	}
	for _, check := range checks {
		if check.value == "" {
			continue
		}
		value := strings.ToLower(check.value)
		parts := append(nonWord.Split(value, -1), value)
		for _, part := range parts {
			if part == "" || exceedsLengthRatio(lowered, part) {
				continue
			}
			if quickRatio(lowered, part) >= maxSimilarity {
				return fmt.Errorf("The password is too similar to the %s.", check.label)
			}
		}
	}
	return nil
}

// exceedsLengthRatio skips attribute parts so short relative to the password
// that they could never reach the similarity threshold.
func exceedsLengthRatio(password, value string) bool {
	pwdLen := len(password)
	valueLen := len(value)
	lengthBound := maxSimilarity / 2 * float64(pwdLen)
	return pwdLen >= 10*valueLen && float64(valueLen) < lengthBound
}

// quickRatio is an upper bound on sequence similarity based on the shared
// character multiset: 2*matches / (len(a)+len(b)).
func quickRatio(a, b string) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 1
	}
	avail := make(map[byte]int, len(b))
	for i := 0; i < len(b); i++ {
		avail[b[i]]++
	}
	matches := 0
	for i := 0; i < len(a); i++ {
		if avail[a[i]] > 0 {
			avail[a[i]]--
			matches++
		}
	}
	return 2 * float64(matches) / float64(total)
}

// CharacterClasses requires upper case, lower case, a digit and a symbol.
func CharacterClasses(password string, _ UserAttributes) error {
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit || !hasSpecial {
		return errors.New("Password must contain at least one uppercase letter, one lowercase letter, one number, and one special character.")
	}
	return nil
}

// ValidatePassword applies the strict policy without user attributes.
func ValidatePassword(password string) error {
	if msgs := StrictPolicy().Validate(password, UserAttributes{}); len(msgs) > 0 {
		return errors.New(msgs[0])
	}
	return nil
}
