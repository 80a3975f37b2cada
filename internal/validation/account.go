package validation

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxEmailLength = 254
	maxNameLength  = 60
	maxURLLength   = 2048
)

var emailRegex = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9](?:[A-Za-z0-9\-]*[A-Za-z0-9])?(?:\.[A-Za-z0-9](?:[A-Za-z0-9\-]*[A-Za-z0-9])?)*\.[A-Za-z]{2,}$`)

// ValidateEmail checks format and length of an email address.
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("This field is required.")
	}
	if len(email) > maxEmailLength || !emailRegex.MatchString(email) {
		return errors.New("Enter a valid email address.")
	}
	return nil
}

// NormalizeEmail lowercases and trims an address before storage or lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateName requires a non-blank display name of at most 60 characters.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("This field is required.")
	}
	if n := utf8.RuneCountInString(name); n > maxNameLength {
		return fmt.Errorf("Ensure this value has at most %d characters (it has %d).", maxNameLength, n)
	}
	return nil
}

// ValidateURL accepts an empty value or an absolute http(s) URL.
func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if len(raw) > maxURLLength {
		return fmt.Errorf("Ensure this value has at most %d characters.", maxURLLength)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("Enter a valid URL.")
	}
	return nil
}
