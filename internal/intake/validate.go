package intake

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/m3rciful/pestbot/internal/domain"
)

const (
	minPhoneDigits   = 10
	maxPhoneDigits   = 15
	minAddressLength = 5
	maxNameLength    = 128
)

// NormalizePhone strips every non-digit and checks the remaining digit count.
func NormalizePhone(raw string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if n := len(digits); n < minPhoneDigits || n > maxPhoneDigits {
		return "", &domain.ValidationError{Field: "phone", Reason: "expected 10-15 digits"}
	}
	return digits, nil
}

// NormalizeAddress trims whitespace and requires at least five characters.
func NormalizeAddress(raw string) (string, error) {
	addr := strings.TrimSpace(raw)
	if utf8.RuneCountInString(addr) < minAddressLength {
		return "", &domain.ValidationError{Field: "address", Reason: "too short"}
	}
	return addr, nil
}

// NormalizeName trims whitespace and rejects empty or control-only names.
func NormalizeName(raw string) (string, error) {
	name := strings.TrimFunc(raw, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	})
	if name == "" {
		return "", &domain.ValidationError{Field: "name", Reason: "empty"}
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", &domain.ValidationError{Field: "name", Reason: "too long"}
	}
	return name, nil
}
