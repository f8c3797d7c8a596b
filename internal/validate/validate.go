// Package validate holds the pure pre-enqueue checks for recipient phone
// numbers and message bodies.
package validate

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxBodyLength is the delivery channel's hard message limit.
const MaxBodyLength = 4096

var (
	ErrPhoneRequired = errors.New("phone is required")
	ErrBodyRequired  = errors.New("message body is required")
	ErrBodyTooLong   = fmt.Errorf("message body exceeds %d characters", MaxBodyLength)
)

// Digits strips everything but decimal digits from a phone number.
func Digits(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Phone validates that a recipient phone carries 10 to 15 digits once
// formatting characters are stripped.
func Phone(phone string) error {
	if strings.TrimSpace(phone) == "" {
		return ErrPhoneRequired
	}
	n := len(Digits(phone))
	if n < 10 {
		return fmt.Errorf("phone %q has %d digits, need at least 10", phone, n)
	}
	if n > 15 {
		return fmt.Errorf("phone %q has %d digits, need at most 15", phone, n)
	}
	return nil
}

// NormalizePhone validates and canonicalizes a phone number to digits only,
// adding the Brazilian country code to bare 10/11 digit local numbers.
func NormalizePhone(phone string) (string, error) {
	if err := Phone(phone); err != nil {
		return "", err
	}
	digits := Digits(phone)
	switch {
	case len(digits) == 10 || len(digits) == 11:
		return "55" + digits, nil
	default:
		return digits, nil
	}
}

// Body validates a message body: non-blank and within the channel limit.
func Body(body string) error {
	if utf8.RuneCountInString(body) > MaxBodyLength {
		return ErrBodyTooLong
	}
	if strings.TrimSpace(body) == "" {
		return ErrBodyRequired
	}
	return nil
}
