// Package normalize maps raw extracted strings onto canonical phone and email forms.
// It is a best-effort pass, not validation: every function is total.
package normalize

import (
	"strings"

	"github.com/joseph-ayodele/cardscan/internal/entity"
)

// Phone returns an E.164-looking form of raw when it can, else the trimmed input.
func Phone(raw string) string {
	trimmed := strings.TrimSpace(raw)
	digits := onlyDigits(trimmed)

	switch {
	case len(digits) == 11 && digits[0] == '1':
		return "+" + digits
	case len(digits) == 10:
		return "+1" + digits
	case strings.HasPrefix(trimmed, "+"):
		return "+" + digits
	}
	return trimmed
}

// Email trims and lowercases raw.
func Email(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Candidate returns a copy of c with phone and email normalized. Nil fields stay nil.
func Candidate(c entity.Candidate) entity.Candidate {
	if c.Phone != nil {
		p := Phone(*c.Phone)
		c.Phone = &p
	}
	if c.Email != nil {
		e := Email(*c.Email)
		c.Email = &e
	}
	return c
}

func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
