package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// StringConstraints bounds a text value. Lengths count runes; zero means no
// bound.
type StringConstraints struct {
	MinLength  int
	MaxLength  int
	AllowEmpty bool
	TrimSpace  bool
}

// String checks s against c and returns it, trimmed when c.TrimSpace is set.
func String(s string, c StringConstraints) (string, error) {
	if c.TrimSpace {
		s = strings.TrimSpace(s)
	}
	if s == "" {
		if c.AllowEmpty {
			return s, nil
		}
		return "", ErrEmpty
	}
	n := utf8.RuneCountInString(s)
	if c.MinLength > 0 && n < c.MinLength {
		return "", fmt.Errorf("%w: %d < %d", ErrTooShort, n, c.MinLength)
	}
	if c.MaxLength > 0 && n > c.MaxLength {
		return "", fmt.Errorf("%w: %d > %d", ErrTooLong, n, c.MaxLength)
	}
	return s, nil
}
