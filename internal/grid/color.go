package grid

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// hexColorPattern matches #RRGGBB, case insensitive.
var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// ErrInvalidColor is returned when a color is not in #RRGGBB format.
var ErrInvalidColor = errors.New("invalid hex color format, expected #RRGGBB")

// Color is a 24-bit RGB value.
type Color uint32

// White is the color of every cell that has never been painted.
const White Color = 0xFFFFFF

// ParseColor parses a #RRGGBB string.
func ParseColor(s string) (Color, error) {
	if !hexColorPattern.MatchString(s) {
		return 0, fmt.Errorf("%w: got %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "#"), 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidColor, err)
	}
	return Color(v), nil
}

// Hex formats the color as lowercase #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%06x", uint32(c)&0xFFFFFF)
}

// RGB returns the red, green and blue components.
func (c Color) RGB() (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// MarshalText implements encoding.TextMarshaler so colors travel as "#rrggbb".
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Color) UnmarshalText(b []byte) error {
	v, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
