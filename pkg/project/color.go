package project

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/matzehuels/kitbash/pkg/errors"
)

// ParseColor parses "#RGB", "#RGBA", "#RRGGBB" or "#RRGGBBAA" (leading '#'
// optional). Colours without alpha are opaque. The empty string is
// transparent.
func ParseColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if hex == "" {
		return color.NRGBA{}, nil
	}
	var v [4]uint8
	v[3] = 255
	switch len(hex) {
	case 3, 4:
		for i := range hex {
			d, ok := hexDigit(hex[i])
			if !ok {
				return color.NRGBA{}, errors.New(errors.ErrCodeInvalidInput, "invalid colour %q", s)
			}
			v[i] = d * 17
		}
	case 6, 8:
		for i := 0; i < len(hex); i += 2 {
			hi, ok1 := hexDigit(hex[i])
			lo, ok2 := hexDigit(hex[i+1])
			if !ok1 || !ok2 {
				return color.NRGBA{}, errors.New(errors.ErrCodeInvalidInput, "invalid colour %q", s)
			}
			v[i/2] = hi<<4 | lo
		}
	default:
		return color.NRGBA{}, errors.New(errors.ErrCodeInvalidInput, "invalid colour %q", s)
	}
	return color.NRGBA{R: v[0], G: v[1], B: v[2], A: v[3]}, nil
}

// FormatColor renders c as "#RRGGBBAA".
func FormatColor(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

func hexDigit(c byte) (uint8, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
