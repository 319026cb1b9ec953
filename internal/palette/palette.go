// Package palette turns colour values and colour names into the hex strings
// the signal service expects ("#RRGGBB", upper case).
package palette

import (
	"errors"
	"fmt"
	"image/color"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
)

var ErrUnknownColor = errors.New("unknown color")

// Hex formats c as "#RRGGBB". Alpha is dropped; a fully transparent colour is black.
func Hex(c color.Color) string {
	cf, ok := colorful.MakeColor(c)
	if !ok {
		return "#000000"
	}
	return strings.ToUpper(cf.Clamped().Hex())
}

// Named looks up an SVG 1.1 colour name. Case, spaces and underscores are ignored.
func Named(name string) (color.RGBA, bool) {
	key := strings.ToLower(name)
	key = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(key)
	c, ok := colornames.Map[key]
	return c, ok
}

// Parse normalises a hex string ("#abc", "#aabbcc") or a colour name.
func Parse(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		cf, err := colorful.Hex(s)
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrUnknownColor, s)
		}
		return strings.ToUpper(cf.Hex()), nil
	}
	if c, ok := Named(s); ok {
		return Hex(c), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownColor, s)
}

// MustParse is Parse for package level constants.
func MustParse(s string) string {
	h, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return h
}
