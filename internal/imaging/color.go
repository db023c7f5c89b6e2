package imaging

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// DefaultBackground is the background used when a slide declares none.
var DefaultBackground = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

// ParseBackground parses a slide background color.
//
// Scanners record the background as six hex digits without a leading '#'
// (e.g. "FFFFFF"), while configuration files usually include it. Both forms
// are accepted, as is the three digit shorthand.
//
// Returns:
//   - color.NRGBA: The parsed color, always fully opaque.
//   - error: Non-nil if the string is empty or not a valid hex color.
func ParseBackground(hex string) (color.NRGBA, error) {
	s := strings.TrimSpace(hex)
	if s == "" {
		return color.NRGBA{}, fmt.Errorf("empty color string")
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	if len(s) != 4 && len(s) != 7 {
		return color.NRGBA{}, fmt.Errorf("invalid background color %q: want 3 or 6 hex digits", hex)
	}

	c, err := colorful.Hex(strings.ToLower(s))
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid background color %q: %w", hex, err)
	}

	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

// HexColor formats a color as "#rrggbb", dropping alpha.
func HexColor(c color.Color) string {
	cf, _ := colorful.MakeColor(c)
	return cf.Hex()
}

// Flatten composites img onto an opaque background of the given color.
//
// Region reads return transparent pixels outside the scanned area; viewers
// expect those to show the slide background instead. The result has the same
// size as img with its origin at (0,0).
func Flatten(img image.Image, bg color.NRGBA) *image.NRGBA {
	b := img.Bounds()
	bg.A = 255
	dst := imaging.New(b.Dx(), b.Dy(), bg)
	return imaging.Overlay(dst, img, image.Pt(0, 0), 1.0)
}
