// Package theme derives a provider-branded color palette from a single base
// color. Resellers supply one or two hex colors; the shades the UI chrome
// needs are computed from them in HSV space.
package theme

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Color is an RGBA color with 8-bit channels.
type Color struct {
	R, G, B, A uint8
}

// Hex returns the color as "#RRGGBB". The alpha channel is not encoded.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// HexRGBA returns the color as "#RRGGBBAA".
func (c Color) HexRGBA() string {
	return fmt.Sprintf("#%02X%02X%02X%02X", c.R, c.G, c.B, c.A)
}

var hexColorRe = regexp.MustCompile(`^[0-9A-Fa-f]{6}$`)

// IsValidHex reports whether s is a 6-digit hex color, with or without a
// leading '#'.
func IsValidHex(s string) bool {
	return hexColorRe.MatchString(strings.TrimPrefix(s, "#"))
}

// ParseHex parses "#RRGGBB" (or "RRGGBB") into a fully opaque Color.
func ParseHex(s string) (Color, error) {
	clean := strings.TrimPrefix(s, "#")
	if !hexColorRe.MatchString(clean) {
		return Color{}, fmt.Errorf("theme: invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(clean, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("theme: parsing hex color %q: %w", s, err)
	}
	return Color{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 0xFF,
	}, nil
}

// Palette holds the shade set derived from one base color. Shade names follow
// the material-style weights the original branding used.
type Palette struct {
	Shade100        Color // lighter
	Shade100Alpha50 Color // lighter, 50% alpha
	Shade300        Color // medium-light
	Shade500        Color // base
	Shade700        Color // darker
}

// PaletteFromHex derives the full palette from a hex base color. Returns nil
// for empty or invalid input; branding is best-effort, never an error.
func PaletteFromHex(baseHex string) *Palette {
	if baseHex == "" {
		return nil
	}
	base, err := ParseHex(baseHex)
	if err != nil {
		return nil
	}
	lighter := Lighter(base)
	return &Palette{
		Shade100:        lighter,
		Shade100Alpha50: Color{R: lighter.R, G: lighter.G, B: lighter.B, A: 128},
		Shade300:        MediumLight(base),
		Shade500:        base,
		Shade700:        Darker(base),
	}
}

// Lighter produces the 100 shade: saturation scaled to 30%, value scaled by
// 1.8 and capped at 0.95.
func Lighter(c Color) Color {
	h, s, v := rgbToHSV(c)
	return hsvToRGB(h, s*0.3, min(v*1.8, 0.95))
}

// MediumLight produces the 300 shade: saturation scaled to 60%, value scaled
// by 1.4 and capped at 0.85.
func MediumLight(c Color) Color {
	h, s, v := rgbToHSV(c)
	return hsvToRGB(h, s*0.6, min(v*1.4, 0.85))
}

// Darker produces the 700 shade: saturation scaled by 1.2 (capped at 1.0),
// value scaled to 60%.
func Darker(c Color) Color {
	h, s, v := rgbToHSV(c)
	return hsvToRGB(h, min(s*1.2, 1.0), v*0.6)
}

// rgbToHSV converts to hue (degrees, 0-360), saturation and value (0-1).
func rgbToHSV(c Color) (h, s, v float64) {
	r := float64(c.R) / 255
	g := float64(c.G) / 255
	b := float64(c.B) / 255

	maxC := max(r, max(g, b))
	minC := min(r, min(g, b))
	delta := maxC - minC

	v = maxC
	if maxC > 0 {
		s = delta / maxC
	}
	if delta == 0 {
		return 0, s, v
	}
	switch maxC {
	case r:
		h = 60 * ((g - b) / delta)
	case g:
		h = 60 * ((b-r)/delta + 2)
	default:
		h = 60 * ((r-g)/delta + 4)
	}
	if h < 0 {
		h += 360
	}
	return h, s, v
}

// hsvToRGB converts hue (degrees), saturation and value (0-1) to a fully
// opaque Color.
func hsvToRGB(h, s, v float64) Color {
	if s <= 0 {
		g := uint8(v*255 + 0.5)
		return Color{R: g, G: g, B: g, A: 0xFF}
	}
	h = h / 60
	i := int(h) % 6
	f := h - float64(int(h))
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	var r, g, b float64
	switch i {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}
	return Color{
		R: uint8(r*255 + 0.5),
		G: uint8(g*255 + 0.5),
		B: uint8(b*255 + 0.5),
		A: 0xFF,
	}
}
