package chartsync

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

const (
	// ScatterAlpha is the fill alpha of scatter points.
	ScatterAlpha = 0.8
	// OverlayFillAlpha is the translucent fill alpha of overlay lines.
	OverlayFillAlpha = 0.2
)

// Color is an opaque RGB triple; alpha is applied at render time.
type Color struct {
	R, G, B uint8
}

// RGBA formats the color as a CSS rgba() string.
func (c Color) RGBA(alpha float64) string {
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", c.R, c.G, c.B, strconv.FormatFloat(alpha, 'f', -1, 64))
}

// Hex formats the color as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseColor accepts "#rrggbb", "rgb(r, g, b)" or "rgba(r, g, b, a)".
// The alpha component of rgba() is ignored.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	var c Color
	switch {
	case strings.HasPrefix(s, "#") && len(s) == 7:
		v, err := strconv.ParseUint(s[1:], 16, 32)
		if err != nil {
			return Color{}, fmt.Errorf("parse color %q: %w", s, err)
		}
		return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
	case strings.HasPrefix(s, "rgb"):
		open, closing := strings.IndexByte(s, '('), strings.IndexByte(s, ')')
		if open < 0 || closing < open {
			return Color{}, fmt.Errorf("parse color %q: malformed", s)
		}
		parts := strings.Split(s[open+1:closing], ",")
		if len(parts) < 3 {
			return Color{}, fmt.Errorf("parse color %q: want at least 3 components", s)
		}
		var rgb [3]uint8
		for i := 0; i < 3; i++ {
			v, err := strconv.ParseUint(strings.TrimSpace(parts[i]), 10, 8)
			if err != nil {
				return Color{}, fmt.Errorf("parse color %q: %w", s, err)
			}
			rgb[i] = uint8(v)
		}
		c = Color{R: rgb[0], G: rgb[1], B: rgb[2]}
		return c, nil
	}
	return Color{}, fmt.Errorf("parse color %q: unsupported format", s)
}

// Palette is an ordered list of series colors.
type Palette []Color

// DefaultPalette matches the colors the web app has always used.
var DefaultPalette = Palette{
	{54, 162, 235},  // blue
	{255, 99, 132},  // red
	{75, 192, 192},  // teal
	{255, 206, 86},  // yellow
	{153, 102, 255}, // purple
	{255, 159, 64},  // orange
	{199, 199, 199}, // grey
	{83, 102, 255},  // indigo
	{255, 99, 255},  // pink
	{99, 255, 132},  // green
}

// Index returns the palette slot of a dataset id. It depends only on the id,
// never on list position.
func (p Palette) Index(id string) int {
	if len(p) == 0 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return int(h.Sum32() % uint32(len(p)))
}

// ColorFor returns the color assigned to a dataset id.
func (p Palette) ColorFor(id string) Color {
	if len(p) == 0 {
		return DefaultPalette[DefaultPalette.Index(id)]
	}
	return p[p.Index(id)]
}
