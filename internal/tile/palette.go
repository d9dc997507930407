package tile

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

const (
	// ColorsPerPalette is the number of entries in one hardware palette.
	ColorsPerPalette = 16
	// PaletteCount is the number of palette slots a tileset pair addresses.
	PaletteCount = 16

	primaryPaletteCount = 6
	usedPaletteCount    = 13
)

// Palette is one 16-color hardware palette. Entry 0 is transparent when drawn.
type Palette struct {
	Colors [ColorsPerPalette]color.RGBA
}

// BlackPalette returns a palette with every entry opaque black.
func BlackPalette() Palette {
	var p Palette
	for i := range p.Colors {
		p.Colors[i] = color.RGBA{A: 0xFF}
	}
	return p
}

// ParseHexColor parses "#RRGGBB" (the leading '#' is optional).
func ParseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xFF}, nil
}

// Hex formats a color as "#rrggbb".
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// CombinePalettes lays out the sixteen palette slots of a tileset pair:
// primary palettes fill 0-5, secondary palettes fill 6-12 and 13-15 are black.
// Missing entries are black.
func CombinePalettes(primary, secondary []Palette) []Palette {
	combined := make([]Palette, 0, PaletteCount)
	for i := 0; i < primaryPaletteCount; i++ {
		if i < len(primary) {
			combined = append(combined, primary[i])
		} else {
			combined = append(combined, BlackPalette())
		}
	}
	for i := primaryPaletteCount; i < usedPaletteCount; i++ {
		j := i - primaryPaletteCount
		if j < len(secondary) {
			combined = append(combined, secondary[j])
		} else {
			combined = append(combined, BlackPalette())
		}
	}
	for len(combined) < PaletteCount {
		combined = append(combined, BlackPalette())
	}
	return combined
}
