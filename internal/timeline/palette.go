// Package timeline holds the presentation-independent rules for a user's
// event timeline: the category color palette, score bands, sorting and
// filtering, per-category statistics and the plain-text export.
//
// Everything here is pure: functions take slices and return new ones.
package timeline

import (
	"slices"
	"strings"
)

// Palette is the fixed set of category colors, in assignment order.
var Palette = []string{
	"#2563eb", // blue
	"#16a34a", // green
	"#dc2626", // red
	"#ca8a04", // yellow
	"#9333ea", // purple
	"#0891b2", // cyan
	"#ea580c", // orange
	"#be185d", // pink
	"#4f46e5", // indigo
	"#059669", // emerald
}

// NormalizeColor lower-cases and trims a hex color. It reports false when the
// result is not part of the palette.
func NormalizeColor(color string) (string, bool) {
	c := strings.ToLower(strings.TrimSpace(color))
	return c, slices.Contains(Palette, c)
}

// NextAvailableColor returns the first palette color not in used, or the
// first palette color once all are taken.
func NextAvailableColor(used []string) string {
	for _, c := range Palette {
		if !slices.Contains(used, c) {
			return c
		}
	}
	return Palette[0]
}
