package config

import "strings"

// HSV is a color in 8-bit OpenCV scale: H in [0,180], S and V in [0,255].
type HSV struct{ H, S, V uint8 }

// ColorRange is one selectable cue color and its inclusive HSV bounds.
type ColorRange struct {
	Name  string
	Lower HSV
	Upper HSV
}

// Contains reports whether c lies inside the inclusive range.
func (r ColorRange) Contains(c HSV) bool {
	return c.H >= r.Lower.H && c.H <= r.Upper.H &&
		c.S >= r.Lower.S && c.S <= r.Upper.S &&
		c.V >= r.Lower.V && c.V <= r.Upper.V
}

// Palette lists the cue colors in enumeration order. Order matters: the
// classifier keeps the first color on equal pixel counts.
var Palette = []ColorRange{
	{Name: "white", Lower: HSV{0, 0, 200}, Upper: HSV{180, 30, 255}},
	{Name: "gray", Lower: HSV{0, 0, 50}, Upper: HSV{180, 50, 150}},
	{Name: "yellow", Lower: HSV{20, 100, 100}, Upper: HSV{30, 255, 255}},
	{Name: "orange", Lower: HSV{10, 100, 100}, Upper: HSV{20, 255, 255}},
	{Name: "pink", Lower: HSV{140, 50, 50}, Upper: HSV{170, 255, 255}},
	{Name: "green", Lower: HSV{40, 50, 50}, Upper: HSV{80, 255, 255}},
}

// LookupColor finds a palette entry by case-insensitive name.
func LookupColor(name string) (ColorRange, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, c := range Palette {
		if c.Name == n {
			return c, true
		}
	}
	return ColorRange{}, false
}

// ColorNames returns the palette names in enumeration order.
func ColorNames() []string {
	out := make([]string, len(Palette))
	for i, c := range Palette {
		out[i] = c.Name
	}
	return out
}
