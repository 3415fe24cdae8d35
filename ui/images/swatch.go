package images

import "image/color"

var swatches = map[string]color.NRGBA{
	"white":  {R: 0xf8, G: 0xfa, B: 0xfc, A: 0xff},
	"gray":   {R: 0x94, G: 0xa3, B: 0xb8, A: 0xff},
	"yellow": {R: 0xfa, G: 0xcc, B: 0x15, A: 0xff},
	"orange": {R: 0xf9, G: 0x73, B: 0x16, A: 0xff},
	"pink":   {R: 0xec, G: 0x48, B: 0x99, A: 0xff},
	"green":  {R: 0x22, G: 0xc5, B: 0x5e, A: 0xff},
}

// Swatch returns the display color for a cue color name. Unknown names
// get the accent green.
func Swatch(name string) color.NRGBA {
	if c, ok := swatches[name]; ok {
		return c
	}
	return color.NRGBA{R: 0x10, G: 0xb9, B: 0x81, A: 0xff}
}
