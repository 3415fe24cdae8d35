package detect

import (
	"math"

	"github.com/soocke/duck-haptics-go/config"
)

// RGBToHSV converts an 8-bit RGB triple to OpenCV's 8-bit HSV scale
// (H in [0,179] wrapping at 180, S and V in [0,255]).
func RGBToHSV(r, g, b uint8) config.HSV {
	rf, gf, bf := float64(r), float64(g), float64(b)
	v := math.Max(rf, math.Max(gf, bf))
	mn := math.Min(rf, math.Min(gf, bf))
	d := v - mn
	var s float64
	if v > 0 {
		s = d * 255 / v
	}
	var h float64
	if d > 0 {
		switch v {
		case rf:
			h = 60 * (gf - bf) / d
		case gf:
			h = 120 + 60*(bf-rf)/d
		default:
			h = 240 + 60*(rf-gf)/d
		}
		if h < 0 {
			h += 360
		}
	}
	hh := math.Round(h / 2)
	if hh >= 180 {
		hh = 0
	}
	return config.HSV{H: uint8(hh), S: uint8(math.Round(s)), V: uint8(v)}
}
