// Package haptics models per-player intensity and turns queued vibration
// events into a continuously modulated output level.
package haptics

import (
	"math"
	"time"
)

// Curve maps a player's intensity to the lifetime of a new vibration event.
type Curve struct {
	Min      time.Duration
	Max      time.Duration
	Exponent float64
}

// DefaultCurve is the 10s..20s curve with exponent 0.7.
var DefaultCurve = Curve{Min: 10 * time.Second, Max: 20 * time.Second, Exponent: 0.7}

// Duration returns Min + (1-i)^Exponent * (Max-Min), with i clamped to [0,1].
// Intensity 0 yields Max and intensity 1 yields Min.
func (c Curve) Duration(i float64) time.Duration {
	i = clamp01(i)
	span := (c.Max - c.Min).Seconds()
	secs := c.Min.Seconds() + math.Pow(1-i, c.Exponent)*span
	return time.Duration(secs * float64(time.Second))
}

// Envelope is a raised-cosine fade: 1 at x=0, 0 at x=1.
func Envelope(x float64) float64 {
	if x <= 0 {
		return 1
	}
	if x >= 1 {
		return 0
	}
	return 0.5 * (1 + math.Cos(math.Pi*x))
}

// Oscillation returns (sin(2*pi*f*t)+1)/2 for t seconds.
func Oscillation(t, freqHz float64) float64 {
	return (math.Sin(2*math.Pi*freqHz*t) + 1) / 2
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
