// Package detect turns a captured frame into a colored cue event and an
// intermission flag.
package detect

import (
	"context"
	"image"
	"log/slog"

	"github.com/disintegration/imaging"

	"github.com/soocke/duck-haptics-go/assets"
	"github.com/soocke/duck-haptics-go/config"
	"github.com/soocke/duck-haptics-go/domain/capture"
)

// Result is one classification. Color is empty when no cue was recognised.
type Result struct {
	Color    string
	Position image.Point
	Score    float64
	Found    bool // a template window met the threshold, colored or not
}

// Options tunes the detector. Zero thresholds fall back to the defaults.
type Options struct {
	Threshold             float64
	IntermissionThreshold float64
	MinColorAreaFraction  float64
	Stride                int
	Refine                bool
	Workers               int
	Palette               []config.ColorRange
}

// OptionsFromConfig copies the detection settings out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return Options{
		Threshold:             cfg.DetectionThreshold,
		IntermissionThreshold: cfg.IntermissionThreshold,
		MinColorAreaFraction:  cfg.MinColorAreaFraction,
		Stride:                cfg.Stride,
		Refine:                cfg.Refine,
		Palette:               config.Palette,
	}
}

// Detector classifies frames against the template store. It holds no
// mutable state and is safe for concurrent use.
type Detector struct {
	store  *assets.Store
	opts   Options
	logger *slog.Logger
}

// New returns a Detector. A nil store disables both capabilities.
func New(logger *slog.Logger, store *assets.Store, opts Options) *Detector {
	def := config.DefaultConfig()
	if opts.Threshold <= 0 {
		opts.Threshold = def.DetectionThreshold
	}
	if opts.IntermissionThreshold <= 0 {
		opts.IntermissionThreshold = def.IntermissionThreshold
	}
	if opts.MinColorAreaFraction < 0 {
		opts.MinColorAreaFraction = def.MinColorAreaFraction
	}
	if len(opts.Palette) == 0 {
		opts.Palette = config.Palette
	}
	if store == nil {
		store = &assets.Store{}
	}
	return &Detector{store: store, opts: opts, logger: logger}
}

// CanDetectEvents reports whether a cue template is loaded.
func (d *Detector) CanDetectEvents() bool { return d.store.Cue != nil }

// CanDetectIntermission reports whether an intermission template is loaded.
func (d *Detector) CanDetectIntermission() bool { return d.store.Intermission != nil }

// DetectEvent locates the cue template in frame and classifies the color of
// the matched window. A cancelled ctx yields an empty Result.
func (d *Detector) DetectEvent(ctx context.Context, frame *image.RGBA) Result {
	tmpl := d.store.Cue
	if tmpl == nil || frame == nil {
		return Result{}
	}
	m := capture.MatchTemplateContext(ctx, frame, tmpl, capture.NCCOptions{
		Threshold: d.opts.Threshold,
		Stride:    d.opts.Stride,
		Refine:    d.opts.Refine,
		Workers:   d.opts.Workers,
	})
	res := Result{Position: image.Pt(m.X, m.Y), Score: m.Score, Found: m.Found}
	if !m.Found {
		return res
	}
	roi := imaging.Crop(frame, image.Rect(m.X, m.Y, m.X+tmpl.W, m.Y+tmpl.H))
	minPixels := d.opts.MinColorAreaFraction * float64(tmpl.Area())
	color, count := ClassifyColor(roi, d.opts.Palette, minPixels)
	res.Color = color
	if d.logger != nil {
		d.logger.Debug("detect.match", "x", m.X, "y", m.Y, "score", m.Score, "color", color, "pixels", count, "dur", m.Dur)
	}
	return res
}

// DetectIntermission reports whether the intermission template scores at or
// above the intermission threshold anywhere in frame.
func (d *Detector) DetectIntermission(ctx context.Context, frame *image.RGBA) bool {
	tmpl := d.store.Intermission
	if tmpl == nil || frame == nil {
		return false
	}
	m := capture.MatchTemplateContext(ctx, frame, tmpl, capture.NCCOptions{
		Threshold: d.opts.IntermissionThreshold,
		Stride:    d.opts.Stride,
		Refine:    d.opts.Refine,
		Workers:   d.opts.Workers,
	})
	return m.Found
}

// ClassifyColor counts the pixels of roi inside each palette range and
// returns the color with the largest count when that count exceeds
// minPixels. Equal counts keep the earlier palette entry.
func ClassifyColor(roi *image.NRGBA, palette []config.ColorRange, minPixels float64) (string, int) {
	if roi == nil || len(palette) == 0 {
		return "", 0
	}
	counts := make([]int, len(palette))
	b := roi.Bounds()
	for y := 0; y < b.Dy(); y++ {
		row := roi.Pix[y*roi.Stride : y*roi.Stride+b.Dx()*4]
		for x := 0; x < b.Dx(); x++ {
			hsv := RGBToHSV(row[x*4], row[x*4+1], row[x*4+2])
			for i, c := range palette {
				if c.Contains(hsv) {
					counts[i]++
				}
			}
		}
	}
	best, bestCount := -1, 0
	for i, n := range counts {
		if best < 0 || n > bestCount {
			best, bestCount = i, n
		}
	}
	if float64(bestCount) > minPixels {
		return palette[best].Name, bestCount
	}
	return "", bestCount
}
