package detect

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/soocke/duck-haptics-go/assets"
	"github.com/soocke/duck-haptics-go/config"
	"github.com/soocke/duck-haptics-go/domain/capture"
)

var (
	yellowRGB = color.RGBA{255, 220, 0, 255}
	greenRGB  = color.RGBA{0, 200, 0, 255}
	blueRGB   = color.RGBA{100, 100, 255, 255}
	borderRGB = color.RGBA{30, 30, 30, 255}
)

// synthFrame creates a uniform RGBA image.
func synthFrame(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// paintCue draws a 10x10 cue at (ox,oy): a dark border around a 6x6 fill.
func paintCue(img *image.RGBA, ox, oy int, fill color.RGBA) {
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			c := borderRGB
			if x >= 2 && x < 8 && y >= 2 && y < 8 {
				c = fill
			}
			img.SetRGBA(ox+x, oy+y, c)
		}
	}
}

func cueTemplate() *capture.Template {
	img := synthFrame(10, 10, borderRGB)
	paintCue(img, 0, 0, yellowRGB)
	return capture.NewTemplate(img)
}

func newDetector(store *assets.Store) *Detector {
	return New(nil, store, OptionsFromConfig(config.DefaultConfig()))
}

func TestRGBToHSV_OpenCVScale(t *testing.T) {
	cases := []struct {
		r, g, b uint8
		want    config.HSV
	}{
		{255, 0, 0, config.HSV{H: 0, S: 255, V: 255}},
		{0, 255, 0, config.HSV{H: 60, S: 255, V: 255}},
		{0, 0, 255, config.HSV{H: 120, S: 255, V: 255}},
		{0, 0, 0, config.HSV{H: 0, S: 0, V: 0}},
		{200, 200, 200, config.HSV{H: 0, S: 0, V: 200}},
		{255, 220, 0, config.HSV{H: 26, S: 255, V: 255}},
		{255, 0, 1, config.HSV{H: 0, S: 255, V: 255}},
	}
	for _, tc := range cases {
		if got := RGBToHSV(tc.r, tc.g, tc.b); got != tc.want {
			t.Fatalf("RGBToHSV(%d,%d,%d)=%v want %v", tc.r, tc.g, tc.b, got, tc.want)
		}
	}
}

func TestDetectEvent_ClassifiesColor(t *testing.T) {
	d := newDetector(&assets.Store{Cue: cueTemplate()})
	for _, tc := range []struct {
		fill color.RGBA
		want string
	}{{yellowRGB, "yellow"}, {greenRGB, "green"}} {
		frame := synthFrame(60, 40, color.RGBA{128, 128, 128, 255})
		paintCue(frame, 20, 15, tc.fill)
		res := d.DetectEvent(context.Background(), frame)
		if !res.Found || res.Color != tc.want {
			t.Fatalf("want %s, got %+v", tc.want, res)
		}
		if res.Position != image.Pt(20, 15) {
			t.Fatalf("unexpected position %v", res.Position)
		}
	}
}

func TestDetectEvent_DefaultCoarseScanRefinesOffset(t *testing.T) {
	opts := OptionsFromConfig(config.DefaultConfig())
	if opts.Stride < 2 || !opts.Refine {
		t.Fatalf("expected coarse default scan, got %+v", opts)
	}
	d := New(nil, &assets.Store{Cue: cueTemplate()}, opts)
	frame := synthFrame(60, 40, color.RGBA{128, 128, 128, 255})
	paintCue(frame, 22, 13, yellowRGB)
	res := d.DetectEvent(context.Background(), frame)
	if res.Color != "yellow" || res.Position != image.Pt(22, 13) {
		t.Fatalf("want yellow at (22,13), got %+v", res)
	}
}

func TestDetectEvent_CancelledContext(t *testing.T) {
	d := newDetector(&assets.Store{Cue: cueTemplate()})
	frame := synthFrame(60, 40, color.RGBA{128, 128, 128, 255})
	paintCue(frame, 20, 15, yellowRGB)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if res := d.DetectEvent(ctx, frame); res.Found || res.Color != "" {
		t.Fatalf("cancelled detection must be empty, got %+v", res)
	}
}

func TestDetectEvent_UnknownColorIsNone(t *testing.T) {
	d := newDetector(&assets.Store{Cue: cueTemplate()})
	frame := synthFrame(60, 40, color.RGBA{128, 128, 128, 255})
	paintCue(frame, 5, 5, blueRGB)
	res := d.DetectEvent(context.Background(), frame)
	if !res.Found {
		t.Fatalf("shape should still match, got %+v", res)
	}
	if res.Color != "" {
		t.Fatalf("blue is not in the palette, got %q", res.Color)
	}
}

func TestDetectEvent_NoTemplate(t *testing.T) {
	d := newDetector(&assets.Store{})
	frame := synthFrame(60, 40, color.RGBA{128, 128, 128, 255})
	paintCue(frame, 20, 15, yellowRGB)
	if res := d.DetectEvent(context.Background(), frame); res.Color != "" || res.Found {
		t.Fatalf("detection must be disabled, got %+v", res)
	}
	if d.CanDetectEvents() {
		t.Fatal("CanDetectEvents should be false")
	}
}

func TestDetectEvent_NoCueInFrame(t *testing.T) {
	d := newDetector(&assets.Store{Cue: cueTemplate()})
	if res := d.DetectEvent(context.Background(), synthFrame(60, 40, color.RGBA{90, 90, 90, 255})); res.Found || res.Color != "" {
		t.Fatalf("expected none, got %+v", res)
	}
}

func TestDetectIntermission(t *testing.T) {
	banner := synthFrame(12, 6, color.RGBA{10, 10, 10, 255})
	for x := 0; x < 12; x += 2 {
		for y := 0; y < 6; y++ {
			banner.SetRGBA(x, y, color.RGBA{240, 240, 240, 255})
		}
	}
	d := newDetector(&assets.Store{Intermission: capture.NewTemplate(banner)})

	frame := synthFrame(50, 30, color.RGBA{128, 128, 128, 255})
	if d.DetectIntermission(context.Background(), frame) {
		t.Fatal("no banner present")
	}
	for y := 0; y < 6; y++ {
		for x := 0; x < 12; x++ {
			frame.SetRGBA(30+x, 20+y, banner.RGBAAt(x, y))
		}
	}
	if !d.DetectIntermission(context.Background(), frame) {
		t.Fatal("banner should be detected")
	}
	if newDetector(nil).DetectIntermission(context.Background(), frame) {
		t.Fatal("without a template intermission is always false")
	}
}

func TestClassifyColor_TiesKeepPaletteOrder(t *testing.T) {
	roi := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for x := 0; x < 4; x++ {
		roi.SetNRGBA(x, 0, color.NRGBA{255, 255, 255, 255})
		roi.SetNRGBA(x, 1, color.NRGBA{100, 100, 100, 255})
	}
	if c, n := ClassifyColor(roi, config.Palette, 0); c != "white" || n != 4 {
		t.Fatalf("expected white on tie, got %s %d", c, n)
	}
	reversed := []config.ColorRange{config.Palette[1], config.Palette[0]}
	if c, _ := ClassifyColor(roi, reversed, 0); c != "gray" {
		t.Fatalf("expected first listed color, got %s", c)
	}
	if c, _ := ClassifyColor(roi, config.Palette, 4); c != "" {
		t.Fatalf("count must strictly exceed minimum, got %s", c)
	}
}
