package capture

import (
	"context"
	"errors"
	"image"
	"math"
	"testing"
	"time"
)

// patternValue is a non-flat luminance pattern used for templates.
func patternValue(x, y int) byte { return byte(20 + 30*((x*3+y*7)%5)) }

func grayRGBA(w, h int, base byte) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = base, base, base, 255
	}
	return img
}

func stamp(img *image.RGBA, ox, oy, w, h int) {
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := patternValue(x, y)
			i := img.PixOffset(ox+x, oy+y)
			img.Pix[i], img.Pix[i+1], img.Pix[i+2] = v, v, v
		}
	}
}

func patternTemplate(w, h int) *Template {
	img := grayRGBA(w, h, 0)
	stamp(img, 0, 0, w, h)
	return NewTemplate(img)
}

func TestNewTemplate_Stats(t *testing.T) {
	tmpl := patternTemplate(6, 5)
	if tmpl == nil || tmpl.W != 6 || tmpl.H != 5 || tmpl.Area() != 30 {
		t.Fatalf("unexpected template %+v", tmpl)
	}
	if tmpl.Std <= 1 {
		t.Fatalf("expected real std, got %v", tmpl.Std)
	}
	flat := NewTemplate(grayRGBA(4, 4, 90))
	if flat.Std != 1 {
		t.Fatalf("flat template std should floor to 1, got %v", flat.Std)
	}
	if NewTemplate(nil) != nil {
		t.Fatal("nil image should yield nil template")
	}
}

func TestMatchTemplate_FindsExactLocation(t *testing.T) {
	frame := grayRGBA(40, 30, 80)
	stamp(frame, 17, 9, 6, 5)
	res := MatchTemplate(frame, patternTemplate(6, 5), NCCOptions{Threshold: 0.75, Workers: 3})
	if !res.Found || res.X != 17 || res.Y != 9 {
		t.Fatalf("expected match at (17,9), got %+v", res)
	}
	if math.Abs(res.Score-1) > 1e-9 {
		t.Fatalf("exact match should score 1, got %v", res.Score)
	}
}

func TestMatchTemplate_TieBreakSmallestRowThenColumn(t *testing.T) {
	frame := grayRGBA(50, 40, 80)
	stamp(frame, 30, 20, 6, 5)
	stamp(frame, 35, 3, 6, 5)
	stamp(frame, 4, 3, 6, 5)
	for _, workers := range []int{1, 2, 7} {
		res := MatchTemplate(frame, patternTemplate(6, 5), NCCOptions{Threshold: 0.75, Workers: workers})
		if res.X != 4 || res.Y != 3 {
			t.Fatalf("workers=%d: expected (4,3), got %+v", workers, res)
		}
	}
}

func TestMatchTemplate_StrideWithRefine(t *testing.T) {
	frame := grayRGBA(60, 45, 80)
	stamp(frame, 22, 14, 6, 5)
	res := MatchTemplate(frame, patternTemplate(6, 5), NCCOptions{Threshold: 0.75, Stride: 2, Refine: true})
	if res.X != 22 || res.Y != 14 || !res.Found {
		t.Fatalf("refine should recover exact offset, got %+v", res)
	}
}

func TestMatchTemplate_NoMatchCases(t *testing.T) {
	tmpl := patternTemplate(6, 5)
	if res := MatchTemplate(grayRGBA(4, 4, 80), tmpl, NCCOptions{Threshold: 0.5}); res.Found {
		t.Fatal("frame smaller than template must not match")
	}
	if res := MatchTemplate(grayRGBA(30, 30, 80), tmpl, NCCOptions{Threshold: 0.5}); res.Found || res.Score != 0 {
		t.Fatalf("flat frame must score 0, got %+v", res)
	}
	frame := grayRGBA(30, 30, 80)
	stamp(frame, 3, 3, 6, 5)
	flat := NewTemplate(grayRGBA(6, 5, 120))
	if res := MatchTemplate(frame, flat, NCCOptions{Threshold: 0.5}); res.Found {
		t.Fatalf("flat template must never match, got %+v", res)
	}
}

func TestMatchTemplateContext_CancelledBeforeScan(t *testing.T) {
	frame := grayRGBA(40, 30, 80)
	stamp(frame, 17, 9, 6, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := MatchTemplateContext(ctx, frame, patternTemplate(6, 5), NCCOptions{Threshold: 0.75})
	if res.Found || res.Score != -1 {
		t.Fatalf("cancelled scan must not report a match, got %+v", res)
	}
}

func TestMatchTemplateContext_StopsWithinARow(t *testing.T) {
	// A textured full-HD-like frame takes seconds on one worker.
	frame := grayRGBA(1200, 900, 0)
	stamp(frame, 0, 0, 1200, 900)
	tmpl := patternTemplate(60, 45)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan NCCResult, 1)
	go func() {
		done <- MatchTemplateContext(ctx, frame, tmpl, NCCOptions{Threshold: 0.75, Workers: 1})
	}()
	time.Sleep(30 * time.Millisecond)
	cancelled := time.Now()
	cancel()
	select {
	case res := <-done:
		if lag := time.Since(cancelled); lag > 250*time.Millisecond {
			t.Fatalf("scan kept running %v after cancel", lag)
		}
		if res.Found {
			t.Fatalf("cancelled scan must not report a match, got %+v", res)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scan ignored cancellation")
	}
}

func TestMatchTemplate_OffsetBoundsReported(t *testing.T) {
	frame := grayRGBA(30, 30, 80)
	stamp(frame, 5, 6, 6, 5)
	shifted := &image.RGBA{Pix: frame.Pix, Stride: frame.Stride, Rect: image.Rect(100, 200, 130, 230)}
	res := MatchTemplate(shifted, patternTemplate(6, 5), NCCOptions{Threshold: 0.75})
	if res.X != 105 || res.Y != 206 {
		t.Fatalf("expected frame coordinates (105,206), got %+v", res)
	}
}

func TestScreenSource_CaptureAndFailure(t *testing.T) {
	src := NewScreenSource(nil, image.Rectangle{})
	src.grabFull = func() (*image.RGBA, error) {
		img := grayRGBA(8, 8, 10)
		img.Rect = image.Rect(50, 50, 58, 58)
		return img, nil
	}
	snap, err := src.Capture()
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if snap.Image.Bounds() != image.Rect(0, 0, 8, 8) || snap.Sequence != 1 {
		t.Fatalf("expected rebased frame, got %v seq %d", snap.Image.Bounds(), snap.Sequence)
	}

	src.grabFull = func() (*image.RGBA, error) { return nil, errors.New("no display") }
	if _, err := src.Capture(); !errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("expected ErrCaptureFailed, got %v", err)
	}
	st := src.Stats()
	if st.Captures != 1 || st.Failures != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestScreenSource_UsesRegion(t *testing.T) {
	want := image.Rect(10, 20, 110, 70)
	src := NewScreenSource(nil, want)
	var got image.Rectangle
	src.grabRect = func(r image.Rectangle) (*image.RGBA, error) {
		got = r
		return image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy())), nil
	}
	if _, err := src.Capture(); err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("expected region %v, got %v", want, got)
	}
}
