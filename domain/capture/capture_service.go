package capture

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vova616/screenshot"
)

const captureStatsLogInterval = 5 * time.Second

// ErrCaptureFailed wraps any failure of the screen backend.
var ErrCaptureFailed = errors.New("screen capture failed")

// ScreenSource grabs a fixed region of the main monitor, or the whole
// monitor when no region is configured. Use NewScreenSource to construct.
type ScreenSource struct {
	region image.Rectangle
	logger *slog.Logger

	// backend hooks, replaced in tests
	grabFull func() (*image.RGBA, error)
	grabRect func(image.Rectangle) (*image.RGBA, error)

	captures     atomic.Uint64
	failures     atomic.Uint64
	captureNanos atomic.Uint64
	sequence     atomic.Uint64
	last         atomic.Int64

	logMu   sync.Mutex
	lastLog time.Time
}

// NewScreenSource returns a source for region (empty = full screen).
func NewScreenSource(logger *slog.Logger, region image.Rectangle) *ScreenSource {
	return &ScreenSource{
		region:   region,
		logger:   logger,
		grabFull: screenshot.CaptureScreen,
		grabRect: screenshot.CaptureRect,
	}
}

// Region returns the configured capture rectangle.
func (s *ScreenSource) Region() image.Rectangle { return s.region }

// Capture grabs the region once. Frame bounds always start at (0,0).
func (s *ScreenSource) Capture() (FrameSnapshot, error) {
	start := time.Now()
	var (
		img *image.RGBA
		err error
	)
	if s.region.Empty() {
		img, err = s.grabFull()
	} else {
		img, err = s.grabRect(s.region)
	}
	if err == nil && img == nil {
		err = errors.New("backend returned no image")
	}
	if err != nil {
		s.failures.Add(1)
		return FrameSnapshot{}, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}
	if img.Bounds().Min != (image.Point{}) {
		img = rebase(img)
	}
	s.captureNanos.Add(uint64(time.Since(start).Nanoseconds()))
	s.captures.Add(1)
	now := time.Now()
	s.last.Store(now.UnixNano())
	snap := FrameSnapshot{Image: img, CapturedAt: now, Sequence: s.sequence.Add(1)}
	s.maybeLogStats(now)
	return snap, nil
}

// rebase returns img with its origin moved to (0,0), sharing pixels.
func rebase(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	return &image.RGBA{Pix: img.Pix, Stride: img.Stride, Rect: image.Rect(0, 0, b.Dx(), b.Dy())}
}

// Stats returns a snapshot of capture counters.
func (s *ScreenSource) Stats() CaptureStats {
	captures := s.captures.Load()
	total := s.captureNanos.Load()
	var avg time.Duration
	avgMicros := 0.0
	if captures > 0 && total > 0 {
		avg = time.Duration(total / captures)
		avgMicros = float64(avg) / float64(time.Microsecond)
	}
	var last time.Time
	if ns := s.last.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	return CaptureStats{
		Captures:         captures,
		Failures:         s.failures.Load(),
		AvgCapture:       avg,
		AvgCaptureMicros: avgMicros,
		LastCapture:      last,
		Sequence:         s.sequence.Load(),
	}
}

func (s *ScreenSource) maybeLogStats(now time.Time) {
	if s.logger == nil {
		return
	}
	s.logMu.Lock()
	due := now.Sub(s.lastLog) >= captureStatsLogInterval
	if due {
		s.lastLog = now
	}
	s.logMu.Unlock()
	if !due {
		return
	}
	stats := s.Stats()
	s.logger.Debug("capture.stats",
		"captures", stats.Captures,
		"failures", stats.Failures,
		"avg_capture", stats.AvgCapture,
	)
}
