package capture

import (
	"image"
	"time"
)

// FrameSource yields the current pixels of the monitored screen region.
// Capture is synchronous; an error means the tick should be skipped.
type FrameSource interface {
	Capture() (FrameSnapshot, error)
}

// FrameSnapshot carries one captured frame and metadata.
type FrameSnapshot struct {
	Image      *image.RGBA
	CapturedAt time.Time
	Sequence   uint64
}

// CaptureStats summarises capture behaviour for instrumentation.
type CaptureStats struct {
	Captures         uint64
	Failures         uint64
	AvgCapture       time.Duration
	AvgCaptureMicros float64
	LastCapture      time.Time
	Sequence         uint64
}
