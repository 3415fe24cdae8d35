package model

import (
	"sync/atomic"

	"github.com/soocke/duck-haptics-go/domain/capture"
)

// FrameTap wraps a frame source and keeps the most recent successful
// snapshot for the preview. It is safe for concurrent use: the arbiter
// captures through it while the UI thread reads Latest.
type FrameTap struct {
	src     capture.FrameSource
	latest  atomic.Pointer[capture.FrameSnapshot]
	enabled atomic.Bool
}

// NewFrameTap returns a tap around src with the preview disabled.
func NewFrameTap(src capture.FrameSource) *FrameTap { return &FrameTap{src: src} }

// Capture forwards to the wrapped source. Frames are retained only while
// the preview is enabled.
func (t *FrameTap) Capture() (capture.FrameSnapshot, error) {
	snap, err := t.src.Capture()
	if err == nil && t.enabled.Load() {
		t.latest.Store(&snap)
	}
	return snap, err
}

// Latest returns the last retained snapshot.
func (t *FrameTap) Latest() (capture.FrameSnapshot, bool) {
	if t == nil {
		return capture.FrameSnapshot{}, false
	}
	p := t.latest.Load()
	if p == nil {
		return capture.FrameSnapshot{}, false
	}
	return *p, true
}

// Enabled reports whether frames are being retained.
func (t *FrameTap) Enabled() bool { return t != nil && t.enabled.Load() }

// SetEnabled toggles retention. Disabling drops the retained frame.
func (t *FrameTap) SetEnabled(b bool) {
	if t == nil {
		return
	}
	if t.enabled.Swap(b) && !b {
		t.latest.Store(nil)
	}
}
