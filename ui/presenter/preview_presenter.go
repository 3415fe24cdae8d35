package presenter

import (
	"image"

	"github.com/soocke/duck-haptics-go/domain/capture"
	"github.com/soocke/duck-haptics-go/ui/images"
	"github.com/soocke/duck-haptics-go/ui/model"
)

// FrameModel provides retained frames and the preview toggle.
type FrameModel interface {
	Latest() (capture.FrameSnapshot, bool)
	Enabled() bool
	SetEnabled(bool)
}

// PreviewView shows the captured frame and a zoomed crop of the last cue.
type PreviewView interface {
	UpdateCapture(img image.Image)
	UpdateDetection(img image.Image)
	PreviewReset()
}

// cuePad is the margin around the matched cue window in the zoomed crop.
const cuePad = 8

// PreviewPresenter renders retained frames with the last accepted cue
// outlined. Frames are only retained while the preview is enabled.
type PreviewPresenter struct {
	frames FrameModel
	rounds RoundStatsSource
	view   PreviewView

	lastSeq uint64
	lastCue image.Rectangle
}

func NewPreviewPresenter(frames FrameModel, rounds RoundStatsSource, view PreviewView) *PreviewPresenter {
	return &PreviewPresenter{frames: frames, rounds: rounds, view: view}
}

// Toggle flips the preview on or off. Turning it off resets the view.
func (p *PreviewPresenter) Toggle() {
	if p == nil || p.frames == nil || p.view == nil {
		return
	}
	if p.frames.Enabled() {
		p.frames.SetEnabled(false)
		p.lastSeq, p.lastCue = 0, image.Rectangle{}
		p.view.PreviewReset()
		return
	}
	p.frames.SetEnabled(true)
}

// Tick renders the newest retained frame, if any.
func (p *PreviewPresenter) Tick() {
	if p == nil || p.frames == nil || p.view == nil || !p.frames.Enabled() {
		return
	}
	snap, ok := p.frames.Latest()
	if !ok || snap.Image == nil || snap.Sequence == p.lastSeq {
		return
	}
	p.lastSeq = snap.Sequence
	var stats model.RoundStats
	if p.rounds != nil {
		stats = p.rounds.Values()
	}
	if stats.Cue.Empty() {
		p.view.UpdateCapture(snap.Image)
		return
	}
	p.view.UpdateCapture(images.Outline(snap.Image, stats.Cue, images.Swatch(stats.LastColor)))
	if stats.Cue != p.lastCue {
		p.lastCue = stats.Cue
		if roi, _, err := images.ExtractROI(snap.Image, stats.Cue, cuePad); err == nil {
			p.view.UpdateDetection(roi)
		}
	}
}
