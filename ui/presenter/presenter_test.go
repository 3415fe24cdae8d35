package presenter

import (
	"image"
	"strings"
	"testing"
	"time"

	"github.com/soocke/duck-haptics-go/app"
	"github.com/soocke/duck-haptics-go/domain/capture"
	"github.com/soocke/duck-haptics-go/domain/detect"
	"github.com/soocke/duck-haptics-go/domain/round"
	"github.com/soocke/duck-haptics-go/ui/model"
)

type fakeSource struct{ snap app.Snapshot }

func (f *fakeSource) Snapshot() app.Snapshot { return f.snap }

type statusView struct {
	state    string
	cooldown bool
	players  map[int]string
	levels   map[int]float64
	calls    int
}

func (v *statusView) SetStateLabel(text string, cooldown bool) { v.state, v.cooldown = text, cooldown }
func (v *statusView) SetPlayer(i int, text string, level float64, _ string) {
	if v.players == nil {
		v.players, v.levels = map[int]string{}, map[int]float64{}
	}
	v.players[i], v.levels[i] = text, level
	v.calls++
}

func TestStatusPresenter_PushesOnlyChanges(t *testing.T) {
	t0 := time.Unix(1000, 0)
	src := &fakeSource{snap: app.Snapshot{
		Running: true,
		State:   round.StateIdle,
		Players: []app.PlayerSnapshot{{ID: "P1", Color: "yellow", Device: "dev#0"}, {ID: "P2", Color: "green", Device: "<none>"}},
	}}
	v := &statusView{}
	p := NewStatusPresenter(src, v, 3*time.Second)

	p.Tick(t0)
	if v.state != "State: idle" || v.cooldown || v.calls != 2 {
		t.Fatalf("first tick: %q cooldown=%v calls=%d", v.state, v.cooldown, v.calls)
	}
	p.Tick(t0)
	if v.calls != 2 {
		t.Fatalf("unchanged snapshot must not redraw, calls=%d", v.calls)
	}

	src.snap.State = round.StateCooldown
	src.snap.CooldownSince = t0
	src.snap.LastColor = "yellow"
	src.snap.Players[1].Intensity = 0.1
	src.snap.Players[1].Level = 0.456
	p.Tick(t0.Add(time.Second))
	if v.state != "State: cooldown 2.0s (yellow)" || !v.cooldown {
		t.Fatalf("cooldown label %q", v.state)
	}
	if v.calls != 3 || !strings.Contains(v.players[1], "intensity 0.10") || v.levels[1] != 0.46 {
		t.Fatalf("player row not refreshed: calls=%d %q %v", v.calls, v.players[1], v.levels[1])
	}

	src.snap.Running = false
	p.Tick(t0.Add(2 * time.Second))
	if v.state != "State: stopped" || v.cooldown {
		t.Fatalf("stopped label %q", v.state)
	}
}

type sessionView struct {
	session, total time.Duration
	rounds         string
}

func (v *sessionView) SetSession(s, t time.Duration) { v.session, v.total = s, t }
func (v *sessionView) SetRounds(text string)         { v.rounds = text }

func TestSessionPresenter_TracksRunningAndRounds(t *testing.T) {
	src := &fakeSource{snap: app.Snapshot{Running: true}}
	rounds := model.NewRoundModel(image.Point{})
	v := &sessionView{}
	p := NewSessionPresenter(model.NewSessionModel(), src, rounds, v)
	t0 := time.Unix(0, 0)

	p.Tick(t0)
	rounds.OnOutcome(round.Outcome{Kind: round.KindAccepted, Color: "pink"})
	rounds.OnOutcome(round.Outcome{Kind: round.KindIntermission})
	p.Tick(t0.Add(4 * time.Second))
	if v.session != 4*time.Second || v.total != 4*time.Second {
		t.Fatalf("durations %v/%v", v.session, v.total)
	}
	if v.rounds != "Rounds: 1  pink 1  intermissions 1" {
		t.Fatalf("rounds text %q", v.rounds)
	}
}

type fakeFrames struct {
	enabled bool
	snap    capture.FrameSnapshot
	ok      bool
}

func (f *fakeFrames) Latest() (capture.FrameSnapshot, bool) { return f.snap, f.ok }
func (f *fakeFrames) Enabled() bool                         { return f.enabled }
func (f *fakeFrames) SetEnabled(b bool)                     { f.enabled = b }

type previewView struct {
	captures, detections, resets int
	lastDetection                image.Image
}

func (v *previewView) UpdateCapture(image.Image)     { v.captures++ }
func (v *previewView) UpdateDetection(i image.Image) { v.detections++; v.lastDetection = i }
func (v *previewView) PreviewReset()                 { v.resets++ }

func TestPreviewPresenter_RendersNewFramesAndCue(t *testing.T) {
	frames := &fakeFrames{}
	rounds := model.NewRoundModel(image.Pt(10, 10))
	v := &previewView{}
	p := NewPreviewPresenter(frames, rounds, v)

	frames.snap = capture.FrameSnapshot{Image: image.NewRGBA(image.Rect(0, 0, 100, 100)), Sequence: 1}
	frames.ok = true
	p.Tick()
	if v.captures != 0 {
		t.Fatal("disabled preview must not render")
	}

	p.Toggle()
	p.Tick()
	p.Tick()
	if v.captures != 1 || v.detections != 0 {
		t.Fatalf("want one capture render, got %d/%d", v.captures, v.detections)
	}

	rounds.OnOutcome(round.Outcome{Kind: round.KindAccepted, Color: "yellow", Result: detect.Result{Position: image.Pt(40, 40)}})
	frames.snap.Sequence = 2
	p.Tick()
	if v.captures != 2 || v.detections != 1 {
		t.Fatalf("cue crop not rendered: %d/%d", v.captures, v.detections)
	}
	if b := v.lastDetection.Bounds(); b.Dx() != 26 || b.Dy() != 26 {
		t.Fatalf("crop size %v", b)
	}
	frames.snap.Sequence = 3
	p.Tick()
	if v.detections != 1 {
		t.Fatal("unchanged cue must not re-crop")
	}

	p.Toggle()
	if frames.enabled || v.resets != 1 {
		t.Fatalf("toggle off: enabled=%v resets=%d", frames.enabled, v.resets)
	}
}
