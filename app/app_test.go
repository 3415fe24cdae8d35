package app

import (
	"context"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/soocke/duck-haptics-go/config"
	"github.com/soocke/duck-haptics-go/domain/capture"
	"github.com/soocke/duck-haptics-go/domain/detect"
	"github.com/soocke/duck-haptics-go/domain/device"
	"github.com/soocke/duck-haptics-go/domain/haptics"
	"github.com/soocke/duck-haptics-go/domain/round"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type staticSource struct{}

func (staticSource) Capture() (capture.FrameSnapshot, error) {
	return capture.FrameSnapshot{Image: image.NewRGBA(image.Rect(0, 0, 16, 16)), CapturedAt: time.Now()}, nil
}

type colorDetector struct {
	mu    sync.Mutex
	color string
}

func (d *colorDetector) DetectEvent(context.Context, *image.RGBA) detect.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	return detect.Result{Color: d.color, Found: d.color != ""}
}

func (d *colorDetector) DetectIntermission(context.Context, *image.RGBA) bool { return false }

func TestSetupPlayers_Fallbacks(t *testing.T) {
	ctrl := device.NewDryRun(nil, 2)
	roster := []config.PlayerConfig{
		{ID: "A", Color: "Yellow", Device: 1},
		{ID: "", Color: "purple", Device: 7},
	}
	ps := SetupPlayers(quietLogger(), roster, ctrl)
	if len(ps) != 2 {
		t.Fatalf("want 2 players, got %d", len(ps))
	}
	if ps[0].Color != "yellow" || ps[0].Device.Name() != "dry-run-1#1" {
		t.Fatalf("player A: %s %s", ps[0].Color, ps[0].Device.Name())
	}
	if ps[1].ID != "P2" || ps[1].Color != "white" || ps[1].Device.Name() != "dry-run-0#0" {
		t.Fatalf("player 2 fallbacks: %s %s %s", ps[1].ID, ps[1].Color, ps[1].Device.Name())
	}

	none := SetupPlayers(quietLogger(), roster[:1], nil)
	if none[0].Device != nil {
		t.Fatal("player without controller must have no output")
	}
}

func TestEngine_RunDrivesLoserAndStopsOnCancel(t *testing.T) {
	ctrl := device.NewDryRun(nil, 2)
	players := SetupPlayers(quietLogger(), []config.PlayerConfig{
		{ID: "P1", Color: "yellow", Device: 0},
		{ID: "P2", Color: "green", Device: 1},
	}, ctrl)
	det := &colorDetector{color: "yellow"}
	arb := round.New(nil, det, staticSource{}, players, round.Options{PollInterval: 5 * time.Millisecond, Cooldown: time.Hour})
	var scheds []*haptics.Scheduler
	for _, p := range players {
		scheds = append(scheds, haptics.NewScheduler(nil, p, haptics.SchedulerOptions{Multiplier: 1, FrequencyHz: 3, UpdateRateHz: 200}))
	}
	e := NewEngine(quietLogger(), arb, scheds, ctrl)
	closed := false
	e.AddCloser(func() error { closed = true; return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for ctrl.Level(1) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("losing player's device never vibrated")
		}
		time.Sleep(2 * time.Millisecond)
	}
	snap := e.Snapshot()
	if !snap.Running || snap.State != round.StateCooldown || snap.LastColor != "yellow" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.Players[1].Intensity <= 0 || snap.Players[0].Intensity != 0 {
		t.Fatalf("unexpected intensities %+v", snap.Players)
	}
	if ctrl.Level(0) != 0 {
		t.Fatal("winner must stay silent")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("engine did not stop")
	}
	if ctrl.Level(0) != 0 || ctrl.Level(1) != 0 {
		t.Fatal("devices must be stopped after shutdown")
	}
	if !closed {
		t.Fatal("closer not run")
	}
	if e.Snapshot().Running {
		t.Fatal("engine still marked running")
	}
}

func TestBuildContainer_DryRunWiring(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.TemplatePath = filepath.Join(dir, "missing.png")
	cfg.IntermissionTemplatePath = ""
	cfg.TraceDir = filepath.Join(dir, "trace")
	cfg.VibrationUpdateRateHz = 100
	cfg.PollIntervalSeconds = 0.01
	cfg.Players = []config.PlayerConfig{{ID: "P1", Color: "pink", Device: 0}, {ID: "P2", Color: "green", Device: 1}}

	c := BuildContainer(context.Background(), cfg, quietLogger(), Options{Session: "s1", DryRun: true, Source: staticSource{}})
	if len(c.Players) != 2 || len(c.Schedulers) != 2 {
		t.Fatalf("players/schedulers %d/%d", len(c.Players), len(c.Schedulers))
	}
	if c.Detector.CanDetectEvents() {
		t.Fatal("missing template must disable event detection")
	}
	if c.Emitter != nil {
		t.Fatal("emitter should be disabled without a broker")
	}
	if c.Recorder == nil {
		t.Fatal("trace recorder not created")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := c.Engine.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if c.Metrics.Ticks.Load() == 0 {
		t.Fatal("arbiter ticks not observed by metrics")
	}
	if _, err := os.Stat(c.Recorder.Path("P1")); err != nil {
		t.Fatalf("trace file missing: %v", err)
	}
}

func TestRegionRect(t *testing.T) {
	if !regionRect(config.Region{}).Empty() {
		t.Fatal("zero region must select the whole screen")
	}
	if got := regionRect(config.Region{X: 10, Y: 20, W: 30, H: 40}); got != image.Rect(10, 20, 40, 60) {
		t.Fatalf("got %v", got)
	}
}
