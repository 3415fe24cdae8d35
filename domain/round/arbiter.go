// Package round debounces raw detections into accepted round events and
// applies their outcome to every player.
package round

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/soocke/duck-haptics-go/config"
	"github.com/soocke/duck-haptics-go/domain/capture"
	"github.com/soocke/duck-haptics-go/domain/device"
	"github.com/soocke/duck-haptics-go/domain/haptics"
)

// Options tunes the arbiter. Zero values use defaults.
type Options struct {
	Cooldown     time.Duration
	PollInterval time.Duration
	WinDelta     float64
	LoseDelta    float64
	Curve        haptics.Curve
	Clock        func() time.Time

	// Devices receives a stop for every enumerated device on intermission.
	// When nil only player-bound devices are stopped.
	Devices device.Controller
}

// OptionsFromConfig copies the arbitration settings out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return Options{
		Cooldown:     seconds(cfg.CooldownSeconds),
		PollInterval: seconds(cfg.PollIntervalSeconds),
		WinDelta:     cfg.WinDelta,
		LoseDelta:    cfg.LoseDelta,
		Curve: haptics.Curve{
			Min:      seconds(cfg.MinDurationSeconds),
			Max:      seconds(cfg.MaxDurationSeconds),
			Exponent: cfg.DurationCurveExponent,
		},
	}
}

func seconds(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }

// Arbiter is the IDLE/COOLDOWN state machine. Step is not safe for
// concurrent use; Run owns it. Accessors may be called from anywhere.
type Arbiter struct {
	logger   *slog.Logger
	detector EventDetector
	source   capture.FrameSource
	players  []*haptics.Player
	opts     Options

	mu             sync.Mutex
	state          State
	since          time.Time
	lastColor      string
	listeners      []Listener
	stateListeners []StateListener
}

// New returns an idle arbiter.
func New(logger *slog.Logger, detector EventDetector, source capture.FrameSource, players []*haptics.Player, opts Options) *Arbiter {
	def := OptionsFromConfig(nil)
	if opts.Cooldown <= 0 {
		opts.Cooldown = def.Cooldown
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.WinDelta == 0 {
		opts.WinDelta = def.WinDelta
	}
	if opts.LoseDelta == 0 {
		opts.LoseDelta = def.LoseDelta
	}
	if opts.Curve.Max <= 0 {
		opts.Curve = haptics.DefaultCurve
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Arbiter{logger: logger, detector: detector, source: source, players: players, opts: opts}
}

// AddListener registers an outcome observer.
func (a *Arbiter) AddListener(l Listener) {
	a.mu.Lock()
	a.listeners = append(a.listeners, l)
	a.mu.Unlock()
}

// AddStateListener registers a state transition observer.
func (a *Arbiter) AddStateListener(l StateListener) {
	a.mu.Lock()
	a.stateListeners = append(a.stateListeners, l)
	a.mu.Unlock()
}

// Current returns the current state.
func (a *Arbiter) Current() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// CooldownSince returns when the active cooldown started (zero when idle).
func (a *Arbiter) CooldownSince() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateCooldown {
		return time.Time{}
	}
	return a.since
}

// LastColor returns the most recently accepted color.
func (a *Arbiter) LastColor() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastColor
}

// Players returns the arbitrated players.
func (a *Arbiter) Players() []*haptics.Player { return a.players }

// Step runs one coordination tick on frame. Intermission is checked first
// and pre-empts everything else without touching the cooldown timer. A
// detection cut short by ctx counts as a skipped tick.
func (a *Arbiter) Step(ctx context.Context, now time.Time, frame *image.RGBA) Outcome {
	if frame == nil {
		return a.emit(Outcome{At: now, Kind: KindSkipped, State: a.Current()})
	}
	if a.detector.DetectIntermission(ctx, frame) {
		updates := a.resetAll(ctx)
		if a.logger != nil {
			a.logger.Info("round.intermission", "players", len(a.players))
		}
		return a.emit(Outcome{At: now, Kind: KindIntermission, State: a.Current(), Updates: updates})
	}

	a.mu.Lock()
	state, since := a.state, a.since
	a.mu.Unlock()
	if state == StateCooldown {
		if now.Sub(since) < a.opts.Cooldown {
			return a.emit(Outcome{At: now, Kind: KindCooldown, State: state})
		}
		a.transition(StateIdle, time.Time{})
	}

	res := a.detector.DetectEvent(ctx, frame)
	if ctx.Err() != nil {
		return a.emit(Outcome{At: now, Kind: KindSkipped, State: StateIdle})
	}
	if res.Color == "" {
		return a.emit(Outcome{At: now, Kind: KindNone, State: StateIdle, Result: res})
	}
	updates := a.applyOutcome(now, res.Color)
	a.mu.Lock()
	a.lastColor = res.Color
	a.mu.Unlock()
	a.transition(StateCooldown, now)
	if a.logger != nil {
		a.logger.Info("round.accepted", "color", res.Color, "score", res.Score, "x", res.Position.X, "y", res.Position.Y)
	}
	return a.emit(Outcome{At: now, Kind: KindAccepted, State: StateCooldown, Color: res.Color, Result: res, Updates: updates})
}

func (a *Arbiter) applyOutcome(now time.Time, color string) []PlayerUpdate {
	updates := make([]PlayerUpdate, 0, len(a.players))
	for _, p := range a.players {
		u := PlayerUpdate{PlayerID: p.ID}
		if p.Color == color {
			u.Won = true
			u.Intensity = p.ApplyWin(a.opts.WinDelta)
		} else {
			u.Intensity, u.Event = p.ApplyLose(now, a.opts.LoseDelta, a.opts.Curve)
		}
		if a.logger != nil {
			a.logger.Debug("player updated", "player", p.ID, "won", u.Won, "intensity", u.Intensity, "queued", u.Event != nil)
		}
		updates = append(updates, u)
	}
	return updates
}

func (a *Arbiter) resetAll(ctx context.Context) []PlayerUpdate {
	updates := make([]PlayerUpdate, 0, len(a.players))
	for _, p := range a.players {
		p.Reset()
		updates = append(updates, PlayerUpdate{PlayerID: p.ID})
		if p.Device == nil || a.opts.Devices != nil {
			continue
		}
		if err := p.Device.Stop(ctx); err != nil && a.logger != nil {
			a.logger.Warn("device stop failed", "player", p.ID, "device", p.Device.Name(), "error", err)
		}
	}
	if a.opts.Devices != nil {
		if err := device.StopAll(ctx, a.opts.Devices); err != nil && a.logger != nil {
			a.logger.Warn("device stop failed", "error", err)
		}
	}
	return updates
}

func (a *Arbiter) transition(next State, since time.Time) {
	a.mu.Lock()
	prev := a.state
	a.state, a.since = next, since
	ls := a.stateListeners
	a.mu.Unlock()
	if prev == next {
		return
	}
	if a.logger != nil {
		a.logger.Debug("round state transition", "from", prev.String(), "to", next.String())
	}
	for _, l := range ls {
		func() {
			defer recoverLog(a.logger, "state listener panic")
			l(prev, next)
		}()
	}
}

func (a *Arbiter) emit(o Outcome) Outcome {
	a.mu.Lock()
	ls := a.listeners
	a.mu.Unlock()
	for _, l := range ls {
		func() {
			defer recoverLog(a.logger, "round listener panic")
			l(o)
		}()
	}
	return o
}

// Tick captures one frame and steps the arbiter. Capture failures skip
// the tick.
func (a *Arbiter) Tick(ctx context.Context) Outcome {
	now := a.opts.Clock()
	if a.source == nil {
		return a.Step(ctx, now, nil)
	}
	snap, err := a.source.Capture()
	if err != nil {
		if a.logger != nil {
			a.logger.Debug("capture failed, skipping tick", "error", err)
		}
		return a.Step(ctx, now, nil)
	}
	return a.Step(ctx, now, snap.Image)
}

// Run ticks at the poll interval until ctx is cancelled.
func (a *Arbiter) Run(ctx context.Context) {
	ticker := time.NewTicker(a.opts.PollInterval)
	defer ticker.Stop()
	if a.logger != nil {
		a.logger.Info("arbiter started", "interval", a.opts.PollInterval, "cooldown", a.opts.Cooldown)
	}
	for {
		a.Tick(ctx)
		select {
		case <-ctx.Done():
			if a.logger != nil {
				a.logger.Info("arbiter stopped")
			}
			return
		case <-ticker.C:
		}
	}
}

func recoverLog(logger *slog.Logger, msg string) {
	if r := recover(); r != nil {
		if logger != nil {
			logger.Error(msg, "error", r)
		}
	}
}
