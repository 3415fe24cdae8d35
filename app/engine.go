package app

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soocke/duck-haptics-go/domain/device"
	"github.com/soocke/duck-haptics-go/domain/haptics"
	"github.com/soocke/duck-haptics-go/domain/round"
)

// PlayerSnapshot is a read-only view of one player.
type PlayerSnapshot struct {
	ID        string
	Color     string
	Device    string
	Intensity float64
	Level     float64
	Queued    int
}

// Snapshot is a read-only view of the engine for status displays.
type Snapshot struct {
	Running       bool
	Started       time.Time
	State         round.State
	LastColor     string
	CooldownSince time.Time
	Players       []PlayerSnapshot
}

// Engine runs the coordination loop and one scheduler per player and
// leaves every device stopped when it returns.
type Engine struct {
	logger     *slog.Logger
	arbiter    *round.Arbiter
	schedulers []*haptics.Scheduler
	ctrl       device.Controller

	mu      sync.Mutex
	closers []func() error
	started time.Time
	running atomic.Bool
}

// NewEngine wires an arbiter with its schedulers. ctrl may be nil.
func NewEngine(logger *slog.Logger, arbiter *round.Arbiter, schedulers []*haptics.Scheduler, ctrl device.Controller) *Engine {
	return &Engine{logger: logger, arbiter: arbiter, schedulers: schedulers, ctrl: ctrl}
}

// AddCloser registers a cleanup run after all devices are stopped.
func (e *Engine) AddCloser(fn func() error) {
	e.mu.Lock()
	e.closers = append(e.closers, fn)
	e.mu.Unlock()
}

// Arbiter returns the coordination state machine.
func (e *Engine) Arbiter() *round.Arbiter { return e.arbiter }

// Schedulers returns the per-player schedulers.
func (e *Engine) Schedulers() []*haptics.Scheduler { return e.schedulers }

// Run blocks until ctx is cancelled. Schedulers observe the same ctx, send
// their final stop and are awaited before the remaining devices are
// stopped and closers run.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("engine already running")
	}
	defer e.running.Store(false)
	e.mu.Lock()
	e.started = time.Now()
	e.mu.Unlock()

	schedCtx, cancelSched := context.WithCancel(ctx)
	var wg sync.WaitGroup
	for _, s := range e.schedulers {
		wg.Add(1)
		go func(s *haptics.Scheduler) {
			defer wg.Done()
			defer recoverLog(e.logger, "scheduler panic")
			s.Run(schedCtx)
		}(s)
	}
	if e.logger != nil {
		e.logger.Info("engine started", "players", len(e.schedulers))
	}

	func() {
		defer recoverLog(e.logger, "arbiter panic")
		e.arbiter.Run(ctx)
	}()

	cancelSched()
	wg.Wait()
	return e.shutdown()
}

func (e *Engine) shutdown() error {
	stopCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var errs []error
	if err := device.StopAll(stopCtx, e.ctrl); err != nil {
		errs = append(errs, err)
		if e.logger != nil {
			e.logger.Warn("final device stop failed", "error", err)
		}
	}
	e.mu.Lock()
	closers := e.closers
	e.closers = nil
	e.mu.Unlock()
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if e.logger != nil {
		e.logger.Info("engine stopped")
	}
	return errors.Join(errs...)
}

// Snapshot returns the current engine view. Safe from any goroutine.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	snap := Snapshot{
		Running:       e.running.Load(),
		Started:       started,
		State:         e.arbiter.Current(),
		LastColor:     e.arbiter.LastColor(),
		CooldownSince: e.arbiter.CooldownSince(),
	}
	for _, s := range e.schedulers {
		p := s.Player()
		ps := PlayerSnapshot{ID: p.ID, Color: p.Color, Device: "<none>", Intensity: p.Intensity(), Level: s.LastLevel(), Queued: len(p.Events())}
		if p.Device != nil {
			ps.Device = p.Device.Name()
		}
		snap.Players = append(snap.Players, ps)
	}
	return snap
}

func recoverLog(logger *slog.Logger, msg string) {
	if r := recover(); r != nil {
		if logger != nil {
			logger.Error(msg, "error", r, "stack", string(debug.Stack()))
		}
	}
}
