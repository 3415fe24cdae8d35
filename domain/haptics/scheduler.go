package haptics

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// LevelObserver receives the level of every tick. err is the device error,
// nil on success. stopped marks an explicit stop command.
type LevelObserver func(playerID string, level float64, stopped bool, err error)

// SchedulerOptions configures a scheduler. Zero values use defaults.
type SchedulerOptions struct {
	Multiplier   float64 // global intensity multiplier in [0,1]
	FrequencyHz  float64 // pulse frequency (default 2)
	UpdateRateHz float64 // ticks per second (default 40)
	Clock        func() time.Time
}

// Scheduler drives one player's device at a fixed update rate.
type Scheduler struct {
	player     *Player
	logger     *slog.Logger
	multiplier float64
	freq       float64
	interval   time.Duration
	clock      func() time.Time

	mu        sync.Mutex
	start     time.Time
	lastLevel float64
	failing   bool
	observers []LevelObserver
}

// NewScheduler binds a scheduler to p.
func NewScheduler(logger *slog.Logger, p *Player, opts SchedulerOptions) *Scheduler {
	if opts.FrequencyHz <= 0 {
		opts.FrequencyHz = 2
	}
	if opts.UpdateRateHz <= 0 {
		opts.UpdateRateHz = 40
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Scheduler{
		player:     p,
		logger:     logger,
		multiplier: clamp01(opts.Multiplier),
		freq:       opts.FrequencyHz,
		interval:   time.Duration(float64(time.Second) / opts.UpdateRateHz),
		clock:      opts.Clock,
		start:      opts.Clock(),
	}
}

// Player returns the scheduled player.
func (s *Scheduler) Player() *Player { return s.player }

// Interval returns the tick period.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// SetObserver registers an additional level observer.
func (s *Scheduler) SetObserver(fn LevelObserver) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// LastLevel returns the last level the device accepted.
func (s *Scheduler) LastLevel() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastLevel
}

// Tick computes the output at now and pushes it to the device. It returns
// the level that was requested (0 when idle).
func (s *Scheduler) Tick(ctx context.Context, now time.Time) float64 {
	total := s.player.Sample(now) * s.multiplier
	out := s.player.Device

	s.mu.Lock()
	t := now.Sub(s.start).Seconds()
	last := s.lastLevel
	s.mu.Unlock()

	if total > 0 {
		level := clamp01(Oscillation(t, s.freq) * total)
		if out == nil {
			s.notify(level, false, nil)
			return level
		}
		err := out.Vibrate(ctx, level)
		s.record(level, err, "vibrate")
		s.notify(level, false, err)
		return level
	}
	if out != nil && last > 0 {
		err := out.Stop(ctx)
		s.record(0, err, "stop")
		s.notify(0, true, err)
		return 0
	}
	s.notify(0, false, nil)
	return 0
}

// record updates lastLevel on success. A failed send keeps the previous
// value so the next tick retries.
func (s *Scheduler) record(level float64, err error, op string) {
	s.mu.Lock()
	wasFailing := s.failing
	s.failing = err != nil
	if err == nil {
		s.lastLevel = level
	}
	s.mu.Unlock()
	if s.logger == nil {
		return
	}
	switch {
	case err != nil && !wasFailing:
		s.logger.Warn("device send failed", "player", s.player.ID, "op", op, "error", err)
	case err != nil:
		s.logger.Debug("device send failed", "player", s.player.ID, "op", op, "error", err)
	case wasFailing:
		s.logger.Info("device send recovered", "player", s.player.ID, "op", op)
	}
}

func (s *Scheduler) notify(level float64, stopped bool, err error) {
	s.mu.Lock()
	obs := s.observers
	s.mu.Unlock()
	for _, fn := range obs {
		fn(s.player.ID, level, stopped, err)
	}
}

// Run ticks until ctx is cancelled, then sends one final stop.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.start = s.clock()
	s.mu.Unlock()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	if s.logger != nil {
		s.logger.Debug("scheduler started", "player", s.player.ID, "interval", s.interval)
	}
	for {
		select {
		case <-ctx.Done():
			s.FinalStop(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			s.Tick(ctx, s.clock())
		}
	}
}

// FinalStop sends an unconditional stop to the player's device.
func (s *Scheduler) FinalStop(ctx context.Context) {
	out := s.player.Device
	if out == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	err := out.Stop(ctx)
	s.record(0, err, "final stop")
	s.notify(0, true, err)
	if s.logger != nil && err == nil {
		s.logger.Debug("scheduler stopped", "player", s.player.ID)
	}
}
