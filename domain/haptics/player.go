package haptics

import (
	"context"
	"math"
	"sync"
	"time"
)

// Output is the device a player's level is sent to.
type Output interface {
	Vibrate(ctx context.Context, level float64) error
	Stop(ctx context.Context) error
	Name() string
}

// VibrationEvent is one queued pulse. Its contribution fades from Amplitude
// to zero over Duration starting at Start.
type VibrationEvent struct {
	Start     time.Time
	Duration  time.Duration
	Amplitude float64
}

// Player is one participant. Intensity and the event queue are guarded by
// mu; the round arbiter writes them and the player's scheduler prunes them.
type Player struct {
	ID     string
	Color  string
	Device Output // nil when no device is attached

	mu        sync.Mutex
	intensity float64
	events    []VibrationEvent
}

// NewPlayer returns a player at intensity 0 with an empty queue.
func NewPlayer(id, color string, out Output) *Player {
	return &Player{ID: id, Color: color, Device: out}
}

// Intensity returns the current clamped intensity.
func (p *Player) Intensity() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.intensity
}

// Events returns a copy of the queued vibration events.
func (p *Player) Events() []VibrationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]VibrationEvent, len(p.events))
	copy(out, p.events)
	return out
}

// ApplyWin lowers intensity by |delta|. Queued events keep decaying.
func (p *Player) ApplyWin(delta float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.intensity = clamp01(p.intensity - math.Abs(delta))
	return p.intensity
}

// ApplyLose raises intensity by delta and, when the result is above zero,
// queues an event with that amplitude and a lifetime from curve.
func (p *Player) ApplyLose(now time.Time, delta float64, curve Curve) (float64, *VibrationEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.intensity = clamp01(p.intensity + delta)
	if p.intensity <= 0 {
		return p.intensity, nil
	}
	ev := VibrationEvent{Start: now, Duration: curve.Duration(p.intensity), Amplitude: p.intensity}
	if ev.Duration <= 0 {
		return p.intensity, nil
	}
	p.events = append(p.events, ev)
	return p.intensity, &ev
}

// Reset zeroes intensity and drops every queued event.
func (p *Player) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.intensity = 0
	p.events = nil
}

// Sample prunes expired events and returns the summed envelope-weighted
// amplitude at now, clamped to 1. Events starting in the future are kept
// but contribute nothing.
func (p *Player) Sample(now time.Time) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	kept := p.events[:0]
	var sum float64
	for _, ev := range p.events {
		age := now.Sub(ev.Start)
		if age > ev.Duration {
			continue
		}
		kept = append(kept, ev)
		if age >= 0 {
			sum += ev.Amplitude * Envelope(age.Seconds()/ev.Duration.Seconds())
		}
	}
	clear(p.events[len(kept):])
	p.events = kept
	if sum > 1 {
		sum = 1
	}
	return sum
}
