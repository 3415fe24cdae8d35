package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// DryRun is a Controller that only logs. It exposes n synthetic devices.
type DryRun struct {
	logger  *slog.Logger
	devices []Handle

	mu     sync.Mutex
	levels map[uint32]float64
}

// NewDryRun returns a logging controller with n devices.
func NewDryRun(logger *slog.Logger, n int) *DryRun {
	d := &DryRun{logger: logger, levels: make(map[uint32]float64)}
	for i := 0; i < n; i++ {
		d.devices = append(d.devices, Handle{Index: uint32(i), Name: fmt.Sprintf("dry-run-%d", i), Vibrators: []uint32{0}})
	}
	return d
}

func (d *DryRun) Devices() []Handle {
	out := make([]Handle, len(d.devices))
	copy(out, d.devices)
	return out
}

func (d *DryRun) Vibrate(_ context.Context, h Handle, level float64) error {
	level = clampLevel(level)
	d.mu.Lock()
	d.levels[h.Index] = level
	d.mu.Unlock()
	if d.logger != nil {
		d.logger.Debug("dry-run vibrate", "device", h.String(), "level", level)
	}
	return nil
}

func (d *DryRun) Stop(_ context.Context, h Handle) error {
	d.mu.Lock()
	d.levels[h.Index] = 0
	d.mu.Unlock()
	if d.logger != nil {
		d.logger.Debug("dry-run stop", "device", h.String())
	}
	return nil
}

// Level returns the last level set for device index i.
func (d *DryRun) Level(i uint32) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.levels[i]
}
