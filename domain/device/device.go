// Package device drives haptic devices through a Buttplug (Intiface) server
// or a logging stand-in.
package device

import (
	"context"
	"errors"
	"fmt"
)

// ErrDeviceComm wraps every failed exchange with a device or the server.
var ErrDeviceComm = errors.New("device communication failed")

// Handle identifies one enumerated device.
type Handle struct {
	Index     uint32
	Name      string
	Vibrators []uint32 // scalar actuator indices of type Vibrate
}

func (h Handle) String() string { return fmt.Sprintf("%s#%d", h.Name, h.Index) }

// Controller is the device control client consumed by the engine.
type Controller interface {
	Devices() []Handle
	Vibrate(ctx context.Context, h Handle, level float64) error
	Stop(ctx context.Context, h Handle) error
}

// Actuator binds one handle of a controller so it can be attached to a player.
type Actuator struct {
	ctrl   Controller
	handle Handle
}

// Bind returns an Actuator for h.
func Bind(c Controller, h Handle) *Actuator { return &Actuator{ctrl: c, handle: h} }

func (a *Actuator) Name() string   { return a.handle.String() }
func (a *Actuator) Handle() Handle { return a.handle }

func (a *Actuator) Vibrate(ctx context.Context, level float64) error {
	return a.ctrl.Vibrate(ctx, a.handle, level)
}

func (a *Actuator) Stop(ctx context.Context) error { return a.ctrl.Stop(ctx, a.handle) }

// StopAll stops every enumerated device and joins the failures.
func StopAll(ctx context.Context, c Controller) error {
	if c == nil {
		return nil
	}
	var errs []error
	for _, h := range c.Devices() {
		if err := c.Stop(ctx, h); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func clampLevel(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
