package app

import (
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/soocke/duck-haptics-go/assets"
	"github.com/soocke/duck-haptics-go/config"
	"github.com/soocke/duck-haptics-go/domain/capture"
	"github.com/soocke/duck-haptics-go/domain/detect"
	"github.com/soocke/duck-haptics-go/domain/device"
	"github.com/soocke/duck-haptics-go/domain/haptics"
	"github.com/soocke/duck-haptics-go/domain/round"
	"github.com/soocke/duck-haptics-go/emitter"
	"github.com/soocke/duck-haptics-go/metrics"
	"github.com/soocke/duck-haptics-go/trace"
)

// Options selects optional collaborators at startup.
type Options struct {
	Session       string
	DryRun        bool
	DryRunDevices int
	// Source replaces the screen grabber. Tests use it.
	Source capture.FrameSource
	// Controller replaces the device server connection. Tests use it.
	Controller device.Controller
	// WrapSource, when set, decorates the frame source handed to the arbiter.
	WrapSource func(capture.FrameSource) capture.FrameSource
}

// Container assembles services, domain objects and telemetry sinks.
type Container struct {
	Config     *config.Config
	Logger     *slog.Logger
	Store      *assets.Store
	Detector   *detect.Detector
	Source     capture.FrameSource
	Controller device.Controller
	Players    []*haptics.Player
	Schedulers []*haptics.Scheduler
	Arbiter    *round.Arbiter
	Metrics    *metrics.Metrics
	Emitter    *emitter.MQTTEmitter
	Recorder   *trace.Recorder
	Engine     *Engine
}

// BuildContainer constructs all components. Missing templates, an
// unreachable device server or a failing broker degrade the session
// instead of aborting it.
func BuildContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) *Container {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	c := &Container{Config: cfg, Logger: logger, Metrics: metrics.New()}

	c.Store, _ = assets.LoadStore(logger, cfg.TemplatePath, cfg.IntermissionTemplatePath)
	c.Detector = detect.New(logger, c.Store, detect.OptionsFromConfig(cfg))

	c.Source = opts.Source
	if c.Source == nil {
		src := capture.NewScreenSource(logger, regionRect(cfg.Region))
		c.Metrics.SetCaptureStats(src.Stats)
		c.Source = src
	}
	if opts.WrapSource != nil {
		c.Source = opts.WrapSource(c.Source)
	}

	c.Controller = opts.Controller
	var closeCtrl func() error
	if c.Controller == nil {
		c.Controller, closeCtrl = connectController(ctx, cfg, logger, opts)
	}

	c.Players = SetupPlayers(logger, cfg.Players, c.Controller)

	if cfg.TraceDir != "" {
		rec, err := trace.NewRecorder(logger, cfg.TraceDir, opts.Session, int(cfg.VibrationUpdateRateHz))
		if err != nil {
			logger.Warn("trace recorder disabled", "dir", cfg.TraceDir, "error", err)
		} else {
			c.Recorder = rec
		}
	}

	schedOpts := haptics.SchedulerOptions{
		Multiplier:   cfg.IntensityMultiplier,
		FrequencyHz:  cfg.VibrationFrequencyHz,
		UpdateRateHz: cfg.VibrationUpdateRateHz,
	}
	for _, p := range c.Players {
		s := haptics.NewScheduler(logger, p, schedOpts)
		s.SetObserver(c.Metrics.ObserveLevel)
		if c.Recorder != nil {
			s.SetObserver(c.Recorder.Observe)
		}
		c.Schedulers = append(c.Schedulers, s)
	}

	arbOpts := round.OptionsFromConfig(cfg)
	arbOpts.Devices = c.Controller
	c.Arbiter = round.New(logger, c.Detector, c.Source, c.Players, arbOpts)
	c.Arbiter.AddListener(c.Metrics.ObserveOutcome)
	c.Arbiter.AddStateListener(func(prev, next round.State) {
		logger.Debug("round state changed", "from", prev, "to", next)
	})

	if cfg.MQTT.Broker != "" {
		em := emitter.NewMQTTEmitter(logger, cfg.MQTT, opts.Session)
		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := em.Connect(cctx)
		cancel()
		if err != nil {
			logger.Warn("mqtt publishing disabled", "broker", cfg.MQTT.Broker, "error", err)
		} else {
			c.Emitter = em
			c.Arbiter.AddListener(em.Listener())
		}
	}

	c.Engine = NewEngine(logger, c.Arbiter, c.Schedulers, c.Controller)
	if c.Recorder != nil {
		c.Engine.AddCloser(c.Recorder.Close)
	}
	if c.Emitter != nil {
		em := c.Emitter
		c.Engine.AddCloser(func() error { em.Close(); return nil })
	}
	if closeCtrl != nil {
		c.Engine.AddCloser(closeCtrl)
	}
	return c
}

func connectController(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (device.Controller, func() error) {
	if opts.DryRun {
		n := opts.DryRunDevices
		if n <= 0 {
			n = len(cfg.Players)
		}
		logger.Info("dry run, devices are simulated", "devices", n)
		return device.NewDryRun(logger, n), nil
	}
	timeout := time.Duration(cfg.RequestTimeoutSeconds * float64(time.Second))
	bp, err := device.DialButtplug(ctx, logger, cfg.ServerURL, device.ButtplugOptions{RequestTimeout: timeout})
	if err != nil {
		logger.Warn("device server unavailable, running without devices", "url", cfg.ServerURL, "error", err)
		return nil, nil
	}
	if err := bp.Scan(ctx, time.Duration(cfg.ScanSeconds*float64(time.Second))); err != nil {
		logger.Warn("device scan failed", "error", err)
	}
	if len(bp.Devices()) == 0 {
		logger.Warn("no devices found")
	}
	return bp, bp.Close
}

func regionRect(r config.Region) image.Rectangle {
	if r.Empty() {
		return image.Rectangle{}
	}
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}
