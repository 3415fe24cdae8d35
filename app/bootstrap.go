package app

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/soocke/duck-haptics-go/config"
	"github.com/soocke/duck-haptics-go/debug"
)

// Flags are the command line switches shared by both binaries.
type Flags struct {
	ConfigPath  string
	Debug       bool
	DryRun      bool
	MetricsAddr string
	TraceDir    string
	QuitKey     string
}

// ParseFlags parses args (without the program name).
func ParseFlags(name string, args []string) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&f.ConfigPath, "config", "config.json", "configuration file (.json, .yaml or .yml)")
	fs.BoolVar(&f.Debug, "debug", false, "debug logging and runtime loggers")
	fs.BoolVar(&f.DryRun, "dry-run", false, "simulate devices instead of connecting to the device server")
	fs.StringVar(&f.MetricsAddr, "metrics", "", "serve Prometheus metrics on this address, e.g. :9108")
	fs.StringVar(&f.TraceDir, "trace-dir", "", "record per-player output levels as WAV files in this directory")
	fs.StringVar(&f.QuitKey, "quit-key", "q", "console key that stops the session")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

// Runtime is a configured session ready to run.
type Runtime struct {
	Config    *config.Config
	Logger    *slog.Logger
	Session   string
	Container *Container
}

// Bootstrap loads and validates the configuration, applies flag overrides,
// creates the session logger and builds the container. Configuration
// problems are logged and replaced by defaults. Session and DryRun in opts
// are filled in from the session and flags.
func Bootstrap(ctx context.Context, f *Flags, out io.Writer, opts Options) *Runtime {
	level := new(slog.LevelVar)
	base := NewLogger(out, level)

	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		base.Warn("config load failed, using defaults", "path", f.ConfigPath, "error", err)
	}
	if f.Debug {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
	if f.MetricsAddr != "" {
		cfg.MetricsAddr = f.MetricsAddr
	}
	if f.TraceDir != "" {
		cfg.TraceDir = f.TraceDir
	}
	verr := cfg.Validate()
	level.Set(ParseLevel(cfg.LogLevel))

	session := uuid.NewString()
	logger := base.With("session", session)
	if verr != nil {
		logger.Warn("configuration fallbacks applied", "error", verr)
	}
	logger.Info("session starting", "config", f.ConfigPath, "players", len(cfg.Players), "dry_run", f.DryRun)

	opts.Session, opts.DryRun = session, f.DryRun
	c := BuildContainer(ctx, cfg, logger, opts)
	return &Runtime{Config: cfg, Logger: logger, Session: session, Container: c}
}

// StartTelemetry starts the optional side services. They stop with ctx.
func (r *Runtime) StartTelemetry(ctx context.Context) {
	if addr := r.Config.MetricsAddr; addr != "" {
		go func() {
			defer recoverLog(r.Logger, "metrics server panic")
			if err := r.Container.Metrics.Serve(ctx, r.Logger, addr); err != nil {
				r.Logger.Warn("metrics server stopped", "addr", addr, "error", err)
			}
		}()
	}
	if r.Config.Debug {
		debug.StartGoroutineLogger(ctx, 10*time.Second, r.Logger)
		debug.StartMemLogger(ctx, 10*time.Second, r.Logger)
		debug.LaunchStatsview(ctx, r.Logger)
	}
}
