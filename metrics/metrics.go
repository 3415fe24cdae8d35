// Package metrics exposes engine counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soocke/duck-haptics-go/domain/capture"
	"github.com/soocke/duck-haptics-go/domain/round"
)

// Metrics holds all engine metrics on a private registry.
type Metrics struct {
	Ticks         atomic.Uint64
	SkippedTicks  atomic.Uint64
	Intermissions atomic.Uint64
	CooldownTicks atomic.Uint64

	accepted   *prometheus.CounterVec
	intensity  *prometheus.GaugeVec
	level      *prometheus.GaugeVec
	sendErrors *prometheus.CounterVec

	captureStats atomic.Pointer[func() capture.CaptureStats]

	registry *prometheus.Registry
}

// New creates a Metrics instance with its collectors registered.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.accepted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "duck_rounds_accepted_total",
		Help: "Accepted cue detections by color",
	}, []string{"color"})
	m.intensity = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "duck_player_intensity",
		Help: "Current player intensity in [0,1]",
	}, []string{"player"})
	m.level = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "duck_player_output_level",
		Help: "Last requested device level in [0,1]",
	}, []string{"player"})
	m.sendErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "duck_device_send_errors_total",
		Help: "Failed device sends",
	}, []string{"player"})
	m.registry.MustRegister(m.accepted, m.intensity, m.level, m.sendErrors)

	counter := func(name, help string, v *atomic.Uint64) {
		m.registry.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{Name: name, Help: help},
			func() float64 { return float64(v.Load()) },
		))
	}
	counter("duck_ticks_total", "Coordination ticks", &m.Ticks)
	counter("duck_ticks_skipped_total", "Ticks without a frame", &m.SkippedTicks)
	counter("duck_intermissions_total", "Ticks that detected an intermission", &m.Intermissions)
	counter("duck_cooldown_ticks_total", "Ticks suppressed by cooldown", &m.CooldownTicks)

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: "duck_capture_avg_micros", Help: "Average screen capture time in microseconds"},
		func() float64 { return m.capture().AvgCaptureMicros },
	))
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{Name: "duck_capture_failures_total", Help: "Failed screen captures"},
		func() float64 { return float64(m.capture().Failures) },
	))
	return m
}

// SetCaptureStats installs the provider for capture gauges.
func (m *Metrics) SetCaptureStats(fn func() capture.CaptureStats) {
	if fn != nil {
		m.captureStats.Store(&fn)
	}
}

func (m *Metrics) capture() capture.CaptureStats {
	if fn := m.captureStats.Load(); fn != nil {
		return (*fn)()
	}
	return capture.CaptureStats{}
}

// ObserveOutcome records one coordination tick.
func (m *Metrics) ObserveOutcome(o round.Outcome) {
	m.Ticks.Add(1)
	switch o.Kind {
	case round.KindSkipped:
		m.SkippedTicks.Add(1)
	case round.KindCooldown:
		m.CooldownTicks.Add(1)
	case round.KindIntermission:
		m.Intermissions.Add(1)
	case round.KindAccepted:
		m.accepted.WithLabelValues(o.Color).Inc()
	}
	for _, u := range o.Updates {
		m.intensity.WithLabelValues(u.PlayerID).Set(u.Intensity)
	}
}

// ObserveLevel matches haptics.LevelObserver.
func (m *Metrics) ObserveLevel(player string, level float64, stopped bool, err error) {
	if err != nil {
		m.sendErrors.WithLabelValues(player).Inc()
		return
	}
	m.level.WithLabelValues(player).Set(level)
}

// Handler returns the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, logger *slog.Logger, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()
	if logger != nil {
		logger.Info("metrics listening", "addr", addr)
	}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
