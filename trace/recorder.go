// Package trace records per-player output levels as mono 16-bit WAV files,
// one sample per scheduler tick, for tuning the vibration shape offline.
package trace

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const flushEvery = 256

type track struct {
	file *os.File
	enc  *wav.Encoder
	buf  []int
}

// Recorder writes one WAV per player under dir.
type Recorder struct {
	dir     string
	prefix  string
	rate    int
	logger  *slog.Logger
	mu      sync.Mutex
	tracks  map[string]*track
	closed  bool
	lastErr error
}

// NewRecorder creates dir when missing. rate is the scheduler update rate.
func NewRecorder(logger *slog.Logger, dir, prefix string, rate int) (*Recorder, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("trace: invalid sample rate %d", rate)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	return &Recorder{dir: dir, prefix: prefix, rate: rate, logger: logger, tracks: make(map[string]*track)}, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Path returns the file a player's trace is written to.
func (r *Recorder) Path(player string) string {
	name := unsafeChars.ReplaceAllString(player, "_")
	if r.prefix != "" {
		name = r.prefix + "-" + name
	}
	return filepath.Join(r.dir, name+".wav")
}

// Observe appends one sample. It matches haptics.LevelObserver.
func (r *Recorder) Observe(player string, level float64, _ bool, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	t, err := r.trackLocked(player)
	if err != nil {
		r.fail(err)
		return
	}
	t.buf = append(t.buf, toSample(level))
	if len(t.buf) >= flushEvery {
		r.fail(r.flushLocked(t))
	}
}

func toSample(level float64) int {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	return int(math.Round(level * math.MaxInt16))
}

func (r *Recorder) trackLocked(player string) (*track, error) {
	if t, ok := r.tracks[player]; ok {
		return t, nil
	}
	f, err := os.Create(r.Path(player))
	if err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	t := &track{file: f, enc: wav.NewEncoder(f, r.rate, 16, 1, 1)}
	r.tracks[player] = t
	if r.logger != nil {
		r.logger.Info("trace started", "player", player, "path", f.Name())
	}
	return t, nil
}

func (r *Recorder) flushLocked(t *track) error {
	if len(t.buf) == 0 {
		return nil
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: r.rate},
		Data:           t.buf,
		SourceBitDepth: 16,
	}
	err := t.enc.Write(buf)
	t.buf = t.buf[:0]
	return err
}

func (r *Recorder) fail(err error) {
	if err == nil {
		return
	}
	if r.lastErr == nil && r.logger != nil {
		r.logger.Warn("trace write failed", "error", err)
	}
	r.lastErr = err
}

// Close flushes and finalizes every file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return r.lastErr
	}
	r.closed = true
	for _, t := range r.tracks {
		r.fail(r.flushLocked(t))
		r.fail(t.enc.Close())
		r.fail(t.file.Close())
	}
	return r.lastErr
}
