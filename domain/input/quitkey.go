// Package input watches the console for the quit key.
package input

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// DefaultQuitKey stops the session when pressed.
const DefaultQuitKey = 'q'

// ParseKey returns the lower-cased first character of name, or
// DefaultQuitKey when name is empty or not a single-byte character.
func ParseKey(name string) byte {
	n := strings.ToLower(strings.TrimSpace(name))
	if len(n) != 1 {
		return DefaultQuitKey
	}
	return n[0]
}

// Watch reads in byte by byte and calls onQuit once when key (any case) is
// read. The terminal is switched to unbuffered input where the platform
// allows it; the returned stop restores it. Reading ends at EOF.
func Watch(ctx context.Context, logger *slog.Logger, in *os.File, key byte, onQuit func()) (stop func()) {
	restore, err := enterCbreak(in)
	if err != nil {
		if logger != nil {
			logger.Debug("console not interactive, quit key needs enter", "error", err)
		}
		restore = func() {}
	}
	var once sync.Once
	stop = func() { once.Do(restore) }
	go func() {
		watch(ctx, in, key, onQuit)
		if logger != nil {
			logger.Debug("quit key watcher finished")
		}
	}()
	return stop
}

func watch(ctx context.Context, r io.Reader, key byte, onQuit func()) {
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if ctx.Err() != nil {
			return
		}
		if n == 1 && lower(buf[0]) == lower(key) {
			onQuit()
			return
		}
		if err != nil {
			return
		}
	}
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}
