//go:build linux || darwin

package input

import (
	"os"
	"testing"
)

func TestEnterCbreak_PipeIsNotATerminal(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()
	restore, err := enterCbreak(r)
	if err == nil {
		restore()
		t.Fatal("expected termios error for a pipe")
	}
	if restore != nil {
		t.Fatal("restore must be nil on error")
	}
}
