//go:build linux || darwin

package input

import (
	"os"

	"github.com/pkg/term/termios"
	"golang.org/x/sys/unix"
)

// enterCbreak disables line buffering and echo on f.
func enterCbreak(f *os.File) (func(), error) {
	var canAttr unix.Termios
	if err := termios.Tcgetattr(f.Fd(), &canAttr); err != nil {
		return nil, err
	}
	cbreak := canAttr
	termios.Cfmakecbreak(&cbreak)
	if err := termios.Tcsetattr(f.Fd(), termios.TCIFLUSH, &cbreak); err != nil {
		return nil, err
	}
	return func() { _ = termios.Tcsetattr(f.Fd(), termios.TCIFLUSH, &canAttr) }, nil
}
