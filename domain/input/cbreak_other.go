//go:build !linux && !darwin && !windows

package input

import (
	"errors"
	"os"
)

func enterCbreak(*os.File) (func(), error) {
	return nil, errors.New("unbuffered console input not supported")
}
