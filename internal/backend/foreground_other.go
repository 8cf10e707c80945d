//go:build !unix || solaris

package backend

import (
	"os/exec"

	"github.com/asmfreak/arensync/internal/errors"
)

// StartForeground starts cmd. Moving the process into the foreground of the
// terminal is not supported on this platform.
func StartForeground(cmd *exec.Cmd) (bg func() error, err error) {
	err = cmd.Start()
	if err != nil {
		return nil, errors.Wrap(err, "cmd.Start")
	}

	bg = func() error { return nil }
	return bg, nil
}
