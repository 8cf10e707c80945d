//go:build unix && !solaris

package backend

import (
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/asmfreak/arensync/internal/debug"
	"github.com/asmfreak/arensync/internal/errors"
)

func tcsetpgrp(fd int, pid int) error {
	return unix.IoctlSetPointerInt(fd, unix.TIOCSPGRP, pid)
}

// StartForeground starts cmd in its own process group, so that a SIGINT
// sent to arensync does not reach it, and moves that group to the
// foreground of the terminal so that ssh can still ask for a password. The
// returned function bg switches back to the previous process group.
func StartForeground(cmd *exec.Cmd) (bg func() error, err error) {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		debug.Log("unable to open tty: %v", err)
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
		return func() error { return nil }, errors.Wrap(cmd.Start(), "cmd.Start")
	}

	signal.Ignore(syscall.SIGTTIN)
	signal.Ignore(syscall.SIGTTOU)

	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	err = cmd.Start()
	if err != nil {
		_ = tty.Close()
		return nil, errors.Wrap(err, "cmd.Start")
	}

	// move the command's process group into the foreground
	prev := syscall.Getpgrp()
	err = tcsetpgrp(int(tty.Fd()), cmd.Process.Pid)
	if err != nil {
		_ = tty.Close()
		return nil, err
	}

	bg = func() error {
		signal.Reset(syscall.SIGTTIN)
		signal.Reset(syscall.SIGTTOU)

		// reset the foreground process group
		err = tcsetpgrp(int(tty.Fd()), prev)
		if err != nil {
			_ = tty.Close()
			return err
		}

		return tty.Close()
	}

	return bg, nil
}
