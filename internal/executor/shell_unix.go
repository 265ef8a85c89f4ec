//go:build unix

package executor

import (
	"errors"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureProcessGroup starts the command in its own process group so that
// cancellation reaches every child of the shell.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return killProcessGroup(cmd.Process.Pid)
	}
}

func killProcessGroup(pid int) error {
	if pid <= 0 {
		return nil
	}
	target := pid
	if pgid, err := unix.Getpgid(pid); err == nil && pgid == pid {
		target = -pgid
	}
	err := unix.Kill(target, unix.SIGKILL)
	if err == nil || errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
