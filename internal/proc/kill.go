package proc

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Kill sends SIGKILL to a single process.
func Kill(pid int) error {
	return unix.Kill(pid, unix.SIGKILL)
}

// KillGroup signals every member of the process group pgid.
func KillGroup(pgid int, sig unix.Signal) error {
	if pgid <= 0 {
		return unix.EINVAL
	}
	return unix.Kill(-pgid, sig)
}

// Gone reports whether err from a signal call means the target no longer
// exists.
func Gone(err error) bool {
	return errors.Is(err, unix.ESRCH)
}
