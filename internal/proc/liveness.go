package proc

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Prober answers whether a PID names a live process.
type Prober interface {
	Alive(pid int) bool
}

// SignalProber sends signal 0. A process we may not signal (EPERM) still
// exists and counts as alive.
type SignalProber struct{}

func (SignalProber) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// ListProber looks the PID up in a full process listing. It serves
// environments where signalling is unavailable or restricted.
type ListProber struct {
	Lister Lister
}

func (p ListProber) Alive(pid int) bool {
	if pid <= 0 || p.Lister == nil {
		return false
	}
	procs, err := p.Lister.Processes()
	if err != nil {
		return false
	}
	for _, pr := range procs {
		if pr.PID == pid {
			return true
		}
	}
	return false
}
