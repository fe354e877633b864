package supervisor

import "syscall"

// The parent-death signal takes the service leader down with a scoutd that
// is killed outright. It tracks the spawning OS thread, which the Go runtime
// keeps for the life of the process unless a goroutine locks and exits it.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setsid:    true,
		Pdeathsig: syscall.SIGKILL,
	}
}
