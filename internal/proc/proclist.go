package proc

import (
	"strconv"
	"strings"
)

// Process is one entry of an OS process listing.
type Process struct {
	PID     int
	Cmdline string
	// Env is nil when the environment is not readable, e.g. another
	// user's process.
	Env []string
}

// HasEnv reports whether p's environment contains entry ("KEY=VALUE").
func (p Process) HasEnv(entry string) bool {
	for _, e := range p.Env {
		if e == entry {
			return true
		}
	}
	return false
}

// Lister enumerates the processes visible to us.
type Lister interface {
	Processes() ([]Process, error)
}

// parsePS parses `ps -o pid=,command=` output: a PID, whitespace, then the
// full command line. Malformed lines are skipped.
func parsePS(out string) []Process {
	var procs []Process
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pidField, rest, _ := strings.Cut(line, " ")
		pid, err := strconv.Atoi(pidField)
		if err != nil || pid <= 0 {
			continue
		}
		procs = append(procs, Process{PID: pid, Cmdline: strings.TrimSpace(rest)})
	}
	return procs
}

// attachEnv fills in Env from a `ps -E` listing of the same processes, where
// the environment follows the command line on each row. Rows whose command
// line changed between the two listings are left without an environment.
func attachEnv(procs, withEnv []Process) {
	rows := make(map[int]string, len(withEnv))
	for _, p := range withEnv {
		rows[p.PID] = p.Cmdline
	}
	for i := range procs {
		row, ok := rows[procs[i].PID]
		if !ok {
			continue
		}
		rest, ok := strings.CutPrefix(row, procs[i].Cmdline)
		if !ok {
			continue
		}
		procs[i].Env = strings.Fields(rest)
	}
}
