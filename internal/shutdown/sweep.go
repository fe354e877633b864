package shutdown

import (
	"errors"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/gandalfthegui/scout94/internal/proc"
	"github.com/gandalfthegui/scout94/internal/supervisor"
)

// DefaultPatterns match command lines of the websocket service.
var DefaultPatterns = []string{"websocket-server", "node server.js"}

// Sweeper kills processes whose command line contains any of Patterns and
// whose environment carries Owner. It catches service processes that escaped
// their process group or were orphaned by a crashed scoutd; a look-alike
// started by anyone else lacks the tag and is left alone.
type Sweeper struct {
	Lister   proc.Lister
	Patterns []string
	// Owner defaults to supervisor.OwnerEnv.
	Owner string
	// Kill defaults to proc.Kill (SIGKILL).
	Kill func(pid int) error
	// Self is never killed; defaults to os.Getpid().
	Self int
	Log  *log.Logger
}

// NewSweeper returns a Sweeper over the platform process list.
func NewSweeper(patterns []string, logger *log.Logger) *Sweeper {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	return &Sweeper{Lister: proc.NewLister(), Patterns: patterns, Owner: supervisor.OwnerEnv, Log: logger}
}

// Sweep kills every matching, tagged process except this one and returns the PIDs
// it signalled. Processes that vanish before the signal lands are not
// errors.
func (s *Sweeper) Sweep() ([]int, error) {
	logger := s.Log
	if logger == nil {
		logger = log.Default()
	}
	kill := s.Kill
	if kill == nil {
		kill = proc.Kill
	}
	self := s.Self
	if self == 0 {
		self = os.Getpid()
	}
	owner := s.Owner
	if owner == "" {
		owner = supervisor.OwnerEnv
	}

	procs, err := s.Lister.Processes()
	if err != nil {
		return nil, err
	}

	var killed []int
	var errs []error
	for _, p := range procs {
		if p.PID == self || p.PID <= 1 || !s.matches(p.Cmdline) {
			continue
		}
		if !p.HasEnv(owner) {
			logger.Debug("leaving look-alike alone", "pid", p.PID, "cmd", p.Cmdline)
			continue
		}
		if err := kill(p.PID); err != nil {
			if !proc.Gone(err) {
				errs = append(errs, err)
				logger.Warn("could not kill orphan", "pid", p.PID, "cmd", p.Cmdline, "err", err)
			}
			continue
		}
		logger.Info("killed orphaned service process", "pid", p.PID, "cmd", p.Cmdline)
		killed = append(killed, p.PID)
	}
	return killed, errors.Join(errs...)
}

func (s *Sweeper) matches(cmdline string) bool {
	for _, pat := range s.Patterns {
		if pat != "" && strings.Contains(cmdline, pat) {
			return true
		}
	}
	return false
}
