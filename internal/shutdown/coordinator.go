// Package shutdown tears scoutd down in a fixed order: stop the service,
// release the instance marker, then sweep for orphaned service processes.
// Every step runs even when an earlier one fails.
package shutdown

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Step is one named, fallible piece of teardown.
type Step struct {
	Name string
	Run  func() error
}

// Outcome records how a step went.
type Outcome struct {
	Step     string
	Err      error
	Duration time.Duration
}

// Report lists step outcomes in execution order.
type Report []Outcome

// Failed returns the outcomes that carry an error.
func (r Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Coordinator runs its steps exactly once no matter how many termination
// paths call Run.
type Coordinator struct {
	steps []Step
	log   *log.Logger

	once   sync.Once
	report Report
}

// New returns a Coordinator running steps in the given order.
func New(logger *log.Logger, steps ...Step) *Coordinator {
	if logger == nil {
		logger = log.Default()
	}
	return &Coordinator{steps: steps, log: logger}
}

// Stopper is the service side of teardown.
type Stopper interface {
	Stop()
}

// Releaser gives up the instance marker.
type Releaser interface {
	Release() error
}

// ForApp wires the standard teardown order.
func ForApp(logger *log.Logger, service Stopper, marker Releaser, sweeper *Sweeper) *Coordinator {
	return New(logger,
		Step{Name: "stop service", Run: func() error {
			service.Stop()
			return nil
		}},
		Step{Name: "release instance marker", Run: marker.Release},
		Step{Name: "sweep orphans", Run: func() error {
			_, err := sweeper.Sweep()
			return err
		}},
	)
}

// Run executes every step once and returns the report. Later calls return
// the first report without running anything; concurrent callers block until
// the first run completes.
func (c *Coordinator) Run() Report {
	c.once.Do(func() {
		c.log.Info("shutting down")
		for _, step := range c.steps {
			c.report = append(c.report, attempt(c.log, step))
		}
		if failed := c.report.Failed(); len(failed) > 0 {
			c.log.Warn("shutdown finished with errors", "failed", len(failed))
		} else {
			c.log.Info("shutdown complete")
		}
	})
	return c.report
}

// attempt runs one step, converting a panic into an error so the remaining
// steps still run, and logs the outcome.
func attempt(logger *log.Logger, step Step) (out Outcome) {
	out.Step = step.Name
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("panic: %v", r)
		}
		out.Duration = time.Since(start)
		if out.Err != nil {
			logger.Error("shutdown step failed", "step", step.Name, "err", out.Err)
		} else {
			logger.Debug("shutdown step done", "step", step.Name, "took", out.Duration)
		}
	}()
	out.Err = step.Run()
	return out
}
