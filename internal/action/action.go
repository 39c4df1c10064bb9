// Package action starts the external command bound to a dial mark.
// Execution is fire-and-forget: the caller never learns whether the
// command succeeded.
package action

import (
	"os/exec"
	"sync"

	"github.com/charmbracelet/log"
)

// Runner executes actions.
type Runner interface {
	Execute(action string)
}

// ShellRunner runs each action with /bin/sh -c.
type ShellRunner struct {
	Shell  string
	Logger *log.Logger
}

// NewShellRunner returns a runner using /bin/sh.
func NewShellRunner(logger *log.Logger) *ShellRunner {
	return &ShellRunner{Shell: "/bin/sh", Logger: logger}
}

// Execute starts the action and returns without waiting for it. The process
// is reaped in the background; its exit status is only logged.
func (r *ShellRunner) Execute(action string) {
	cmd := exec.Command(r.Shell, "-c", action)
	if err := cmd.Start(); err != nil {
		r.logger().Error("could not start command", "command", action, "err", err)
		return
	}
	go func() {
		err := cmd.Wait()
		r.logger().Debug("command finished", "command", action, "pid", cmd.Process.Pid, "err", err)
	}()
}

func (r *ShellRunner) logger() *log.Logger {
	if r.Logger == nil {
		return log.Default()
	}
	return r.Logger
}

// Recorder is a test double that records executed actions.
// It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	actions []string
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Execute records the action.
func (r *Recorder) Execute(action string) {
	r.mu.Lock()
	r.actions = append(r.actions, action)
	r.mu.Unlock()
}

// Actions returns a copy of the recorded actions in order.
func (r *Recorder) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.actions))
	copy(out, r.actions)
	return out
}

// Reset clears recorded actions.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.actions = nil
	r.mu.Unlock()
}
