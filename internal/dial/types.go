// Package dial contains the pure position logic for a potentiometer dial:
// hysteresis bands, mark resolution and the settle timer.
// This package has NO external I/O (no ADC, MQTT, OS, or time.Sleep).
// Time is always injectable via a clock function.
package dial

import (
	"math"
	"sort"
	"time"
)

// Mark identifies a discrete dial position. Configured marks are the raw
// readings the commands are bound to.
type Mark int64

// Unset means "no resolvable position". It is never dispatched.
const Unset Mark = math.MinInt64

// Command is bound to a Mark. Label is for reporting, Action is handed to
// the action runner unchanged.
type Command struct {
	Label  string
	Action string
}

// CommandTable maps marks to commands.
type CommandTable map[Mark]Command

// Marks returns the configured marks in ascending order.
func (t CommandTable) Marks() []Mark {
	marks := make([]Mark, 0, len(t))
	for m := range t {
		marks = append(marks, m)
	}
	sort.Slice(marks, func(i, j int) bool { return marks[i] < marks[j] })
	return marks
}

// Lookup returns the command for m, or a zero Command if m is not configured.
func (t CommandTable) Lookup(m Mark) Command {
	return t[m]
}

// Dispatch is emitted once each time a channel settles on a new mark.
type Dispatch struct {
	ID      string
	Channel int
	Mark    Mark
	Label   string
	Action  string
	Time    time.Time
	Ran     bool // false when the action was only printed or not run at all
}
