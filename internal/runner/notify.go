package runner

import "github.com/sweeney/turnandrun/internal/dial"

// Notifier is told about every dispatch after the action was handed off.
// Errors are logged by the worker and never stop the channel.
type Notifier interface {
	Notify(d dial.Dispatch) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(d dial.Dispatch) error

// Notify calls f(d).
func (f NotifierFunc) Notify(d dial.Dispatch) error { return f(d) }
