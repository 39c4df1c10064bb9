package dial

import "time"

// Forever is an initial delay long enough that the timer only expires after
// a real Reset. It is used when the dial must be turned before the first
// command runs.
const Forever = 10_000_000 * time.Second

// SettleTimer is a restartable countdown. It is owned by a single worker
// and is not safe for concurrent use.
type SettleTimer struct {
	now      func() time.Time
	deadline time.Time
}

// NewSettleTimer returns a timer armed with the given initial delay.
func NewSettleTimer(now func() time.Time, initial time.Duration) *SettleTimer {
	if now == nil {
		now = time.Now
	}
	t := &SettleTimer{now: now}
	t.Reset(initial)
	return t
}

// InitialDelay returns the delay a channel's timer starts with.
func InitialDelay(turnBeforeRun bool, commandDelay time.Duration) time.Duration {
	if turnBeforeRun {
		return Forever
	}
	return commandDelay
}

// Reset restarts the countdown from now.
func (t *SettleTimer) Reset(d time.Duration) {
	t.deadline = t.now().Add(d)
}

// Expired reports whether the deadline has been reached.
func (t *SettleTimer) Expired() bool {
	return !t.now().Before(t.deadline)
}

// Deadline returns the current deadline.
func (t *SettleTimer) Deadline() time.Time {
	return t.deadline
}
