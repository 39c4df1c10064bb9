package runner

import (
	"sync"
	"time"

	"github.com/sweeney/turnandrun/internal/dial"
)

// ChannelSnapshot is a point-in-time view of one channel.
// It is a value type, safe to use after the lock is released.
type ChannelSnapshot struct {
	Channel    int
	Raw        int64
	Resolved   dial.Mark
	Dispatched dial.Mark
	Dispatches int
	LastError  string
	Running    bool
	Status     Status
	UpdatedAt  time.Time
}

// ChannelState is shared between a channel's worker, its only writer, and
// any number of readers.
type ChannelState struct {
	mu   sync.Mutex
	snap ChannelSnapshot
}

// NewChannelState creates the state of a channel that has not sampled yet.
func NewChannelState(channel int) *ChannelState {
	return &ChannelState{
		snap: ChannelSnapshot{
			Channel:    channel,
			Resolved:   dial.Unset,
			Dispatched: dial.Unset,
		},
	}
}

// SetSample records the latest raw value and the mark it resolved to.
func (c *ChannelState) SetSample(raw int64, resolved dial.Mark, at time.Time) {
	c.mu.Lock()
	c.snap.Raw = raw
	c.snap.Resolved = resolved
	c.snap.UpdatedAt = at
	c.mu.Unlock()
}

// SetDispatched records a dispatched mark.
func (c *ChannelState) SetDispatched(m dial.Mark) {
	c.mu.Lock()
	c.snap.Dispatched = m
	c.snap.Dispatches++
	c.mu.Unlock()
}

// SetError records the most recent sampling error.
func (c *ChannelState) SetError(err error) {
	c.mu.Lock()
	if err == nil {
		c.snap.LastError = ""
	} else {
		c.snap.LastError = err.Error()
	}
	c.mu.Unlock()
}

// SetRunning marks the channel task as started.
func (c *ChannelState) SetRunning() {
	c.mu.Lock()
	c.snap.Running = true
	c.mu.Unlock()
}

// Finish records the terminal status of the channel task.
func (c *ChannelState) Finish(st Status) {
	c.mu.Lock()
	c.snap.Running = false
	c.snap.Status = st
	c.mu.Unlock()
}

// Snapshot returns a copy of the channel state.
func (c *ChannelState) Snapshot() ChannelSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}
