// Package status provides a thread-safe status tracker for the turnandrun daemon.
// It is read by the HTTP handlers, the MQTT system events and the monitor line.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/turnandrun/internal/config"
	"github.com/sweeney/turnandrun/internal/runner"
)

// Config contains daemon configuration for display.
type Config struct {
	Device       string
	Broker       string
	HTTPAddr     string
	HeartbeatSec int
	MonitorHz    float64
}

// ChannelView is one channel as seen by the reporters: its live state
// plus the settings it runs with.
type ChannelView struct {
	Letter   string
	State    runner.ChannelSnapshot
	Settings config.Settings
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Channels      []ChannelView
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Overall returns the worst status of all channels, first in channel order.
func (s Snapshot) Overall() runner.Status {
	statuses := make([]runner.Status, len(s.Channels))
	for i, ch := range s.Channels {
		statuses[i] = ch.State.Status
	}
	return runner.Worst(statuses...)
}

type trackedChannel struct {
	state    *runner.ChannelState
	settings config.Settings
}

// Tracker holds daemon state behind an RWMutex. Channel states carry
// their own locks and are read one at a time, so a snapshot may mix
// channel readings taken a few microseconds apart.
type Tracker struct {
	mu            sync.RWMutex
	startTime     time.Time
	cfg           Config
	mqttConnected bool
	channels      []trackedChannel
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{startTime: startTime, cfg: cfg}
}

// AddChannel registers a channel state for reporting. Channels are
// reported in the order they were added.
func (t *Tracker) AddChannel(state *runner.ChannelState, s *config.Settings) {
	t.mu.Lock()
	t.channels = append(t.channels, trackedChannel{state: state, settings: *s})
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.mqttConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := Snapshot{
		StartTime:     t.startTime,
		MQTTConnected: t.mqttConnected,
		Config:        t.cfg,
		Channels:      make([]ChannelView, len(t.channels)),
	}
	for i, ch := range t.channels {
		snap := ch.state.Snapshot()
		s.Channels[i] = ChannelView{
			Letter:   config.ChannelLetter(snap.Channel),
			State:    snap,
			Settings: ch.settings,
		}
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
