// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/turnandrun/internal/dial"
	"github.com/sweeney/turnandrun/internal/status"
)

// Topic suffixes below the configured prefix.
const (
	SuffixDispatch = "dispatch"
	SuffixSystem   = "system"
)

// System event names.
const (
	EventStartup        = "STARTUP"
	EventShutdown       = "SHUTDOWN"
	EventHeartbeat      = "HEARTBEAT"
	EventReconnected    = "RECONNECTED"
	EventOffline        = "OFFLINE"
	EventChannelStopped = "CHANNEL_STOPPED"
)

// Topics holds the full topic names for one prefix.
type Topics struct {
	Dispatch string
	System   string
}

// NewTopics returns the topics below prefix.
func NewTopics(prefix string) Topics {
	return Topics{
		Dispatch: prefix + "/" + SuffixDispatch,
		System:   prefix + "/" + SuffixSystem,
	}
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a dispatch to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(d dial.Dispatch) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "CHANNEL_STOPPED"
	Reason     string // e.g., "SIGTERM", or the error that stopped a channel
	Channel    string // channel letter, CHANNEL_STOPPED only
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload for a dispatch.
type Payload struct {
	Dispatch status.DispatchJSON `json:"dispatch"`
}

// FormatPayload creates the JSON payload for a dispatch.
func FormatPayload(d dial.Dispatch) ([]byte, error) {
	return json.Marshal(Payload{Dispatch: status.BuildDispatch(d)})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED, CHANNEL_STOPPED) that don't
// carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
	Channel   string `json:"channel,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
			Channel:   event.Channel,
		},
	}
	return json.Marshal(payload)
}
