package status

import (
	"encoding/json"
	"math"
	"time"

	"github.com/sweeney/turnandrun/internal/config"
	"github.com/sweeney/turnandrun/internal/dial"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Overall       string        `json:"overall"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Channels      []ChannelJSON `json:"channels"`
	Config        ConfigJSON    `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ChannelJSON is the JSON representation of one channel.
type ChannelJSON struct {
	Channel    string       `json:"channel"`
	Raw        int64        `json:"raw"`
	Mark       int64        `json:"mark"`
	Dispatched int64        `json:"dispatched"`
	Label      string       `json:"label,omitempty"`
	Dispatches int          `json:"dispatches"`
	Running    bool         `json:"running"`
	Status     string       `json:"status"`
	Error      string       `json:"error,omitempty"`
	Settings   SettingsJSON `json:"settings"`
}

// SettingsJSON is the JSON representation of a channel's settings.
type SettingsJSON struct {
	FrequencyHz    float64 `json:"frequency_hz"`
	CommandDelayMs int64   `json:"command_delay_ms"`
	OverlapPct     float64 `json:"overlap_pct"`
	TurnBeforeRun  bool    `json:"turn_before_run"`
	RunCommands    bool    `json:"run_commands"`
	PrintCommands  bool    `json:"print_commands"`
	Commands       int     `json:"commands"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Device       string  `json:"device"`
	Broker       string  `json:"broker"`
	HTTPAddr     string  `json:"http_addr"`
	HeartbeatSec int     `json:"heartbeat_sec"`
	MonitorHz    float64 `json:"monitor_hz"`
}

func buildChannel(v ChannelView) ChannelJSON {
	st := v.State
	c := ChannelJSON{
		Channel:    v.Letter,
		Raw:        st.Raw,
		Mark:       dial.FormatMark(st.Resolved),
		Dispatched: dial.FormatMark(st.Dispatched),
		Dispatches: st.Dispatches,
		Running:    st.Running,
		Status:     st.Status.Severity.String(),
		Error:      st.LastError,
		Settings: SettingsJSON{
			FrequencyHz:    v.Settings.Frequency,
			CommandDelayMs: v.Settings.CommandDelay.Milliseconds(),
			OverlapPct:     math.Round(v.Settings.Overlap*1000) / 10,
			TurnBeforeRun:  v.Settings.TurnBeforeRun,
			RunCommands:    v.Settings.RunCommands,
			PrintCommands:  v.Settings.PrintCommands,
			Commands:       len(v.Settings.Commands),
		},
	}
	if st.Dispatched != dial.Unset {
		c.Label = v.Settings.Commands.Lookup(st.Dispatched).Label
	}
	if st.Status.Err != nil {
		c.Error = st.Status.Err.Error()
	}
	return c
}

func buildInner(snap Snapshot) StatusInner {
	channels := make([]ChannelJSON, len(snap.Channels))
	for i, v := range snap.Channels {
		channels[i] = buildChannel(v)
	}

	return StatusInner{
		Overall:       snap.Overall().Severity.String(),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Channels:      channels,
		Config: ConfigJSON{
			Device:       snap.Config.Device,
			Broker:       snap.Config.Broker,
			HTTPAddr:     snap.Config.HTTPAddr,
			HeartbeatSec: snap.Config.HeartbeatSec,
			MonitorHz:    snap.Config.MonitorHz,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

// DispatchJSON is the JSON representation of a dispatch.
type DispatchJSON struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Channel   string `json:"channel"`
	Mark      int64  `json:"mark"`
	Label     string `json:"label"`
	Action    string `json:"action"`
	Ran       bool   `json:"ran"`
}

// BuildDispatch converts a dispatch for JSON output.
func BuildDispatch(d dial.Dispatch) DispatchJSON {
	return DispatchJSON{
		ID:        d.ID,
		Timestamp: d.Time.UTC().Format(time.RFC3339Nano),
		Channel:   config.ChannelLetter(d.Channel),
		Mark:      int64(d.Mark),
		Label:     d.Label,
		Action:    d.Action,
		Ran:       d.Ran,
	}
}
