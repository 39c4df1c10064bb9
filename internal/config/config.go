// Package config loads and validates the dial configuration.
//
// Two file formats are accepted: YAML (.yaml, .yml) and the line based
// format of /etc/turnandrun.conf:
//
//	CHANNEL a
//	command_delay = 1.5
//	100 = Radio, mpc play
//
// Both produce the same Config and go through the same validation.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/sweeney/turnandrun/internal/adc"
	"github.com/sweeney/turnandrun/internal/dial"
)

// NumChannels is the number of dial channels.
const NumChannels = adc.NumChannels

// Setting limits.
const (
	MinFrequency    = 1
	MaxFrequency    = 50
	MaxCommandDelay = 10 * time.Second
	MaxOverlapPct   = 50
	MaxReadRetries  = 100
	MaxMonitorHz    = 50
)

// Settings holds the validated settings of one enabled channel.
type Settings struct {
	Commands      dial.CommandTable
	Overlap       float64 // fraction, 0 to 0.5
	CommandDelay  time.Duration
	Frequency     float64 // Hz
	TurnBeforeRun bool
	RunCommands   bool
	PrintCommands bool
	ReadRetries   int // consecutive read failures tolerated before the channel stops
}

// DefaultSettings returns the settings a new channel section starts with.
func DefaultSettings() Settings {
	return Settings{
		Commands:      dial.CommandTable{},
		Overlap:       0.05,
		CommandDelay:  time.Second,
		Frequency:     10,
		TurnBeforeRun: true,
		RunCommands:   true,
		PrintCommands: false,
	}
}

// PollInterval returns the time between two samples.
func (s Settings) PollInterval() time.Duration {
	return time.Duration(float64(time.Second) / s.Frequency)
}

// MQTTConfig configures the MQTT publisher. An empty broker disables it.
type MQTTConfig struct {
	Broker       string `yaml:"broker"`
	ClientID     string `yaml:"client_id"`
	TopicPrefix  string `yaml:"topic_prefix"`
	HeartbeatSec int    `yaml:"heartbeat_sec"`
}

// HTTPConfig configures the status server. An empty address disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// InfluxConfig configures the dispatch history writer. An empty URL disables it.
type InfluxConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// LEDConfig configures the dispatch indicator. A negative pin disables it.
type LEDConfig struct {
	Chip    string `yaml:"chip"`
	Pin     int    `yaml:"pin"`
	PulseMS int    `yaml:"pulse_ms"`
}

// LoggingConfig selects the log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Config is the complete daemon configuration. Channels[i] is nil when
// channel i is disabled.
type Config struct {
	Device    string
	MonitorHz float64
	Channels  [NumChannels]*Settings

	MQTT    MQTTConfig
	HTTP    HTTPConfig
	Influx  InfluxConfig
	LED     LEDConfig
	Logging LoggingConfig
}

// Default returns a Config with every channel disabled.
func Default() Config {
	return Config{
		Device: adc.DefaultDevice,
		MQTT: MQTTConfig{
			ClientID:     "turnandrun",
			TopicPrefix:  "turnandrun",
			HeartbeatSec: 900,
		},
		LED: LEDConfig{
			Chip:    "gpiochip0",
			Pin:     -1,
			PulseMS: 200,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Enabled returns the indices of the enabled channels in ascending order.
func (c *Config) Enabled() []int {
	var out []int
	for i, s := range c.Channels {
		if s != nil {
			out = append(out, i)
		}
	}
	return out
}

// ChannelLetter returns the letter (a-d) naming channel idx.
func ChannelLetter(idx int) string {
	return string(rune('a' + idx))
}

// ChannelIndex parses a channel letter.
func ChannelIndex(letter string) (int, bool) {
	l := strings.ToLower(strings.TrimSpace(letter))
	if len(l) != 1 || l[0] < 'a' || l[0] >= 'a'+NumChannels {
		return 0, false
	}
	return int(l[0] - 'a'), true
}

// Load reads a configuration file, choosing the format by extension, and
// validates it.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	var (
		cfg Config
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = LoadYAMLFile(path)
	default:
		cfg, err = LoadConfFile(path)
	}
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every invariant the channel workers rely on.
func (c *Config) Validate() error {
	enabled := c.Enabled()
	if len(enabled) == 0 {
		return errors.New("no channel is enabled")
	}
	for _, idx := range enabled {
		if err := c.Channels[idx].Validate(); err != nil {
			return errors.Wrapf(err, "channel '%s'", ChannelLetter(idx))
		}
	}

	if c.Device == "" {
		return errors.New("device must not be empty")
	}
	if !inRange(c.MonitorHz, 0, MaxMonitorHz) {
		return errors.Errorf("monitor_hz must be in range 0 to %d", MaxMonitorHz)
	}
	if c.MQTT.Broker != "" && c.MQTT.TopicPrefix == "" {
		return errors.New("mqtt.topic_prefix must not be empty when mqtt.broker is set")
	}
	if c.MQTT.HeartbeatSec < 0 {
		return errors.New("mqtt.heartbeat_sec must be >= 0")
	}
	if c.Influx.URL != "" && (c.Influx.Org == "" || c.Influx.Bucket == "") {
		return errors.New("influx.org and influx.bucket must be set when influx.url is set")
	}
	if c.LED.Pin >= 0 && c.LED.Chip == "" {
		return errors.New("led.chip must not be empty when led.pin is set")
	}
	if c.LED.PulseMS < 0 {
		return errors.New("led.pulse_ms must be >= 0")
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// Validate checks the ranges of one channel's settings.
func (s *Settings) Validate() error {
	if !inRange(s.Overlap, 0, dial.MaxOverlap) {
		return errors.Errorf("setting 'overlap': value %g: must be in range 0 to %d", s.Overlap*100, MaxOverlapPct)
	}
	if s.CommandDelay < 0 || s.CommandDelay > MaxCommandDelay {
		return errors.Errorf("setting 'command_delay': value %g: must be in range 0 to %d", s.CommandDelay.Seconds(), int(MaxCommandDelay.Seconds()))
	}
	if !inRange(s.Frequency, MinFrequency, MaxFrequency) {
		return errors.Errorf("setting 'frequency': value %g: must be in range %d to %d", s.Frequency, MinFrequency, MaxFrequency)
	}
	if s.ReadRetries < 0 || s.ReadRetries > MaxReadRetries {
		return errors.Errorf("setting 'read_retries': value %d: must be in range 0 to %d", s.ReadRetries, MaxReadRetries)
	}
	for m, cmd := range s.Commands {
		if err := validateCommand(int64(m), cmd.Label, cmd.Action); err != nil {
			return err
		}
	}
	if s.RunCommands && len(s.Commands) < 2 {
		return errors.New("included less than two commands")
	}
	return nil
}

// inRange reports whether lo <= v <= hi. NaN is never in range.
func inRange(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

func validateCommand(reading int64, label, action string) error {
	if reading < 0 {
		return errors.Errorf("dial command %d: dial reading cannot be negative", reading)
	}
	if label == "" {
		return errors.Errorf("dial command %d: no command label given", reading)
	}
	if action == "" {
		return errors.Errorf("dial command %d: no command given", reading)
	}
	return nil
}

// Overrides are flag values applied on top of a loaded file. Nil pointers
// are ignored.
type Overrides struct {
	Broker    *string
	HTTPAddr  *string
	LogLevel  *string
	MonitorHz *float64

	// DryRun turns command execution off and command printing on for every
	// channel.
	DryRun bool
}

// Apply merges the overrides into cfg.
func (o Overrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.Broker != nil {
		cfg.MQTT.Broker = *o.Broker
	}
	if o.HTTPAddr != nil {
		cfg.HTTP.Addr = *o.HTTPAddr
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.MonitorHz != nil {
		cfg.MonitorHz = *o.MonitorHz
	}
	if o.DryRun {
		for _, s := range cfg.Channels {
			if s == nil {
				continue
			}
			s.RunCommands = false
			s.PrintCommands = true
		}
	}
}
