package config

import (
	"bytes"
	"io"
	"math"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/turnandrun/internal/dial"
)

// fileConfig is the YAML representation of Config.
type fileConfig struct {
	Device    string                 `yaml:"device"`
	MonitorHz float64                `yaml:"monitor_hz"`
	Channels  map[string]channelFile `yaml:"channels"`

	MQTT    MQTTConfig    `yaml:"mqtt"`
	HTTP    HTTPConfig    `yaml:"http"`
	Influx  InfluxConfig  `yaml:"influx"`
	LED     LEDConfig     `yaml:"led"`
	Logging LoggingConfig `yaml:"logging"`
}

// channelFile holds one channel section. Unset fields keep their defaults.
type channelFile struct {
	Enabled       *bool         `yaml:"enabled"`
	TurnBeforeRun *bool         `yaml:"turn_before_run"`
	CommandDelay  *float64      `yaml:"command_delay"` // seconds
	Overlap       *float64      `yaml:"overlap"`       // percent
	Frequency     *float64      `yaml:"frequency"`
	RunCommands   *bool         `yaml:"run_commands"`
	PrintCommands *bool         `yaml:"print_commands"`
	ReadRetries   *int          `yaml:"read_retries"`
	Commands      []commandFile `yaml:"commands"`
}

type commandFile struct {
	Reading int64  `yaml:"reading"`
	Label   string `yaml:"label"`
	Command string `yaml:"command"`
}

// LoadYAMLFile reads a YAML configuration file. The result is not validated.
func LoadYAMLFile(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config file")
	}
	return ParseYAML(b)
}

// ParseYAML decodes a YAML document. Unknown fields and duplicate channel
// sections are rejected.
func ParseYAML(b []byte) (Config, error) {
	def := Default()
	fc := fileConfig{
		Device:    def.Device,
		MonitorHz: def.MonitorHz,
		MQTT:      def.MQTT,
		HTTP:      def.HTTP,
		Influx:    def.Influx,
		LED:       def.LED,
		Logging:   def.Logging,
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		return Config{}, errors.Wrap(err, "decode config yaml")
	}
	// only whitespace and comments may follow the document
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, errors.New("decode config yaml: unexpected trailing document")
	}

	cfg := def
	cfg.Device = fc.Device
	cfg.MonitorHz = fc.MonitorHz
	cfg.MQTT = fc.MQTT
	cfg.HTTP = fc.HTTP
	cfg.Influx = fc.Influx
	cfg.LED = fc.LED
	cfg.Logging = fc.Logging

	var seen [NumChannels]bool
	for letter, ch := range fc.Channels {
		idx, ok := ChannelIndex(letter)
		if !ok {
			return Config{}, errors.Errorf("channels: unknown channel letter '%s'", letter)
		}
		if seen[idx] {
			return Config{}, errors.Errorf("channels: channel '%s' section already given", ChannelLetter(idx))
		}
		seen[idx] = true
		s, enabled, err := ch.settings()
		if err != nil {
			return Config{}, errors.Wrapf(err, "channel '%s'", ChannelLetter(idx))
		}
		if enabled {
			cfg.Channels[idx] = &s
		}
	}
	return cfg, nil
}

func (c channelFile) settings() (Settings, bool, error) {
	s := DefaultSettings()
	enabled := true
	if c.Enabled != nil {
		enabled = *c.Enabled
	}
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"command_delay", c.CommandDelay},
		{"overlap", c.Overlap},
		{"frequency", c.Frequency},
	} {
		if f.v != nil && (math.IsNaN(*f.v) || math.IsInf(*f.v, 0)) {
			return Settings{}, false, errors.Errorf("setting '%s': value %g: not a finite number", f.name, *f.v)
		}
	}
	if c.TurnBeforeRun != nil {
		s.TurnBeforeRun = *c.TurnBeforeRun
	}
	if c.CommandDelay != nil {
		s.CommandDelay = time.Duration(*c.CommandDelay * float64(time.Second))
	}
	if c.Overlap != nil {
		s.Overlap = *c.Overlap / 100
	}
	if c.Frequency != nil {
		s.Frequency = *c.Frequency
	}
	if c.RunCommands != nil {
		s.RunCommands = *c.RunCommands
	}
	if c.PrintCommands != nil {
		s.PrintCommands = *c.PrintCommands
	}
	if c.ReadRetries != nil {
		s.ReadRetries = *c.ReadRetries
	}
	for _, cmd := range c.Commands {
		if err := validateCommand(cmd.Reading, cmd.Label, cmd.Command); err != nil {
			return Settings{}, false, err
		}
		m := dial.Mark(cmd.Reading)
		if _, dup := s.Commands[m]; dup {
			return Settings{}, false, errors.Errorf("dial command %d: reading given more than once", cmd.Reading)
		}
		s.Commands[m] = dial.Command{Label: cmd.Label, Action: cmd.Command}
	}
	return s, enabled, nil
}
