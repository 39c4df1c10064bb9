package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/turnandrun/internal/dial"
)

const sampleConf = `
# kitchen radio
CHANNEL a
turn_before_run = 0
command_delay = 1.5
overlap = 10
frequency = 20
print_commands = 1
100 = Radio 4, mpc play 1
  2000 =  Off , mpc stop
26000 = Jazz, mpc play 2, then volume

CHANNEL c
run_commands = 0
`

func TestParseConf(t *testing.T) {
	cfg, err := ParseConf(strings.NewReader(sampleConf))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []int{0, 2}, cfg.Enabled())

	a := cfg.Channels[0]
	require.NotNil(t, a)
	assert.False(t, a.TurnBeforeRun)
	assert.Equal(t, 1500*time.Millisecond, a.CommandDelay)
	assert.InDelta(t, 0.10, a.Overlap, 1e-9)
	assert.Equal(t, 20.0, a.Frequency)
	assert.True(t, a.RunCommands)
	assert.True(t, a.PrintCommands)
	assert.Equal(t, dial.CommandTable{
		100:   {Label: "Radio 4", Action: "mpc play 1"},
		2000:  {Label: "Off", Action: "mpc stop"},
		26000: {Label: "Jazz", Action: "mpc play 2, then volume"},
	}, a.Commands)

	c := cfg.Channels[2]
	require.NotNil(t, c)
	assert.False(t, c.RunCommands)
	assert.Empty(t, c.Commands)
	assert.Equal(t, DefaultSettings().Frequency, c.Frequency)
	assert.True(t, c.TurnBeforeRun)
}

func TestParseConfDisabledChannel(t *testing.T) {
	cfg, err := ParseConf(strings.NewReader("CHANNEL b\nenabled = 0\n1 = a, b\n"))
	require.NoError(t, err)
	assert.Nil(t, cfg.Channels[1])
	assert.EqualError(t, cfg.Validate(), "no channel is enabled")
}

func TestParseConfLowercaseLetter(t *testing.T) {
	cfg, err := ParseConf(strings.NewReader("CHANNEL D\n1 = a, b\n2 = c, d\n"))
	require.NoError(t, err)
	assert.NotNil(t, cfg.Channels[3])
}

func TestParseConfErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no section", "100 = a, b\n", "line 1: first line is not a CHANNEL section start"},
		{"no letter", "CHANNEL\n", "line 1: CHANNEL section start: letter not given"},
		{"two letters", "CHANNEL ab\n", "line 1: CHANNEL section start: more than one letter given"},
		{"bad letter", "CHANNEL e\n", "line 1: CHANNEL section start: unknown channel letter 'e'"},
		{"duplicate section", "CHANNEL a\n\nCHANNEL A\n", "line 3: CHANNEL section start: channel 'a' section already given"},
		{"no equals", "CHANNEL a\nfrequency 10\n", "line 2: did not include '='"},
		{"no comma", "CHANNEL a\n100 = radio\n", "line 2: dial command: did not include a ','"},
		{"negative reading", "CHANNEL a\n-5 = radio, play\n", "line 2: dial command: dial reading cannot be negative"},
		{"empty label", "CHANNEL a\n5 = , play\n", "line 2: dial command: no command label given"},
		{"empty action", "CHANNEL a\n5 = radio,\n", "line 2: dial command: no command given"},
		{"duplicate reading", "CHANNEL a\n5 = a, b\n5 = c, d\n", "line 3: dial command: dial reading 5 given more than once"},
		{"no setting", "CHANNEL a\n = 5\n", "line 2: setting: no setting given"},
		{"no value", "CHANNEL a\nfrequency =\n", "line 2: setting: no value given"},
		{"unknown setting", "CHANNEL a\ndead_zone = 5\n", "line 2: setting: setting 'dead_zone': unknown setting"},
		{"not a number", "CHANNEL a\noverlap = lots\n", "line 2: setting: setting 'overlap': value 'lots': not a number"},
		{"overlap range", "CHANNEL a\noverlap = 51\n", "line 2: setting: setting 'overlap': value '51': must be in range 0 to 50"},
		{"delay range", "CHANNEL a\ncommand_delay = 11\n", "line 2: setting: setting 'command_delay': value '11': must be in range 0 to 10"},
		{"frequency range", "CHANNEL a\nfrequency = 0.5\n", "line 2: setting: setting 'frequency': value '0.5': must be in range 1 to 50"},
		{"frequency nan", "CHANNEL a\nfrequency = nan\n", "line 2: setting: setting 'frequency': value 'nan': must be in range 1 to 50"},
		{"overlap nan", "CHANNEL a\noverlap = NaN\n", "line 2: setting: setting 'overlap': value 'NaN': must be in range 0 to 50"},
		{"delay nan", "CHANNEL a\ncommand_delay = nan\n", "line 2: setting: setting 'command_delay': value 'nan': must be in range 0 to 10"},
		{"frequency inf", "CHANNEL a\nfrequency = +Inf\n", "line 2: setting: setting 'frequency': value '+Inf': must be in range 1 to 50"},
		{"retries", "CHANNEL a\nread_retries = x\n", "line 2: setting: setting 'read_retries': value 'x': not an integer"},
		{"bad flag", "CHANNEL a\nrun_commands = yes\n", "line 2: setting: setting 'run_commands': must be one digit, 0 or 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConf(strings.NewReader(tt.in))
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestParseConfTooFewCommandsRejectedByValidate(t *testing.T) {
	cfg, err := ParseConf(strings.NewReader("CHANNEL b\n100 = one, cmd\n"))
	require.NoError(t, err)
	assert.EqualError(t, cfg.Validate(), "channel 'b': included less than two commands")
}
