package config

import (
	"fmt"
	"strings"

	"github.com/sweeney/turnandrun/internal/dial"
)

// SettingsReport renders the settings of one channel in the form they are
// written in a configuration file.
func SettingsReport(s *Settings) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "  turn_before_run = %d\n", boolDigit(s.TurnBeforeRun))
	fmt.Fprintf(&sb, "  command_delay = %g\n", s.CommandDelay.Seconds())
	fmt.Fprintf(&sb, "  overlap = %g\n", s.Overlap*100)
	fmt.Fprintf(&sb, "  frequency = %g\n", s.Frequency)
	fmt.Fprintf(&sb, "  run_commands = %d\n", boolDigit(s.RunCommands))
	fmt.Fprintf(&sb, "  print_commands = %d\n", boolDigit(s.PrintCommands))
	fmt.Fprintf(&sb, "  read_retries = %d\n", s.ReadRetries)
	sb.WriteString("\n")
	if len(s.Commands) > 0 {
		for _, m := range s.Commands.Marks() {
			cmd := s.Commands[m]
			fmt.Fprintf(&sb, "  %7d = %s, %s\n", m, cmd.Label, cmd.Action)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Report renders the settings and band layout of every enabled channel.
func (c *Config) Report() string {
	var sb strings.Builder
	for _, idx := range c.Enabled() {
		s := c.Channels[idx]
		fmt.Fprintf(&sb, "\n== CHANNEL %s ==\n\n", ChannelLetter(idx))
		sb.WriteString("-- Configuration Settings --\n")
		sb.WriteString(SettingsReport(s))
		sb.WriteString("-- Band Settings --\n")
		sb.WriteString(dial.BandsReport(s.Commands, dial.BuildBandMap(s.Commands, s.Overlap)))
	}
	return sb.String()
}

func boolDigit(b bool) int {
	if b {
		return 1
	}
	return 0
}
