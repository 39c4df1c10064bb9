package config

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/sweeney/turnandrun/internal/dial"
)

const channelKeyword = "CHANNEL"

// section is a CHANNEL block being parsed.
type section struct {
	settings Settings
	enabled  bool
}

// LoadConfFile reads a line based configuration file. The result is not
// validated.
func LoadConfFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "could not open file")
	}
	defer f.Close()
	return ParseConf(f)
}

// ParseConf parses the line based format. A file has three kinds of lines:
//
//	CHANNEL a, b, c or d
//	setting = value
//	dial_reading = command_label, command
func ParseConf(r io.Reader) (Config, error) {
	cfg := Default()
	var (
		sections [NumChannels]*section
		cur      *section
		lineNo   int
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prefix := "line " + strconv.Itoa(lineNo)

		if strings.HasPrefix(line, channelKeyword) {
			idx, err := parseChannelStart(line[len(channelKeyword):])
			if err != nil {
				return Config{}, errors.Wrapf(err, "%s: CHANNEL section start", prefix)
			}
			if sections[idx] != nil {
				return Config{}, errors.Errorf("%s: CHANNEL section start: channel '%s' section already given", prefix, ChannelLetter(idx))
			}
			cur = &section{settings: DefaultSettings(), enabled: true}
			sections[idx] = cur
			continue
		}

		if cur == nil {
			return Config{}, errors.Errorf("%s: first line is not a CHANNEL section start", prefix)
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return Config{}, errors.Errorf("%s: did not include '='", prefix)
		}
		key = strings.TrimSpace(key)

		if reading, err := strconv.ParseInt(key, 10, 64); err == nil {
			if err := cur.setCommand(reading, value); err != nil {
				return Config{}, errors.Wrapf(err, "%s: dial command", prefix)
			}
			continue
		}
		if err := cur.setSetting(key, strings.TrimSpace(value)); err != nil {
			return Config{}, errors.Wrapf(err, "%s: setting", prefix)
		}
	}
	if err := sc.Err(); err != nil {
		return Config{}, errors.Wrap(err, "read config file")
	}

	for i, sec := range sections {
		if sec != nil && sec.enabled {
			s := sec.settings
			cfg.Channels[i] = &s
		}
	}
	return cfg, nil
}

func parseChannelStart(rest string) (int, error) {
	letter := strings.TrimSpace(rest)
	switch {
	case letter == "":
		return 0, errors.New("letter not given")
	case len(letter) > 1:
		return 0, errors.New("more than one letter given")
	}
	idx, ok := ChannelIndex(letter)
	if !ok {
		return 0, errors.Errorf("unknown channel letter '%s'", letter)
	}
	return idx, nil
}

func (s *section) setCommand(reading int64, value string) error {
	label, action, ok := strings.Cut(value, ",")
	if !ok {
		return errors.New("did not include a ','")
	}
	label, action = strings.TrimSpace(label), strings.TrimSpace(action)
	switch {
	case reading < 0:
		return errors.New("dial reading cannot be negative")
	case label == "":
		return errors.New("no command label given")
	case action == "":
		return errors.New("no command given")
	}
	m := dial.Mark(reading)
	if _, dup := s.settings.Commands[m]; dup {
		return errors.Errorf("dial reading %d given more than once", reading)
	}
	s.settings.Commands[m] = dial.Command{Label: label, Action: action}
	return nil
}

func (s *section) setSetting(name, value string) error {
	if name == "" {
		return errors.New("no setting given")
	}
	if value == "" {
		return errors.New("no value given")
	}

	prefix := "setting '" + name + "': "
	switch name {
	case "overlap", "command_delay", "frequency":
		num, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return errors.Errorf("%svalue '%s': not a number", prefix, value)
		}
		lo, hi := 0.0, float64(MaxOverlapPct)
		switch name {
		case "command_delay":
			hi = MaxCommandDelay.Seconds()
		case "frequency":
			lo, hi = MinFrequency, MaxFrequency
		}
		if !inRange(num, lo, hi) {
			return errors.Errorf("%svalue '%s': must be in range %g to %g", prefix, value, lo, hi)
		}
		switch name {
		case "overlap":
			s.settings.Overlap = num / 100
		case "command_delay":
			s.settings.CommandDelay = time.Duration(num * float64(time.Second))
		default:
			s.settings.Frequency = num
		}

	case "read_retries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.Errorf("%svalue '%s': not an integer", prefix, value)
		}
		if n < 0 || n > MaxReadRetries {
			return errors.Errorf("%svalue '%s': must be in range 0 to %d", prefix, value, MaxReadRetries)
		}
		s.settings.ReadRetries = n

	case "enabled", "print_commands", "run_commands", "turn_before_run":
		if value != "0" && value != "1" {
			return errors.Errorf("%smust be one digit, 0 or 1", prefix)
		}
		flag := value == "1"
		switch name {
		case "enabled":
			s.enabled = flag
		case "print_commands":
			s.settings.PrintCommands = flag
		case "run_commands":
			s.settings.RunCommands = flag
		default:
			s.settings.TurnBeforeRun = flag
		}

	default:
		return errors.Errorf("%sunknown setting", prefix)
	}
	return nil
}
