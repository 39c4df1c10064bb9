//go:build linux

package adc

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SysfsRoot is where IIO devices are listed.
const SysfsRoot = "/sys/bus/iio/devices"

// IIOSampler reads an ADS1X15 through its IIO sysfs attributes.
type IIOSampler struct {
	dir string
}

// NewIIOSampler locates the IIO device called name under root.
func NewIIOSampler(root, name string) (*IIOSampler, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("list iio devices: %w", err)
	}
	for _, e := range entries {
		dir := filepath.Join(root, e.Name())
		b, err := os.ReadFile(filepath.Join(dir, "name"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(b)) == name {
			return &IIOSampler{dir: dir}, nil
		}
	}
	return nil, fmt.Errorf("could not open %s device: not found under %s", name, root)
}

// ReadRaw reads in_voltage<channel>_raw.
func (s *IIOSampler) ReadRaw(channel int) (int64, error) {
	if channel < 0 || channel >= NumChannels {
		return 0, fmt.Errorf("channel %d out of range", channel)
	}
	attr := AttrName(channel)
	b, err := os.ReadFile(filepath.Join(s.dir, attr))
	if err != nil {
		return 0, fmt.Errorf("could not read values from device from %s: %w", attr, err)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", attr, err)
	}
	return v, nil
}

// Close is a no-op; every read opens and closes the attribute file.
func (s *IIOSampler) Close() error {
	return nil
}
