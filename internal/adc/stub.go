//go:build !linux

package adc

import "errors"

// SysfsRoot is where IIO devices are listed on Linux.
const SysfsRoot = "/sys/bus/iio/devices"

// IIOSampler is not available on non-Linux platforms.
type IIOSampler struct{}

// NewIIOSampler returns an error on non-Linux platforms.
func NewIIOSampler(root, name string) (*IIOSampler, error) {
	return nil, errors.New("adc: not supported on this platform (requires Linux)")
}

// ReadRaw is not implemented on non-Linux platforms.
func (s *IIOSampler) ReadRaw(channel int) (int64, error) {
	return 0, errors.New("adc: not supported")
}

// Close is not implemented on non-Linux platforms.
func (s *IIOSampler) Close() error {
	return nil
}
