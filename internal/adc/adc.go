// Package adc provides analog sampling with hardware abstraction.
// The real implementation reads the Linux IIO sysfs interface of an ADS1X15.
// The fake implementation allows testing without hardware.
package adc

import "sync"

// NumChannels is the number of single-ended inputs on an ADS1X15.
const NumChannels = 4

// DefaultDevice is the IIO device name the ADS1X15 driver registers.
const DefaultDevice = "ads1015"

// Sampler reads raw converter values.
type Sampler interface {
	// ReadRaw returns the latest raw value of the given channel (0-3).
	ReadRaw(channel int) (int64, error)

	// Close releases device resources.
	Close() error
}

// Serialized wraps s so that every read holds one shared lock. The device
// does not guarantee safe concurrent access from several channel workers.
func Serialized(s Sampler) Sampler {
	return &lockedSampler{inner: s}
}

type lockedSampler struct {
	mu    sync.Mutex
	inner Sampler
}

func (l *lockedSampler) ReadRaw(channel int) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.ReadRaw(channel)
}

func (l *lockedSampler) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.Close()
}
