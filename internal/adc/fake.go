package adc

import (
	"fmt"
	"sync"
)

// Sample is one scripted reading. A non-nil Err is returned instead of Value.
type Sample struct {
	Value int64
	Err   error
}

// Values builds a script of plain readings.
func Values(vs ...int64) []Sample {
	out := make([]Sample, len(vs))
	for i, v := range vs {
		out[i] = Sample{Value: v}
	}
	return out
}

// Repeat returns n copies of v.
func Repeat(v int64, n int) []Sample {
	out := make([]Sample, n)
	for i := range out {
		out[i] = Sample{Value: v}
	}
	return out
}

// FakeSampler is a test double that returns scripted values per channel.
// It is safe for concurrent use.
type FakeSampler struct {
	mu sync.Mutex

	// Scripts holds the samples for each channel. Each ReadRaw consumes the
	// next sample; once exhausted the last sample is returned repeatedly.
	Scripts map[int][]Sample

	index  map[int]int
	reads  map[int]int
	closed bool
}

// NewFakeSampler creates a FakeSampler with the given per-channel scripts.
func NewFakeSampler(scripts map[int][]Sample) *FakeSampler {
	if scripts == nil {
		scripts = map[int][]Sample{}
	}
	return &FakeSampler{
		Scripts: scripts,
		index:   map[int]int{},
		reads:   map[int]int{},
	}
}

// ReadRaw returns the next scripted sample for channel.
func (f *FakeSampler) ReadRaw(channel int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reads[channel]++
	script := f.Scripts[channel]
	if len(script) == 0 {
		return 0, fmt.Errorf("no samples configured for channel %d", channel)
	}

	i := f.index[channel]
	s := script[i]
	if i < len(script)-1 {
		f.index[channel] = i + 1
	}
	return s.Value, s.Err
}

// Reads returns how many times channel has been read.
func (f *FakeSampler) Reads(channel int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[channel]
}

// Close marks the sampler as closed.
func (f *FakeSampler) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakeSampler) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Reset rewinds every script to its start.
func (f *FakeSampler) Reset() {
	f.mu.Lock()
	f.index = map[int]int{}
	f.reads = map[int]int{}
	f.closed = false
	f.mu.Unlock()
}
