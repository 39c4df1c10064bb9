package gpio

import "sync"

// FakeLine is a test double that records the values written to it.
// It is safe for concurrent use.
type FakeLine struct {
	mu     sync.Mutex
	values []int
	closed bool

	// SetError, if set, will be returned by SetValue.
	SetError error
}

// NewFakeLine creates an unused FakeLine.
func NewFakeLine() *FakeLine {
	return &FakeLine{}
}

// SetValue records v.
func (f *FakeLine) SetValue(v int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.values = append(f.values, v)
	return nil
}

// Values returns a copy of the recorded values in order.
func (f *FakeLine) Values() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.values))
	copy(out, f.values)
	return out
}

// Value returns the last value written, 0 if none.
func (f *FakeLine) Value() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.values) == 0 {
		return 0
	}
	return f.values[len(f.values)-1]
}

// Close marks the line as closed.
func (f *FakeLine) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakeLine) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
