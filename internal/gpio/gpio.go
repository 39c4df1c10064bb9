// Package gpio drives the dispatch indicator LED with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sweeney/turnandrun/internal/dial"
)

// Line is a single GPIO output.
type Line interface {
	// SetValue drives the line: 1 = active, 0 = inactive.
	SetValue(v int) error

	// Close releases GPIO resources.
	Close() error
}

// Indicator lights its line for a short pulse on every dispatch.
// A dispatch during a pulse restarts the pulse.
type Indicator struct {
	line   Line
	pulse  time.Duration
	logger *log.Logger

	mu     sync.Mutex
	timer  *time.Timer
	gen    int
	closed bool
}

// NewIndicator creates an indicator pulsing line for pulse.
func NewIndicator(line Line, pulse time.Duration, logger *log.Logger) *Indicator {
	if logger == nil {
		logger = log.Default()
	}
	return &Indicator{line: line, pulse: pulse, logger: logger}
}

// Notify starts a pulse. It never blocks for the length of the pulse.
func (i *Indicator) Notify(dial.Dispatch) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil
	}
	if i.timer != nil {
		i.timer.Stop()
	}
	if err := i.line.SetValue(1); err != nil {
		return err
	}
	i.gen++
	gen := i.gen
	i.timer = time.AfterFunc(i.pulse, func() { i.off(gen) })
	return nil
}

// off ends the pulse started as generation gen unless a newer one started.
func (i *Indicator) off(gen int) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed || gen != i.gen {
		return
	}
	if err := i.line.SetValue(0); err != nil {
		i.logger.Warn("indicator off", "err", err)
	}
}

// Close turns the line off and releases it.
func (i *Indicator) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil
	}
	i.closed = true
	if i.timer != nil {
		i.timer.Stop()
	}
	if err := i.line.SetValue(0); err != nil {
		i.logger.Warn("indicator off", "err", err)
	}
	return i.line.Close()
}
