// Package runner drives the dial channels: one worker per enabled channel
// samples, resolves, debounces and dispatches, and a supervisor runs the
// workers side by side and aggregates how they ended.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/sweeney/turnandrun/internal/action"
	"github.com/sweeney/turnandrun/internal/adc"
	"github.com/sweeney/turnandrun/internal/config"
	"github.com/sweeney/turnandrun/internal/dial"
)

// WorkerOptions holds the collaborators of a Worker.
type WorkerOptions struct {
	Sampler   adc.Sampler
	Runner    action.Runner
	Notifiers []Notifier
	Logger    *log.Logger
	Report    io.Writer        // COMMAND lines, defaults to os.Stdout
	Now       func() time.Time // called once per cycle, defaults to time.Now
	NewID     func() string    // dispatch ids, defaults to uuid.NewString
}

// Worker runs the sample/resolve/debounce/dispatch loop of one channel.
type Worker struct {
	channel  int
	settings *config.Settings
	bands    dial.BandMap
	state    *ChannelState

	sampler   adc.Sampler
	runner    action.Runner
	notifiers []Notifier
	logger    *log.Logger
	report    io.Writer
	now       func() time.Time
	newID     func() string
}

// NewWorker creates the worker of a channel. The band map is built once here.
func NewWorker(channel int, s *config.Settings, state *ChannelState, opts WorkerOptions) *Worker {
	w := &Worker{
		channel:   channel,
		settings:  s,
		bands:     dial.BuildBandMap(s.Commands, s.Overlap),
		state:     state,
		sampler:   opts.Sampler,
		runner:    opts.Runner,
		notifiers: opts.Notifiers,
		logger:    opts.Logger,
		report:    opts.Report,
		now:       opts.Now,
		newID:     opts.NewID,
	}
	if w.state == nil {
		w.state = NewChannelState(channel)
	}
	if w.logger == nil {
		w.logger = log.Default()
	}
	w.logger = w.logger.With("channel", config.ChannelLetter(channel))
	if w.report == nil {
		w.report = os.Stdout
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.newID == nil {
		w.newID = uuid.NewString
	}
	return w
}

// Channel returns the channel index.
func (w *Worker) Channel() int { return w.channel }

// State returns the state the worker writes to.
func (w *Worker) State() *ChannelState { return w.state }

// Bands returns the band map of the channel.
func (w *Worker) Bands() dial.BandMap { return w.bands }

// Run samples at the configured frequency until ctx is cancelled or the
// sampler fails more often in a row than the channel tolerates.
func (w *Worker) Run(ctx context.Context) Status {
	interval := w.settings.PollInterval()
	if interval <= 0 {
		st := Failure(errors.Errorf("channel %s: invalid poll interval %v", config.ChannelLetter(w.channel), interval))
		w.logger.Error("channel not started", "err", st.Err)
		w.state.Finish(st)
		return st
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	return w.loop(ctx, ticker.C)
}

// loop runs one cycle immediately and one more per tick.
func (w *Worker) loop(ctx context.Context, tick <-chan time.Time) Status {
	var at time.Time
	var timer *dial.SettleTimer

	last := dial.Unset
	dispatched := dial.Unset
	seeded := false
	failures := 0
	var transient error

	w.state.SetRunning()
	w.logger.Debug("channel started", "interval", w.settings.PollInterval(), "bands", w.bands.Len())

	for {
		at = w.now()
		if timer == nil {
			timer = dial.NewSettleTimer(func() time.Time { return at },
				dial.InitialDelay(w.settings.TurnBeforeRun, w.settings.CommandDelay))
		}

		raw, err := w.sampler.ReadRaw(w.channel)
		if err != nil {
			failures++
			w.state.SetError(err)
			if failures > w.settings.ReadRetries {
				st := Failure(errors.Wrapf(err, "channel %s", config.ChannelLetter(w.channel)))
				w.logger.Error("sampling failed, channel stopped", "err", err, "failures", failures)
				w.state.Finish(st)
				return st
			}
			transient = err
			w.logger.Warn("sampling failed", "err", err, "failures", failures)
		} else {
			failures = 0
			mark := w.bands.Resolve(raw, last)
			if !seeded {
				last = mark
				seeded = true
			}
			if mark != last {
				timer.Reset(w.settings.CommandDelay)
			}
			w.state.SetSample(raw, mark, at)

			if timer.Expired() && mark != dispatched && mark != dial.Unset {
				dispatched = mark
				w.dispatch(mark, at)
			}
			last = mark
		}

		select {
		case <-ctx.Done():
			st := Status{}
			if transient != nil {
				st = Warning(errors.Wrapf(transient, "channel %s had read errors", config.ChannelLetter(w.channel)))
			}
			w.state.Finish(st)
			w.logger.Debug("channel stopped", "status", st.Severity)
			return st
		case <-tick:
		}
	}
}

func (w *Worker) dispatch(m dial.Mark, at time.Time) {
	cmd := w.settings.Commands.Lookup(m)
	w.state.SetDispatched(m)

	if w.settings.PrintCommands {
		fmt.Fprintf(w.report, "\nCOMMAND (mark: %-10d) %s: %s\n", int64(m), cmd.Label, cmd.Action)
	}
	w.logger.Info("dispatch", "mark", int64(m), "label", cmd.Label, "run", w.settings.RunCommands)

	ran := w.settings.RunCommands && w.runner != nil
	if ran {
		w.runner.Execute(cmd.Action)
	}

	d := dial.Dispatch{
		ID:      w.newID(),
		Channel: w.channel,
		Mark:    m,
		Label:   cmd.Label,
		Action:  cmd.Action,
		Time:    at,
		Ran:     ran,
	}
	for _, n := range w.notifiers {
		if err := n.Notify(d); err != nil {
			w.logger.Warn("notify failed", "err", err, "mark", int64(m))
		}
	}
}
