package runner

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/turnandrun/internal/action"
	"github.com/sweeney/turnandrun/internal/adc"
	"github.com/sweeney/turnandrun/internal/config"
)

// Options configures a Supervisor.
type Options struct {
	Sampler   adc.Sampler
	Runner    action.Runner
	Notifiers []Notifier
	Logger    *log.Logger
	Report    io.Writer
	Now       func() time.Time

	// Reporter, if set, runs alongside the workers until they have all
	// returned. Its context is cancelled after the last worker exits.
	Reporter func(ctx context.Context)

	// OnStop is called from the worker's goroutine once a channel has
	// stopped, with the status it ended with.
	OnStop func(channel int, st Status)
}

// Supervisor runs one Worker per enabled channel.
type Supervisor struct {
	workers  []*Worker
	states   [config.NumChannels]*ChannelState
	reporter func(ctx context.Context)
	onStop   func(channel int, st Status)
	logger   *log.Logger
}

// NewSupervisor creates workers for every enabled channel of cfg. All
// workers share one serialized sampler.
func NewSupervisor(cfg *config.Config, opts Options) *Supervisor {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	sampler := adc.Serialized(opts.Sampler)

	s := &Supervisor{
		reporter: opts.Reporter,
		onStop:   opts.OnStop,
		logger:   logger,
	}
	for _, ch := range cfg.Enabled() {
		state := NewChannelState(ch)
		s.states[ch] = state
		s.workers = append(s.workers, NewWorker(ch, cfg.Channels[ch], state, WorkerOptions{
			Sampler:   sampler,
			Runner:    opts.Runner,
			Notifiers: opts.Notifiers,
			Logger:    logger,
			Report:    opts.Report,
			Now:       opts.Now,
		}))
	}
	return s
}

// States returns the channel states indexed by channel; disabled channels
// are nil.
func (s *Supervisor) States() [config.NumChannels]*ChannelState {
	return s.states
}

// Workers returns the workers in channel order.
func (s *Supervisor) Workers() []*Worker {
	return s.workers
}

// Run starts every worker and blocks until all of them have returned. A
// channel that stops with an error does not stop the others. The result is
// the first worst status in channel order.
func (s *Supervisor) Run(ctx context.Context) Status {
	statuses := make([]Status, len(s.workers))

	// A plain Group never cancels siblings; Wait only reports the first
	// channel to fail.
	var workers errgroup.Group
	for i, w := range s.workers {
		i, w := i, w
		workers.Go(func() error {
			st := w.Run(ctx)
			statuses[i] = st
			if s.onStop != nil {
				s.onStop(w.Channel(), st)
			}
			if st.IsError() {
				return st.Err
			}
			return nil
		})
	}

	// The reporter outlives the workers and is stopped once they are done.
	reporterCtx, stopReporter := context.WithCancel(context.Background())
	var tasks errgroup.Group
	if s.reporter != nil {
		tasks.Go(func() error {
			s.reporter(reporterCtx)
			return nil
		})
	}
	tasks.Go(func() error {
		defer stopReporter()
		return workers.Wait()
	})
	if err := tasks.Wait(); err != nil {
		s.logger.Error("first channel failure", "err", err)
	}

	worst := Worst(statuses...)
	if !worst.IsOK() {
		s.logger.Warn("channels finished", "status", worst.Severity, "err", worst.Err)
	} else {
		s.logger.Debug("channels finished", "status", worst.Severity)
	}
	return worst
}
