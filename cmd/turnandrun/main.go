// Command turnandrun reads potentiometer dials through an ADS1X15 and runs
// the command bound to the position each dial settles on.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sweeney/turnandrun/internal/action"
	"github.com/sweeney/turnandrun/internal/adc"
	"github.com/sweeney/turnandrun/internal/config"
	"github.com/sweeney/turnandrun/internal/gpio"
	"github.com/sweeney/turnandrun/internal/history"
	"github.com/sweeney/turnandrun/internal/mqtt"
	"github.com/sweeney/turnandrun/internal/runner"
	"github.com/sweeney/turnandrun/internal/status"
	"github.com/sweeney/turnandrun/internal/web"
)

const defaultConfigPath = "/etc/turnandrun.conf"

type options struct {
	configPath string
	dryRun     bool
	raw        bool
	heartbeat  *time.Duration
	overrides  config.Overrides
}

func main() {
	configPath := flag.String("c", defaultConfigPath, "configuration file (.conf, .yaml or .yml)")
	dryRun := flag.Bool("d", false, "dry run: print the configuration and command bands, print commands instead of running them")
	raw := flag.Bool("raw", false, "print one raw reading per enabled channel and exit")
	broker := flag.String("broker", "", "MQTT broker address (overrides the configuration, empty disables)")
	httpAddr := flag.String("http", "", "HTTP status address (overrides the configuration, empty disables)")
	monitor := flag.Float64("monitor", 0, "monitor line rate in Hz (0 disables)")
	logLevel := flag.String("log-level", "", "log level: error, warn, info or debug")
	heartbeat := flag.Duration("heartbeat", 0, "MQTT heartbeat interval (overrides the configuration, 0 disables)")

	flag.Parse()

	opts := options{
		configPath: *configPath,
		dryRun:     *dryRun,
		raw:        *raw,
		overrides:  config.Overrides{DryRun: *dryRun},
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "broker":
			opts.overrides.Broker = broker
		case "http":
			opts.overrides.HTTPAddr = httpAddr
		case "monitor":
			opts.overrides.MonitorHz = monitor
		case "log-level":
			opts.overrides.LogLevel = logLevel
		case "heartbeat":
			opts.heartbeat = heartbeat
		}
	})
	if opts.dryRun && opts.overrides.MonitorHz == nil {
		hz := 10.0
		opts.overrides.MonitorHz = &hz
	}

	logger := newLogger(os.Stderr)
	if err := run(opts, logger); err != nil {
		logger.Fatal("fatal", "err", err)
	}
}

func newLogger(w io.Writer) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Prefix:          "turnandrun",
		Level:           log.InfoLevel,
		ReportTimestamp: true,
	})
}

// loadConfig reads the configuration file and applies command line overrides.
func loadConfig(opts options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	opts.overrides.Apply(&cfg)
	if opts.heartbeat != nil {
		cfg.MQTT.HeartbeatSec = int(opts.heartbeat.Seconds())
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func run(opts options, logger *log.Logger) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	level, err := config.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	if opts.dryRun {
		fmt.Print(cfg.Report())
	}

	iio, err := adc.NewIIOSampler(adc.SysfsRoot, cfg.Device)
	if err != nil {
		return fmt.Errorf("init adc: %w", err)
	}
	defer iio.Close()

	if opts.raw {
		return printRaw(os.Stdout, iio, &cfg)
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		Device:       cfg.Device,
		Broker:       cfg.MQTT.Broker,
		HTTPAddr:     cfg.HTTP.Addr,
		HeartbeatSec: cfg.MQTT.HeartbeatSec,
		MonitorHz:    cfg.MonitorHz,
	})

	var notifiers []runner.Notifier

	var publisher mqtt.Publisher
	if cfg.MQTT.Broker != "" {
		pub, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:             cfg.MQTT.Broker,
			ClientID:           cfg.MQTT.ClientID,
			TopicPrefix:        cfg.MQTT.TopicPrefix,
			Logger:             logger.WithPrefix("mqtt"),
			OnConnectionChange: tracker.SetMQTTConnected,
		})
		if err != nil {
			logger.Error("mqtt disabled", "broker", cfg.MQTT.Broker, "err", err)
		} else {
			defer pub.Close()
			tracker.SetMQTTConnected(pub.IsConnected())
			publisher = pub
			notifiers = append(notifiers, runner.NotifierFunc(pub.Publish))
		}
	}

	if cfg.Influx.URL != "" {
		hist := history.New(cfg.Influx, logger.WithPrefix("influx"))
		defer hist.Close()
		notifiers = append(notifiers, hist)
	}

	if cfg.LED.Pin >= 0 {
		line, err := gpio.OpenLine(cfg.LED.Chip, cfg.LED.Pin)
		if err != nil {
			logger.Error("indicator disabled", "chip", cfg.LED.Chip, "pin", cfg.LED.Pin, "err", err)
		} else {
			ind := gpio.NewIndicator(line, time.Duration(cfg.LED.PulseMS)*time.Millisecond, logger)
			defer ind.Close()
			notifiers = append(notifiers, ind)
		}
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, logger.WithPrefix("http"))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "err", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		notifiers = append(notifiers, srv)
		logger.Info("http status server listening", "addr", cfg.HTTP.Addr)
	}

	sup := newSupervisor(&cfg, iio, action.NewShellRunner(logger), notifiers, publisher, tracker, logger)

	var heartbeat <-chan time.Time
	if publisher != nil && cfg.MQTT.HeartbeatSec > 0 {
		ticker := time.NewTicker(time.Duration(cfg.MQTT.HeartbeatSec) * time.Second)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("started", "config", opts.configPath, "channels", len(cfg.Enabled()), "device", cfg.Device, "dry_run", opts.dryRun)
	return runDaemon(context.Background(), sup, publisher, tracker, heartbeat, sigCh, time.Now, logger)
}

// newSupervisor wires the channel workers and registers their states with
// the tracker.
func newSupervisor(cfg *config.Config, sampler adc.Sampler, exec action.Runner, notifiers []runner.Notifier,
	publisher mqtt.Publisher, tracker *status.Tracker, logger *log.Logger) *runner.Supervisor {

	opts := runner.Options{
		Sampler:   sampler,
		Runner:    exec,
		Notifiers: notifiers,
		Logger:    logger,
		Report:    os.Stdout,
		OnStop: func(ch int, st runner.Status) {
			if !st.IsError() || publisher == nil {
				return
			}
			ev := mqtt.SystemEvent{
				Timestamp: time.Now(),
				Event:     mqtt.EventChannelStopped,
				Reason:    st.Err.Error(),
				Channel:   config.ChannelLetter(ch),
			}
			if err := publisher.PublishSystem(ev); err != nil {
				logger.Warn("failed to publish channel stopped event", "err", err)
			}
		},
	}
	if cfg.MonitorHz > 0 {
		hz := cfg.MonitorHz
		opts.Reporter = func(ctx context.Context) {
			status.Monitor(ctx, os.Stdout, tracker, hz)
		}
	}

	sup := runner.NewSupervisor(cfg, opts)
	states := sup.States()
	for _, ch := range cfg.Enabled() {
		tracker.AddChannel(states[ch], cfg.Channels[ch])
	}
	return sup
}

// runDaemon publishes STARTUP, runs the channels until a signal arrives or
// every channel has stopped, then publishes SHUTDOWN. It returns an error
// if a channel stopped with an error.
func runDaemon(ctx context.Context, sup *runner.Supervisor, publisher mqtt.Publisher, tracker *status.Tracker,
	heartbeat <-chan time.Time, sig <-chan os.Signal, now func() time.Time, logger *log.Logger) error {

	publishStatus(publisher, tracker, mqtt.EventStartup, "", true, now, logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan runner.Status, 1)
	go func() { done <- sup.Run(ctx) }()

	var st runner.Status
	reason := ""
loop:
	for {
		select {
		case s := <-sig:
			reason = signalName(s)
			logger.Info("shutting down", "signal", reason)
			cancel()
			st = <-done
			break loop

		case st = <-done:
			reason = "CHANNELS_STOPPED"
			logger.Warn("all channels stopped")
			break loop

		case <-heartbeat:
			publishStatus(publisher, tracker, mqtt.EventHeartbeat, "", false, now, logger)
		}
	}

	publishStatus(publisher, tracker, mqtt.EventShutdown, reason, true, now, logger)

	switch st.Severity {
	case runner.SeverityError:
		return fmt.Errorf("stopped with error: %w", st.Err)
	case runner.SeverityWarning:
		logger.Warn("stopped with warnings", "err", st.Err)
	}
	return nil
}

// publishStatus sends a system event carrying a full status snapshot.
func publishStatus(publisher mqtt.Publisher, tracker *status.Tracker, event, reason string, retained bool,
	now func() time.Time, logger *log.Logger) {

	if publisher == nil {
		return
	}
	if cs, ok := publisher.(mqtt.ConnectionStatus); ok {
		tracker.SetMQTTConnected(cs.IsConnected())
	}
	snap := tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  now(),
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := publisher.PublishSystem(ev); err != nil {
		logger.Warn("failed to publish system event", "event", event, "err", err)
		return
	}
	logger.Debug("published system event", "event", event)
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

// printRaw prints one reading per enabled channel.
func printRaw(w io.Writer, sampler adc.Sampler, cfg *config.Config) error {
	var failed error
	for _, ch := range cfg.Enabled() {
		v, err := sampler.ReadRaw(ch)
		if err != nil {
			fmt.Fprintf(w, "%s: error: %v\n", config.ChannelLetter(ch), err)
			failed = fmt.Errorf("read channel %s: %w", config.ChannelLetter(ch), err)
			continue
		}
		fmt.Fprintf(w, "%s: %d\n", config.ChannelLetter(ch), v)
	}
	return failed
}
