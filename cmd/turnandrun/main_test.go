package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sweeney/turnandrun/internal/action"
	"github.com/sweeney/turnandrun/internal/adc"
	"github.com/sweeney/turnandrun/internal/config"
	"github.com/sweeney/turnandrun/internal/dial"
	"github.com/sweeney/turnandrun/internal/mqtt"
	"github.com/sweeney/turnandrun/internal/runner"
	"github.com/sweeney/turnandrun/internal/status"
)

// fakeClock returns a clock function that advances by step on every call.
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	t := start
	return func() time.Time {
		now := t
		t = t.Add(step)
		return now
	}
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func testConfig() *config.Config {
	cfg := config.Default()
	s := config.DefaultSettings()
	s.Commands = dial.CommandTable{
		100: {Label: "Radio", Action: "mpc play"},
		200: {Label: "Off", Action: "mpc stop"},
	}
	s.TurnBeforeRun = false
	s.CommandDelay = 0
	s.Frequency = 50
	cfg.Channels[0] = &s
	return &cfg
}

type daemon struct {
	cfg       *config.Config
	sampler   *adc.FakeSampler
	recorder  *action.Recorder
	publisher *mqtt.FakePublisher
	tracker   *status.Tracker
	sup       *runner.Supervisor
}

func newDaemon(cfg *config.Config, scripts map[int][]adc.Sample) *daemon {
	d := &daemon{
		cfg:       cfg,
		sampler:   adc.NewFakeSampler(scripts),
		recorder:  action.NewRecorder(),
		publisher: mqtt.NewFakePublisher(),
		tracker:   status.NewTracker(time.Now(), status.Config{Device: cfg.Device}),
	}
	d.publisher.Connected = true
	notifiers := []runner.Notifier{runner.NotifierFunc(d.publisher.Publish)}
	d.sup = newSupervisor(cfg, d.sampler, d.recorder, notifiers, d.publisher, d.tracker, quietLogger())
	return d
}

func (d *daemon) run(heartbeat <-chan time.Time, sig <-chan os.Signal) error {
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)
	return runDaemon(context.Background(), d.sup, d.publisher, d.tracker, heartbeat, sig, clock, quietLogger())
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunDaemonSignalShutdown(t *testing.T) {
	d := newDaemon(testConfig(), map[int][]adc.Sample{0: adc.Values(200)})

	sig := make(chan os.Signal, 1)
	errCh := make(chan error, 1)
	go func() { errCh <- d.run(nil, sig) }()

	waitFor(t, func() bool { return len(d.recorder.Actions()) == 1 }, "no dispatch before shutdown")
	sig <- syscall.SIGTERM

	if err := <-errCh; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := d.publisher.Events()
	if len(events) != 2 || events[0] != mqtt.EventStartup || events[1] != mqtt.EventShutdown {
		t.Fatalf("system events: got %v, want [STARTUP SHUTDOWN]", events)
	}
	startup, shutdown := d.publisher.SystemEvents[0], d.publisher.SystemEvents[1]
	if !startup.Retained || !shutdown.Retained {
		t.Error("STARTUP and SHUTDOWN should be retained")
	}
	if shutdown.Reason != "SIGTERM" {
		t.Errorf("shutdown reason: got %q, want SIGTERM", shutdown.Reason)
	}

	var sj status.StatusJSON
	if err := json.Unmarshal(d.publisher.SystemPayloads[1], &sj); err != nil {
		t.Fatalf("invalid shutdown payload: %v", err)
	}
	if sj.Status.Event != "SHUTDOWN" || len(sj.Status.Channels) != 1 {
		t.Fatalf("shutdown payload: got %+v", sj.Status)
	}
	if sj.Status.Channels[0].Dispatched != 200 {
		t.Errorf("dispatched: got %d, want 200", sj.Status.Channels[0].Dispatched)
	}

	if got := d.recorder.Actions(); len(got) != 1 || got[0] != "mpc stop" {
		t.Errorf("actions: got %v, want [mpc stop]", got)
	}
	if len(d.publisher.Dispatches) != 1 || d.publisher.Dispatches[0].Label != "Off" {
		t.Errorf("published dispatches: got %+v", d.publisher.Dispatches)
	}
}

func TestRunDaemonChannelFailure(t *testing.T) {
	cfg := testConfig()
	b := *cfg.Channels[0]
	cfg.Channels[1] = &b
	readErr := errors.New("no such device")
	d := newDaemon(cfg, map[int][]adc.Sample{
		0: {{Err: readErr}},
		1: {{Err: readErr}},
	})

	err := d.run(nil, nil)
	if err == nil {
		t.Fatal("expected an error when channels fail")
	}
	if !errors.Is(err, readErr) {
		t.Errorf("expected wrapped read error, got %v", err)
	}

	events := d.publisher.Events()
	want := []string{mqtt.EventStartup, mqtt.EventChannelStopped, mqtt.EventChannelStopped, mqtt.EventShutdown}
	if strings.Join(events, ",") != strings.Join(want, ",") {
		t.Fatalf("system events: got %v, want %v", events, want)
	}
	letters := map[string]bool{}
	for _, ev := range d.publisher.SystemEvents[1:3] {
		letters[ev.Channel] = true
	}
	if !letters["a"] || !letters["b"] {
		t.Errorf("expected CHANNEL_STOPPED for a and b, got %v", letters)
	}
	if reason := d.publisher.SystemEvents[3].Reason; reason != "CHANNELS_STOPPED" {
		t.Errorf("shutdown reason: got %q", reason)
	}
}

func TestRunDaemonHeartbeat(t *testing.T) {
	d := newDaemon(testConfig(), map[int][]adc.Sample{0: adc.Values(100)})

	hb := make(chan time.Time)
	sig := make(chan os.Signal, 1)
	errCh := make(chan error, 1)
	go func() { errCh <- d.run(hb, sig) }()

	hb <- time.Now()
	hb <- time.Now()
	sig <- syscall.SIGINT

	if err := <-errCh; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events := d.publisher.Events()
	want := []string{mqtt.EventStartup, mqtt.EventHeartbeat, mqtt.EventHeartbeat, mqtt.EventShutdown}
	if strings.Join(events, ",") != strings.Join(want, ",") {
		t.Fatalf("system events: got %v, want %v", events, want)
	}
	if d.publisher.SystemEvents[1].Retained {
		t.Error("HEARTBEAT should not be retained")
	}
	if d.publisher.SystemEvents[3].Reason != "SIGINT" {
		t.Errorf("shutdown reason: got %q", d.publisher.SystemEvents[3].Reason)
	}
}

func TestRunDaemonWithoutPublisher(t *testing.T) {
	d := newDaemon(testConfig(), map[int][]adc.Sample{0: adc.Values(100)})
	sig := make(chan os.Signal, 1)
	sig <- syscall.SIGTERM

	err := runDaemon(context.Background(), d.sup, nil, d.tracker, nil, sig, time.Now, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunDaemonPublishFailureNotFatal(t *testing.T) {
	d := newDaemon(testConfig(), map[int][]adc.Sample{0: adc.Values(100)})
	d.publisher.PublishSystemError = errors.New("broker down")
	sig := make(chan os.Signal, 1)
	sig <- syscall.SIGTERM

	if err := d.run(nil, sig); err != nil {
		t.Fatalf("publish failures should not fail the daemon: %v", err)
	}
}

func TestSignalName(t *testing.T) {
	tests := []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGHUP, "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := signalName(tt.sig); got != tt.want {
			t.Errorf("signalName(%v): got %q, want %q", tt.sig, got, tt.want)
		}
	}
}

func TestPrintRaw(t *testing.T) {
	cfg := testConfig()
	c := *cfg.Channels[0]
	cfg.Channels[2] = &c
	sampler := adc.NewFakeSampler(map[int][]adc.Sample{
		0: adc.Values(1234),
		2: {{Err: errors.New("i2c timeout")}},
	})

	var buf bytes.Buffer
	err := printRaw(&buf, sampler, cfg)
	if err == nil {
		t.Error("expected error for the failed channel")
	}
	want := "a: 1234\nc: error: i2c timeout\n"
	if buf.String() != want {
		t.Errorf("output:\n got %q\nwant %q", buf.String(), want)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dial.conf")
	conf := "CHANNEL a\n100 = Radio, mpc play\n200 = Off, mpc stop\n"
	if err := os.WriteFile(path, []byte(conf), 0o644); err != nil {
		t.Fatal(err)
	}

	broker := "tcp://10.0.0.2:1883"
	hz := 10.0
	hb := 30 * time.Second
	cfg, err := loadConfig(options{
		configPath: path,
		heartbeat:  &hb,
		overrides:  config.Overrides{Broker: &broker, MonitorHz: &hz, DryRun: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MQTT.Broker != broker {
		t.Errorf("broker: got %q", cfg.MQTT.Broker)
	}
	if cfg.MQTT.HeartbeatSec != 30 {
		t.Errorf("heartbeat: got %d, want 30", cfg.MQTT.HeartbeatSec)
	}
	if cfg.MonitorHz != 10 {
		t.Errorf("monitor: got %v, want 10", cfg.MonitorHz)
	}
	a := cfg.Channels[0]
	if a.RunCommands || !a.PrintCommands {
		t.Error("dry run should print commands instead of running them")
	}
}

func TestLoadConfigRejectsInvalidOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dial.conf")
	conf := "CHANNEL a\n100 = Radio, mpc play\n200 = Off, mpc stop\n"
	if err := os.WriteFile(path, []byte(conf), 0o644); err != nil {
		t.Fatal(err)
	}

	hz := 500.0
	if _, err := loadConfig(options{configPath: path, overrides: config.Overrides{MonitorHz: &hz}}); err == nil {
		t.Error("expected monitor rate out of range to be rejected")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(options{configPath: filepath.Join(t.TempDir(), "missing.conf")})
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf)
	logger.Info("dispatch", "mark", 100)
	if !strings.Contains(buf.String(), "turnandrun") || !strings.Contains(buf.String(), "mark=100") {
		t.Errorf("unexpected log line: %q", buf.String())
	}
}

func TestRunDaemonDryRunDispatchesAreMarkedNotRun(t *testing.T) {
	cfg := testConfig()
	config.Overrides{DryRun: true}.Apply(cfg)
	d := newDaemon(cfg, map[int][]adc.Sample{0: adc.Values(100)})

	sig := make(chan os.Signal, 1)
	errCh := make(chan error, 1)
	go func() { errCh <- d.run(nil, sig) }()

	state := d.sup.States()[0]
	waitFor(t, func() bool { return state.Snapshot().Dispatches == 1 }, "no dispatch in dry run")
	sig <- syscall.SIGTERM
	if err := <-errCh; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := d.recorder.Actions(); len(got) != 0 {
		t.Errorf("dry run executed %v", got)
	}
	if len(d.publisher.Payloads) != 1 {
		t.Fatalf("expected 1 dispatch payload, got %d", len(d.publisher.Payloads))
	}
	var p mqtt.Payload
	if err := json.Unmarshal(d.publisher.Payloads[0], &p); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if p.Dispatch.Ran {
		t.Error("dry run dispatch should carry ran=false")
	}
}
