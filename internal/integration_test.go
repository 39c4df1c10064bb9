package internal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sweeney/turnandrun/internal/action"
	"github.com/sweeney/turnandrun/internal/adc"
	"github.com/sweeney/turnandrun/internal/config"
	"github.com/sweeney/turnandrun/internal/dial"
	"github.com/sweeney/turnandrun/internal/gpio"
	"github.com/sweeney/turnandrun/internal/mqtt"
	"github.com/sweeney/turnandrun/internal/runner"
	"github.com/sweeney/turnandrun/internal/status"
	"github.com/sweeney/turnandrun/internal/web"
)

func integrationConfig() *config.Config {
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

type pipeline struct {
	sampler   *adc.FakeSampler
	recorder  *action.Recorder
	publisher *mqtt.FakePublisher
	line      *gpio.FakeLine
	tracker   *status.Tracker
	server    *web.Server
	sup       *runner.Supervisor
}

func newPipeline(cfg *config.Config, scripts map[int][]adc.Sample) *pipeline {
	logger := log.New(io.Discard)
	p := &pipeline{
		sampler:   adc.NewFakeSampler(scripts),
		recorder:  action.NewRecorder(),
		publisher: mqtt.NewFakePublisher(),
		line:      gpio.NewFakeLine(),
		tracker:   status.NewTracker(time.Now(), status.Config{Device: cfg.Device}),
	}
	p.server = web.New("", p.tracker, logger)
	ind := gpio.NewIndicator(p.line, time.Hour, logger)

	p.sup = runner.NewSupervisor(cfg, runner.Options{
		Sampler:   p.sampler,
		Runner:    p.recorder,
		Notifiers: []runner.Notifier{runner.NotifierFunc(p.publisher.Publish), p.server, ind},
		Logger:    logger,
		Report:    io.Discard,
	})
	states := p.sup.States()
	for _, ch := range cfg.Enabled() {
		p.tracker.AddChannel(states[ch], cfg.Channels[ch])
	}
	return p
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

// TestIntegrationFullFlow turns the dial from Radio to Off and checks every
// consumer of the dispatches.
func TestIntegrationFullFlow(t *testing.T) {
	script := append(adc.Repeat(100, 5), adc.Values(230)...)
	p := newPipeline(integrationConfig(), map[int][]adc.Sample{0: script})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan runner.Status, 1)
	go func() { done <- p.sup.Run(ctx) }()

	waitFor(t, func() bool { return len(p.recorder.Actions()) == 2 }, "expected two dispatches")

	ts := httptest.NewServer(p.server.Handler())
	defer ts.Close()
	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	var sj status.StatusJSON
	err = json.NewDecoder(resp.Body).Decode(&sj)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode status: %v", err)
	}

	cancel()
	if st := <-done; !st.IsOK() {
		t.Fatalf("expected OK status, got %v", st)
	}

	actions := p.recorder.Actions()
	if actions[0] != "mpc play" || actions[1] != "mpc stop" {
		t.Errorf("actions: got %v", actions)
	}

	if len(p.publisher.Payloads) != 2 {
		t.Fatalf("expected 2 MQTT payloads, got %d", len(p.publisher.Payloads))
	}
	var payload mqtt.Payload
	if err := json.Unmarshal(p.publisher.Payloads[1], &payload); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if payload.Dispatch.Channel != "a" || payload.Dispatch.Mark != 200 || payload.Dispatch.Label != "Off" || !payload.Dispatch.Ran {
		t.Errorf("payload: got %+v", payload.Dispatch)
	}
	if payload.Dispatch.ID == "" || payload.Dispatch.ID == p.publisher.Dispatches[0].ID {
		t.Error("dispatch ids should be set and unique")
	}

	if len(sj.Status.Channels) != 1 {
		t.Fatalf("expected 1 channel in status, got %d", len(sj.Status.Channels))
	}
	ch := sj.Status.Channels[0]
	if ch.Raw != 230 || ch.Dispatched != 200 || ch.Label != "Off" || ch.Dispatches != 2 {
		t.Errorf("channel status: got %+v", ch)
	}

	if p.line.Value() != 1 {
		t.Error("indicator should be lit after a dispatch")
	}
}

// TestIntegrationChannelFailure checks that a failing channel stops on its
// own while the healthy one keeps dispatching.
func TestIntegrationChannelFailure(t *testing.T) {
	cfg := integrationConfig()
	b := *cfg.Channels[0]
	cfg.Channels[1] = &b
	readErr := errors.New("i2c timeout")
	p := newPipeline(cfg, map[int][]adc.Sample{
		0: adc.Values(100),
		1: {{Err: readErr}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan runner.Status, 1)
	go func() { done <- p.sup.Run(ctx) }()

	states := p.sup.States()
	waitFor(t, func() bool {
		s := states[1].Snapshot()
		return !s.Running && s.Status.IsError()
	}, "channel b should stop")
	waitFor(t, func() bool { return len(p.recorder.Actions()) == 1 }, "channel a should dispatch")

	snap := p.tracker.Snapshot()
	if !snap.Overall().IsError() {
		t.Errorf("overall: got %v, want error", snap.Overall())
	}

	cancel()
	st := <-done
	if !st.IsError() || !errors.Is(st.Err, readErr) {
		t.Errorf("expected error status wrapping the read error, got %v", st)
	}
	if a := states[0].Snapshot(); !a.Status.IsOK() || a.Dispatched != 100 {
		t.Errorf("channel a: got %+v", a)
	}
}
