package mqtt

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"

	"github.com/sweeney/turnandrun/internal/dial"
)

// outboxSize is the number of messages kept while the broker is unreachable.
const outboxSize = 100

// client is the part of paho.Client the publisher uses.
type client interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// Options configures a RealPublisher.
type Options struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	Logger      *log.Logger

	// OnConnectionChange is called whenever the broker connection comes up
	// or is lost.
	OnConnectionChange func(connected bool)
}

// RealPublisher publishes to an actual MQTT broker. Messages published
// while the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client   client
	topics   Topics
	logger   *log.Logger
	onChange func(bool)

	mu      sync.Mutex
	outbox  *outbox
	wasLost bool
}

func newPublisher(topics Topics, logger *log.Logger, onChange func(bool)) *RealPublisher {
	if logger == nil {
		logger = log.Default()
	}
	return &RealPublisher{
		topics:   topics,
		logger:   logger,
		onChange: onChange,
		outbox:   newOutbox(outboxSize),
	}
}

// NewRealPublisher creates a publisher connected to the given broker. The
// broker publishes a retained OFFLINE event on the system topic if the
// connection drops without a clean disconnect.
func NewRealPublisher(opts Options) (*RealPublisher, error) {
	p := newPublisher(NewTopics(opts.TopicPrefix), opts.Logger, opts.OnConnectionChange)

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     EventOffline,
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, errors.Wrap(err, "format will payload")
	}

	popts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(p.topics.System, string(will), 1, true).
		SetOnConnectHandler(func(c paho.Client) { p.onConnect(c) }).
		SetConnectionLostHandler(func(_ paho.Client, err error) { p.onConnectionLost(err) })

	c := paho.NewClient(popts)
	p.client = c
	token := c.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		c.Disconnect(0)
		return nil, errors.New("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrap(err, "connect to broker")
	}
	return p, nil
}

func (p *RealPublisher) onConnect(c client) {
	p.mu.Lock()
	msgs, dropped := p.outbox.flush()
	reconnect := p.wasLost
	p.wasLost = false
	p.mu.Unlock()

	p.logger.Info("mqtt connected", "replay", len(msgs), "dropped", dropped)
	if p.onChange != nil {
		p.onChange(true)
	}

	for _, m := range msgs {
		if err := wait(c.Publish(m.topic, m.qos, m.retained, m.payload)); err != nil {
			p.logger.Warn("mqtt replay failed", "topic", m.topic, "err", err)
		}
	}

	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: EventReconnected})
		if err := wait(c.Publish(p.topics.System, 1, false, payload)); err != nil {
			p.logger.Warn("mqtt publish reconnected", "err", err)
		}
	}
}

func (p *RealPublisher) onConnectionLost(err error) {
	p.mu.Lock()
	p.wasLost = true
	p.mu.Unlock()

	p.logger.Warn("mqtt connection lost", "err", err)
	if p.onChange != nil {
		p.onChange(false)
	}
}

func wait(token paho.Token) error {
	if !token.WaitTimeout(5 * time.Second) {
		return errors.New("publish timeout")
	}
	return token.Error()
}

// send publishes or, while disconnected, buffers the message.
func (p *RealPublisher) send(topic string, qos byte, retained bool, payload []byte) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		firstDrop := p.outbox.add(message{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		if firstDrop {
			p.logger.Warn("mqtt outbox full, dropping oldest", "capacity", outboxSize)
		}
		return nil
	}
	p.mu.Unlock()

	return wait(p.client.Publish(topic, qos, retained, payload))
}

// Publish sends a dispatch to the MQTT broker.
func (p *RealPublisher) Publish(d dial.Dispatch) error {
	payload, err := FormatPayload(d)
	if err != nil {
		return errors.Wrap(err, "format payload")
	}

	// QoS 0 (at-most-once), not retained
	if err := p.send(p.topics.Dispatch, 0, false, payload); err != nil {
		return errors.Wrap(err, "publish")
	}
	return nil
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return errors.Wrap(err, "format system payload")
	}

	// QoS 1 (at-least-once) for lifecycle events
	if err := p.send(p.topics.System, 1, event.Retained, payload); err != nil {
		return errors.Wrap(err, "publish system")
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a reconnect.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outbox.size()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
