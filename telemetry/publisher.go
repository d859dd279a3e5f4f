package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ardnew/softi2c/command"
	"github.com/ardnew/softi2c/pkg"
)

// Connection defaults.
const (
	// DefaultTopic is the topic prefix when Options.Topic is empty.
	DefaultTopic = "softi2c"

	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
	defaultKeepAlive      = 60 * time.Second

	// disconnectQuiesce is the time in milliseconds allowed for pending
	// work on disconnect.
	disconnectQuiesce = 250

	maxQoS = 2
)

// Errors.
var (
	// ErrConnectionFailed indicates the initial broker connection failed.
	ErrConnectionFailed = errors.New("telemetry: connection failed")

	// ErrNotConnected indicates a publish while disconnected.
	ErrNotConnected = errors.New("telemetry: not connected")

	// ErrPublishFailed indicates the broker did not accept a publish.
	ErrPublishFailed = errors.New("telemetry: publish failed")

	// ErrInvalidQoS indicates a QoS outside 0..2.
	ErrInvalidQoS = errors.New("telemetry: invalid QoS level (must be 0, 1, or 2)")
)

// Options configures a Publisher.
type Options struct {
	Broker   string // Broker URL, e.g. tcp://localhost:1883
	ClientID string // MQTT client identifier
	Username string
	Password string

	// Topic is the prefix for every published topic. DefaultTopic if empty.
	Topic string

	// Device is the interface name used in result topics.
	Device string

	QoS      byte
	Retained bool

	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

func (o *Options) setDefaults() {
	if o.Topic == "" {
		o.Topic = DefaultTopic
	}
	if o.ClientID == "" {
		o.ClientID = "softi2c"
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = defaultConnectTimeout
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = defaultPublishTimeout
	}
}

// client is the subset of pahomqtt.Client the publisher uses.
type client interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Disconnect(quiesce uint)
}

// connector is a client that still has to dial the broker.
type connector interface {
	client
	Connect() pahomqtt.Token
}

// newClient builds the broker client for Connect.
var newClient = func(mo *pahomqtt.ClientOptions) connector {
	return pahomqtt.NewClient(mo)
}

// Publisher reports command results to an MQTT broker. It implements
// command.Reporter.
type Publisher struct {
	client client
	opts   Options
	topics Topics

	mu     sync.Mutex
	closed bool
}

// Connect dials the broker and returns a Publisher. The broker publishes
// an offline status on the status topic if the connection drops.
func Connect(opts Options) (*Publisher, error) {
	if opts.QoS > maxQoS {
		return nil, ErrInvalidQoS
	}
	opts.setDefaults()
	topics := Topics{Prefix: opts.Topic, Device: opts.Device}

	mo := buildClientOptions(opts)
	mo.SetWill(topics.Status(), statusPayload("offline", opts.ClientID, time.Now()), 1, true)

	p := &Publisher{opts: opts, topics: topics}
	mo.SetOnConnectHandler(func(pahomqtt.Client) {
		pkg.LogInfo(pkg.ComponentTelemetry, "broker connected", "broker", opts.Broker)
		p.publishStatus("online")
	})
	mo.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		pkg.LogWarn(pkg.ComponentTelemetry, "broker connection lost", "broker", opts.Broker, "error", err)
	})

	c := newClient(mo)
	p.client = c
	token := c.Connect()
	if !token.WaitTimeout(opts.ConnectTimeout) {
		// Stop the background connect retry.
		c.Disconnect(disconnectQuiesce)
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, opts.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		c.Disconnect(disconnectQuiesce)
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return p, nil
}

// newPublisher wraps an existing client.
func newPublisher(c client, opts Options) *Publisher {
	opts.setDefaults()
	return &Publisher{
		client: c,
		opts:   opts,
		topics: Topics{Prefix: opts.Topic, Device: opts.Device},
	}
}

func buildClientOptions(opts Options) *pahomqtt.ClientOptions {
	mo := pahomqtt.NewClientOptions()
	mo.AddBroker(opts.Broker)
	mo.SetClientID(opts.ClientID)
	if opts.Username != "" {
		mo.SetUsername(opts.Username)
		mo.SetPassword(opts.Password)
	}
	mo.SetCleanSession(true)
	mo.SetAutoReconnect(true)
	mo.SetConnectRetry(true)
	mo.SetConnectTimeout(opts.ConnectTimeout)
	mo.SetKeepAlive(defaultKeepAlive)
	return mo
}

// Topics returns the topic builder.
func (p *Publisher) Topics() Topics {
	return p.topics
}

// Report publishes r on the result topic for its command kind.
func (p *Publisher) Report(ctx context.Context, r command.Result) error {
	payload, err := ResultPayload(r, time.Now())
	if err != nil {
		return err
	}
	return p.publish(ctx, p.topics.Result(r.Command.Kind), payload, p.opts.Retained)
}

// Close publishes an offline status and disconnects.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	if p.client.IsConnected() {
		p.publishStatus("offline")
	}
	p.client.Disconnect(disconnectQuiesce)
	return nil
}

func (p *Publisher) publishStatus(status string) {
	payload := statusPayload(status, p.opts.ClientID, time.Now())
	ctx, cancel := context.WithTimeout(context.Background(), p.opts.PublishTimeout)
	defer cancel()
	if err := p.publish(ctx, p.topics.Status(), []byte(payload), true); err != nil {
		pkg.LogWarn(pkg.ComponentTelemetry, "status publish failed", "status", status, "error", err)
	}
}

// publish sends payload and waits for the broker or ctx.
func (p *Publisher) publish(ctx context.Context, topic string, payload []byte, retained bool) error {
	if p.client == nil || !p.client.IsConnected() {
		return ErrNotConnected
	}

	token := p.client.Publish(topic, p.opts.QoS, retained, payload)

	timer := time.NewTimer(p.opts.PublishTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrPublishFailed, ctx.Err())
	case <-timer.C:
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, p.opts.PublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	pkg.LogDebug(pkg.ComponentTelemetry, "published", "topic", topic, "bytes", len(payload))
	return nil
}
