// ABOUTME: MQTT transport bridge: connects to the broker with paho and hands inbound messages to the scheduler
// ABOUTME: Callbacks never touch session state; publishing is asynchronous and failures are only logged

package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/2389/barista-gateway/internal/config"
	"github.com/2389/barista-gateway/internal/inbound"
	"github.com/2389/barista-gateway/internal/scheduler"
)

// ErrNotConnected is returned when publishing without a broker connection.
var ErrNotConnected = errors.New("mqtt client not connected")

// disconnectQuiesce is how long paho may spend flushing work on disconnect, in ms.
const disconnectQuiesce = 250

// Client is the subset of mqtt.Client the bridge uses.
type Client interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// ClientFactory creates a client from options.
type ClientFactory func(opts *mqtt.ClientOptions) Client

// Submitter hands work to the scheduler goroutine.
type Submitter interface {
	Submit(task scheduler.Task) bool
}

// Handler processes one inbound message on the scheduler goroutine.
type Handler func(ctx context.Context, msg inbound.Message)

// Option configures a Bridge.
type Option func(*Bridge)

// WithClientFactory replaces the paho client constructor.
func WithClientFactory(f ClientFactory) Option {
	return func(b *Bridge) { b.newClient = f }
}

// Bridge owns the broker connection.
type Bridge struct {
	cfg       config.MQTTConfig
	submit    Submitter
	handle    Handler
	newClient ClientFactory
	logger    *slog.Logger

	mu     sync.RWMutex
	client Client
	broker string
}

// NewBridge creates a bridge. Nothing connects until Connect is called.
func NewBridge(cfg config.MQTTConfig, submit Submitter, handle Handler, logger *slog.Logger, opts ...Option) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{
		cfg:    cfg,
		submit: submit,
		handle: handle,
		newClient: func(o *mqtt.ClientOptions) Client {
			return mqtt.NewClient(o)
		},
		logger: logger.With("component", "mqtt"),
		broker: strings.TrimSpace(cfg.Broker),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Connect starts connecting to the configured broker. The result is logged
// asynchronously; a failed connect is not retried until Reconnect.
func (b *Bridge) Connect() {
	b.Reconnect(b.Broker())
}

// Reconnect tears down the current client and connects to broker.
// Subscriptions are re-issued by the new client's connect handler.
func (b *Bridge) Reconnect(broker string) {
	broker = strings.TrimSpace(broker)

	var c Client
	opts := b.clientOptions(broker)
	opts.SetOnConnectHandler(func(mqtt.Client) { b.onConnect(c) })
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		b.logger.Warn("connection lost", "broker", broker, "error", err)
	})
	c = b.newClient(opts)

	b.mu.Lock()
	old := b.client
	b.client = c
	b.broker = broker
	b.mu.Unlock()

	if old != nil {
		old.Disconnect(disconnectQuiesce)
		b.logger.Info("disconnected previous client")
	}

	b.logger.Info("connecting",
		"broker", brokerURL(broker, b.cfg),
		"client_id", opts.ClientID,
		"tls", b.cfg.TLSEnabled(),
		"auth", b.cfg.Username != "",
	)

	token := c.Connect()
	go func() {
		if !token.WaitTimeout(b.cfg.ConnectTimeout + time.Second) {
			b.logger.Warn("connect still pending", "broker", broker)
			return
		}
		if err := token.Error(); err != nil {
			b.logger.Error("connect failed", "broker", broker, "error", err)
		}
	}()
}

func (b *Bridge) clientOptions(broker string) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(broker, b.cfg))
	opts.SetClientID(fmt.Sprintf("%s-%s", b.cfg.ClientIDPrefix, uuid.NewString()[:8]))
	opts.SetKeepAlive(b.cfg.KeepAlive)
	opts.SetConnectTimeout(b.cfg.ConnectTimeout)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	if b.cfg.Username != "" && b.cfg.Password != "" {
		opts.SetUsername(b.cfg.Username)
		opts.SetPassword(b.cfg.Password)
	}
	if b.cfg.TLSEnabled() {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return opts
}

// brokerURL builds the paho server URL. A broker that already carries a
// scheme is used as-is.
func brokerURL(broker string, cfg config.MQTTConfig) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	scheme := "tcp"
	if cfg.TLSEnabled() {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, broker, cfg.Port)
}

// onConnect subscribes the notify topics. It runs on paho's goroutine after
// every successful connect, including automatic reconnects.
func (b *Bridge) onConnect(c Client) {
	b.logger.Info("connected", "broker", b.Broker())
	for _, topic := range b.cfg.NotifyTopics {
		token := c.Subscribe(topic, 0, b.onMessage)
		go func() {
			token.Wait()
			if err := token.Error(); err != nil {
				b.logger.Error("subscribe failed", "topic", topic, "error", err)
				return
			}
			b.logger.Info("subscribed", "topic", topic)
		}()
	}
}

// onMessage runs on paho's goroutine. It only parses and hands off.
func (b *Bridge) onMessage(_ mqtt.Client, m mqtt.Message) {
	msg := inbound.Parse(m.Topic(), m.Payload())
	b.logger.Debug("received", "topic", msg.Topic, "payload", msg.Raw)

	if !b.submit.Submit(func(ctx context.Context) { b.handle(ctx, msg) }) {
		b.logger.Warn("scheduler not running; dropping message", "topic", msg.Topic)
	}
}

// Publish sends payload with QoS 0. It returns once the publish is queued;
// delivery failures are logged from a detached goroutine.
func (b *Bridge) Publish(topic string, payload []byte) error {
	b.mu.RLock()
	c := b.client
	b.mu.RUnlock()

	if c == nil || !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.Publish(topic, 0, false, payload)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			b.logger.Error("publish failed", "topic", topic, "error", err)
		}
	}()
	return nil
}

// Connected reports whether the current client has a live connection.
func (b *Bridge) Connected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.client != nil && b.client.IsConnected()
}

// WaitConnected polls until the client connects or ctx is done.
func (b *Bridge) WaitConnected(ctx context.Context) bool {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if b.Connected() {
			return true
		}
		select {
		case <-ctx.Done():
			return b.Connected()
		case <-ticker.C:
		}
	}
}

// Broker returns the current broker host.
func (b *Bridge) Broker() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.broker
}

// Close disconnects the client.
func (b *Bridge) Close() {
	b.mu.Lock()
	c := b.client
	b.client = nil
	b.mu.Unlock()

	if c != nil {
		c.Disconnect(disconnectQuiesce)
		b.logger.Info("disconnected")
	}
}
