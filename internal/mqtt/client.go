package mqtt

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MessageHandler receives every inbound message from subscribed topics.
type MessageHandler func(topic string, payload []byte)

// Broker is the minimal broker surface the client drives. One call, one
// attempt: retry policy lives in Client, not in implementations.
type Broker interface {
	Connect(ctx context.Context) error
	Subscribe(topic string, qos byte, handler MessageHandler) error
	Publish(topic string, qos byte, payload []byte) error
	Disconnect()
}

// ErrNotConnected is returned by Publish while the connection is down.
// Unsent messages are not queued; acknowledgments are best-effort.
var ErrNotConnected = errors.New("mqtt: not connected")

type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Status is a read-only snapshot of the connection state. Only the client's
// own run loop mutates the underlying fields.
type Status struct {
	State         ConnState
	Retries       int
	Subscriptions []string
}

type Config struct {
	ReconnectDelay time.Duration
	MaxAttempts    int
	Cooldown       time.Duration
}

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// Client owns exactly one logical broker connection and hides reconnection
// from callers. It never stops retrying: after MaxAttempts failures in a row
// it waits out the longer Cooldown, resets the counter, and goes again.
type Client struct {
	broker Broker
	cfg    Config
	logger *zap.SugaredLogger

	mu      sync.RWMutex
	state   ConnState
	retries int
	subs    []subscription

	lost chan struct{}

	onStateChange func(ConnState)
}

func NewClient(broker Broker, cfg Config, logger *zap.SugaredLogger) *Client {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 3 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Minute
	}
	return &Client{
		broker: broker,
		cfg:    cfg,
		logger: logger,
		state:  StateDisconnected,
		lost:   make(chan struct{}, 1),
	}
}

// OnStateChange registers a callback fired on every state transition.
// Must be called before Run.
func (c *Client) OnStateChange(fn func(ConnState)) {
	c.onStateChange = fn
}

// Subscribe registers a topic subscription. Registered subscriptions are
// (re)issued on every successful connect, so they survive reconnects.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	c.mu.Lock()
	c.subs = append(c.subs, subscription{topic: topic, qos: qos, handler: handler})
	connected := c.state == StateConnected
	c.mu.Unlock()

	if connected {
		return c.broker.Subscribe(topic, qos, handler)
	}
	return nil
}

// Publish sends a message if currently connected. When disconnected the
// message is dropped with a logged error. No queueing.
func (c *Client) Publish(topic string, qos byte, payload []byte) error {
	c.mu.RLock()
	connected := c.state == StateConnected
	c.mu.RUnlock()

	if !connected {
		c.logger.Errorw("publish dropped: not connected", "topic", topic)
		return ErrNotConnected
	}
	if err := c.broker.Publish(topic, qos, payload); err != nil {
		c.logger.Errorw("publish failed", "topic", topic, "error", err)
		return err
	}
	return nil
}

// ConnectionLost is called by the broker implementation when an established
// connection drops. Safe to call from broker callbacks.
func (c *Client) ConnectionLost(err error) {
	c.logger.Warnw("broker connection lost", "error", err)
	select {
	case c.lost <- struct{}{}:
	default:
	}
}

// Status returns a snapshot of the connection state.
func (c *Client) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	topics := make([]string, len(c.subs))
	for i, s := range c.subs {
		topics[i] = s.topic
	}
	return Status{State: c.state, Retries: c.retries, Subscriptions: topics}
}

// Run drives the connection state machine until ctx is cancelled:
// Disconnected -> Connecting -> Connected -> Disconnected (on loss) and
// around again after the retry delay. There is no terminal failure state.
func (c *Client) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		c.setState(StateConnecting)
		if err := c.broker.Connect(ctx); err != nil {
			c.logger.Errorw("broker connect failed", "error", err)
			c.setState(StateDisconnected)
			if !c.waitRetry(ctx) {
				return
			}
			continue
		}

		c.onConnected()

		select {
		case <-ctx.Done():
			c.broker.Disconnect()
			c.setState(StateDisconnected)
			return
		case <-c.lost:
			c.setState(StateDisconnected)
			if !c.waitRetry(ctx) {
				return
			}
		}
	}
}

func (c *Client) onConnected() {
	c.mu.Lock()
	c.state = StateConnected
	c.retries = 0
	subs := append([]subscription(nil), c.subs...)
	c.mu.Unlock()

	c.notify(StateConnected)
	c.logger.Info("connected to broker")

	for _, s := range subs {
		if err := c.broker.Subscribe(s.topic, s.qos, s.handler); err != nil {
			c.logger.Errorw("resubscribe failed", "topic", s.topic, "error", err)
		} else {
			c.logger.Infow("subscribed", "topic", s.topic, "qos", s.qos)
		}
	}
}

// waitRetry sleeps the fixed backoff delay, or the longer cooldown once the
// attempt counter reaches its maximum (at which point the counter resets so
// retrying continues indefinitely). Returns false if ctx was cancelled.
func (c *Client) waitRetry(ctx context.Context) bool {
	c.mu.Lock()
	c.retries++
	delay := c.cfg.ReconnectDelay
	if c.retries >= c.cfg.MaxAttempts {
		delay = c.cfg.Cooldown
		c.retries = 0
	}
	retries := c.retries
	c.mu.Unlock()

	c.logger.Warnw("reconnect scheduled", "delay", delay, "attempts", retries)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *Client) setState(s ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.notify(s)
}

func (c *Client) notify(s ConnState) {
	if c.onStateChange != nil {
		c.onStateChange(s)
	}
}
