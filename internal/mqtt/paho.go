package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"gomqtt-telemetry/internal/config"
)

// pahoBroker adapts the paho client to the Broker interface. Paho's own
// auto-reconnect is disabled: the Client state machine owns reconnection so
// the retry schedule stays observable and testable.
type pahoBroker struct {
	client  pahomqtt.Client
	timeout time.Duration
}

// NewPahoBroker builds the real broker connection. onLost is invoked from
// paho's network goroutine whenever an established connection drops.
func NewPahoBroker(cfg config.MQTTConfig, tlsCfg *tls.Config, onLost func(error)) Broker {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetKeepAlive(30 * time.Second)
	if tlsCfg != nil {
		opts.SetTLSConfig(tlsCfg)
	}
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		onLost(err)
	})

	return &pahoBroker{
		client:  pahomqtt.NewClient(opts),
		timeout: cfg.ConnectTimeout,
	}
}

func (b *pahoBroker) Connect(ctx context.Context) error {
	token := b.client.Connect()
	if !token.WaitTimeout(b.timeout) {
		return fmt.Errorf("connection to MQTT broker timed out")
	}
	return token.Error()
}

func (b *pahoBroker) Subscribe(topic string, qos byte, handler MessageHandler) error {
	token := b.client.Subscribe(topic, qos, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscription to topic %s timed out", topic)
	}
	return token.Error()
}

func (b *pahoBroker) Publish(topic string, qos byte, payload []byte) error {
	token := b.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to topic %s timed out", topic)
	}
	return token.Error()
}

func (b *pahoBroker) Disconnect() {
	b.client.Disconnect(250)
}
