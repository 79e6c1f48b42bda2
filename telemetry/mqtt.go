// Package telemetry publishes board readings to an MQTT broker.
package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/CruiseDevice/sbhsd"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

var ErrConnectionFailed = errors.New("mqtt connection failed")

// Token is the subset of pahomqtt.Token waited on by the publisher.
type Token interface {
	WaitTimeout(time.Duration) bool
	Error() error
}

// Client is the subset of pahomqtt.Client used by the publisher.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload any) Token
	Disconnect(quiesce uint)
}

type pahoClient struct {
	pahomqtt.Client
}

func (c pahoClient) Publish(topic string, qos byte, retained bool, payload any) Token {
	return c.Client.Publish(topic, qos, retained, payload)
}

type Publisher struct {
	client Client
	topic  string
	qos    byte
}

// Connect connects to the broker configured in cfg.
func Connect(cfg sbhsd.MQTT) (*Publisher, error) {
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetConnectTimeout(connectTimeout)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return New(pahoClient{Client: client}, cfg.Topic, cfg.QoS), nil
}

func New(client Client, topic string, qos byte) *Publisher {
	return &Publisher{
		client: client,
		topic:  topic,
		qos:    qos,
	}
}

// Topic returns the topic readings of usb are published on.
func (p *Publisher) Topic(r sbhsd.Reading) string {
	return fmt.Sprintf("%s/usb%d/temperature", p.topic, r.USB)
}

func (p *Publisher) Publish(r sbhsd.Reading) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	token := p.client.Publish(p.Topic(r), p.qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish: timeout after %v", publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	return nil
}

func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
