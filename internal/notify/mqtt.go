package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"servicenow-cmdb-integration/config"
	"servicenow-cmdb-integration/internal/logger"
)

const mqttPublishTimeout = 10 * time.Second

// MQTTPublisher publishes events to <subject>/<event type> with QoS 1.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	logger *logger.Logger
}

func NewMQTTPublisher(cfg config.NotifyConfig, log *logger.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.URL).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password.Value()).
		SetCleanSession(true).
		SetConnectTimeout(mqttPublishTimeout)

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", "error", err)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", token.Error())
	}

	return newMQTTPublisher(client, cfg.Subject, log), nil
}

func newMQTTPublisher(client mqtt.Client, subject string, log *logger.Logger) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: subject, logger: log}
}

func (p *MQTTPublisher) Publish(ctx context.Context, event Event) error {
	if !p.client.IsConnected() {
		return fmt.Errorf("not connected to broker")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	topic := topicFor(p.topic, event.Type)
	token := p.client.Publish(topic, 1, false, payload)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(mqttPublishTimeout):
		return fmt.Errorf("timed out publishing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	p.logger.Debug("published event",
		"topic", topic,
		"type", event.Type,
		"payloadSize", len(payload))
	return nil
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
