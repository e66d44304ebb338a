package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tempest_bridge/internal/logger"
	"tempest_bridge/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttPublishTimeout = 5 * time.Second
	mqttQuiesceMillis  = 250
)

var errMQTTTimeout = errors.New("mqtt publish timed out")

// mqttClient is the part of mqtt.Client the sink uses.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type MQTTConfig struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
	Username string
	Password string
}

// MQTTSink publishes records as JSON to one topic.
type MQTTSink struct {
	client mqttClient
	topic  string
	qos    byte
}

// NewMQTTSink connects to the broker. The client reconnects on its own afterwards.
func NewMQTTSink(ctx context.Context, cfg MQTTConfig, log *logger.Logger) (*MQTTSink, error) {
	if log == nil {
		log = logger.Nop()
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(false)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnect = func(mqtt.Client) { log.Infow("mqtt_connected", "broker", cfg.Broker) }
	opts.OnConnectionLost = func(_ mqtt.Client, err error) { log.Warnw("mqtt_connection_lost", "err", err) }

	client := mqtt.NewClient(opts)
	tok := client.Connect()
	select {
	case <-tok.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}
	return newMQTTSink(client, cfg.Topic, cfg.QoS), nil
}

func newMQTTSink(client mqttClient, topic string, qos byte) *MQTTSink {
	return &MQTTSink{client: client, topic: topic, qos: qos}
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Publish(ctx context.Context, rec models.ObservationRecord) error {
	payload, err := encode(rec)
	if err != nil {
		return err
	}
	tok := s.client.Publish(s.topic, s.qos, false, payload)

	timer := time.NewTimer(mqttPublishTimeout)
	defer timer.Stop()
	select {
	case <-tok.Done():
		return tok.Error()
	case <-timer.C:
		return errMQTTTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *MQTTSink) Close(context.Context) error {
	s.client.Disconnect(mqttQuiesceMillis)
	return nil
}
