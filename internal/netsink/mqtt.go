package netsink

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"emberlog/internal/record"
	"emberlog/internal/sink"
)

// MQTTConfig configures an MQTT sink.
type MQTTConfig struct {
	Name       string
	Broker     string // e.g. "tcp://localhost:1883"
	ClientID   string
	Topic      string
	QoS        byte // 0, 1, or 2
	Retained   bool
	Username   string
	Password   string
	Auth       *AuthConfig // optional; when set, a token minted from it is sent as the MQTT password instead of Password
	Encoding   Encoding
	PublishTTL time.Duration // how long Write waits for the publish token; default 5s
	MinLevel   record.Level
	MaxLevel   record.Level
}

// MQTT publishes formatted records to a topic via paho.mqtt.golang.
type MQTT struct {
	name       string
	topic      string
	qos        byte
	retained   bool
	client     paho.Client
	enc        Encoding
	publishTTL time.Duration
	levelRange
	enabledFlag
}

// NewMQTT connects to cfg.Broker and returns an MQTT sink ready to
// publish to cfg.Topic.
func NewMQTT(cfg MQTTConfig) (*MQTT, error) {
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true)

	if cfg.Auth != nil {
		tok, err := cfg.Auth.Token(time.Now())
		if err != nil {
			return nil, fmt.Errorf("netsink: mqtt bearer token: %w", err)
		}
		opts.SetUsername(cfg.Username)
		opts.SetPassword(tok)
	} else if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := paho.NewClient(opts)
	if tok := client.Connect(); tok.Wait() && tok.Error() != nil {
		return nil, fmt.Errorf("netsink: mqtt connect %s: %w", cfg.Broker, tok.Error())
	}

	ttl := cfg.PublishTTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	m := &MQTT{
		name:        cfg.Name,
		topic:       cfg.Topic,
		qos:         cfg.QoS,
		retained:    cfg.Retained,
		client:      client,
		enc:         cfg.Encoding,
		publishTTL:  ttl,
		levelRange:  levelRange{min: cfg.MinLevel, max: cfg.MaxLevel},
		enabledFlag: newEnabledFlag(),
	}
	return m, nil
}

func (m *MQTT) Write(_ []byte, rec record.Record) error {
	payload, err := encode(m.enc, rec)
	if err != nil {
		return err
	}
	tok := m.client.Publish(m.topic, m.qos, m.retained, payload)
	if !tok.WaitTimeout(m.publishTTL) {
		return fmt.Errorf("netsink: mqtt publish to %q timed out after %s", m.topic, m.publishTTL)
	}
	return tok.Error()
}

// Flush is a no-op; paho publishes are acknowledged synchronously in
// Write via the publish token.
func (m *MQTT) Flush() error { return nil }

func (m *MQTT) Name() string { return m.name }

// RotateIfNeeded is a no-op; MQTT has no local rotation concept.
func (m *MQTT) RotateIfNeeded() (*sink.RotationEvent, error) { return nil, nil }

func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}

var _ sink.Sink = (*MQTT)(nil)
