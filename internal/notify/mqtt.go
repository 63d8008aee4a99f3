package notify

import (
	"encoding/json"
	"errors"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/cjeanneret/PirSnap/internal/debug"
)

// MQTTConfig describes the broker connection.
type MQTTConfig struct {
	Broker   string // e.g. tcp://localhost:1883
	ClientID string
	Topic    string // status goes to <Topic>/status
	Username string
	Password string
}

// Event is the JSON payload published for every status message.
type Event struct {
	Time   string `json:"t"`
	Level  string `json:"l,omitempty"`
	Msg    string `json:"msg"`
	Device string `json:"device,omitempty"`
}

const (
	connectTimeout = 30 * time.Second
	publishTimeout = 5 * time.Second
	disconnectMs   = 250
)

// MQTT publishes status messages to a broker. Publishing never blocks the
// caller; delivery errors are logged.
type MQTT struct {
	client mqtt.Client
	topic  string
	device string
	now    func() time.Time
}

// ClientOptions builds the paho options for cfg.
func ClientOptions(cfg MQTTConfig) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	debug.Verbose("MQTT broker %s", cfg.Broker)

	if cfg.Username != "" || cfg.Password != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetConnectRetry(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.OnConnect = func(mqtt.Client) {
		debug.Info("MQTT connected to %s as %s", cfg.Broker, cfg.ClientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		debug.Warn("MQTT connection lost: %v", err)
	}
	return opts
}

// DialMQTT connects to the broker. A broker that is down at startup is not
// fatal: the client keeps retrying in the background.
func DialMQTT(cfg MQTTConfig) (*MQTT, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt: broker is required")
	}
	client := mqtt.NewClient(ClientOptions(cfg))
	if token := client.Connect(); token.WaitTimeout(3*time.Second) && token.Error() != nil {
		debug.Warn("MQTT: unable to connect to %s: %v", cfg.Broker, token.Error())
	}
	return NewMQTT(client, cfg.Topic, cfg.ClientID), nil
}

// NewMQTT wraps an existing client.
func NewMQTT(client mqtt.Client, topic, device string) *MQTT {
	if topic == "" {
		topic = "pirsnap"
	}
	return &MQTT{client: client, topic: topic, device: device, now: time.Now}
}

// StatusTopic is the topic status events are published to.
func (m *MQTT) StatusTopic() string {
	return m.topic + "/status"
}

// Payload encodes one status event.
func (m *MQTT) Payload(level, msg string) ([]byte, error) {
	return json.Marshal(Event{
		Time:   m.now().Format(time.RFC3339),
		Level:  level,
		Msg:    msg,
		Device: m.device,
	})
}

// Broadcast publishes msg with QoS 0.
func (m *MQTT) Broadcast(level, msg string) {
	data, err := m.Payload(level, msg)
	if err != nil {
		debug.Error(err)
		return
	}
	token := m.client.Publish(m.StatusTopic(), 0, false, data)
	go func() {
		if token.WaitTimeout(publishTimeout) && token.Error() != nil {
			debug.Warn("MQTT publish to %s failed: %v", m.StatusTopic(), token.Error())
		}
	}()
}

// Close disconnects from the broker.
func (m *MQTT) Close() {
	if m.client.IsConnected() {
		m.client.Disconnect(disconnectMs)
	}
}
