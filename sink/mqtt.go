package sink

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"matrixboard/canvas"
	"matrixboard/internal/ratelimit"
)

// publisher is the part of mqtt.Client the sink uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes every changed frame as raw RGB bytes to <topic>/frame, for a
// microcontroller driving the real panel. Clear publishes an empty message
// to <topic>/clear.
type MQTT struct {
	client  publisher
	topic   string
	timeout time.Duration
	logger  *log.Logger

	mu       sync.Mutex
	lastHash uint64
	sent     bool
	closed   bool
}

// MQTTOptions configures DialMQTT.
type MQTTOptions struct {
	Broker   string
	Port     int
	ClientID string
	Topic    string
	Timeout  time.Duration
	Logger   *log.Logger
}

// DialMQTT connects to the broker and returns a sink publishing under
// opts.Topic.
func DialMQTT(opts MQTTOptions) (*MQTT, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.ClientID == "" {
		opts.ClientID = generatedClientID()
	}
	brokerURL := fmt.Sprintf("tcp://%s:%d", opts.Broker, opts.Port)
	co := mqtt.NewClientOptions()
	co.AddBroker(brokerURL)
	co.SetClientID(opts.ClientID)
	co.SetKeepAlive(60 * time.Second)
	co.SetPingTimeout(10 * time.Second)
	co.SetConnectTimeout(opts.Timeout)
	co.SetAutoReconnect(true)
	co.SetMaxReconnectInterval(time.Minute)
	co.SetConnectionLostHandler(connectionLostLogger(opts.Logger))

	client := mqtt.NewClient(co)
	if opts.Logger != nil {
		opts.Logger.Printf("MQTT: connecting to %s as %s...", brokerURL, opts.ClientID)
	}
	token := client.Connect()
	if !token.WaitTimeout(opts.Timeout) {
		return nil, fmt.Errorf("mqtt: connect to %s: timed out after %v", brokerURL, opts.Timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", brokerURL, err)
	}
	return NewMQTT(client, opts.Topic, opts.Timeout, opts.Logger), nil
}

// generatedClientID keeps two boards on one broker from evicting each other.
func generatedClientID() string {
	return "matrixboard-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// connectionLostLogger logs broker disconnects at most once a minute.
func connectionLostLogger(logger *log.Logger) func(mqtt.Client, error) {
	lost := ratelimit.NewCounter(time.Minute)
	return func(_ mqtt.Client, err error) {
		total, suppressed, ok := lost.Allow(time.Now())
		if !ok || logger == nil {
			return
		}
		if suppressed > 0 {
			logger.Printf("MQTT: connection lost: %v (reconnecting; %d drops total, %d not logged)", err, total, suppressed)
			return
		}
		logger.Printf("MQTT: connection lost: %v (reconnecting)", err)
	}
}

// NewMQTT wraps an already connected client.
func NewMQTT(client publisher, topic string, timeout time.Duration, logger *log.Logger) *MQTT {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MQTT{client: client, topic: topic, timeout: timeout, logger: logger}
}

func (m *MQTT) Present(c *canvas.Canvas) error {
	sum := frameHash(c)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("mqtt: sink closed")
	}
	if m.sent && sum == m.lastHash {
		return nil
	}
	if err := m.publish(m.topic+"/frame", c.RGB()); err != nil {
		return err
	}
	m.lastHash = sum
	m.sent = true
	return nil
}

// Clear tells the panel to blank and disconnects. A failed publish is still
// reported but the client is disconnected either way.
func (m *MQTT) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	err := m.publish(m.topic+"/clear", []byte{})
	m.client.Disconnect(250)
	if m.logger != nil {
		m.logger.Printf("MQTT: cleared display and disconnected")
	}
	return err
}

func (m *MQTT) publish(topic string, payload []byte) error {
	token := m.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(m.timeout) {
		return fmt.Errorf("mqtt: publish %s: timed out after %v", topic, m.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish %s: %w", topic, err)
	}
	return nil
}
