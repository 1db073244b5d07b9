// Package mqtt connects the dialogue player to the game: lines are published
// to display and stage topics, event handlers register the event kinds they
// serve and player input arrives on an input topic.
package mqtt

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/SentientDialogue/internal/log"
)

const (
	DefaultBrokerURL = "tcp://localhost:1883"
	opTimeout        = 10 * time.Second
)

// Client wraps the Paho MQTT client.
type Client struct {
	client paho.Client
	broker string
	mu     sync.Mutex
}

// BrokerURL returns the broker to use: url if set, else MQTT_URL, else the
// local default.
func BrokerURL(url string) string {
	if url != "" {
		return url
	}
	if env := os.Getenv("MQTT_URL"); env != "" {
		return env
	}
	return DefaultBrokerURL
}

// NewClient creates a new MQTT client but does not connect.
func NewClient(clientID, brokerURL string) *Client {
	broker := BrokerURL(brokerURL)
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second).
		SetCleanSession(false).
		SetResumeSubs(true)

	return &Client{
		client: paho.NewClient(opts),
		broker: broker,
	}
}

func (c *Client) Broker() string { return c.broker }

// Connect attempts to connect to the broker.
// Returns an error if connection fails, but does not block indefinitely.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Connect()
	if !token.WaitTimeout(opTimeout) {
		return &ConnectTimeoutError{Broker: c.broker}
	}
	return token.Error()
}

// Subscribe subscribes to a topic with the given handler.
func (c *Client) Subscribe(topic string, handler paho.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Subscribe(topic, 1, handler)
	if !token.WaitTimeout(opTimeout) {
		return &TimeoutError{Op: "subscribe", Topic: topic}
	}
	return token.Error()
}

// Publish sends payload to topic at QoS 1.
func (c *Client) Publish(topic string, payload []byte) error {
	token := c.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(opTimeout) {
		return &TimeoutError{Op: "publish", Topic: topic}
	}
	return token.Error()
}

// Disconnect cleanly disconnects from the broker.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.client.Disconnect(1000)
}

// IsConnected returns true if the client is connected.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// ConnectTimeoutError indicates connection timed out.
type ConnectTimeoutError struct {
	Broker string
}

func (e *ConnectTimeoutError) Error() string {
	return "mqtt connect timeout: " + e.Broker
}

// TimeoutError indicates a subscribe or publish timed out.
type TimeoutError struct {
	Op    string
	Topic string
}

func (e *TimeoutError) Error() string {
	return "mqtt " + e.Op + " timeout: " + e.Topic
}

// StartWithRetry connects in the background-retrying mode the client is
// built with and blocks until the first connection succeeds or ctx is done.
// onConnect then runs once, typically to subscribe; later reconnects resume
// those subscriptions on their own. Returns true if connected and onConnect
// succeeded.
func (c *Client) StartWithRetry(ctx context.Context, onConnect func() error) bool {
	logger := log.WithComponent("mqtt").With(slog.String("broker", c.broker))

	c.mu.Lock()
	token := c.client.Connect()
	c.mu.Unlock()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return false
	}
	if err := token.Error(); err != nil {
		logger.Error("failed to connect", slog.Any("error", err))
		return false
	}
	logger.Info("connected")

	if onConnect == nil {
		return true
	}
	if err := onConnect(); err != nil {
		logger.Error("post-connect setup failed", slog.Any("error", err))
		return false
	}
	return true
}
