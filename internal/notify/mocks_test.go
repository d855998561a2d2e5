package notify

import (
	"errors"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// mockToken implements mqtt.Token and completes immediately
type mockToken struct {
	err  error
	done chan struct{}
}

func newMockToken(err error) *mockToken {
	t := &mockToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *mockToken) Wait() bool                       { return true }
func (t *mockToken) WaitTimeout(d time.Duration) bool { return true }
func (t *mockToken) Error() error                     { return t.err }
func (t *mockToken) Done() <-chan struct{}            { return t.done }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

// mockMQTTClient implements mqtt.Client and records publishes
type mockMQTTClient struct {
	mu           sync.Mutex
	connected    bool
	publishErr   error
	published    []published
	disconnected bool
}

func (m *mockMQTTClient) Connect() mqtt.Token { return newMockToken(nil) }
func (m *mockMQTTClient) Disconnect(quiesce uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnected = true
}
func (m *mockMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return newMockToken(m.publishErr)
}
func (m *mockMQTTClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	return newMockToken(nil)
}
func (m *mockMQTTClient) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	return newMockToken(nil)
}
func (m *mockMQTTClient) Unsubscribe(topics ...string) mqtt.Token           { return newMockToken(nil) }
func (m *mockMQTTClient) AddRoute(topic string, callback mqtt.MessageHandler) {}
func (m *mockMQTTClient) IsConnected() bool                                   { return m.connected }
func (m *mockMQTTClient) IsConnectionOpen() bool                              { return m.connected }
func (m *mockMQTTClient) OptionsReader() mqtt.ClientOptionsReader             { return mqtt.ClientOptionsReader{} }

// mockNATSConn records publishes in place of a NATS connection
type mockNATSConn struct {
	mu       sync.Mutex
	fail     bool
	subjects []string
	payloads [][]byte
	closed   bool
}

func (m *mockNATSConn) Publish(subj string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("nats: connection closed")
	}
	m.subjects = append(m.subjects, subj)
	m.payloads = append(m.payloads, data)
	return nil
}

func (m *mockNATSConn) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}
