package messaging

import (
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Broker holds the single RabbitMQ connection for the process. Components
// take their own channels from it; a channel is cheap, a connection is not.
type Broker struct {
	url  string
	mu   sync.Mutex
	conn *amqp.Connection
}

func NewBroker(host string, port int, user, password string) (*Broker, error) {
	b := &Broker{
		url: fmt.Sprintf("amqp://%s:%s@%s:%d/", user, password, host, port),
	}

	if err := b.connect(); err != nil {
		return nil, err
	}

	log.Println("✅ Connected to RabbitMQ")
	return b, nil
}

// connect dials a fresh connection. Caller holds b.mu, or is the
// constructor.
func (b *Broker) connect() error {
	conn, err := amqp.Dial(b.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	b.conn = conn
	return nil
}

// Channel opens a new channel on the shared connection, redialing first if
// the connection has been closed underneath us.
func (b *Broker) Channel() (*amqp.Channel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil || b.conn.IsClosed() {
		log.Println("🔄 RabbitMQ connection closed, redialing")
		if err := b.connect(); err != nil {
			return nil, err
		}
	}

	channel, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	return channel, nil
}

// Close closes the shared connection. Channels taken from it die with it.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn != nil && !b.conn.IsClosed() {
		b.conn.Close()
	}
}
