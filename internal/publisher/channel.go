package publisher

import (
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/estoquelabs/estoque-go/internal/messaging"
)

// lazyChannel opens a publishing channel on first use and replaces it when
// it is found closed. Publishers never share the consumer's channel.
type lazyChannel struct {
	broker  *messaging.Broker
	mu      sync.Mutex
	channel *amqp.Channel
}

func newLazyChannel(broker *messaging.Broker) *lazyChannel {
	return &lazyChannel{broker: broker}
}

// publish marshals event and sends it to the stock exchange under the given
// routing key.
func (l *lazyChannel) publish(routingKey string, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ch, err := l.current()
	if err != nil {
		return err
	}

	err = ch.Publish(
		messaging.ExchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", routingKey, err)
	}

	return nil
}

func (l *lazyChannel) current() (*amqp.Channel, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.channel == nil || l.channel.IsClosed() {
		ch, err := l.broker.Channel()
		if err != nil {
			return nil, err
		}
		if err := ch.ExchangeDeclare(messaging.ExchangeName, "topic", true, false, false, false, nil); err != nil {
			ch.Close()
			return nil, fmt.Errorf("failed to declare exchange: %w", err)
		}
		l.channel = ch
	}

	return l.channel, nil
}
