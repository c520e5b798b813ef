package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/estoquelabs/estoque-go/internal/messaging"
	"github.com/estoquelabs/estoque-go/internal/models"
)

// OrderStatusStore is the slice of the order repository this consumer
// needs.
type OrderStatusStore interface {
	UpdateStatus(id uuid.UUID, status string) error
}

// OrderStatusConsumer reacts to stock events on the order-service side:
// confirmed decrements move an order forward, failures and reversal
// confirmations close it out.
type OrderStatusConsumer struct {
	broker        *messaging.Broker
	store         OrderStatusStore
	reconnectWait time.Duration
}

func NewOrderStatusConsumer(broker *messaging.Broker, store OrderStatusStore) *OrderStatusConsumer {
	return &OrderStatusConsumer{
		broker:        broker,
		store:         store,
		reconnectWait: 10 * time.Second,
	}
}

// Run consumes until ctx is cancelled, reconnecting with a fixed backoff.
func (c *OrderStatusConsumer) Run(ctx context.Context) {
	for {
		if err := c.consume(ctx); err != nil {
			log.Printf("❌ Order status consumer lost its channel: %v", err)
		}

		select {
		case <-ctx.Done():
			log.Println("👋 Order status consumer stopped")
			return
		case <-time.After(c.reconnectWait):
		}
	}
}

func (c *OrderStatusConsumer) consume(ctx context.Context) error {
	ch, err := c.broker.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := messaging.DeclareOrderStatusTopology(ch); err != nil {
		return err
	}

	deliveries, err := ch.Consume(messaging.OrderStatusQueue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	closed := ch.NotifyClose(make(chan *amqp.Error, 1))
	log.Printf("👂 Listening on queue: %s", messaging.OrderStatusQueue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case amqpErr := <-closed:
			if amqpErr != nil {
				return amqpErr
			}
			return errors.New("channel closed")
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery stream closed")
			}
			c.handleEvent(d)
		}
	}
}

func (c *OrderStatusConsumer) handleEvent(d amqp.Delivery) {
	var event models.StockFailedEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		log.Printf("❌ Undecodable stock event on %s: %v", d.RoutingKey, err)
		d.Nack(false, false)
		return
	}

	status, ok := statusFor(event.TipoMensagem)
	if !ok {
		log.Printf("⚠️ Unknown stock event kind %q, dropping", event.TipoMensagem)
		d.Ack(false)
		return
	}

	if err := c.store.UpdateStatus(event.PedidoID, status); err != nil {
		// Requeue: this queue has no dead-letter exchange, so a
		// non-requeued nack would discard the event for good.
		log.Printf("❌ Failed to update order %s to %s: %v", event.PedidoID, status, err)
		d.Nack(false, true)
		return
	}

	if event.MotivoFalha != "" {
		log.Printf("📥 Order %s -> %s (%s)", event.PedidoID, status, event.MotivoFalha)
	} else {
		log.Printf("📥 Order %s -> %s", event.PedidoID, status)
	}
	d.Ack(false)
}

func statusFor(kind models.MessageType) (string, bool) {
	switch kind {
	case models.MessageBaixaEstoqueConfirmed:
		return models.StatusConfirmed, true
	case models.MessageBaixaEstoqueFailed:
		return models.StatusStockFailed, true
	case models.MessageEstornoEstoqueConfirmed:
		return models.StatusCancelled, true
	default:
		return "", false
	}
}
