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
	"github.com/estoquelabs/estoque-go/internal/stock"
)

// AdjustmentProcessor is implemented by stock.Processor.
type AdjustmentProcessor interface {
	Decrement(ctx context.Context, msg models.StockAdjustmentMessage) (stock.Outcome, error)
	Increment(ctx context.Context, msg models.StockAdjustmentMessage) (stock.Outcome, error)
}

// EventPublisher is implemented by publisher.StockEventPublisher.
type EventPublisher interface {
	PublishConfirmation(pedidoID uuid.UUID) error
	PublishFailure(pedidoID uuid.UUID, reason string) error
	PublishReversalConfirmation(pedidoID uuid.UUID) error
}

// CacheInvalidator drops cached product reads after a committed
// adjustment. Optional; nil disables invalidation.
type CacheInvalidator interface {
	InvalidateProducts(ctx context.Context, productIDs []int)
}

// parkFunc moves a delivery into the quarantine queue.
type parkFunc func(d amqp.Delivery) error

// StockConsumer reads adjustment requests off the main queue and turns
// processor outcomes into ack/nack decisions. Exactly one decision is made
// per delivery:
//
//	confirmed            publish event, ack
//	business rejection   publish failure event, ack (retrying won't help)
//	undecodable body     nack without requeue (poison, to the DLX ring)
//	infrastructure error nack without requeue (retried after the DLQ TTL)
//	unknown kind         ack and drop (it will never become interpretable)
//
// A delivery that has already been through the dead-letter ring
// maxAttempts times is parked in the quarantine queue instead.
type StockConsumer struct {
	broker        *messaging.Broker
	processor     AdjustmentProcessor
	publisher     EventPublisher
	cache         CacheInvalidator
	reconnectWait time.Duration
	maxAttempts   int
}

func NewStockConsumer(broker *messaging.Broker, processor AdjustmentProcessor, publisher EventPublisher, cache CacheInvalidator) *StockConsumer {
	return &StockConsumer{
		broker:        broker,
		processor:     processor,
		publisher:     publisher,
		cache:         cache,
		reconnectWait: 10 * time.Second,
		maxAttempts:   5,
	}
}

// Run consumes until ctx is cancelled, reconnecting with a fixed backoff
// whenever the channel or connection drops. A message already dispatched
// finishes its transaction before the loop exits.
func (c *StockConsumer) Run(ctx context.Context) {
	for {
		if err := c.consume(ctx); err != nil {
			log.Printf("❌ Stock consumer lost its channel: %v", err)
		}

		select {
		case <-ctx.Done():
			log.Println("👋 Stock consumer stopped")
			return
		case <-time.After(c.reconnectWait):
		}
	}
}

// consume is one connection attempt: open a channel, declare the topology,
// then drain deliveries until the channel dies or ctx is cancelled.
func (c *StockConsumer) consume(ctx context.Context) error {
	ch, err := c.broker.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := messaging.DeclareStockTopology(ch); err != nil {
		return err
	}

	// One unacked message at a time. Scale-out means more consumer
	// processes, not a bigger prefetch window.
	if err := ch.Qos(1, 0, false); err != nil {
		return err
	}

	deliveries, err := ch.Consume(
		messaging.MainQueue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return err
	}

	closed := ch.NotifyClose(make(chan *amqp.Error, 1))
	log.Printf("👂 Listening on queue: %s", messaging.MainQueue)

	park := func(d amqp.Delivery) error {
		return ch.Publish("", messaging.QuarantineQueue, false, false, amqp.Publishing{
			ContentType: d.ContentType,
			Headers:     d.Headers,
			Body:        d.Body,
		})
	}

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
			c.handleDelivery(ctx, d, park)
		}
	}
}

// handleDelivery makes exactly one ack/nack decision for d.
func (c *StockConsumer) handleDelivery(ctx context.Context, d amqp.Delivery, park parkFunc) {
	// A dispatched message finishes its transaction and its ack even if
	// shutdown is signalled mid-flight; a cancelled ctx would otherwise
	// roll back BeginTx and nack the delivery.
	ctx = context.WithoutCancel(ctx)

	if attempts := deathCount(d); attempts >= c.maxAttempts {
		log.Printf("🚧 Message on %s exceeded %d delivery attempts, quarantining", d.RoutingKey, c.maxAttempts)
		if err := park(d); err != nil {
			log.Printf("❌ Failed to quarantine message: %v", err)
			d.Nack(false, false)
			return
		}
		d.Ack(false)
		return
	}

	var base models.BaseMessage
	if err := json.Unmarshal(d.Body, &base); err != nil {
		log.Printf("❌ Undecodable message on %s: %v", d.RoutingKey, err)
		d.Nack(false, false)
		return
	}

	switch {
	case d.RoutingKey == messaging.KeyBaixaEstoque || base.TipoMensagem == models.MessageBaixaEstoque:
		c.handleDecrement(ctx, d)
	case d.RoutingKey == messaging.KeyEstornoEstoque || base.TipoMensagem == models.MessageEstornoEstoque:
		c.handleReversal(ctx, d)
	default:
		// A message we cannot interpret now will not become interpretable
		// on redelivery.
		log.Printf("⚠️ Unknown message kind %q on %s, dropping", base.TipoMensagem, d.RoutingKey)
		d.Ack(false)
	}
}

func (c *StockConsumer) handleDecrement(ctx context.Context, d amqp.Delivery) {
	var msg models.StockAdjustmentMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		log.Printf("❌ Undecodable decrement request: %v", err)
		d.Nack(false, false)
		return
	}

	log.Printf("📥 Decrement request for order %s (%d items, redelivered=%t)", msg.PedidoID, len(msg.Items), d.Redelivered)

	outcome, err := c.processor.Decrement(ctx, msg)
	if err != nil {
		log.Printf("❌ Decrement for order %s hit an infrastructure error: %v", msg.PedidoID, err)
		d.Nack(false, false)
		return
	}

	if !outcome.Confirmed {
		log.Printf("🚫 Decrement for order %s rejected: %s", outcome.PedidoID, outcome.Reason)
		if err := c.publisher.PublishFailure(outcome.PedidoID, outcome.Reason); err != nil {
			log.Printf("⚠️ Failure event for order %s not published: %v", outcome.PedidoID, err)
		}
		d.Ack(false)
		return
	}

	c.invalidate(ctx, msg.Items)

	// The decrement is committed either way; a lost confirmation is a
	// known gap of this design, not a reason to redeliver the request.
	if err := c.publisher.PublishConfirmation(outcome.PedidoID); err != nil {
		log.Printf("⚠️ Confirmation for order %s not published: %v", outcome.PedidoID, err)
	}
	d.Ack(false)
	log.Printf("✅ Order %s stock decremented", outcome.PedidoID)
}

func (c *StockConsumer) handleReversal(ctx context.Context, d amqp.Delivery) {
	var msg models.StockAdjustmentMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		log.Printf("❌ Undecodable reversal request: %v", err)
		d.Nack(false, false)
		return
	}

	log.Printf("📥 Reversal request for order %s (%d items)", msg.PedidoID, len(msg.Items))

	outcome, err := c.processor.Increment(ctx, msg)
	if err != nil {
		log.Printf("❌ Reversal for order %s hit an infrastructure error: %v", msg.PedidoID, err)
		d.Nack(false, false)
		return
	}

	if !outcome.Confirmed {
		// Only an empty batch or a non-positive quantity ends up here.
		// There is no reversal-failed event in the contract, so the
		// invalid request is just dropped.
		log.Printf("🚫 Reversal for order %s rejected: %s", outcome.PedidoID, outcome.Reason)
		d.Ack(false)
		return
	}

	c.invalidate(ctx, msg.Items)

	if err := c.publisher.PublishReversalConfirmation(outcome.PedidoID); err != nil {
		log.Printf("⚠️ Reversal confirmation for order %s not published: %v", outcome.PedidoID, err)
	}
	d.Ack(false)
	log.Printf("✅ Order %s stock restored", outcome.PedidoID)
}

func (c *StockConsumer) invalidate(ctx context.Context, items []models.StockItemMessage) {
	if c.cache == nil {
		return
	}
	ids := make([]int, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProdutoID)
	}
	c.cache.InvalidateProducts(ctx, ids)
}

// deathCount sums the x-death counts the broker stamps on a delivery each
// time it passes through the dead-letter exchange.
func deathCount(d amqp.Delivery) int {
	deaths, ok := d.Headers["x-death"].([]interface{})
	if !ok {
		return 0
	}

	total := 0
	for _, entry := range deaths {
		table, ok := entry.(amqp.Table)
		if !ok {
			continue
		}
		if count, ok := table["count"].(int64); ok {
			total += int(count)
		}
	}
	return total
}
