package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estoquelabs/estoque-go/internal/messaging"
	"github.com/estoquelabs/estoque-go/internal/models"
	"github.com/estoquelabs/estoque-go/internal/stock"
)

// fakeAcknowledger records the single ack/nack decision made on a delivery.
type fakeAcknowledger struct {
	acks    int
	nacks   int
	requeue bool
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.acks++
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.nacks++
	a.requeue = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	a.nacks++
	a.requeue = requeue
	return nil
}

type fakeProcessor struct {
	decrementOutcome stock.Outcome
	decrementErr     error
	incrementOutcome stock.Outcome
	incrementErr     error
	decrements       int
	increments       int
	lastCtx          context.Context
}

func (p *fakeProcessor) Decrement(ctx context.Context, msg models.StockAdjustmentMessage) (stock.Outcome, error) {
	p.decrements++
	p.lastCtx = ctx
	return p.decrementOutcome, p.decrementErr
}

func (p *fakeProcessor) Increment(ctx context.Context, msg models.StockAdjustmentMessage) (stock.Outcome, error) {
	p.increments++
	return p.incrementOutcome, p.incrementErr
}

type fakePublisher struct {
	confirmations []uuid.UUID
	failures      []string
	reversals     []uuid.UUID
	publishErr    error
}

func (p *fakePublisher) PublishConfirmation(pedidoID uuid.UUID) error {
	p.confirmations = append(p.confirmations, pedidoID)
	return p.publishErr
}

func (p *fakePublisher) PublishFailure(pedidoID uuid.UUID, reason string) error {
	p.failures = append(p.failures, reason)
	return p.publishErr
}

func (p *fakePublisher) PublishReversalConfirmation(pedidoID uuid.UUID) error {
	p.reversals = append(p.reversals, pedidoID)
	return p.publishErr
}

type fakeCache struct {
	invalidated []int
}

func (c *fakeCache) InvalidateProducts(ctx context.Context, productIDs []int) {
	c.invalidated = append(c.invalidated, productIDs...)
}

func noPark(d amqp.Delivery) error { return nil }

func newTestConsumer(p *fakeProcessor, pub *fakePublisher, cache *fakeCache) *StockConsumer {
	c := NewStockConsumer(nil, p, pub, nil)
	if cache != nil {
		c.cache = cache
	}
	return c
}

func delivery(t *testing.T, routingKey string, payload interface{}) (amqp.Delivery, *fakeAcknowledger) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	ack := &fakeAcknowledger{}
	return amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  1,
		RoutingKey:   routingKey,
		Body:         body,
	}, ack
}

func adjustment(kind models.MessageType) models.StockAdjustmentMessage {
	return models.StockAdjustmentMessage{
		BaseMessage: models.BaseMessage{PedidoID: uuid.New(), TipoMensagem: kind},
		Items:       []models.StockItemMessage{{ProdutoID: 1, Quantidade: 2}},
	}
}

func TestConfirmedDecrementAcksAndPublishes(t *testing.T) {
	msg := adjustment(models.MessageBaixaEstoque)
	processor := &fakeProcessor{decrementOutcome: stock.Outcome{PedidoID: msg.PedidoID, Confirmed: true}}
	publisher := &fakePublisher{}
	cache := &fakeCache{}
	c := newTestConsumer(processor, publisher, cache)

	d, ack := delivery(t, messaging.KeyBaixaEstoque, msg)
	c.handleDelivery(context.Background(), d, noPark)

	assert.Equal(t, 1, ack.acks)
	assert.Zero(t, ack.nacks)
	assert.Equal(t, []uuid.UUID{msg.PedidoID}, publisher.confirmations)
	assert.Equal(t, []int{1}, cache.invalidated)
}

func TestBusinessRejectionAcksWithFailureEvent(t *testing.T) {
	msg := adjustment(models.MessageBaixaEstoque)
	processor := &fakeProcessor{
		decrementOutcome: stock.Outcome{PedidoID: msg.PedidoID, Reason: "insufficient stock for product 1"},
	}
	publisher := &fakePublisher{}
	c := newTestConsumer(processor, publisher, nil)

	d, ack := delivery(t, messaging.KeyBaixaEstoque, msg)
	c.handleDelivery(context.Background(), d, noPark)

	// Not retried: the condition will not change by itself.
	assert.Equal(t, 1, ack.acks)
	assert.Zero(t, ack.nacks)
	assert.Equal(t, []string{"insufficient stock for product 1"}, publisher.failures)
	assert.Empty(t, publisher.confirmations)
}

func TestInfrastructureErrorNacksWithoutRequeue(t *testing.T) {
	msg := adjustment(models.MessageBaixaEstoque)
	processor := &fakeProcessor{decrementErr: errors.New("dial tcp: connection refused")}
	publisher := &fakePublisher{}
	c := newTestConsumer(processor, publisher, nil)

	d, ack := delivery(t, messaging.KeyBaixaEstoque, msg)
	c.handleDelivery(context.Background(), d, noPark)

	assert.Zero(t, ack.acks)
	assert.Equal(t, 1, ack.nacks)
	assert.False(t, ack.requeue, "must go to the dead-letter ring, not back to the queue")
	assert.Empty(t, publisher.failures)
}

func TestPoisonMessageNacksWithoutRequeue(t *testing.T) {
	processor := &fakeProcessor{}
	c := newTestConsumer(processor, &fakePublisher{}, nil)

	ack := &fakeAcknowledger{}
	d := amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  1,
		RoutingKey:   messaging.KeyBaixaEstoque,
		Body:         []byte("{not json"),
	}
	c.handleDelivery(context.Background(), d, noPark)

	assert.Zero(t, ack.acks)
	assert.Equal(t, 1, ack.nacks)
	assert.False(t, ack.requeue)
	assert.Zero(t, processor.decrements)
}

func TestUnknownKindIsDropped(t *testing.T) {
	processor := &fakeProcessor{}
	publisher := &fakePublisher{}
	c := newTestConsumer(processor, publisher, nil)

	d, ack := delivery(t, "some-other-key", models.BaseMessage{
		PedidoID:     uuid.New(),
		TipoMensagem: "PagamentoAprovado",
	})
	c.handleDelivery(context.Background(), d, noPark)

	assert.Equal(t, 1, ack.acks)
	assert.Zero(t, ack.nacks)
	assert.Zero(t, processor.decrements)
	assert.Zero(t, processor.increments)
	assert.Empty(t, publisher.confirmations)
}

func TestReversalPublishesReversalConfirmation(t *testing.T) {
	msg := adjustment(models.MessageEstornoEstoque)
	processor := &fakeProcessor{incrementOutcome: stock.Outcome{PedidoID: msg.PedidoID, Confirmed: true}}
	publisher := &fakePublisher{}
	c := newTestConsumer(processor, publisher, nil)

	d, ack := delivery(t, messaging.KeyEstornoEstoque, msg)
	c.handleDelivery(context.Background(), d, noPark)

	assert.Equal(t, 1, ack.acks)
	assert.Equal(t, 1, processor.increments)
	assert.Equal(t, []uuid.UUID{msg.PedidoID}, publisher.reversals)
}

func TestInvalidReversalIsDroppedWithoutEvent(t *testing.T) {
	msg := models.StockAdjustmentMessage{
		BaseMessage: models.BaseMessage{PedidoID: uuid.New(), TipoMensagem: models.MessageEstornoEstoque},
	}
	processor := &fakeProcessor{
		incrementOutcome: stock.Outcome{PedidoID: msg.PedidoID, Reason: "order has no line items"},
	}
	publisher := &fakePublisher{}
	c := newTestConsumer(processor, publisher, nil)

	d, ack := delivery(t, messaging.KeyEstornoEstoque, msg)
	c.handleDelivery(context.Background(), d, noPark)

	assert.Equal(t, 1, ack.acks)
	assert.Empty(t, publisher.reversals)
	assert.Empty(t, publisher.failures)
}

func TestLostConfirmationStillAcks(t *testing.T) {
	// The decrement is committed; a publish failure is logged, not a
	// reason to redeliver the request.
	msg := adjustment(models.MessageBaixaEstoque)
	processor := &fakeProcessor{decrementOutcome: stock.Outcome{PedidoID: msg.PedidoID, Confirmed: true}}
	publisher := &fakePublisher{publishErr: errors.New("channel closed")}
	c := newTestConsumer(processor, publisher, nil)

	d, ack := delivery(t, messaging.KeyBaixaEstoque, msg)
	c.handleDelivery(context.Background(), d, noPark)

	assert.Equal(t, 1, ack.acks)
	assert.Zero(t, ack.nacks)
}

func TestShutdownSignalDoesNotAbortDispatchedMessage(t *testing.T) {
	// The run loop's ctx is cancelled on SIGINT. A delivery already handed
	// to the processor must still commit and ack instead of rolling back.
	msg := adjustment(models.MessageBaixaEstoque)
	processor := &fakeProcessor{decrementOutcome: stock.Outcome{PedidoID: msg.PedidoID, Confirmed: true}}
	publisher := &fakePublisher{}
	c := newTestConsumer(processor, publisher, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d, ack := delivery(t, messaging.KeyBaixaEstoque, msg)
	c.handleDelivery(ctx, d, noPark)

	require.NotNil(t, processor.lastCtx)
	assert.NoError(t, processor.lastCtx.Err(), "the processor must not see the shutdown cancellation")
	assert.Equal(t, 1, ack.acks)
	assert.Zero(t, ack.nacks)
	assert.Equal(t, []uuid.UUID{msg.PedidoID}, publisher.confirmations)
}

func TestExhaustedRetriesAreQuarantined(t *testing.T) {
	msg := adjustment(models.MessageBaixaEstoque)
	processor := &fakeProcessor{}
	c := newTestConsumer(processor, &fakePublisher{}, nil)

	d, ack := delivery(t, messaging.KeyBaixaEstoque, msg)
	d.Headers = amqp.Table{
		"x-death": []interface{}{
			amqp.Table{"count": int64(3), "queue": messaging.MainQueue},
			amqp.Table{"count": int64(2), "queue": messaging.DeadLetterQueue},
		},
	}

	parked := 0
	c.handleDelivery(context.Background(), d, func(amqp.Delivery) error {
		parked++
		return nil
	})

	assert.Equal(t, 1, parked)
	assert.Equal(t, 1, ack.acks)
	assert.Zero(t, ack.nacks)
	assert.Zero(t, processor.decrements, "a quarantined message is not processed again")
}

func TestQuarantineFailureFallsBackToNack(t *testing.T) {
	msg := adjustment(models.MessageBaixaEstoque)
	c := newTestConsumer(&fakeProcessor{}, &fakePublisher{}, nil)

	d, ack := delivery(t, messaging.KeyBaixaEstoque, msg)
	d.Headers = amqp.Table{
		"x-death": []interface{}{amqp.Table{"count": int64(9)}},
	}

	c.handleDelivery(context.Background(), d, func(amqp.Delivery) error {
		return errors.New("channel closed")
	})

	assert.Zero(t, ack.acks)
	assert.Equal(t, 1, ack.nacks)
	assert.False(t, ack.requeue)
}

func TestDeathCountWithoutHeader(t *testing.T) {
	assert.Zero(t, deathCount(amqp.Delivery{}))
	assert.Zero(t, deathCount(amqp.Delivery{Headers: amqp.Table{"x-death": "garbage"}}))
}
