package consumer

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"

	"github.com/estoquelabs/estoque-go/internal/messaging"
	"github.com/estoquelabs/estoque-go/internal/models"
)

type fakeOrderStore struct {
	statuses  map[uuid.UUID]string
	updateErr error
}

func (s *fakeOrderStore) UpdateStatus(id uuid.UUID, status string) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	if s.statuses == nil {
		s.statuses = map[uuid.UUID]string{}
	}
	s.statuses[id] = status
	return nil
}

func TestStatusEventMapping(t *testing.T) {
	cases := []struct {
		kind       models.MessageType
		routingKey string
		want       string
	}{
		{models.MessageBaixaEstoqueConfirmed, messaging.KeyBaixaConfirmed, models.StatusConfirmed},
		{models.MessageBaixaEstoqueFailed, messaging.KeyBaixaFailed, models.StatusStockFailed},
		{models.MessageEstornoEstoqueConfirmed, messaging.KeyEstornoConfirmed, models.StatusCancelled},
	}

	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			store := &fakeOrderStore{}
			c := NewOrderStatusConsumer(nil, store)
			pedidoID := uuid.New()

			d, ack := delivery(t, tc.routingKey, models.StockFailedEvent{
				BaseMessage: models.BaseMessage{PedidoID: pedidoID, TipoMensagem: tc.kind},
				MotivoFalha: "insufficient stock for product 1",
			})
			c.handleEvent(d)

			assert.Equal(t, 1, ack.acks)
			assert.Equal(t, tc.want, store.statuses[pedidoID])
		})
	}
}

func TestUnknownStatusEventIsDropped(t *testing.T) {
	store := &fakeOrderStore{}
	c := NewOrderStatusConsumer(nil, store)

	d, ack := delivery(t, "whatever", models.BaseMessage{
		PedidoID:     uuid.New(),
		TipoMensagem: "NotAThing",
	})
	c.handleEvent(d)

	assert.Equal(t, 1, ack.acks)
	assert.Empty(t, store.statuses)
}

func TestStatusUpdateFailureRequeues(t *testing.T) {
	store := &fakeOrderStore{updateErr: errors.New("connection refused")}
	c := NewOrderStatusConsumer(nil, store)

	d, ack := delivery(t, messaging.KeyBaixaConfirmed, models.StockConfirmedEvent{
		BaseMessage: models.BaseMessage{PedidoID: uuid.New(), TipoMensagem: models.MessageBaixaEstoqueConfirmed},
	})
	c.handleEvent(d)

	assert.Zero(t, ack.acks)
	assert.Equal(t, 1, ack.nacks)
	assert.True(t, ack.requeue, "there is no dead-letter ring on this queue, dropping would lose the event")
}

func TestUndecodableStatusEventNacks(t *testing.T) {
	c := NewOrderStatusConsumer(nil, &fakeOrderStore{})

	ack := &fakeAcknowledger{}
	c.handleEvent(amqp.Delivery{
		Acknowledger: ack,
		RoutingKey:   messaging.KeyBaixaConfirmed,
		Body:         []byte("{broken"),
	})

	assert.Equal(t, 1, ack.nacks)
	assert.False(t, ack.requeue)
}
