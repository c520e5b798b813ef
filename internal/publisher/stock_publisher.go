package publisher

import (
	"log"

	"github.com/google/uuid"

	"github.com/estoquelabs/estoque-go/internal/messaging"
	"github.com/estoquelabs/estoque-go/internal/models"
)

// StockEventPublisher emits the outcome of adjustment requests for the
// order service to react to. Publish errors are logged and returned; the
// consumer decides what they mean for the delivery in hand.
type StockEventPublisher struct {
	channel *lazyChannel
}

func NewStockEventPublisher(broker *messaging.Broker) *StockEventPublisher {
	return &StockEventPublisher{channel: newLazyChannel(broker)}
}

// PublishConfirmation reports a committed decrement.
func (p *StockEventPublisher) PublishConfirmation(pedidoID uuid.UUID) error {
	event := models.StockConfirmedEvent{
		BaseMessage: models.BaseMessage{
			PedidoID:     pedidoID,
			TipoMensagem: models.MessageBaixaEstoqueConfirmed,
		},
	}

	if err := p.channel.publish(messaging.KeyBaixaConfirmed, event); err != nil {
		log.Printf("❌ Failed to publish confirmation for order %s: %v", pedidoID, err)
		return err
	}

	log.Printf("📤 Published %s for order %s", messaging.KeyBaixaConfirmed, pedidoID)
	return nil
}

// PublishFailure reports a business rejection with a human-readable reason.
func (p *StockEventPublisher) PublishFailure(pedidoID uuid.UUID, reason string) error {
	event := models.StockFailedEvent{
		BaseMessage: models.BaseMessage{
			PedidoID:     pedidoID,
			TipoMensagem: models.MessageBaixaEstoqueFailed,
		},
		MotivoFalha: reason,
	}

	if err := p.channel.publish(messaging.KeyBaixaFailed, event); err != nil {
		log.Printf("❌ Failed to publish failure for order %s: %v", pedidoID, err)
		return err
	}

	log.Printf("📤 Published %s for order %s: %s", messaging.KeyBaixaFailed, pedidoID, reason)
	return nil
}

// PublishReversalConfirmation reports a committed stock reversal.
func (p *StockEventPublisher) PublishReversalConfirmation(pedidoID uuid.UUID) error {
	event := models.StockConfirmedEvent{
		BaseMessage: models.BaseMessage{
			PedidoID:     pedidoID,
			TipoMensagem: models.MessageEstornoEstoqueConfirmed,
		},
	}

	if err := p.channel.publish(messaging.KeyEstornoConfirmed, event); err != nil {
		log.Printf("❌ Failed to publish reversal confirmation for order %s: %v", pedidoID, err)
		return err
	}

	log.Printf("📤 Published %s for order %s", messaging.KeyEstornoConfirmed, pedidoID)
	return nil
}
