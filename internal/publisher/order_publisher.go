package publisher

import (
	"log"

	"github.com/estoquelabs/estoque-go/internal/messaging"
	"github.com/estoquelabs/estoque-go/internal/models"
)

// OrderPublisher is the order-service side: it turns orders into stock
// adjustment requests on the main exchange.
type OrderPublisher struct {
	channel *lazyChannel
}

func NewOrderPublisher(broker *messaging.Broker) *OrderPublisher {
	return &OrderPublisher{channel: newLazyChannel(broker)}
}

// PublishDecrementRequest asks the stock service to take the order's
// quantities out of the ledger.
func (p *OrderPublisher) PublishDecrementRequest(order *models.Order) error {
	msg := adjustmentMessage(order, models.MessageBaixaEstoque)

	if err := p.channel.publish(messaging.KeyBaixaEstoque, msg); err != nil {
		log.Printf("❌ Failed to publish decrement request for order %s: %v", order.ID, err)
		return err
	}

	log.Printf("📤 Published %s for order %s (%d items)", messaging.KeyBaixaEstoque, order.ID, len(msg.Items))
	return nil
}

// PublishReversalRequest compensates a cancelled order by asking for its
// quantities back.
func (p *OrderPublisher) PublishReversalRequest(order *models.Order) error {
	msg := adjustmentMessage(order, models.MessageEstornoEstoque)

	if err := p.channel.publish(messaging.KeyEstornoEstoque, msg); err != nil {
		log.Printf("❌ Failed to publish reversal request for order %s: %v", order.ID, err)
		return err
	}

	log.Printf("📤 Published %s for order %s (%d items)", messaging.KeyEstornoEstoque, order.ID, len(msg.Items))
	return nil
}

func adjustmentMessage(order *models.Order, kind models.MessageType) models.StockAdjustmentMessage {
	msg := models.StockAdjustmentMessage{
		BaseMessage: models.BaseMessage{
			PedidoID:     order.ID,
			TipoMensagem: kind,
		},
	}
	for _, item := range order.Items {
		msg.Items = append(msg.Items, models.StockItemMessage{
			ProdutoID:  item.ProductID,
			Quantidade: item.Quantity,
		})
	}
	return msg
}
