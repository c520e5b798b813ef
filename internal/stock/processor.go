package stock

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/estoquelabs/estoque-go/internal/models"
)

// Outcome is the business result of one adjustment attempt. When Confirmed
// is false, Reason carries the rejection in the form the failure event
// expects. Infrastructure problems are reported as errors, not Outcomes.
type Outcome struct {
	PedidoID  uuid.UUID
	Confirmed bool
	Reason    string
}

func confirmed(pedidoID uuid.UUID) Outcome {
	return Outcome{PedidoID: pedidoID, Confirmed: true}
}

func failed(pedidoID uuid.UUID, reason string) Outcome {
	return Outcome{PedidoID: pedidoID, Reason: reason}
}

// Processor applies adjustment requests to the ledger. It knows nothing
// about the broker; the consumer maps its results onto ack/nack decisions.
type Processor struct {
	ledger Ledger
}

func NewProcessor(ledger Ledger) *Processor {
	return &Processor{ledger: ledger}
}

// Decrement takes stock for every line item of an order, all or nothing.
// Items are checked in list order; the first missing product or shortfall
// rejects the whole request and rolls everything back.
func (p *Processor) Decrement(ctx context.Context, msg models.StockAdjustmentMessage) (Outcome, error) {
	if outcome, ok := rejectInvalid(msg); ok {
		return outcome, nil
	}

	tx, err := p.ledger.Begin(ctx)
	if err != nil {
		return Outcome{}, err
	}

	for _, item := range msg.Items {
		product, err := tx.ItemForUpdate(ctx, item.ProdutoID)
		if err != nil {
			return Outcome{}, p.abort(tx, err)
		}

		if product == nil {
			p.discard(tx)
			return failed(msg.PedidoID, fmt.Sprintf("product %d not found", item.ProdutoID)), nil
		}

		if product.Quantity < item.Quantidade {
			p.discard(tx)
			return failed(msg.PedidoID, fmt.Sprintf("insufficient stock for product %d", item.ProdutoID)), nil
		}

		if err := tx.AddQuantity(ctx, item.ProdutoID, -item.Quantidade); err != nil {
			return Outcome{}, p.abort(tx, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Outcome{}, err
	}

	return confirmed(msg.PedidoID), nil
}

// Increment gives quantities back after an order cancellation. Reversal
// has no business failure path: a product that no longer exists surfaces
// as an infrastructure error from the ledger, never as a rejection.
func (p *Processor) Increment(ctx context.Context, msg models.StockAdjustmentMessage) (Outcome, error) {
	if outcome, ok := rejectInvalid(msg); ok {
		return outcome, nil
	}

	tx, err := p.ledger.Begin(ctx)
	if err != nil {
		return Outcome{}, err
	}

	for _, item := range msg.Items {
		if err := tx.AddQuantity(ctx, item.ProdutoID, item.Quantidade); err != nil {
			return Outcome{}, p.abort(tx, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Outcome{}, err
	}

	return confirmed(msg.PedidoID), nil
}

// rejectInvalid rejects a request that is malformed on its face, before
// any transaction is opened: an empty batch, or a line item whose quantity
// is zero or negative. A negative quantity on a decrement would otherwise
// flip the sign of the delta and inflate stock.
func rejectInvalid(msg models.StockAdjustmentMessage) (Outcome, bool) {
	if len(msg.Items) == 0 {
		return failed(msg.PedidoID, "order has no line items"), true
	}
	for _, item := range msg.Items {
		if item.Quantidade <= 0 {
			return failed(msg.PedidoID, fmt.Sprintf("invalid quantity %d for product %d", item.Quantidade, item.ProdutoID)), true
		}
	}
	return Outcome{}, false
}

// abort rolls the transaction back and hands the original error on. A
// failing rollback is logged but must not mask what actually went wrong.
func (p *Processor) abort(tx Tx, cause error) error {
	if err := tx.Rollback(); err != nil {
		log.Printf("⚠️ Rollback failed after error: %v", err)
	}
	return cause
}

// discard rolls back a transaction that ends in a business rejection.
func (p *Processor) discard(tx Tx) {
	if err := tx.Rollback(); err != nil {
		log.Printf("⚠️ Rollback failed: %v", err)
	}
}
