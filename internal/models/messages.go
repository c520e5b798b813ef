package models

import "github.com/google/uuid"

// MessageType discriminates the payload carried by an envelope on the
// stock exchange.
type MessageType string

const (
	MessageBaixaEstoque            MessageType = "BaixaEstoque"
	MessageEstornoEstoque          MessageType = "EstornoEstoque"
	MessageBaixaEstoqueConfirmed   MessageType = "BaixaEstoqueConfirmed"
	MessageBaixaEstoqueFailed      MessageType = "BaixaEstoqueFailed"
	MessageEstornoEstoqueConfirmed MessageType = "EstornoEstoqueConfirmed"
)

// BaseMessage is the envelope shared by every message on the stock
// exchange. Consumers decode it first to pick the concrete type.
type BaseMessage struct {
	PedidoID     uuid.UUID   `json:"pedidoId"`
	TipoMensagem MessageType `json:"tipoMensagem"`
}

// StockItemMessage is one line item of an adjustment request.
type StockItemMessage struct {
	ProdutoID  int `json:"produtoId"`
	Quantidade int `json:"quantidade"`
}

// StockAdjustmentMessage asks the stock service to decrement
// (BaixaEstoque) or add back (EstornoEstoque) the listed quantities.
type StockAdjustmentMessage struct {
	BaseMessage
	Items []StockItemMessage `json:"items"`
}

// StockConfirmedEvent reports a committed adjustment back to the order
// service. Used for both decrement and reversal confirmations.
type StockConfirmedEvent struct {
	BaseMessage
}

// StockFailedEvent reports a business rejection of a decrement request.
type StockFailedEvent struct {
	BaseMessage
	MotivoFalha string `json:"motivoFalha"`
}
