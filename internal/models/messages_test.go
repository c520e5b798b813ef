package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The consumer decodes the base envelope first and picks the concrete type
// from tipoMensagem; the field names are the wire contract shared with the
// order service.
func TestBaseEnvelopeDiscriminator(t *testing.T) {
	raw := []byte(`{
		"pedidoId": "12345678-1234-5678-1234-567812345678",
		"tipoMensagem": "BaixaEstoque",
		"items": [{"produtoId": 1, "quantidade": 3}, {"produtoId": 2, "quantidade": 5}]
	}`)

	var base BaseMessage
	require.NoError(t, json.Unmarshal(raw, &base))
	assert.Equal(t, MessageBaixaEstoque, base.TipoMensagem)
	assert.Equal(t, uuid.MustParse("12345678-1234-5678-1234-567812345678"), base.PedidoID)

	var msg StockAdjustmentMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	require.Len(t, msg.Items, 2)
	assert.Equal(t, 1, msg.Items[0].ProdutoID)
	assert.Equal(t, 3, msg.Items[0].Quantidade)
}

func TestFailedEventWireShape(t *testing.T) {
	pedidoID := uuid.New()
	event := StockFailedEvent{
		BaseMessage: BaseMessage{PedidoID: pedidoID, TipoMensagem: MessageBaixaEstoqueFailed},
		MotivoFalha: "product 999 not found",
	}

	body, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, pedidoID.String(), decoded["pedidoId"])
	assert.Equal(t, "BaixaEstoqueFailed", decoded["tipoMensagem"])
	assert.Equal(t, "product 999 not found", decoded["motivoFalha"])
}
