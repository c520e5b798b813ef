package messaging

import (
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
)

// One durable topic exchange carries both inbound adjustment requests and
// outbound confirmation events. Rejected deliveries dead-letter into a
// fanout exchange whose queue holds them for DeadLetterTTL and then feeds
// them back into the main exchange for another attempt.
const (
	ExchangeName       = "estoque-exchange"
	DeadLetterExchange = "estoque-dlx"

	MainQueue        = "estoque-baixa"
	DeadLetterQueue  = "estoque-dlq"
	QuarantineQueue  = "estoque-quarantine"
	OrderStatusQueue = "vendas-status"

	// Inbound routing keys.
	KeyBaixaEstoque   = "baixa-estoque"
	KeyEstornoEstoque = "estorno-estoque"

	// Outbound routing keys.
	KeyBaixaConfirmed   = "baixa-estoque-confirmed"
	KeyBaixaFailed      = "baixa-estoque-failed"
	KeyEstornoConfirmed = "estorno-estoque-confirmed"

	// DeadLetterTTL is how long a dead-lettered message waits before the
	// broker re-injects it, in milliseconds.
	DeadLetterTTL = 30000
)

// DeclareStockTopology sets up the exchanges and queues the stock consumer
// depends on. Declarations are idempotent, so every connection attempt runs
// this again.
func DeclareStockTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", ExchangeName, err)
	}

	if err := ch.ExchangeDeclare(DeadLetterExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", DeadLetterExchange, err)
	}

	// The DLQ dead-letters back into the main exchange after the TTL.
	// Re-injected messages keep their original routing key, so they land in
	// the main queue again.
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange": ExchangeName,
		"x-message-ttl":          int32(DeadLetterTTL),
	}
	if _, err := ch.QueueDeclare(DeadLetterQueue, true, false, false, false, dlqArgs); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", DeadLetterQueue, err)
	}
	if err := ch.QueueBind(DeadLetterQueue, "", DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", DeadLetterQueue, err)
	}

	mainArgs := amqp.Table{
		"x-dead-letter-exchange": DeadLetterExchange,
	}
	if _, err := ch.QueueDeclare(MainQueue, true, false, false, false, mainArgs); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", MainQueue, err)
	}
	for _, key := range []string{KeyBaixaEstoque, KeyEstornoEstoque} {
		if err := ch.QueueBind(MainQueue, key, ExchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s to %s: %w", MainQueue, key, err)
		}
	}

	// Quarantine holds messages pulled out of the retry ring. Nothing
	// consumes it; operators inspect and purge.
	if _, err := ch.QueueDeclare(QuarantineQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", QuarantineQueue, err)
	}

	log.Printf("✅ Stock topology declared (queue %s, DLQ %s)", MainQueue, DeadLetterQueue)
	return nil
}

// DeclareOrderStatusTopology sets up the order-service side: a queue bound
// to the three outbound event keys.
func DeclareOrderStatusTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", ExchangeName, err)
	}

	if _, err := ch.QueueDeclare(OrderStatusQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", OrderStatusQueue, err)
	}
	for _, key := range []string{KeyBaixaConfirmed, KeyBaixaFailed, KeyEstornoConfirmed} {
		if err := ch.QueueBind(OrderStatusQueue, key, ExchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s to %s: %w", OrderStatusQueue, key, err)
		}
	}

	log.Printf("✅ Order status topology declared (queue %s)", OrderStatusQueue)
	return nil
}
