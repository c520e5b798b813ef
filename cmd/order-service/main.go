package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/estoquelabs/estoque-go/internal/client"
	"github.com/estoquelabs/estoque-go/internal/consumer"
	"github.com/estoquelabs/estoque-go/internal/db"
	"github.com/estoquelabs/estoque-go/internal/discovery"
	"github.com/estoquelabs/estoque-go/internal/handlers"
	"github.com/estoquelabs/estoque-go/internal/messaging"
	"github.com/estoquelabs/estoque-go/internal/publisher"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL
	database, err := db.NewPostgresDB("localhost", 5432, "vendas", "vendas123", "vendas")
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Connect to RabbitMQ
	broker, err := messaging.NewBroker("localhost", 5672, "guest", "guest")
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer broker.Close()

	// Resolve the stock service through Consul, falling back to the
	// default local address.
	stockURL := "http://localhost:8081"
	if consul, err := discovery.NewConsulClient("localhost", 8500); err != nil {
		log.Printf("⚠️ Consul unavailable, using %s: %v", stockURL, err)
	} else if url, err := consul.GetServiceURL("stock-service"); err != nil {
		log.Printf("⚠️ Stock service not in Consul, using %s: %v", stockURL, err)
	} else {
		stockURL = url
	}
	stockClient := client.NewStockClient(stockURL)

	orderRepo := db.NewOrderRepository(database)
	orderPublisher := publisher.NewOrderPublisher(broker)
	orderHandler := handlers.NewOrderHandler(orderRepo, stockClient, orderPublisher)

	// React to stock events (confirmed / failed / reversal confirmed)
	statusConsumer := consumer.NewOrderStatusConsumer(broker, orderRepo)
	go statusConsumer.Run(ctx)

	router := gin.Default()
	router.GET("/health", orderHandler.HealthCheck)
	router.GET("/pedidos", orderHandler.ListOrders)
	router.GET("/pedidos/:id", orderHandler.GetOrder)
	router.POST("/pedidos", orderHandler.CreateOrder)
	router.POST("/pedidos/:id/cancelar", orderHandler.CancelOrder)

	log.Println("🚀 Order Service starting on http://localhost:8082")
	log.Printf("   Publishing stock requests to exchange %s", messaging.ExchangeName)
	router.Run(":8082")
}
