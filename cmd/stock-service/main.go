package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/estoquelabs/estoque-go/internal/cache"
	"github.com/estoquelabs/estoque-go/internal/consumer"
	"github.com/estoquelabs/estoque-go/internal/db"
	"github.com/estoquelabs/estoque-go/internal/discovery"
	"github.com/estoquelabs/estoque-go/internal/handlers"
	"github.com/estoquelabs/estoque-go/internal/messaging"
	"github.com/estoquelabs/estoque-go/internal/publisher"
	"github.com/estoquelabs/estoque-go/internal/stock"
)

const (
	serviceName = "stock-service"
	serviceID   = "stock-service-1"
	servicePort = 8081
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL
	database, err := db.NewPostgresDB("localhost", 5432, "estoque", "estoque123", "estoque")
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Connect to Redis
	redisCache, err := cache.NewRedisCache("localhost", 6379, 5*time.Minute)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisCache.Close()

	// Connect to RabbitMQ (one connection for the whole process)
	broker, err := messaging.NewBroker("localhost", 5672, "guest", "guest")
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer broker.Close()

	// Register with Consul
	consul, err := discovery.NewConsulClient("localhost", 8500)
	if err != nil {
		log.Fatalf("Failed to connect to Consul: %v", err)
	}
	err = consul.Register(discovery.ServiceConfig{
		Name: serviceName,
		ID:   serviceID,
		Port: servicePort,
		Tags: []string{"api", "stock"},
	})
	if err != nil {
		log.Fatalf("Failed to register service: %v", err)
	}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		consul.Deregister(serviceID)
	}()

	// Repositories
	stockRepo := db.NewStockRepository(database)
	cachedRepo := db.NewCachedProductRepository(stockRepo, redisCache)

	// Core: processor, event publisher, consumer
	processor := stock.NewProcessor(stockRepo)
	eventPublisher := publisher.NewStockEventPublisher(broker)
	stockConsumer := consumer.NewStockConsumer(broker, processor, eventPublisher, cachedRepo)
	go stockConsumer.Run(ctx)

	// HTTP surface
	productHandler := handlers.NewProductHandler(cachedRepo, stockRepo)

	router := gin.Default()
	router.GET("/health", productHandler.HealthCheck)
	router.GET("/produtos", productHandler.ListProducts)
	router.GET("/produtos/validar", productHandler.ValidateStock)
	router.GET("/produtos/:id", productHandler.GetProduct)
	router.POST("/produtos", productHandler.CreateProduct)
	router.DELETE("/produtos/:id", productHandler.DeleteProduct)

	log.Printf("🚀 %s starting on http://localhost:%d", serviceName, servicePort)
	log.Printf("   Consuming stock adjustments from queue %s", messaging.MainQueue)
	router.Run(":8081")
}
