package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/estoquelabs/estoque-go/internal/models"
)

// OrderStore is implemented by db.OrderRepository.
type OrderStore interface {
	Create(order *models.Order) error
	GetAll() ([]models.Order, error)
	GetByID(id uuid.UUID) (*models.Order, error)
	UpdateStatus(id uuid.UUID, status string) error
}

// StockValidator is implemented by client.StockClient.
type StockValidator interface {
	GetProduct(productID int) (*models.Product, error)
	ValidateStock(productID, quantity int) error
}

// RequestPublisher is implemented by publisher.OrderPublisher.
type RequestPublisher interface {
	PublishDecrementRequest(order *models.Order) error
	PublishReversalRequest(order *models.Order) error
}

type OrderHandler struct {
	repo      OrderStore
	stock     StockValidator
	publisher RequestPublisher
}

func NewOrderHandler(repo OrderStore, stock StockValidator, pub RequestPublisher) *OrderHandler {
	return &OrderHandler{
		repo:      repo,
		stock:     stock,
		publisher: pub,
	}
}

// HealthCheck returns server status
func (h *OrderHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "order-service"})
}

// ListOrders returns all orders
func (h *OrderHandler) ListOrders(c *gin.Context) {
	orders, err := h.repo.GetAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, orders)
}

// GetOrder returns a single order with items
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
		return
	}

	order, err := h.repo.GetByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}

	c.JSON(http.StatusOK, order)
}

// CreateOrder creates a new order and asks the stock service for the
// decrement over the broker. Validation here is best-effort: stock can
// still run out before the adjustment lands, in which case the order ends
// up stock_failed asynchronously.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if len(req.Items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order has no line items"})
		return
	}

	order := models.Order{
		CustomerName: req.CustomerName,
		Status:       models.StatusPending,
	}

	var totalAmount float64

	for _, item := range req.Items {
		if item.Quantity <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be positive"})
			return
		}

		if err := h.stock.ValidateStock(item.ProductID, item.Quantity); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		product, err := h.stock.GetProduct(item.ProductID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		order.Items = append(order.Items, models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			Price:       product.Price,
		})
		totalAmount += product.Price * float64(item.Quantity)
	}

	order.TotalAmount = totalAmount

	if err := h.repo.Create(&order); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// The order exists either way; a lost request only means the status
	// never moves past pending.
	if err := h.publisher.PublishDecrementRequest(&order); err != nil {
		log.Printf("⚠️ Decrement request for order %s not published: %v", order.ID, err)
	}

	c.JSON(http.StatusCreated, order)
}

// CancelOrder requests a stock reversal for an order. The order flips to
// cancelled once the reversal confirmation comes back.
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
		return
	}

	order, err := h.repo.GetByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}

	switch order.Status {
	case models.StatusCancelled, models.StatusCancelRequested:
		c.JSON(http.StatusConflict, gin.H{"error": "order already cancelled"})
		return
	case models.StatusStockFailed:
		// Nothing was decremented, nothing to give back.
		if err := h.repo.UpdateStatus(id, models.StatusCancelled); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "order cancelled"})
		return
	}

	if err := h.repo.UpdateStatus(id, models.StatusCancelRequested); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.publisher.PublishReversalRequest(order); err != nil {
		log.Printf("⚠️ Reversal request for order %s not published: %v", order.ID, err)
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "cancellation requested"})
}
