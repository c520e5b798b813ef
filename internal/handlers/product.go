package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/estoquelabs/estoque-go/internal/models"
)

// ProductStore is the cached read/write surface, implemented by
// db.CachedProductRepository.
type ProductStore interface {
	GetAll(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id int) (*models.Product, error)
	Create(ctx context.Context, req models.CreateProductRequest) (*models.Product, error)
	Delete(ctx context.Context, id int) error
}

// StockReader reads straight from the ledger, bypassing the cache. The
// validation endpoint uses it so callers get the freshest answer a lockless
// check can give.
type StockReader interface {
	GetByID(id int) (*models.Product, error)
}

type ProductHandler struct {
	products ProductStore
	stock    StockReader
}

func NewProductHandler(products ProductStore, stock StockReader) *ProductHandler {
	return &ProductHandler{
		products: products,
		stock:    stock,
	}
}

// HealthCheck returns server status
func (h *ProductHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "stock-service"})
}

// ListProducts returns all products
func (h *ProductHandler) ListProducts(c *gin.Context) {
	products, err := h.products.GetAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, products)
}

// GetProduct returns a single product
func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product ID"})
		return
	}

	product, err := h.products.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if product == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}

	c.JSON(http.StatusOK, product)
}

// CreateProduct inserts a new product
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Quantity < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity cannot be negative"})
		return
	}

	product, err := h.products.Create(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, product)
}

// DeleteProduct removes a product
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product ID"})
		return
	}

	if err := h.products.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "product deleted"})
}

// ValidateStock is the best-effort availability check the order service
// calls before publishing a decrement request. It takes no lock: the
// quantity can change between this answer and the actual adjustment.
func (h *ProductHandler) ValidateStock(c *gin.Context) {
	productID, err := strconv.Atoi(c.Query("produtoId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid produtoId"})
		return
	}

	quantity, err := strconv.Atoi(c.Query("quantidade"))
	if err != nil || quantity <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quantidade"})
		return
	}

	product, err := h.stock.GetByID(productID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if product == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("product %d not found", productID)})
		return
	}

	if product.Quantity < quantity {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     fmt.Sprintf("insufficient stock for product %d", productID),
			"available": product.Quantity,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "stock available"})
}
