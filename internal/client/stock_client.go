package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/estoquelabs/estoque-go/internal/models"
)

// StockClient talks to the stock service's HTTP surface. The validation
// call is a best-effort check before publishing a decrement request; the
// real decision happens later inside the ledger transaction, against
// possibly changed quantities.
type StockClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewStockClient(baseURL string) *StockClient {
	return &StockClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetProduct fetches a product for its name and price.
func (c *StockClient) GetProduct(productID int) (*models.Product, error) {
	url := fmt.Sprintf("%s/produtos/%d", c.baseURL, productID)

	resp, err := c.httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to call stock service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("product %d not found", productID)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stock service returned status %d", resp.StatusCode)
	}

	var product models.Product
	if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &product, nil
}

// ValidateStock asks whether a quantity looks available right now.
func (c *StockClient) ValidateStock(productID, quantity int) error {
	url := fmt.Sprintf("%s/produtos/validar?produtoId=%d&quantidade=%d", c.baseURL, productID, quantity)

	resp, err := c.httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("failed to call stock service: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("product %d not found", productID)
	case http.StatusBadRequest:
		return fmt.Errorf("insufficient stock for product %d", productID)
	default:
		return fmt.Errorf("stock service returned status %d", resp.StatusCode)
	}
}
