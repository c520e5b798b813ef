package stock

import (
	"context"

	"github.com/estoquelabs/estoque-go/internal/models"
)

// Ledger is the durable store of product quantities. Implemented by
// db.StockRepository; tests use an in-memory fake.
type Ledger interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one transaction scope over the ledger. Every read and write of an
// adjustment request happens inside a single Tx, and exactly one of Commit
// or Rollback ends it.
type Tx interface {
	// ItemForUpdate reads a product with a lock held until the transaction
	// ends. Returns nil, nil when the product does not exist.
	ItemForUpdate(ctx context.Context, productID int) (*models.Product, error)

	// AddQuantity applies a signed quantity delta. Erroring when the row is
	// gone is part of the contract.
	AddQuantity(ctx context.Context, productID, delta int) error

	Commit() error
	Rollback() error
}
