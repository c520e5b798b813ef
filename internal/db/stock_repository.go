package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/estoquelabs/estoque-go/internal/models"
	"github.com/estoquelabs/estoque-go/internal/stock"
)

// StockRepository is the postgres-backed stock ledger. Adjustments go
// through Begin so that a whole request commits or rolls back as one unit;
// the plain read methods serve the HTTP surface.
type StockRepository struct {
	db *sql.DB
}

func NewStockRepository(database *PostgresDB) *StockRepository {
	return &StockRepository{db: database.Conn}
}

// Begin opens a ledger transaction for one adjustment request.
func (r *StockRepository) Begin(ctx context.Context) (stock.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &stockTx{tx: tx}, nil
}

// GetAll returns all products
func (r *StockRepository) GetAll() ([]models.Product, error) {
	query := "SELECT id, name, price, quantity, created_at FROM products ORDER BY id"

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Quantity, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	return products, nil
}

// GetByID returns a single product, nil when it does not exist.
func (r *StockRepository) GetByID(id int) (*models.Product, error) {
	query := "SELECT id, name, price, quantity, created_at FROM products WHERE id = $1"

	var p models.Product
	err := r.db.QueryRow(query, id).Scan(&p.ID, &p.Name, &p.Price, &p.Quantity, &p.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return &p, nil
}

// Create inserts a new product
func (r *StockRepository) Create(req models.CreateProductRequest) (*models.Product, error) {
	query := `
		INSERT INTO products (name, price, quantity)
		VALUES ($1, $2, $3)
		RETURNING id, name, price, quantity, created_at
	`

	var p models.Product
	err := r.db.QueryRow(query, req.Name, req.Price, req.Quantity).
		Scan(&p.ID, &p.Name, &p.Price, &p.Quantity, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return &p, nil
}

// Delete removes a product
func (r *StockRepository) Delete(id int) error {
	query := "DELETE FROM products WHERE id = $1"

	result, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("product not found")
	}

	return nil
}

// stockTx wraps one *sql.Tx so the adjustment processor never touches
// database/sql directly.
type stockTx struct {
	tx *sql.Tx
}

// ItemForUpdate reads a product under a row lock, so no other adjustment
// can commit a conflicting write between our read and our update. Returns
// nil when the product does not exist.
func (t *stockTx) ItemForUpdate(ctx context.Context, productID int) (*models.Product, error) {
	query := "SELECT id, name, price, quantity, created_at FROM products WHERE id = $1 FOR UPDATE"

	var p models.Product
	err := t.tx.QueryRowContext(ctx, query, productID).
		Scan(&p.ID, &p.Name, &p.Price, &p.Quantity, &p.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read product %d: %w", productID, err)
	}

	return &p, nil
}

// AddQuantity applies a signed delta to a product's quantity. A vanished
// row is an error, never a silent no-op.
func (t *stockTx) AddQuantity(ctx context.Context, productID, delta int) error {
	query := "UPDATE products SET quantity = quantity + $1 WHERE id = $2"

	result, err := t.tx.ExecContext(ctx, query, delta, productID)
	if err != nil {
		return fmt.Errorf("failed to update product %d: %w", productID, err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("product %d missing during quantity update", productID)
	}

	return nil
}

func (t *stockTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *stockTx) Rollback() error {
	return t.tx.Rollback()
}
