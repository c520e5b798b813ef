package db

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/estoquelabs/estoque-go/internal/cache"
	"github.com/estoquelabs/estoque-go/internal/models"
)

// CachedProductRepository caches product reads for the HTTP surface.
// Adjustment decisions never read through here: quantities are only
// trusted when read fresh inside a ledger transaction.
type CachedProductRepository struct {
	repo  *StockRepository
	cache *cache.RedisCache
}

func NewCachedProductRepository(repo *StockRepository, cache *cache.RedisCache) *CachedProductRepository {
	return &CachedProductRepository{
		repo:  repo,
		cache: cache,
	}
}

func productKey(id int) string {
	return fmt.Sprintf("product:%d", id)
}

func allProductsKey() string {
	return "products:all"
}

// GetAll returns all products (with caching)
func (r *CachedProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	cacheKey := allProductsKey()

	var products []models.Product
	err := r.cache.Get(ctx, cacheKey, &products)
	if err == nil {
		return products, nil
	}

	products, err = r.repo.GetAll()
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, cacheKey, products); err != nil {
		log.Printf("⚠️ Failed to cache products: %v", err)
	}

	return products, nil
}

// GetByID returns a single product (with caching)
func (r *CachedProductRepository) GetByID(ctx context.Context, id int) (*models.Product, error) {
	cacheKey := productKey(id)

	var product models.Product
	err := r.cache.Get(ctx, cacheKey, &product)
	if err == nil {
		return &product, nil
	}

	if err != redis.Nil {
		log.Printf("⚠️ Cache error: %v", err)
	}

	p, err := r.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if p == nil {
		return nil, nil
	}

	if err := r.cache.Set(ctx, cacheKey, p); err != nil {
		log.Printf("⚠️ Failed to cache product: %v", err)
	}

	return p, nil
}

// Create inserts a new product and invalidates the list cache.
func (r *CachedProductRepository) Create(ctx context.Context, req models.CreateProductRequest) (*models.Product, error) {
	product, err := r.repo.Create(req)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Delete(ctx, allProductsKey()); err != nil {
		log.Printf("⚠️ Failed to invalidate cache: %v", err)
	}

	return product, nil
}

// Delete removes a product and invalidates its cache entries.
func (r *CachedProductRepository) Delete(ctx context.Context, id int) error {
	if err := r.repo.Delete(id); err != nil {
		return err
	}

	if err := r.cache.Delete(ctx, productKey(id), allProductsKey()); err != nil {
		log.Printf("⚠️ Failed to invalidate cache: %v", err)
	}

	return nil
}

// InvalidateProducts drops cached entries after a committed stock
// adjustment, so HTTP reads don't serve pre-adjustment quantities for a
// whole TTL.
func (r *CachedProductRepository) InvalidateProducts(ctx context.Context, productIDs []int) {
	keys := make([]string, 0, len(productIDs)+1)
	for _, id := range productIDs {
		keys = append(keys, productKey(id))
	}
	keys = append(keys, allProductsKey())

	if err := r.cache.Delete(ctx, keys...); err != nil {
		log.Printf("⚠️ Failed to invalidate %d products: %v", len(productIDs), err)
	}
}
