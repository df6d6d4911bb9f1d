package database

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/tripmart/marketplace-backend/internal/models"
)

// ProductRepository handles database operations for products
type ProductRepository struct {
	db Querier
}

// NewProductRepository creates a new ProductRepository
func NewProductRepository(db Querier) *ProductRepository {
	return &ProductRepository{db: db}
}

// GetByIDs returns the active products among ids keyed by id
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) (map[string]models.Product, error) {
	products := make(map[string]models.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	query := `
		SELECT id, name, price, stock, currency, is_active, created_at, updated_at
		FROM products
		WHERE id = ANY($1) AND is_active = TRUE`

	var rows []models.Product
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to get products: %w", err)
	}
	for _, p := range rows {
		products[p.ID] = p
	}
	return products, nil
}

// DecrementStock takes qty units of a product. Returns false, leaving the
// row untouched, when fewer than qty units remain.
func (r *ProductRepository) DecrementStock(ctx context.Context, id string, qty int) (bool, error) {
	query := `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2`

	result, err := r.db.ExecContext(ctx, query, id, qty)
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}
