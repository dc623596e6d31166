package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PutawayRules resolves the target rack for a product from the putaway_rules
// table. It replaces hardcoded rack assignments in the putaway workflow.
type PutawayRules interface {
	ResolveRack(ctx context.Context, warehouseID, productID int) (string, error)
}

type putawayRules struct {
	pool *pgxpool.Pool
}

// NewPutawayRules constructs a PutawayRules backed by the putaway_rules table.
func NewPutawayRules(pool *pgxpool.Pool) PutawayRules {
	return &putawayRules{pool: pool}
}

// ResolveRack returns the rack code for (warehouseID, productID). Product-
// specific rules beat wildcard rules, then highest priority wins. Returns a
// descriptive error if no active rule exists.
func (r *putawayRules) ResolveRack(ctx context.Context, warehouseID, productID int) (string, error) {
	var rackCode string
	err := r.pool.QueryRow(ctx, `
		SELECT rack_code
		FROM putaway_rules
		WHERE warehouse_id = $1
		  AND (product_id = $2 OR product_id IS NULL)
		  AND (effective_to IS NULL OR effective_to >= CURRENT_DATE)
		ORDER BY (product_id IS NULL), priority DESC
		LIMIT 1
	`, warehouseID, productID).Scan(&rackCode)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", fmt.Errorf("no putaway rule found for warehouse_id %d, product_id %d — seed putaway_rules or pass a rack explicitly", warehouseID, productID)
		}
		return "", fmt.Errorf("failed to resolve putaway rule (warehouse_id=%d, product_id=%d): %w", warehouseID, productID, err)
	}
	return rackCode, nil
}
