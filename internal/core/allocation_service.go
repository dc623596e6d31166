package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AllocationOutcome reports one ready-set recomputation: the full ready set
// and the diff that was applied to the store.
type AllocationOutcome struct {
	BatchCode string
	Ready     []string
	Added     []string
	Removed   []string
}

// AllocationService recomputes which orders in a batch are ready to pick and
// synchronizes the persisted ready markers.
//
// One call is one transaction holding a FOR UPDATE lock on the batch row, so
// concurrent recomputations of the same batch serialize and the order-line and
// picked-quantity snapshots are consistent with the applied diff.
type AllocationService interface {
	RecomputeReadyToPick(ctx context.Context, batchCode string) (*AllocationOutcome, error)
}

type allocationService struct {
	pool *pgxpool.Pool
}

func NewAllocationService(pool *pgxpool.Pool) AllocationService {
	return &allocationService{pool: pool}
}

func (s *allocationService) RecomputeReadyToPick(ctx context.Context, batchCode string) (*AllocationOutcome, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch, err := lockBatch(ctx, tx, batchCode)
	if err != nil {
		return nil, err
	}

	// Order-line snapshot. Cancelled orders never reach the allocator.
	rows, err := tx.Query(ctx, `
		SELECT o.code, o.order_type, p.code, l.quantity
		FROM pick_order_lines l
		JOIN pick_orders o ON o.id = l.order_id
		JOIN products p    ON p.id = l.product_id
		WHERE o.batch_id = $1 AND o.status <> $2
		ORDER BY o.code, l.id
	`, batch.ID, string(OrderStatusCancelled))
	if err != nil {
		return nil, fmt.Errorf("failed to query order lines: %w", err)
	}
	var lines []OrderLine
	for rows.Next() {
		var ln OrderLine
		if err := rows.Scan(&ln.OrderID, &ln.Type, &ln.ProductID, &ln.Quantity); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		lines = append(lines, ln)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order lines: %w", err)
	}

	// Picked-quantity snapshot, aggregated per product across all pick events
	// of the batch. Same transaction as the lines, so no read skew.
	picked := make(map[string]int)
	rows, err = tx.Query(ctx, `
		SELECT p.code, COALESCE(SUM(e.quantity), 0)
		FROM pick_events e
		JOIN products p ON p.id = e.product_id
		WHERE e.batch_id = $1
		GROUP BY p.code
	`, batch.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query picked aggregate: %w", err)
	}
	for rows.Next() {
		var productCode string
		var qty int
		if err := rows.Scan(&productCode, &qty); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan picked aggregate: %w", err)
		}
		picked[productCode] = qty
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating picked aggregate: %w", err)
	}

	ready, err := AllocateReady(lines, picked)
	if err != nil {
		return nil, fmt.Errorf("allocation failed for batch %s: %w", batchCode, err)
	}

	// Existing markers, then the two-set diff.
	var markers []ReadyMarker
	rows, err = tx.Query(ctx, `
		SELECT o.code, r.printed
		FROM ready_orders r
		JOIN pick_orders o ON o.id = r.order_id
		WHERE r.batch_id = $1
		ORDER BY r.id
	`, batch.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ready markers: %w", err)
	}
	for rows.Next() {
		var m ReadyMarker
		if err := rows.Scan(&m.OrderID, &m.Printed); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan ready marker: %w", err)
		}
		markers = append(markers, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ready markers: %w", err)
	}

	toAdd, toRemove := DiffReady(markers, ready.OrderIDs)

	if len(toRemove) > 0 {
		_, err = tx.Exec(ctx, `
			DELETE FROM ready_orders
			WHERE batch_id = $1 AND printed = false
			  AND order_id IN (SELECT id FROM pick_orders WHERE batch_id = $1 AND code = ANY($2))
		`, batch.ID, toRemove)
		if err != nil {
			return nil, fmt.Errorf("failed to remove stale ready markers: %w", err)
		}
	}
	for _, orderCode := range toAdd {
		_, err = tx.Exec(ctx, `
			INSERT INTO ready_orders (batch_id, order_id, printed)
			SELECT $1, id, false FROM pick_orders WHERE batch_id = $1 AND code = $2
		`, batch.ID, orderCode)
		if err != nil {
			return nil, fmt.Errorf("failed to insert ready marker for order %s: %w", orderCode, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit ready-set update: %w", err)
	}

	return &AllocationOutcome{
		BatchCode: batchCode,
		Ready:     ready.OrderIDs,
		Added:     toAdd,
		Removed:   toRemove,
	}, nil
}
