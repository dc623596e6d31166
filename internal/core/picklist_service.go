package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PickListService turns ready markers into printed pick lists. Printing is the
// one-way transition of a marker: once printed, allocation runs never touch it
// again, and the assigned pick-list number is gapless per warehouse.
type PickListService interface {
	GetReadyOrders(ctx context.Context, batchCode string) ([]ReadyOrder, error)
	MarkPrinted(ctx context.Context, batchCode, orderCode string) (*ReadyOrder, error)
}

type pickListService struct {
	pool *pgxpool.Pool
}

func NewPickListService(pool *pgxpool.Pool) PickListService {
	return &pickListService{pool: pool}
}

func (s *pickListService) GetReadyOrders(ctx context.Context, batchCode string) ([]ReadyOrder, error) {
	var batchID int
	err := s.pool.QueryRow(ctx, "SELECT id FROM batches WHERE code = $1", batchCode).Scan(&batchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("batch %s not found", batchCode)
		}
		return nil, fmt.Errorf("failed to resolve batch %s: %w", batchCode, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT r.id, r.batch_id, r.order_id, o.code, r.printed, r.pick_list_number, r.created_at, r.printed_at
		FROM ready_orders r
		JOIN pick_orders o ON o.id = r.order_id
		WHERE r.batch_id = $1
		ORDER BY o.code
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ready orders: %w", err)
	}
	defer rows.Close()

	var ready []ReadyOrder
	for rows.Next() {
		var r ReadyOrder
		if err := rows.Scan(&r.ID, &r.BatchID, &r.OrderID, &r.OrderCode, &r.Printed,
			&r.PickListNumber, &r.CreatedAt, &r.PrintedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ready order: %w", err)
		}
		ready = append(ready, r)
	}
	return ready, nil
}

// MarkPrinted assigns the next pick-list number and flags the marker printed.
// The sequence row is bumped inside the same transaction that flips the flag,
// so numbers come out gapless even under concurrent printing.
func (s *pickListService) MarkPrinted(ctx context.Context, batchCode, orderCode string) (*ReadyOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var batchID, warehouseID int
	var warehouseCode string
	err = tx.QueryRow(ctx, `
		SELECT b.id, w.id, w.code
		FROM batches b
		JOIN warehouses w ON w.id = b.warehouse_id
		WHERE b.code = $1
	`, batchCode).Scan(&batchID, &warehouseID, &warehouseCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("batch %s not found", batchCode)
		}
		return nil, fmt.Errorf("failed to resolve batch %s: %w", batchCode, err)
	}

	var r ReadyOrder
	err = tx.QueryRow(ctx, `
		SELECT r.id, r.batch_id, r.order_id, o.code, r.printed, r.pick_list_number, r.created_at, r.printed_at
		FROM ready_orders r
		JOIN pick_orders o ON o.id = r.order_id
		WHERE r.batch_id = $1 AND o.code = $2
		FOR UPDATE OF r
	`, batchID, orderCode).Scan(&r.ID, &r.BatchID, &r.OrderID, &r.OrderCode, &r.Printed,
		&r.PickListNumber, &r.CreatedAt, &r.PrintedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %s is not ready to pick in batch %s", orderCode, batchCode)
		}
		return nil, fmt.Errorf("failed to lock ready marker for order %s: %w", orderCode, err)
	}
	if r.Printed {
		return nil, fmt.Errorf("order %s in batch %s is already printed as %s", orderCode, batchCode, deref(r.PickListNumber))
	}

	// Concurrency-safe gapless sequence per warehouse.
	var lastNumber int64
	err = tx.QueryRow(ctx, `
		INSERT INTO pick_list_sequences (warehouse_id, last_number)
		VALUES ($1, 1)
		ON CONFLICT (warehouse_id)
		DO UPDATE SET last_number = pick_list_sequences.last_number + 1
		RETURNING last_number
	`, warehouseID).Scan(&lastNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to generate pick-list number: %w", err)
	}

	number := fmt.Sprintf("PL-%s-%05d", warehouseCode, lastNumber)
	err = tx.QueryRow(ctx, `
		UPDATE ready_orders
		SET printed = true, pick_list_number = $1, printed_at = NOW()
		WHERE id = $2
		RETURNING printed, pick_list_number, printed_at
	`, number, r.ID).Scan(&r.Printed, &r.PickListNumber, &r.PrintedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to mark order %s printed: %w", orderCode, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit print of order %s: %w", orderCode, err)
	}
	return &r, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
