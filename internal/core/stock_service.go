package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StockService is the stock ledger: per product/warehouse counters for
// on-hand, locked-for-batch, and pending-putaway quantities, with an
// append-only stock_movements journal. Counter transitions run under a
// FOR UPDATE row lock so concurrent batches never double-spend stock.
type StockService interface {
	// Standalone operations (manage their own transactions).
	GetStockLevels(ctx context.Context, warehouseCode string) ([]StockLevel, error)
	// ReceiveStock records received or returned goods into the putaway
	// holding area (pending-putaway), creating the stock item if needed.
	ReceiveStock(ctx context.Context, warehouseCode, productCode string, qty int64, notes string) error

	// TX-scoped operations: work within a caller-provided transaction so
	// stock transitions stay atomic with batch/order state changes.

	// LockForBatchTx soft-locks on-hand stock when an order joins a batch.
	// Available stock is on-hand minus already-locked.
	LockForBatchTx(ctx context.Context, tx pgx.Tx, warehouseID, batchID, productID int, qty int64) error
	// ReleaseLockTx releases soft-locked stock when an order is cancelled.
	ReleaseLockTx(ctx context.Context, tx pgx.Tx, warehouseID, batchID, productID int, qty int64) error
	// ConsumeLockedTx deducts physical and locked stock when a pick is recorded.
	ConsumeLockedTx(ctx context.Context, tx pgx.Tx, warehouseID, batchID, productID int, qty int64) error
	// CompletePutawayTx moves pending-putaway stock on-hand once it has been
	// slotted into a rack.
	CompletePutawayTx(ctx context.Context, tx pgx.Tx, warehouseID, productID int, qty int64, rackID int) error
}

type stockService struct {
	pool *pgxpool.Pool
}

func NewStockService(pool *pgxpool.Pool) StockService {
	return &stockService{pool: pool}
}

// ── Standalone operations ─────────────────────────────────────────────────────

func (s *stockService) GetStockLevels(ctx context.Context, warehouseCode string) ([]StockLevel, error) {
	warehouseID, err := resolveWarehouseID(ctx, s.pool, warehouseCode)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT p.code, p.name, w.code,
		       si.qty_on_hand, si.qty_locked, si.qty_putaway_pending
		FROM stock_items si
		JOIN products p   ON p.id = si.product_id
		JOIN warehouses w ON w.id = si.warehouse_id
		WHERE si.warehouse_id = $1
		ORDER BY p.code
	`, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock levels: %w", err)
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		var sl StockLevel
		if err := rows.Scan(&sl.ProductCode, &sl.ProductName, &sl.WarehouseCode,
			&sl.OnHand, &sl.Locked, &sl.PutawayPending); err != nil {
			return nil, fmt.Errorf("failed to scan stock level: %w", err)
		}
		levels = append(levels, sl)
	}
	return levels, nil
}

func (s *stockService) ReceiveStock(ctx context.Context, warehouseCode, productCode string, qty int64, notes string) error {
	if qty <= 0 {
		return fmt.Errorf("receive quantity must be positive, got %d", qty)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	warehouseID, err := resolveWarehouseID(ctx, tx, warehouseCode)
	if err != nil {
		return err
	}

	var productID int
	if err := tx.QueryRow(ctx,
		"SELECT id FROM products WHERE code = $1 AND is_active = true", productCode,
	).Scan(&productID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("product %s not found", productCode)
		}
		return fmt.Errorf("failed to resolve product: %w", err)
	}

	itemID, err := lockStockItem(ctx, tx, warehouseID, productID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE stock_items
		SET qty_putaway_pending = qty_putaway_pending + $1, updated_at = NOW()
		WHERE id = $2
	`, qty, itemID)
	if err != nil {
		return fmt.Errorf("failed to update stock item: %w", err)
	}

	if notes == "" {
		notes = fmt.Sprintf("Goods received: %d units of %s into putaway holding", qty, productCode)
	}
	if err := insertMovement(ctx, tx, itemID, "RECEIPT", qty, nil, nil, nil, notes); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit goods receipt: %w", err)
	}
	return nil
}

// ── TX-scoped operations ──────────────────────────────────────────────────────

func (s *stockService) LockForBatchTx(ctx context.Context, tx pgx.Tx, warehouseID, batchID, productID int, qty int64) error {
	itemID, onHand, locked, _, err := lockStockItemCounters(ctx, tx, warehouseID, productID)
	if err != nil {
		return err
	}

	available := onHand - locked
	if available < qty {
		return fmt.Errorf("insufficient stock for product id %d: available %d, required %d", productID, available, qty)
	}

	_, err = tx.Exec(ctx, `
		UPDATE stock_items SET qty_locked = qty_locked + $1, updated_at = NOW()
		WHERE id = $2
	`, qty, itemID)
	if err != nil {
		return fmt.Errorf("failed to lock stock for product id %d: %w", productID, err)
	}

	return insertMovement(ctx, tx, itemID, "BATCH_LOCK", qty, &batchID, nil, nil,
		fmt.Sprintf("Stock locked for batch ID %d", batchID))
}

func (s *stockService) ReleaseLockTx(ctx context.Context, tx pgx.Tx, warehouseID, batchID, productID int, qty int64) error {
	itemID, _, _, _, err := lockStockItemCounters(ctx, tx, warehouseID, productID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE stock_items SET qty_locked = GREATEST(qty_locked - $1, 0), updated_at = NOW()
		WHERE id = $2
	`, qty, itemID)
	if err != nil {
		return fmt.Errorf("failed to release lock for product id %d: %w", productID, err)
	}

	return insertMovement(ctx, tx, itemID, "LOCK_RELEASE", -qty, &batchID, nil, nil,
		fmt.Sprintf("Lock released for batch ID %d", batchID))
}

func (s *stockService) ConsumeLockedTx(ctx context.Context, tx pgx.Tx, warehouseID, batchID, productID int, qty int64) error {
	itemID, onHand, locked, _, err := lockStockItemCounters(ctx, tx, warehouseID, productID)
	if err != nil {
		return err
	}

	if onHand < qty {
		return fmt.Errorf("insufficient stock to pick: product id %d has %d on hand, need %d", productID, onHand, qty)
	}

	// A pick may exceed what this batch locked if locking was skipped; never
	// drive the lock counter negative.
	lockedDebit := qty
	if locked < lockedDebit {
		lockedDebit = locked
	}

	_, err = tx.Exec(ctx, `
		UPDATE stock_items
		SET qty_on_hand = qty_on_hand - $1,
		    qty_locked  = qty_locked - $2,
		    updated_at  = NOW()
		WHERE id = $3
	`, qty, lockedDebit, itemID)
	if err != nil {
		return fmt.Errorf("failed to consume stock for product id %d: %w", productID, err)
	}

	return insertMovement(ctx, tx, itemID, "PICK", -qty, &batchID, nil, nil,
		fmt.Sprintf("Picked %d units for batch ID %d", qty, batchID))
}

func (s *stockService) CompletePutawayTx(ctx context.Context, tx pgx.Tx, warehouseID, productID int, qty int64, rackID int) error {
	itemID, _, _, pending, err := lockStockItemCounters(ctx, tx, warehouseID, productID)
	if err != nil {
		return err
	}

	if pending < qty {
		return fmt.Errorf("putaway exceeds holding area: product id %d has %d pending, need %d", productID, pending, qty)
	}

	_, err = tx.Exec(ctx, `
		UPDATE stock_items
		SET qty_putaway_pending = qty_putaway_pending - $1,
		    qty_on_hand         = qty_on_hand + $1,
		    updated_at          = NOW()
		WHERE id = $2
	`, qty, itemID)
	if err != nil {
		return fmt.Errorf("failed to complete putaway for product id %d: %w", productID, err)
	}

	return insertMovement(ctx, tx, itemID, "PUTAWAY", qty, nil, nil, &rackID,
		fmt.Sprintf("Put away %d units into rack ID %d", qty, rackID))
}

// ── Shared helpers ────────────────────────────────────────────────────────────

// resolveWarehouseID looks up the internal warehouse ID from a warehouse code.
func resolveWarehouseID(ctx context.Context, q pgxQuerier, warehouseCode string) (int, error) {
	var id int
	err := q.QueryRow(ctx,
		"SELECT id FROM warehouses WHERE code = $1 AND is_active = true", warehouseCode,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("warehouse %s not found", warehouseCode)
		}
		return 0, fmt.Errorf("failed to resolve warehouse %s: %w", warehouseCode, err)
	}
	return id, nil
}

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared query helpers.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// lockStockItem upserts the stock_items row for (warehouse, product) and locks
// it for update, returning its id.
func lockStockItem(ctx context.Context, tx pgx.Tx, warehouseID, productID int) (int, error) {
	id, _, _, _, err := lockStockItemCounters(ctx, tx, warehouseID, productID)
	return id, err
}

func lockStockItemCounters(ctx context.Context, tx pgx.Tx, warehouseID, productID int) (itemID int, onHand, locked, pending int64, err error) {
	err = tx.QueryRow(ctx, `
		INSERT INTO stock_items (warehouse_id, product_id, qty_on_hand, qty_locked, qty_putaway_pending)
		VALUES ($1, $2, 0, 0, 0)
		ON CONFLICT (warehouse_id, product_id) DO UPDATE SET updated_at = NOW()
		RETURNING id
	`, warehouseID, productID).Scan(&itemID)
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("failed to upsert stock item: %w", err)
	}

	err = tx.QueryRow(ctx, `
		SELECT id, qty_on_hand, qty_locked, qty_putaway_pending
		FROM stock_items WHERE id = $1
		FOR UPDATE
	`, itemID).Scan(&itemID, &onHand, &locked, &pending)
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("failed to lock stock item: %w", err)
	}
	return itemID, onHand, locked, pending, nil
}

func insertMovement(ctx context.Context, tx pgx.Tx, itemID int, movementType string, qty int64,
	batchID, orderID, rackID *int, notes string) error {

	_, err := tx.Exec(ctx, `
		INSERT INTO stock_movements (stock_item_id, movement_type, quantity, batch_id, order_id, rack_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, itemID, movementType, qty, batchID, orderID, rackID, notes)
	if err != nil {
		return fmt.Errorf("failed to insert %s movement: %w", movementType, err)
	}
	return nil
}
