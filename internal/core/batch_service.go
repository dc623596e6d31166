package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OrderLineInput is one product requirement when registering an order.
type OrderLineInput struct {
	ProductCode string
	Quantity    int
}

// BatchService manages batches and the pick orders inside them, and records
// pick events — the supply side the allocator consumes.
type BatchService interface {
	// CreateBatch opens a new batch. An empty code is replaced by a generated one.
	CreateBatch(ctx context.Context, warehouseCode, code string) (*Batch, error)
	// AddOrder registers an order with its lines in a batch. Pass stock=nil to
	// skip locking on-hand stock for the batch.
	AddOrder(ctx context.Context, batchCode, orderCode string, orderType OrderType, lines []OrderLineInput, stock StockService) (*PickOrder, error)
	// CancelOrder excludes an order from future allocation runs, drops its
	// unprinted ready marker, and releases its locked stock. Pass stock=nil to
	// skip the release. A printed marker is left in place.
	CancelOrder(ctx context.Context, batchCode, orderCode string, stock StockService) (*PickOrder, error)
	// RecordPick appends a pick event for a product in a batch and debits the
	// stock ledger. Pass stock=nil to skip the ledger debit.
	RecordPick(ctx context.Context, batchCode, productCode string, qty int, stock StockService) error

	GetBatch(ctx context.Context, code string) (*Batch, error)
	GetBatchOrders(ctx context.Context, batchCode string) ([]PickOrder, error)
	ListOpenBatches(ctx context.Context) ([]Batch, error)
}

type batchService struct {
	pool *pgxpool.Pool
}

func NewBatchService(pool *pgxpool.Pool) BatchService {
	return &batchService{pool: pool}
}

func (s *batchService) CreateBatch(ctx context.Context, warehouseCode, code string) (*Batch, error) {
	warehouseID, err := resolveWarehouseID(ctx, s.pool, warehouseCode)
	if err != nil {
		return nil, err
	}
	if code == "" {
		code = "BATCH-" + uuid.NewString()[:8]
	}

	var b Batch
	err = s.pool.QueryRow(ctx, `
		INSERT INTO batches (warehouse_id, code, status)
		VALUES ($1, $2, $3)
		RETURNING id, warehouse_id, code, status, created_at
	`, warehouseID, code, string(BatchStatusOpen)).Scan(
		&b.ID, &b.WarehouseID, &b.Code, &b.Status, &b.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}
	return &b, nil
}

func (s *batchService) AddOrder(ctx context.Context, batchCode, orderCode string, orderType OrderType, lines []OrderLineInput, stock StockService) (*PickOrder, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("order %s must have at least one line", orderCode)
	}
	for _, ln := range lines {
		if ln.Quantity <= 0 {
			return nil, fmt.Errorf("order %s: quantity must be positive for product %s, got %d", orderCode, ln.ProductCode, ln.Quantity)
		}
	}
	if orderType != OrderTypeSAT && orderType != OrderTypeStandard {
		return nil, fmt.Errorf("order %s: unknown order type %q", orderCode, orderType)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch, err := lockBatch(ctx, tx, batchCode)
	if err != nil {
		return nil, err
	}
	if batch.Status != BatchStatusOpen {
		return nil, fmt.Errorf("batch %s is %s, cannot add orders", batchCode, batch.Status)
	}

	var o PickOrder
	err = tx.QueryRow(ctx, `
		INSERT INTO pick_orders (batch_id, code, order_type, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, batch_id, code, order_type, status, created_at
	`, batch.ID, orderCode, string(orderType), string(OrderStatusOpen)).Scan(
		&o.ID, &o.BatchID, &o.Code, &o.Type, &o.Status, &o.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create order %s: %w", orderCode, err)
	}

	for _, ln := range lines {
		var productID int
		if err := tx.QueryRow(ctx,
			"SELECT id FROM products WHERE code = $1 AND is_active = true", ln.ProductCode,
		).Scan(&productID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("product %s not found", ln.ProductCode)
			}
			return nil, fmt.Errorf("failed to resolve product %s: %w", ln.ProductCode, err)
		}

		var line PickOrderLine
		err = tx.QueryRow(ctx, `
			INSERT INTO pick_order_lines (order_id, product_id, quantity)
			VALUES ($1, $2, $3)
			RETURNING id, order_id, product_id, quantity
		`, o.ID, productID, ln.Quantity).Scan(&line.ID, &line.OrderID, &line.ProductID, &line.Quantity)
		if err != nil {
			return nil, fmt.Errorf("failed to insert line for product %s: %w", ln.ProductCode, err)
		}
		line.ProductCode = ln.ProductCode
		o.Lines = append(o.Lines, line)

		if stock != nil {
			if err := stock.LockForBatchTx(ctx, tx, batch.WarehouseID, batch.ID, productID, int64(ln.Quantity)); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order %s: %w", orderCode, err)
	}
	return &o, nil
}

func (s *batchService) CancelOrder(ctx context.Context, batchCode, orderCode string, stock StockService) (*PickOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch, err := lockBatch(ctx, tx, batchCode)
	if err != nil {
		return nil, err
	}

	var o PickOrder
	err = tx.QueryRow(ctx, `
		UPDATE pick_orders
		SET status = $1
		WHERE batch_id = $2 AND code = $3 AND status = $4
		RETURNING id, batch_id, code, order_type, status, created_at
	`, string(OrderStatusCancelled), batch.ID, orderCode, string(OrderStatusOpen)).Scan(
		&o.ID, &o.BatchID, &o.Code, &o.Type, &o.Status, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("open order %s not found in batch %s", orderCode, batchCode)
		}
		return nil, fmt.Errorf("failed to cancel order %s: %w", orderCode, err)
	}

	// An unprinted ready marker goes with the order; a printed one is terminal
	// and stays for the packing desk to resolve.
	_, err = tx.Exec(ctx,
		"DELETE FROM ready_orders WHERE order_id = $1 AND printed = false", o.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to drop ready marker for order %s: %w", orderCode, err)
	}

	if stock != nil {
		rows, err := tx.Query(ctx,
			"SELECT product_id, quantity FROM pick_order_lines WHERE order_id = $1", o.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch lines for order %s: %w", orderCode, err)
		}
		type lineRow struct {
			productID int
			quantity  int64
		}
		var lineRows []lineRow
		for rows.Next() {
			var lr lineRow
			if err := rows.Scan(&lr.productID, &lr.quantity); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan line for order %s: %w", orderCode, err)
			}
			lineRows = append(lineRows, lr)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error iterating lines for order %s: %w", orderCode, err)
		}

		for _, lr := range lineRows {
			if err := stock.ReleaseLockTx(ctx, tx, batch.WarehouseID, batch.ID, lr.productID, lr.quantity); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit cancellation of order %s: %w", orderCode, err)
	}
	return &o, nil
}

func (s *batchService) RecordPick(ctx context.Context, batchCode, productCode string, qty int, stock StockService) error {
	if qty <= 0 {
		return fmt.Errorf("pick quantity must be positive, got %d", qty)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch, err := lockBatch(ctx, tx, batchCode)
	if err != nil {
		return err
	}
	if batch.Status != BatchStatusOpen {
		return fmt.Errorf("batch %s is %s, cannot record picks", batchCode, batch.Status)
	}

	var productID int
	if err := tx.QueryRow(ctx,
		"SELECT id FROM products WHERE code = $1 AND is_active = true", productCode,
	).Scan(&productID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("product %s not found", productCode)
		}
		return fmt.Errorf("failed to resolve product %s: %w", productCode, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO pick_events (batch_id, product_id, quantity)
		VALUES ($1, $2, $3)
	`, batch.ID, productID, qty)
	if err != nil {
		return fmt.Errorf("failed to insert pick event: %w", err)
	}

	if stock != nil {
		if err := stock.ConsumeLockedTx(ctx, tx, batch.WarehouseID, batch.ID, productID, int64(qty)); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit pick event: %w", err)
	}
	return nil
}

func (s *batchService) GetBatch(ctx context.Context, code string) (*Batch, error) {
	var b Batch
	err := s.pool.QueryRow(ctx, `
		SELECT id, warehouse_id, code, status, created_at
		FROM batches WHERE code = $1
	`, code).Scan(&b.ID, &b.WarehouseID, &b.Code, &b.Status, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("batch %s not found", code)
		}
		return nil, fmt.Errorf("failed to fetch batch %s: %w", code, err)
	}
	return &b, nil
}

func (s *batchService) GetBatchOrders(ctx context.Context, batchCode string) ([]PickOrder, error) {
	batch, err := s.GetBatch(ctx, batchCode)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT o.id, o.batch_id, o.code, o.order_type, o.status, o.created_at,
		       l.id, l.product_id, p.code, l.quantity
		FROM pick_orders o
		JOIN pick_order_lines l ON l.order_id = o.id
		JOIN products p ON p.id = l.product_id
		WHERE o.batch_id = $1
		ORDER BY o.code, l.id
	`, batch.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch orders: %w", err)
	}
	defer rows.Close()

	var orders []PickOrder
	index := make(map[int]int)
	for rows.Next() {
		var o PickOrder
		var line PickOrderLine
		if err := rows.Scan(&o.ID, &o.BatchID, &o.Code, &o.Type, &o.Status, &o.CreatedAt,
			&line.ID, &line.ProductID, &line.ProductCode, &line.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan batch order: %w", err)
		}
		line.OrderID = o.ID
		if i, ok := index[o.ID]; ok {
			orders[i].Lines = append(orders[i].Lines, line)
			continue
		}
		o.Lines = []PickOrderLine{line}
		index[o.ID] = len(orders)
		orders = append(orders, o)
	}
	return orders, nil
}

func (s *batchService) ListOpenBatches(ctx context.Context) ([]Batch, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, warehouse_id, code, status, created_at
		FROM batches
		WHERE status = $1
		ORDER BY id
	`, string(BatchStatusOpen))
	if err != nil {
		return nil, fmt.Errorf("failed to query open batches: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.WarehouseID, &b.Code, &b.Status, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, nil
}

// lockBatch resolves a batch by code and locks its row, serializing all
// batch-scoped writes including ready-set recomputation.
func lockBatch(ctx context.Context, tx pgx.Tx, batchCode string) (*Batch, error) {
	var b Batch
	err := tx.QueryRow(ctx, `
		SELECT id, warehouse_id, code, status, created_at
		FROM batches WHERE code = $1
		FOR UPDATE
	`, batchCode).Scan(&b.ID, &b.WarehouseID, &b.Code, &b.Status, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("batch %s not found", batchCode)
		}
		return nil, fmt.Errorf("failed to lock batch %s: %w", batchCode, err)
	}
	return &b, nil
}
