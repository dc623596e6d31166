package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PutawayResult describes where and how stock was slotted.
type PutawayResult struct {
	RackCode      string
	UnitsPerSlot  int
	SlotsUsed     int
	WidthConsumed decimal.Decimal
}

// PutawayService moves pending-putaway stock into a rack, consuming rack
// frontage in whole width-slot increments sized by the slot calculator.
// Incomplete dimension data never blocks a putaway; it only makes the space
// estimate conservative (one unit per slot), and a product with unknown width
// consumes no measurable frontage.
type PutawayService interface {
	// PutAway slots qty units of a product into rackCode. An empty rackCode is
	// resolved through the putaway rules. Pass stock=nil to skip the ledger
	// transition (holding area → on hand).
	PutAway(ctx context.Context, warehouseCode, productCode, rackCode string, qty int, stock StockService) (*PutawayResult, error)
}

type putawayService struct {
	pool  *pgxpool.Pool
	rules PutawayRules
}

func NewPutawayService(pool *pgxpool.Pool, rules PutawayRules) PutawayService {
	return &putawayService{pool: pool, rules: rules}
}

func (s *putawayService) PutAway(ctx context.Context, warehouseCode, productCode, rackCode string, qty int, stock StockService) (*PutawayResult, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("putaway quantity must be positive, got %d", qty)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	warehouseID, err := resolveWarehouseID(ctx, tx, warehouseCode)
	if err != nil {
		return nil, err
	}

	var product Product
	err = tx.QueryRow(ctx, `
		SELECT id, code, COALESCE(width_cm, 0), COALESCE(depth_cm, 0), COALESCE(height_cm, 0), allow_rotation
		FROM products WHERE code = $1 AND is_active = true
	`, productCode).Scan(&product.ID, &product.Code, &product.Width, &product.Depth, &product.Height, &product.AllowRotation)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %s not found", productCode)
		}
		return nil, fmt.Errorf("failed to resolve product %s: %w", productCode, err)
	}

	if rackCode == "" {
		rackCode, err = s.rules.ResolveRack(ctx, warehouseID, product.ID)
		if err != nil {
			return nil, err
		}
	}

	var rack Rack
	err = tx.QueryRow(ctx, `
		SELECT id, warehouse_id, code, COALESCE(depth_cm, 0), COALESCE(height_cm, 0), available_front_cm
		FROM racks
		WHERE warehouse_id = $1 AND code = $2 AND is_active = true
		FOR UPDATE
	`, warehouseID, rackCode).Scan(&rack.ID, &rack.WarehouseID, &rack.Code, &rack.Depth, &rack.Height, &rack.AvailableFront)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("rack %s not found in warehouse %s", rackCode, warehouseCode)
		}
		return nil, fmt.Errorf("failed to lock rack %s: %w", rackCode, err)
	}

	perSlot := ProductsPerSlot(rack.Dims(), product.Dims())
	slots := WidthSlotsNeeded(rack.Dims(), product.Dims(), qty)

	width := decimal.Zero
	if product.Width.Sign() > 0 {
		width = product.Width.Mul(decimal.NewFromInt(int64(slots)))
	}
	if width.GreaterThan(rack.AvailableFront) {
		return nil, fmt.Errorf("rack %s has %s cm of frontage, need %s cm for %d units of %s",
			rackCode, rack.AvailableFront.String(), width.String(), qty, productCode)
	}

	_, err = tx.Exec(ctx, `
		UPDATE racks SET available_front_cm = available_front_cm - $1 WHERE id = $2
	`, width, rack.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to consume frontage on rack %s: %w", rackCode, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO rack_contents (rack_id, product_id, quantity, slots_used)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (rack_id, product_id)
		DO UPDATE SET quantity   = rack_contents.quantity + EXCLUDED.quantity,
		              slots_used = rack_contents.slots_used + EXCLUDED.slots_used,
		              updated_at = NOW()
	`, rack.ID, product.ID, qty, slots)
	if err != nil {
		return nil, fmt.Errorf("failed to update rack contents: %w", err)
	}

	if stock != nil {
		if err := stock.CompletePutawayTx(ctx, tx, warehouseID, product.ID, int64(qty), rack.ID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit putaway: %w", err)
	}

	return &PutawayResult{
		RackCode:      rack.Code,
		UnitsPerSlot:  perSlot,
		SlotsUsed:     slots,
		WidthConsumed: width,
	}, nil
}
