package core_test

import (
	"context"
	"testing"

	"fulfillment-core/internal/core"

	"github.com/shopspring/decimal"
)

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestPutaway_SlotsAndFrontage(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	stockSvc := core.NewStockService(pool)
	putawaySvc := core.NewPutawayService(pool, core.NewPutawayRules(pool))

	if err := stockSvc.ReceiveStock(ctx, "MAD", "WID-A", 12, ""); err != nil {
		t.Fatalf("ReceiveStock failed: %v", err)
	}

	// Rack A-01 is 100 deep x 50 high; WID-A is 30 deep x 20 high and may be
	// rotated. Depth-wise 3 x height-wise 2 = 6 per slot, so 12 units need 2
	// slots of 20 cm frontage each.
	res, err := putawaySvc.PutAway(ctx, "MAD", "WID-A", "A-01", 12, stockSvc)
	if err != nil {
		t.Fatalf("PutAway failed: %v", err)
	}
	if res.UnitsPerSlot != 6 {
		t.Errorf("Expected 6 units per slot, got %d", res.UnitsPerSlot)
	}
	if res.SlotsUsed != 2 {
		t.Errorf("Expected 2 slots, got %d", res.SlotsUsed)
	}
	if !res.WidthConsumed.Equal(decimal.NewFromInt(40)) {
		t.Errorf("Expected 40 cm of frontage consumed, got %s", res.WidthConsumed.String())
	}

	var availableFront decimal.Decimal
	err = pool.QueryRow(ctx,
		"SELECT available_front_cm FROM racks WHERE code = 'A-01'").Scan(&availableFront)
	if err != nil {
		t.Fatalf("Failed to fetch rack frontage: %v", err)
	}
	if !availableFront.Equal(decimal.NewFromInt(230)) {
		t.Errorf("Expected 230 cm of frontage left, got %s", availableFront.String())
	}

	// The ledger moved the units from holding to on-hand.
	sl := getStockLevel(t, ctx, stockSvc, "MAD", "WID-A")
	if sl.OnHand != 12 || sl.PutawayPending != 0 {
		t.Errorf("Expected on_hand=12 pending=0 after putaway, got on_hand=%d pending=%d",
			sl.OnHand, sl.PutawayPending)
	}

	var quantity, slotsUsed int64
	err = pool.QueryRow(ctx, `
		SELECT rc.quantity, rc.slots_used
		FROM rack_contents rc
		JOIN racks r ON r.id = rc.rack_id
		JOIN products p ON p.id = rc.product_id
		WHERE r.code = 'A-01' AND p.code = 'WID-A'
	`).Scan(&quantity, &slotsUsed)
	if err != nil {
		t.Fatalf("Failed to fetch rack contents: %v", err)
	}
	if quantity != 12 || slotsUsed != 2 {
		t.Errorf("Expected rack contents 12/2, got %d/%d", quantity, slotsUsed)
	}
}

func TestPutaway_RuleResolvesRack(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	putawaySvc := core.NewPutawayService(pool, core.NewPutawayRules(pool))

	_, err := pool.Exec(ctx, `
		INSERT INTO putaway_rules (warehouse_id, product_id, rack_code, priority)
		SELECT w.id, p.id, 'B-01', 10
		FROM warehouses w, products p
		WHERE w.code = 'MAD' AND p.code = 'WID-B';

		INSERT INTO putaway_rules (warehouse_id, product_id, rack_code, priority)
		SELECT w.id, NULL, 'A-01', 1
		FROM warehouses w WHERE w.code = 'MAD';
	`)
	if err != nil {
		t.Fatalf("Failed to seed putaway rules: %v", err)
	}

	// WID-B has a product-specific rule pointing at B-01.
	res, err := putawaySvc.PutAway(ctx, "MAD", "WID-B", "", 2, nil)
	if err != nil {
		t.Fatalf("PutAway WID-B failed: %v", err)
	}
	if res.RackCode != "B-01" {
		t.Errorf("Expected product rule to pick B-01, got %s", res.RackCode)
	}

	// WID-A falls through to the any-product rule.
	res, err = putawaySvc.PutAway(ctx, "MAD", "WID-A", "", 2, nil)
	if err != nil {
		t.Fatalf("PutAway WID-A failed: %v", err)
	}
	if res.RackCode != "A-01" {
		t.Errorf("Expected fallback rule to pick A-01, got %s", res.RackCode)
	}
}

func TestPutaway_FrontageExhausted(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	putawaySvc := core.NewPutawayService(pool, core.NewPutawayRules(pool))

	// Rack C-01 has 10 cm of frontage; one slot of WID-B needs 40 cm.
	if _, err := putawaySvc.PutAway(ctx, "MAD", "WID-B", "C-01", 1, nil); err == nil {
		t.Fatal("Expected frontage error, got nil")
	}

	var availableFront decimal.Decimal
	err := pool.QueryRow(ctx,
		"SELECT available_front_cm FROM racks WHERE code = 'C-01'").Scan(&availableFront)
	if err != nil {
		t.Fatalf("Failed to fetch rack frontage: %v", err)
	}
	if !availableFront.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Failed putaway must not consume frontage, got %s left", availableFront.String())
	}
}

func TestPutaway_UnmeasuredProduct(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	putawaySvc := core.NewPutawayService(pool, core.NewPutawayRules(pool))

	// MISC has no dimensions: one unit per slot, one slot per unit, and no
	// measurable frontage is deducted.
	res, err := putawaySvc.PutAway(ctx, "MAD", "MISC", "A-01", 5, nil)
	if err != nil {
		t.Fatalf("PutAway failed: %v", err)
	}
	if res.UnitsPerSlot != 1 {
		t.Errorf("Expected 1 unit per slot for unmeasured product, got %d", res.UnitsPerSlot)
	}
	if res.SlotsUsed != 5 {
		t.Errorf("Expected 5 slots, got %d", res.SlotsUsed)
	}
	if !res.WidthConsumed.IsZero() {
		t.Errorf("Expected zero frontage consumed, got %s", res.WidthConsumed.String())
	}

	var availableFront decimal.Decimal
	err = pool.QueryRow(ctx,
		"SELECT available_front_cm FROM racks WHERE code = 'A-01'").Scan(&availableFront)
	if err != nil {
		t.Fatalf("Failed to fetch rack frontage: %v", err)
	}
	if !availableFront.Equal(decimal.NewFromInt(270)) {
		t.Errorf("Expected frontage untouched at 270, got %s", availableFront.String())
	}
}

func TestReporting_RackUtilization(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	stockSvc := core.NewStockService(pool)
	putawaySvc := core.NewPutawayService(pool, core.NewPutawayRules(pool))
	reportSvc := core.NewReportingService(pool)

	if err := stockSvc.ReceiveStock(ctx, "MAD", "WID-A", 12, ""); err != nil {
		t.Fatalf("ReceiveStock failed: %v", err)
	}
	if _, err := putawaySvc.PutAway(ctx, "MAD", "WID-A", "A-01", 12, stockSvc); err != nil {
		t.Fatalf("PutAway failed: %v", err)
	}

	report, err := reportSvc.RackUtilization(ctx, "MAD")
	if err != nil {
		t.Fatalf("RackUtilization failed: %v", err)
	}
	if report.WarehouseCode != "MAD" {
		t.Errorf("Expected warehouse MAD, got %s", report.WarehouseCode)
	}
	if len(report.Racks) != 3 {
		t.Fatalf("Expected 3 racks in report, got %d", len(report.Racks))
	}

	var a01 *core.RackFrontage
	for i := range report.Racks {
		if report.Racks[i].RackCode == "A-01" {
			a01 = &report.Racks[i]
		}
	}
	if a01 == nil {
		t.Fatal("Rack A-01 missing from report")
	}
	// 40 of 270 cm used.
	if !a01.UsedPct.Equal(decimal.RequireFromString("14.81")) {
		t.Errorf("Expected 14.81%% frontage used, got %s", a01.UsedPct.String())
	}

	if len(report.Lines) != 1 {
		t.Fatalf("Expected 1 utilization line, got %d", len(report.Lines))
	}
	line := report.Lines[0]
	if line.RackCode != "A-01" || line.ProductCode != "WID-A" {
		t.Fatalf("Unexpected utilization line: %+v", line)
	}
	// Hybrid stacking matches the plain orientation here: 6 per slot across 2
	// slots, all 12 positions filled.
	if line.UnitsPerSlot != 6 || line.Capacity != 12 {
		t.Errorf("Expected 6 units/slot and capacity 12, got %d and %d", line.UnitsPerSlot, line.Capacity)
	}
	if !line.Utilization.Equal(decimal.RequireFromString("100")) {
		t.Errorf("Expected 100%% utilization, got %s", line.Utilization.String())
	}
}
