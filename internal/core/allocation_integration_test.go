package core_test

import (
	"context"
	"os"
	"testing"

	"fulfillment-core/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live warehouse database.
	// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Clean and seed test DB: one warehouse, measured and unmeasured products,
	// racks with frontage.
	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE stock_movements, stock_items, rack_contents, putaway_rules,
			ready_orders, pick_list_sequences, pick_events, pick_order_lines,
			pick_orders, batches, racks, products, warehouses CASCADE;

		INSERT INTO warehouses (code, name) VALUES ('MAD', 'Madrid Central');

		INSERT INTO products (code, name, width_cm, depth_cm, height_cm, allow_rotation) VALUES
		('WID-A',   'Widget A',     20.0, 30.0, 20.0, true),
		('WID-B',   'Widget B',     40.0, 60.0, 40.0, true),
		('TUBE-90', 'Poster tube',   8.0, 90.0,  8.0, false),
		('MISC',    'Unmeasured',   NULL, NULL, NULL, false);

		INSERT INTO racks (warehouse_id, code, zone, width_cm, depth_cm, height_cm, available_front_cm)
		SELECT w.id, r.code, r.zone, r.width, r.depth, r.height, r.width
		FROM warehouses w
		CROSS JOIN (VALUES
		    ('A-01', 'A', 270.0::numeric, 100.0::numeric, 50.0::numeric),
		    ('B-01', 'B', 180.0::numeric, 120.0::numeric, 90.0::numeric),
		    ('C-01', 'C',  10.0::numeric, 120.0::numeric, 90.0::numeric)
		) AS r(code, zone, width, depth, height)
		WHERE w.code = 'MAD';
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

// readyCodes flattens GetReadyOrders into printed/unprinted code lists.
func readyCodes(t *testing.T, ctx context.Context, printSvc core.PickListService, batchCode string) (unprinted, printed []string) {
	t.Helper()
	ready, err := printSvc.GetReadyOrders(ctx, batchCode)
	if err != nil {
		t.Fatalf("GetReadyOrders failed: %v", err)
	}
	for _, r := range ready {
		if r.Printed {
			printed = append(printed, r.OrderCode)
		} else {
			unprinted = append(unprinted, r.OrderCode)
		}
	}
	return unprinted, printed
}

func assertCodes(t *testing.T, label string, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: expected %v, got %v", label, want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("%s: expected %v, got %v", label, want, got)
		}
	}
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestAllocation_BatchLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	batchSvc := core.NewBatchService(pool)
	allocSvc := core.NewAllocationService(pool)
	printSvc := core.NewPickListService(pool)

	if _, err := batchSvc.CreateBatch(ctx, "MAD", "B-2026-01"); err != nil {
		t.Fatalf("CreateBatch failed: %v", err)
	}

	// Three orders: a Saturday single-unit order and two standard ones.
	if _, err := batchSvc.AddOrder(ctx, "B-2026-01", "O-001", core.OrderTypeSAT,
		[]core.OrderLineInput{{ProductCode: "WID-A", Quantity: 1}}, nil); err != nil {
		t.Fatalf("AddOrder O-001 failed: %v", err)
	}
	if _, err := batchSvc.AddOrder(ctx, "B-2026-01", "O-002", core.OrderTypeStandard,
		[]core.OrderLineInput{
			{ProductCode: "WID-A", Quantity: 2},
			{ProductCode: "WID-B", Quantity: 1},
		}, nil); err != nil {
		t.Fatalf("AddOrder O-002 failed: %v", err)
	}
	if _, err := batchSvc.AddOrder(ctx, "B-2026-01", "O-003", core.OrderTypeStandard,
		[]core.OrderLineInput{{ProductCode: "WID-B", Quantity: 5}}, nil); err != nil {
		t.Fatalf("AddOrder O-003 failed: %v", err)
	}

	// Picks so far: 3 of WID-A, 1 of WID-B. O-001 and O-002 are fully covered,
	// O-003 is not.
	if err := batchSvc.RecordPick(ctx, "B-2026-01", "WID-A", 3, nil); err != nil {
		t.Fatalf("RecordPick WID-A failed: %v", err)
	}
	if err := batchSvc.RecordPick(ctx, "B-2026-01", "WID-B", 1, nil); err != nil {
		t.Fatalf("RecordPick WID-B failed: %v", err)
	}

	outcome, err := allocSvc.RecomputeReadyToPick(ctx, "B-2026-01")
	if err != nil {
		t.Fatalf("RecomputeReadyToPick failed: %v", err)
	}
	assertCodes(t, "ready after first run", outcome.Ready, []string{"O-001", "O-002"})
	assertCodes(t, "added after first run", outcome.Added, []string{"O-001", "O-002"})
	if len(outcome.Removed) != 0 {
		t.Errorf("Expected no removals on first run, got %v", outcome.Removed)
	}

	// Second run with unchanged inputs is a no-op.
	outcome, err = allocSvc.RecomputeReadyToPick(ctx, "B-2026-01")
	if err != nil {
		t.Fatalf("Second RecomputeReadyToPick failed: %v", err)
	}
	assertCodes(t, "ready after idempotent rerun", outcome.Ready, []string{"O-001", "O-002"})
	if len(outcome.Added) != 0 || len(outcome.Removed) != 0 {
		t.Errorf("Expected empty diff on rerun, got added=%v removed=%v", outcome.Added, outcome.Removed)
	}

	// Picking the remaining 5 of WID-B completes O-003.
	if err := batchSvc.RecordPick(ctx, "B-2026-01", "WID-B", 5, nil); err != nil {
		t.Fatalf("RecordPick WID-B failed: %v", err)
	}
	outcome, err = allocSvc.RecomputeReadyToPick(ctx, "B-2026-01")
	if err != nil {
		t.Fatalf("Third RecomputeReadyToPick failed: %v", err)
	}
	assertCodes(t, "ready after completing picks", outcome.Ready, []string{"O-001", "O-002", "O-003"})
	assertCodes(t, "added after completing picks", outcome.Added, []string{"O-003"})

	unprinted, printed := readyCodes(t, ctx, printSvc, "B-2026-01")
	assertCodes(t, "unprinted markers", unprinted, []string{"O-001", "O-002", "O-003"})
	if len(printed) != 0 {
		t.Errorf("Expected no printed markers yet, got %v", printed)
	}
}

func TestAllocation_SATOrderWinsScarceStock(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	batchSvc := core.NewBatchService(pool)
	allocSvc := core.NewAllocationService(pool)

	if _, err := batchSvc.CreateBatch(ctx, "MAD", "B-SAT"); err != nil {
		t.Fatalf("CreateBatch failed: %v", err)
	}
	if err := batchSvc.RecordPick(ctx, "B-SAT", "WID-A", 1, nil); err != nil {
		t.Fatalf("RecordPick failed: %v", err)
	}

	// The standard order gets the unit first.
	if _, err := batchSvc.AddOrder(ctx, "B-SAT", "O-STD", core.OrderTypeStandard,
		[]core.OrderLineInput{{ProductCode: "WID-A", Quantity: 1}}, nil); err != nil {
		t.Fatalf("AddOrder O-STD failed: %v", err)
	}
	outcome, err := allocSvc.RecomputeReadyToPick(ctx, "B-SAT")
	if err != nil {
		t.Fatalf("RecomputeReadyToPick failed: %v", err)
	}
	assertCodes(t, "ready before SAT order", outcome.Ready, []string{"O-STD"})

	// A Saturday order arrives and reclaims the single unit on the next run.
	if _, err := batchSvc.AddOrder(ctx, "B-SAT", "O-SAT", core.OrderTypeSAT,
		[]core.OrderLineInput{{ProductCode: "WID-A", Quantity: 1}}, nil); err != nil {
		t.Fatalf("AddOrder O-SAT failed: %v", err)
	}
	outcome, err = allocSvc.RecomputeReadyToPick(ctx, "B-SAT")
	if err != nil {
		t.Fatalf("RecomputeReadyToPick failed: %v", err)
	}
	assertCodes(t, "ready after SAT order", outcome.Ready, []string{"O-SAT"})
	assertCodes(t, "added after SAT order", outcome.Added, []string{"O-SAT"})
	assertCodes(t, "removed after SAT order", outcome.Removed, []string{"O-STD"})
}

func TestAllocation_PrintedMarkerSurvives(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	batchSvc := core.NewBatchService(pool)
	allocSvc := core.NewAllocationService(pool)
	printSvc := core.NewPickListService(pool)

	if _, err := batchSvc.CreateBatch(ctx, "MAD", "B-PRN"); err != nil {
		t.Fatalf("CreateBatch failed: %v", err)
	}
	if err := batchSvc.RecordPick(ctx, "B-PRN", "WID-A", 1, nil); err != nil {
		t.Fatalf("RecordPick failed: %v", err)
	}
	if _, err := batchSvc.AddOrder(ctx, "B-PRN", "O-STD", core.OrderTypeStandard,
		[]core.OrderLineInput{{ProductCode: "WID-A", Quantity: 1}}, nil); err != nil {
		t.Fatalf("AddOrder O-STD failed: %v", err)
	}
	if _, err := allocSvc.RecomputeReadyToPick(ctx, "B-PRN"); err != nil {
		t.Fatalf("RecomputeReadyToPick failed: %v", err)
	}

	// Print O-STD's pick list; printing is terminal.
	ready, err := printSvc.MarkPrinted(ctx, "B-PRN", "O-STD")
	if err != nil {
		t.Fatalf("MarkPrinted failed: %v", err)
	}
	if !ready.Printed || ready.PickListNumber == nil {
		t.Fatalf("Expected printed marker with a pick list number, got %+v", ready)
	}
	if *ready.PickListNumber != "PL-MAD-00001" {
		t.Errorf("Expected PL-MAD-00001, got %s", *ready.PickListNumber)
	}

	// A Saturday order displaces O-STD from the ready set, but the printed
	// marker is never withdrawn.
	if _, err := batchSvc.AddOrder(ctx, "B-PRN", "O-SAT", core.OrderTypeSAT,
		[]core.OrderLineInput{{ProductCode: "WID-A", Quantity: 1}}, nil); err != nil {
		t.Fatalf("AddOrder O-SAT failed: %v", err)
	}
	outcome, err := allocSvc.RecomputeReadyToPick(ctx, "B-PRN")
	if err != nil {
		t.Fatalf("RecomputeReadyToPick failed: %v", err)
	}
	assertCodes(t, "ready after displacement", outcome.Ready, []string{"O-SAT"})
	if len(outcome.Removed) != 0 {
		t.Errorf("Printed marker must not be removed, got removals %v", outcome.Removed)
	}

	unprinted, printed := readyCodes(t, ctx, printSvc, "B-PRN")
	assertCodes(t, "unprinted markers", unprinted, []string{"O-SAT"})
	assertCodes(t, "printed markers", printed, []string{"O-STD"})

	// Cancelling the printed order leaves its marker for the packing desk.
	if _, err := batchSvc.CancelOrder(ctx, "B-PRN", "O-STD", nil); err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
	_, printed = readyCodes(t, ctx, printSvc, "B-PRN")
	assertCodes(t, "printed markers after cancel", printed, []string{"O-STD"})
}

func TestAllocation_CancelledOrderReleasesDemand(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	batchSvc := core.NewBatchService(pool)
	allocSvc := core.NewAllocationService(pool)

	if _, err := batchSvc.CreateBatch(ctx, "MAD", "B-CXL"); err != nil {
		t.Fatalf("CreateBatch failed: %v", err)
	}
	if err := batchSvc.RecordPick(ctx, "B-CXL", "WID-B", 2, nil); err != nil {
		t.Fatalf("RecordPick failed: %v", err)
	}
	if _, err := batchSvc.AddOrder(ctx, "B-CXL", "O-100", core.OrderTypeStandard,
		[]core.OrderLineInput{{ProductCode: "WID-B", Quantity: 2}}, nil); err != nil {
		t.Fatalf("AddOrder O-100 failed: %v", err)
	}
	if _, err := batchSvc.AddOrder(ctx, "B-CXL", "O-200", core.OrderTypeStandard,
		[]core.OrderLineInput{{ProductCode: "WID-B", Quantity: 2}}, nil); err != nil {
		t.Fatalf("AddOrder O-200 failed: %v", err)
	}

	outcome, err := allocSvc.RecomputeReadyToPick(ctx, "B-CXL")
	if err != nil {
		t.Fatalf("RecomputeReadyToPick failed: %v", err)
	}
	assertCodes(t, "ready before cancel", outcome.Ready, []string{"O-100"})

	// Cancelling O-100 frees the picked units for O-200.
	if _, err := batchSvc.CancelOrder(ctx, "B-CXL", "O-100", nil); err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
	outcome, err = allocSvc.RecomputeReadyToPick(ctx, "B-CXL")
	if err != nil {
		t.Fatalf("RecomputeReadyToPick failed: %v", err)
	}
	assertCodes(t, "ready after cancel", outcome.Ready, []string{"O-200"})
	assertCodes(t, "added after cancel", outcome.Added, []string{"O-200"})
}

func TestPickList_GaplessNumbering(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	batchSvc := core.NewBatchService(pool)
	allocSvc := core.NewAllocationService(pool)
	printSvc := core.NewPickListService(pool)

	if _, err := batchSvc.CreateBatch(ctx, "MAD", "B-NUM"); err != nil {
		t.Fatalf("CreateBatch failed: %v", err)
	}
	if err := batchSvc.RecordPick(ctx, "B-NUM", "WID-A", 2, nil); err != nil {
		t.Fatalf("RecordPick failed: %v", err)
	}
	for _, code := range []string{"O-A", "O-B"} {
		if _, err := batchSvc.AddOrder(ctx, "B-NUM", code, core.OrderTypeStandard,
			[]core.OrderLineInput{{ProductCode: "WID-A", Quantity: 1}}, nil); err != nil {
			t.Fatalf("AddOrder %s failed: %v", code, err)
		}
	}
	if _, err := allocSvc.RecomputeReadyToPick(ctx, "B-NUM"); err != nil {
		t.Fatalf("RecomputeReadyToPick failed: %v", err)
	}

	first, err := printSvc.MarkPrinted(ctx, "B-NUM", "O-A")
	if err != nil {
		t.Fatalf("MarkPrinted O-A failed: %v", err)
	}
	second, err := printSvc.MarkPrinted(ctx, "B-NUM", "O-B")
	if err != nil {
		t.Fatalf("MarkPrinted O-B failed: %v", err)
	}
	if *first.PickListNumber != "PL-MAD-00001" {
		t.Errorf("Expected PL-MAD-00001, got %s", *first.PickListNumber)
	}
	if *second.PickListNumber != "PL-MAD-00002" {
		t.Errorf("Expected PL-MAD-00002, got %s", *second.PickListNumber)
	}

	// Printing twice is rejected, not renumbered.
	if _, err := printSvc.MarkPrinted(ctx, "B-NUM", "O-A"); err == nil {
		t.Error("Expected error when printing an already-printed order")
	}
}
