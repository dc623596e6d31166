package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"fulfillment-core/internal/app"
	"fulfillment-core/internal/core"
	"fulfillment-core/internal/db"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	stockSvc := core.NewStockService(pool)
	batchSvc := core.NewBatchService(pool)
	allocSvc := core.NewAllocationService(pool)
	printSvc := core.NewPickListService(pool)
	putawaySvc := core.NewPutawayService(pool, core.NewPutawayRules(pool))
	reportSvc := core.NewReportingService(pool)

	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "allocate":
		if len(os.Args) < 3 {
			log.Fatal("Usage: wms allocate <batch>")
		}
		outcome, err := allocSvc.RecomputeReadyToPick(ctx, os.Args[2])
		if err != nil {
			log.Fatalf("Allocation failed: %v", err)
		}
		printOutcome(outcome)

	case "refresh":
		refresher := app.NewRefresher(batchSvc, allocSvc, 4)
		outcomes, err := refresher.RefreshAll(ctx)
		if err != nil {
			log.Fatalf("Refresh failed: %v", err)
		}
		for i := range outcomes {
			printOutcome(&outcomes[i])
		}

	case "ready":
		if len(os.Args) < 3 {
			log.Fatal("Usage: wms ready <batch>")
		}
		ready, err := printSvc.GetReadyOrders(ctx, os.Args[2])
		if err != nil {
			log.Fatalf("Failed to fetch ready orders: %v", err)
		}
		for _, r := range ready {
			state := "unprinted"
			if r.Printed {
				state = "printed " + derefStr(r.PickListNumber)
			}
			fmt.Printf("%-20s %s\n", r.OrderCode, state)
		}

	case "print":
		if len(os.Args) < 4 {
			log.Fatal("Usage: wms print <batch> <order>")
		}
		r, err := printSvc.MarkPrinted(ctx, os.Args[2], os.Args[3])
		if err != nil {
			log.Fatalf("Print failed: %v", err)
		}
		fmt.Printf("Order %s printed as %s\n", r.OrderCode, derefStr(r.PickListNumber))

	case "pick":
		if len(os.Args) < 5 {
			log.Fatal("Usage: wms pick <batch> <product> <qty>")
		}
		qty := mustInt(os.Args[4], "qty")
		if err := batchSvc.RecordPick(ctx, os.Args[2], os.Args[3], qty, stockSvc); err != nil {
			log.Fatalf("Pick failed: %v", err)
		}
		fmt.Printf("Picked %d x %s for batch %s\n", qty, os.Args[3], os.Args[2])

	case "stock":
		if len(os.Args) < 3 {
			log.Fatal("Usage: wms stock <warehouse>")
		}
		levels, err := stockSvc.GetStockLevels(ctx, os.Args[2])
		if err != nil {
			log.Fatalf("Failed to fetch stock levels: %v", err)
		}
		fmt.Printf("%-12s %-24s %10s %10s %10s\n", "PRODUCT", "NAME", "ON HAND", "LOCKED", "PENDING")
		for _, sl := range levels {
			fmt.Printf("%-12s %-24s %10d %10d %10d\n",
				sl.ProductCode, sl.ProductName, sl.OnHand, sl.Locked, sl.PutawayPending)
		}

	case "receive":
		if len(os.Args) < 5 {
			log.Fatal("Usage: wms receive <warehouse> <product> <qty>")
		}
		qty := mustInt(os.Args[4], "qty")
		if err := stockSvc.ReceiveStock(ctx, os.Args[2], os.Args[3], int64(qty), ""); err != nil {
			log.Fatalf("Receive failed: %v", err)
		}
		fmt.Printf("Received %d x %s into %s putaway holding\n", qty, os.Args[3], os.Args[2])

	case "slot":
		if len(os.Args) < 5 {
			log.Fatal("Usage: wms slot <warehouse> <rack> <product> [qty]")
		}
		var rack core.Rack
		var product core.Product
		err := pool.QueryRow(ctx, `
			SELECT COALESCE(r.depth_cm, 0), COALESCE(r.height_cm, 0)
			FROM racks r
			JOIN warehouses w ON w.id = r.warehouse_id
			WHERE w.code = $1 AND r.code = $2 AND r.is_active = true
		`, os.Args[2], os.Args[3]).Scan(&rack.Depth, &rack.Height)
		if err != nil {
			log.Fatalf("Failed to resolve rack %s: %v", os.Args[3], err)
		}
		err = pool.QueryRow(ctx, `
			SELECT COALESCE(depth_cm, 0), COALESCE(height_cm, 0), allow_rotation
			FROM products WHERE code = $1 AND is_active = true
		`, os.Args[4]).Scan(&product.Depth, &product.Height, &product.AllowRotation)
		if err != nil {
			log.Fatalf("Failed to resolve product %s: %v", os.Args[4], err)
		}
		perSlot := core.ProductsPerSlot(rack.Dims(), product.Dims())
		hybrid := core.HybridProductsPerSlot(rack.Dims(), product.Dims())
		fmt.Printf("Rack %s x product %s: %d units/slot (%d with two-layer stacking)\n",
			os.Args[3], os.Args[4], perSlot, hybrid)
		if len(os.Args) > 5 {
			qty := mustInt(os.Args[5], "qty")
			fmt.Printf("%d units need %d width slots\n",
				qty, core.WidthSlotsNeeded(rack.Dims(), product.Dims(), qty))
		}

	case "putaway":
		if len(os.Args) < 5 {
			log.Fatal("Usage: wms putaway <warehouse> <product> <qty> [rack]")
		}
		qty := mustInt(os.Args[4], "qty")
		rack := ""
		if len(os.Args) > 5 {
			rack = os.Args[5]
		}
		res, err := putawaySvc.PutAway(ctx, os.Args[2], os.Args[3], rack, qty, stockSvc)
		if err != nil {
			log.Fatalf("Putaway failed: %v", err)
		}
		fmt.Printf("Put away %d x %s into rack %s: %d units/slot, %d slots, %s cm frontage\n",
			qty, os.Args[3], res.RackCode, res.UnitsPerSlot, res.SlotsUsed, res.WidthConsumed.String())

	case "report":
		if len(os.Args) < 3 {
			log.Fatal("Usage: wms report <warehouse>")
		}
		report, err := reportSvc.RackUtilization(ctx, os.Args[2])
		if err != nil {
			log.Fatalf("Report failed: %v", err)
		}
		fmt.Printf("Rack frontage — warehouse %s\n", report.WarehouseCode)
		for _, r := range report.Racks {
			fmt.Printf("  %-10s zone %-6s width %8s cm, free %8s cm (%s%% used)\n",
				r.RackCode, r.Zone, r.Width.String(), r.AvailableFront.String(), r.UsedPct.String())
		}
		fmt.Println("Slot utilization")
		for _, l := range report.Lines {
			fmt.Printf("  %-10s %-12s %5d stored / %5d capacity (%d units/slot x %d slots): %s%%\n",
				l.RackCode, l.ProductCode, l.Quantity, l.Capacity, l.UnitsPerSlot, l.SlotsUsed, l.Utilization.String())
		}

	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: wms <command> [args]

Commands:
  allocate <batch>                     recompute the batch's ready-to-pick set
  refresh                              recompute all open batches
  ready <batch>                        list ready markers for a batch
  print <batch> <order>                print a ready order's pick list
  pick <batch> <product> <qty>         record a pick event
  stock <warehouse>                    show stock levels
  receive <warehouse> <product> <qty>  receive goods into putaway holding
  slot <warehouse> <rack> <product> [qty]     capacity dry run for a rack/product pair
  putaway <warehouse> <product> <qty> [rack]  slot pending stock into a rack
  report <warehouse>                   rack capacity utilization`)
	os.Exit(2)
}

func printOutcome(o *core.AllocationOutcome) {
	fmt.Printf("Batch %s: %d ready (+%d / -%d)\n", o.BatchCode, len(o.Ready), len(o.Added), len(o.Removed))
	for _, id := range o.Added {
		fmt.Printf("  + %s\n", id)
	}
	for _, id := range o.Removed {
		fmt.Printf("  - %s\n", id)
	}
}

func mustInt(s, name string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("Invalid %s %q: %v", name, s, err)
	}
	return n
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
