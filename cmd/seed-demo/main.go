// seed-demo is a one-shot tool that loads a small demo warehouse into the
// database: one site, a handful of products with dimensions, racks with
// frontage, opening stock and putaway rules.
//
// Usage: go run ./cmd/seed-demo
package main

import (
	"context"
	"log"
	"os"

	"fulfillment-core/internal/db"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	log.Println("Seeding warehouse...")
	_, err = tx.Exec(ctx, `
		INSERT INTO warehouses (code, name)
		VALUES ('MAD', 'Madrid Central')
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name;
	`)
	if err != nil {
		log.Fatalf("Failed to seed warehouse: %v", err)
	}

	log.Println("Seeding products...")
	_, err = tx.Exec(ctx, `
		INSERT INTO products (code, name, width_cm, depth_cm, height_cm, allow_rotation)
		VALUES
		  ('BOX-S',   'Small carton',        20.0, 30.0, 20.0, true),
		  ('BOX-L',   'Large carton',        40.0, 60.0, 40.0, true),
		  ('TUBE',    'Poster tube',          8.0,  90.0,  8.0, false),
		  ('PALLET',  'Euro pallet insert',  80.0, 120.0, 15.0, true),
		  ('ENV',     'Padded envelope',     25.0, 35.0,  3.0, true)
		ON CONFLICT (code) DO UPDATE
		  SET name = EXCLUDED.name,
		      width_cm = EXCLUDED.width_cm,
		      depth_cm = EXCLUDED.depth_cm,
		      height_cm = EXCLUDED.height_cm,
		      allow_rotation = EXCLUDED.allow_rotation;
	`)
	if err != nil {
		log.Fatalf("Failed to seed products: %v", err)
	}

	log.Println("Seeding racks...")
	_, err = tx.Exec(ctx, `
		INSERT INTO racks (warehouse_id, code, zone, width_cm, depth_cm, height_cm, available_front_cm)
		SELECT w.id, r.code, r.zone, r.width, r.depth, r.height, r.width
		FROM warehouses w
		CROSS JOIN (VALUES
		    ('A-01', 'A', 270.0::numeric, 100.0::numeric, 50.0::numeric),
		    ('A-02', 'A', 270.0::numeric, 100.0::numeric, 50.0::numeric),
		    ('B-01', 'B', 180.0::numeric, 120.0::numeric, 90.0::numeric),
		    ('B-02', 'B', 180.0::numeric, 120.0::numeric, 90.0::numeric)
		) AS r(code, zone, width, depth, height)
		WHERE w.code = 'MAD'
		ON CONFLICT (warehouse_id, code) DO NOTHING;
	`)
	if err != nil {
		log.Fatalf("Failed to seed racks: %v", err)
	}

	log.Println("Seeding opening stock...")
	_, err = tx.Exec(ctx, `
		INSERT INTO stock_items (warehouse_id, product_id, qty_on_hand)
		SELECT w.id, p.id, s.qty
		FROM warehouses w
		JOIN (VALUES
		    ('BOX-S',  200::bigint),
		    ('BOX-L',   80::bigint),
		    ('TUBE',    50::bigint),
		    ('ENV',    500::bigint)
		) AS s(code, qty) ON true
		JOIN products p ON p.code = s.code
		WHERE w.code = 'MAD'
		ON CONFLICT (warehouse_id, product_id) DO UPDATE
		  SET qty_on_hand = EXCLUDED.qty_on_hand;
	`)
	if err != nil {
		log.Fatalf("Failed to seed stock: %v", err)
	}

	log.Println("Seeding putaway rules...")
	_, err = tx.Exec(ctx, `
		INSERT INTO putaway_rules (warehouse_id, product_id, rack_code, priority)
		SELECT w.id, p.id, 'B-01', 10
		FROM warehouses w
		JOIN products p ON p.code = 'BOX-L'
		WHERE w.code = 'MAD'
		  AND NOT EXISTS (
		      SELECT 1 FROM putaway_rules x
		      WHERE x.warehouse_id = w.id AND x.product_id = p.id AND x.rack_code = 'B-01'
		  );
	`)
	if err != nil {
		log.Fatalf("Failed to seed putaway rules: %v", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO putaway_rules (warehouse_id, product_id, rack_code, priority)
		SELECT w.id, NULL, 'A-01', 1
		FROM warehouses w
		WHERE w.code = 'MAD'
		  AND NOT EXISTS (
		      SELECT 1 FROM putaway_rules x
		      WHERE x.warehouse_id = w.id AND x.product_id IS NULL AND x.rack_code = 'A-01'
		  );
	`)
	if err != nil {
		log.Fatalf("Failed to seed fallback putaway rule: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}

	log.Println("Demo warehouse seeded.")
	os.Exit(0)
}
