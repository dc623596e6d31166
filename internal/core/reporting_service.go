package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ── Report types ──────────────────────────────────────────────────────────────

// RackFrontage summarizes how much of a rack's width has been consumed.
type RackFrontage struct {
	RackCode       string
	Zone           string
	Width          decimal.Decimal
	AvailableFront decimal.Decimal
	UsedPct        decimal.Decimal // (Width - AvailableFront) / Width * 100
}

// UtilizationLine reports one product's use of one rack. Capacity uses the
// hybrid two-layer stacking estimate, which counts the lay-flat-below /
// upright-above arrangement the single-orientation formula misses.
type UtilizationLine struct {
	RackCode     string
	ProductCode  string
	Quantity     int64
	SlotsUsed    int64
	UnitsPerSlot int
	Capacity     int64           // UnitsPerSlot * SlotsUsed
	Utilization  decimal.Decimal // Quantity / Capacity * 100
}

// UtilizationReport is the rack-capacity view for one warehouse.
type UtilizationReport struct {
	WarehouseCode string
	Racks         []RackFrontage
	Lines         []UtilizationLine
}

// ReportingService builds capacity-utilization views over racks and their
// contents.
type ReportingService interface {
	RackUtilization(ctx context.Context, warehouseCode string) (*UtilizationReport, error)
}

type reportingService struct {
	pool *pgxpool.Pool
}

func NewReportingService(pool *pgxpool.Pool) ReportingService {
	return &reportingService{pool: pool}
}

func (s *reportingService) RackUtilization(ctx context.Context, warehouseCode string) (*UtilizationReport, error) {
	warehouseID, err := resolveWarehouseID(ctx, s.pool, warehouseCode)
	if err != nil {
		return nil, err
	}

	report := &UtilizationReport{WarehouseCode: warehouseCode}

	rows, err := s.pool.Query(ctx, `
		SELECT code, zone, COALESCE(width_cm, 0), available_front_cm
		FROM racks
		WHERE warehouse_id = $1 AND is_active = true
		ORDER BY code
	`, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query racks: %w", err)
	}
	for rows.Next() {
		var rf RackFrontage
		if err := rows.Scan(&rf.RackCode, &rf.Zone, &rf.Width, &rf.AvailableFront); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan rack: %w", err)
		}
		if rf.Width.Sign() > 0 {
			used := rf.Width.Sub(rf.AvailableFront)
			rf.UsedPct = used.Div(rf.Width).Mul(decimal.NewFromInt(100)).Round(2)
		}
		report.Racks = append(report.Racks, rf)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating racks: %w", err)
	}

	rows, err = s.pool.Query(ctx, `
		SELECT r.code, COALESCE(r.depth_cm, 0), COALESCE(r.height_cm, 0),
		       p.code, COALESCE(p.depth_cm, 0), COALESCE(p.height_cm, 0), p.allow_rotation,
		       rc.quantity, rc.slots_used
		FROM rack_contents rc
		JOIN racks r    ON r.id = rc.rack_id
		JOIN products p ON p.id = rc.product_id
		WHERE r.warehouse_id = $1 AND r.is_active = true
		ORDER BY r.code, p.code
	`, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rack contents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line UtilizationLine
		var rack RackDims
		var product ProductDims
		if err := rows.Scan(&line.RackCode, &rack.Depth, &rack.Height,
			&line.ProductCode, &product.Depth, &product.Height, &product.AllowRotation,
			&line.Quantity, &line.SlotsUsed); err != nil {
			return nil, fmt.Errorf("failed to scan rack content: %w", err)
		}

		line.UnitsPerSlot = HybridProductsPerSlot(rack, product)
		line.Capacity = int64(line.UnitsPerSlot) * line.SlotsUsed
		if line.Capacity > 0 {
			line.Utilization = decimal.NewFromInt(line.Quantity).
				Div(decimal.NewFromInt(line.Capacity)).
				Mul(decimal.NewFromInt(100)).Round(2)
		}
		report.Lines = append(report.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rack contents: %w", err)
	}
	return report, nil
}
