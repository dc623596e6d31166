package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderType distinguishes the priority tier of a pick order.
// SAT orders (single item, single unit) are allocated before standard orders.
type OrderType string

const (
	OrderTypeSAT      OrderType = "SAT"
	OrderTypeStandard OrderType = "STANDARD"
)

type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "OPEN"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

type BatchStatus string

const (
	BatchStatusOpen   BatchStatus = "OPEN"
	BatchStatusClosed BatchStatus = "CLOSED"
)

type Warehouse struct {
	ID        int
	Code      string
	Name      string
	IsActive  bool
	CreatedAt time.Time
}

// Product is warehouse master data. Dimensions are in centimeters and may be
// zero when the master record is incomplete; the slotting calculator treats
// zero as "unknown" and falls back to one unit per slot.
type Product struct {
	ID            int
	Code          string
	Name          string
	Width         decimal.Decimal
	Depth         decimal.Decimal
	Height        decimal.Decimal
	AllowRotation bool
	IsActive      bool
	CreatedAt     time.Time
}

// Rack is a physical storage location. AvailableFront tracks the unconsumed
// width of the rack frontage; putaway deducts from it in whole-slot increments.
type Rack struct {
	ID             int
	WarehouseID    int
	Code           string
	Zone           string
	Width          decimal.Decimal
	Depth          decimal.Decimal
	Height         decimal.Decimal
	AvailableFront decimal.Decimal
	IsActive       bool
}

// Batch groups many pick orders into one warehouse work unit.
type Batch struct {
	ID          int
	WarehouseID int
	Code        string
	Status      BatchStatus
	CreatedAt   time.Time
}

// PickOrder is one logical customer order inside a batch.
type PickOrder struct {
	ID        int
	BatchID   int
	Code      string
	Type      OrderType
	Status    OrderStatus
	CreatedAt time.Time
	Lines     []PickOrderLine
}

type PickOrderLine struct {
	ID          int
	OrderID     int
	ProductID   int
	ProductCode string
	Quantity    int
}

// StockLevel is a read view of a stock_item joined with product and warehouse info.
type StockLevel struct {
	ProductCode    string
	ProductName    string
	WarehouseCode  string
	OnHand         int64
	Locked         int64
	PutawayPending int64
}

// ReadyOrder is the persisted "ready to print" marker for one order.
// Once printed it is terminal: later allocation runs never delete it.
type ReadyOrder struct {
	ID             int
	BatchID        int
	OrderID        int
	OrderCode      string
	Printed        bool
	PickListNumber *string
	CreatedAt      time.Time
	PrintedAt      *time.Time
}
