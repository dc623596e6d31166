package core

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidInput marks malformed allocator input (non-positive quantity,
// blank identifiers, negative picked totals). The allocator rejects such
// input before the simulation starts rather than clamping it.
var ErrInvalidInput = errors.New("invalid allocation input")

// OrderLine is one product requirement of one order within a batch, as fed to
// the allocator. Type is the explicit priority flag carried by the order the
// line belongs to; the allocator never derives it from quantities.
type OrderLine struct {
	OrderID   string
	Type      OrderType
	ProductID string
	Quantity  int
}

// ReadySet is the outcome of one allocation run: the orders whose full demand
// is covered by picked stock, SAT tier first, ascending order id within each
// tier.
type ReadySet struct {
	OrderIDs []string
}

func (s *ReadySet) Contains(orderID string) bool {
	for _, id := range s.OrderIDs {
		if id == orderID {
			return true
		}
	}
	return false
}

func (s *ReadySet) Len() int {
	return len(s.OrderIDs)
}

// orderDemand is one order's aggregated demand vector.
type orderDemand struct {
	id     string
	sat    bool
	demand map[string]int
}

// AllocateReady determines which orders in a batch are fully coverable by the
// picked stock snapshot. Orders are grouped by order id, partitioned into a
// SAT tier and a standard tier, and walked greedily in ascending order-id
// order against a shared running stock. An order is taken all-or-nothing:
// either its whole demand vector is debited or the running stock is left
// untouched. Neither input is mutated, so the call is idempotent.
//
// Cancelled orders must be filtered out by the caller before this point.
func AllocateReady(lines []OrderLine, picked map[string]int) (*ReadySet, error) {
	if err := validateAllocationInput(lines, picked); err != nil {
		return nil, err
	}

	byID := make(map[string]*orderDemand)
	for _, ln := range lines {
		od := byID[ln.OrderID]
		if od == nil {
			od = &orderDemand{
				id:     ln.OrderID,
				sat:    ln.Type == OrderTypeSAT,
				demand: make(map[string]int),
			}
			byID[ln.OrderID] = od
		}
		od.demand[ln.ProductID] += ln.Quantity
		// One order, one tier: any non-SAT line demotes the whole order.
		if ln.Type != OrderTypeSAT {
			od.sat = false
		}
	}

	var satTier, standardTier []*orderDemand
	for _, od := range byID {
		if od.sat {
			satTier = append(satTier, od)
		} else {
			standardTier = append(standardTier, od)
		}
	}
	// Deterministic tie-break: ascending order id decides who wins scarce
	// stock within a tier.
	sortTier(satTier)
	sortTier(standardTier)

	running := make(map[string]int, len(picked))
	for pid, qty := range picked {
		running[pid] = qty
	}

	ready := &ReadySet{}
	allocateTier(satTier, running, ready)
	allocateTier(standardTier, running, ready)
	return ready, nil
}

func sortTier(tier []*orderDemand) {
	sort.Slice(tier, func(i, j int) bool { return tier[i].id < tier[j].id })
}

// allocateTier walks one tier in order, debiting running stock for every order
// whose full demand fits. An order with an empty demand vector is trivially
// ready.
func allocateTier(tier []*orderDemand, running map[string]int, ready *ReadySet) {
	for _, od := range tier {
		fits := true
		for pid, qty := range od.demand {
			if running[pid] < qty {
				fits = false
				break
			}
		}
		if !fits {
			continue
		}
		for pid, qty := range od.demand {
			running[pid] -= qty
		}
		ready.OrderIDs = append(ready.OrderIDs, od.id)
	}
}

func validateAllocationInput(lines []OrderLine, picked map[string]int) error {
	for i, ln := range lines {
		if ln.OrderID == "" {
			return fmt.Errorf("line %d: missing order id: %w", i, ErrInvalidInput)
		}
		if ln.ProductID == "" {
			return fmt.Errorf("line %d (order %s): missing product id: %w", i, ln.OrderID, ErrInvalidInput)
		}
		if ln.Quantity <= 0 {
			return fmt.Errorf("line %d (order %s, product %s): quantity must be positive, got %d: %w",
				i, ln.OrderID, ln.ProductID, ln.Quantity, ErrInvalidInput)
		}
	}
	for pid, qty := range picked {
		if pid == "" {
			return fmt.Errorf("picked aggregate: missing product id: %w", ErrInvalidInput)
		}
		if qty < 0 {
			return fmt.Errorf("picked aggregate: negative quantity %d for product %s: %w", qty, pid, ErrInvalidInput)
		}
	}
	return nil
}
