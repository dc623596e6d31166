package core

// ReadyMarker is the allocator's view of one persisted ready_orders row.
type ReadyMarker struct {
	OrderID string
	Printed bool
}

// DiffReady computes the synchronization diff between the markers currently in
// the store and a freshly computed ready set.
//
// toAdd holds ready order ids with no marker at all — an order that is still
// ready and already has a marker (printed or not) is never re-inserted.
// toRemove holds unprinted markers whose order is no longer ready. Printed
// markers are terminal and never removed, even when the order drops out of the
// ready set.
//
// Both outputs preserve their input's order, so repeated runs over unchanged
// data produce identical diffs.
func DiffReady(existing []ReadyMarker, ready []string) (toAdd, toRemove []string) {
	known := make(map[string]bool, len(existing))
	for _, m := range existing {
		known[m.OrderID] = true
	}
	readySet := make(map[string]bool, len(ready))
	for _, id := range ready {
		readySet[id] = true
	}

	for _, id := range ready {
		if !known[id] {
			toAdd = append(toAdd, id)
		}
	}
	for _, m := range existing {
		if !m.Printed && !readySet[m.OrderID] {
			toRemove = append(toRemove, m.OrderID)
		}
	}
	return toAdd, toRemove
}
