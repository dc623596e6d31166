package core_test

import (
	"reflect"
	"testing"

	"fulfillment-core/internal/core"
)

func TestDiffReady(t *testing.T) {
	tests := []struct {
		name       string
		existing   []core.ReadyMarker
		ready      []string
		wantAdd    []string
		wantRemove []string
	}{
		{
			name: "printed marker survives dropping out of the ready set",
			existing: []core.ReadyMarker{
				{OrderID: "A"},
				{OrderID: "B"},
				{OrderID: "C", Printed: true},
			},
			ready:      []string{"A", "D"},
			wantAdd:    []string{"D"},
			wantRemove: []string{"B"},
		},
		{
			name:       "first run populates an empty store",
			existing:   nil,
			ready:      []string{"A", "B"},
			wantAdd:    []string{"A", "B"},
			wantRemove: nil,
		},
		{
			name: "unchanged ready set applies an empty diff",
			existing: []core.ReadyMarker{
				{OrderID: "A"},
				{OrderID: "B", Printed: true},
			},
			ready:      []string{"A", "B"},
			wantAdd:    nil,
			wantRemove: nil,
		},
		{
			name: "printed and still ready is not re-inserted",
			existing: []core.ReadyMarker{
				{OrderID: "C", Printed: true},
			},
			ready:      []string{"C", "D"},
			wantAdd:    []string{"D"},
			wantRemove: nil,
		},
		{
			name: "everything unprinted removed when nothing is ready",
			existing: []core.ReadyMarker{
				{OrderID: "A"},
				{OrderID: "B"},
			},
			ready:      nil,
			wantAdd:    nil,
			wantRemove: []string{"A", "B"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			add, remove := core.DiffReady(tt.existing, tt.ready)
			if !reflect.DeepEqual(add, tt.wantAdd) {
				t.Errorf("toAdd = %v, want %v", add, tt.wantAdd)
			}
			if !reflect.DeepEqual(remove, tt.wantRemove) {
				t.Errorf("toRemove = %v, want %v", remove, tt.wantRemove)
			}
		})
	}
}
