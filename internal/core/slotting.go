package core

import "github.com/shopspring/decimal"

// Slotting computes how product units map onto rack frontage. A "slot" is one
// width-increment of the rack front; depth and height decide how many units
// stack inside a single slot. All functions are pure and safe for concurrent
// use.
//
// Missing master data never fails a putaway: any zero dimension degrades to
// the conservative one-unit-per-slot estimate.

// RackDims is the cross-section of a rack relevant to slot capacity.
type RackDims struct {
	Depth  decimal.Decimal
	Height decimal.Decimal
}

// ProductDims is the product footprint relevant to slot capacity.
// AllowRotation means the product may be laid on its side, swapping its
// depth/height footprint.
type ProductDims struct {
	Depth         decimal.Decimal
	Height        decimal.Decimal
	AllowRotation bool
}

func (r *Rack) Dims() RackDims {
	return RackDims{Depth: r.Depth, Height: r.Height}
}

func (p *Product) Dims() ProductDims {
	return ProductDims{Depth: p.Depth, Height: p.Height, AllowRotation: p.AllowRotation}
}

// ProductsPerSlot returns how many units fit in one width slot using the best
// single orientation. Orientations are never mixed here; HybridProductsPerSlot
// covers the stacked two-layer arrangement.
func ProductsPerSlot(rack RackDims, product ProductDims) int {
	if dimMissing(rack.Depth) || dimMissing(rack.Height) ||
		dimMissing(product.Depth) || dimMissing(product.Height) {
		return 1
	}
	normal := fitCount(rack.Depth, product.Depth) * fitCount(rack.Height, product.Height)
	if !product.AllowRotation {
		return normal
	}
	rotated := fitCount(rack.Depth, product.Height) * fitCount(rack.Height, product.Depth)
	if rotated > normal {
		return rotated
	}
	return normal
}

// WidthSlotsNeeded returns how many width slots are required to store qty
// units.
func WidthSlotsNeeded(rack RackDims, product ProductDims, qty int) int {
	perSlot := ProductsPerSlot(rack, product)
	if perSlot <= 0 {
		return 1
	}
	if qty <= 0 {
		return 0
	}
	return (qty + perSlot - 1) / perSlot
}

// HybridProductsPerSlot extends ProductsPerSlot for capacity reporting by also
// considering a two-layer stack: a rotated layer in the lower half of the rack
// height and a normal layer in the remaining height. The split is a fixed
// 50/50 of the rack height, not a search, so the estimate stays conservative.
func HybridProductsPerSlot(rack RackDims, product ProductDims) int {
	if !product.AllowRotation {
		return ProductsPerSlot(rack, product)
	}
	if dimMissing(rack.Depth) || dimMissing(rack.Height) ||
		dimMissing(product.Depth) || dimMissing(product.Height) {
		return 1
	}

	normal := fitCount(rack.Depth, product.Depth) * fitCount(rack.Height, product.Height)
	rotated := fitCount(rack.Depth, product.Height) * fitCount(rack.Height, product.Depth)

	half := rack.Height.Div(decimal.NewFromInt(2))
	bottom := fitCount(rack.Depth, product.Height) * fitCount(half, product.Depth)
	top := fitCount(rack.Depth, product.Depth) * fitCount(rack.Height.Sub(half), product.Height)

	best := normal
	if rotated > best {
		best = rotated
	}
	if bottom+top > best {
		best = bottom + top
	}
	return best
}

// fitCount is how many times dim fits into space, floored. Callers guarantee
// both are positive.
func fitCount(space, dim decimal.Decimal) int {
	return int(space.Div(dim).IntPart())
}

func dimMissing(d decimal.Decimal) bool {
	return d.Sign() <= 0
}
