package level

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Order is the internal, resting representation of a Descriptor once it has
// been accepted onto a level's queue. VisibleQty, HiddenQty, Removed,
// EnqueueTick and the first-execution fields are the only fields ever
// mutated after construction, and only through atomic
// operations — every other field is set once at NewOrder and read-only
// afterward, so concurrent readers never need to synchronize on them.
//
// Removed is the linearization point for "this order is gone from the book
// for good", whether by full fill with no refill available, cancellation,
// or expiry — refill does not set it, since the order is still live, just
// relinked onto a fresh queue node (see queue.go's refillAtBack). Exactly
// one of the matcher (depleting VisibleQty to zero with no refill
// available) or cancel_order/expire_before wins the CompareAndSwap on
// Removed; whoever wins is responsible for the corresponding statistics and
// aggregate bookkeeping. See queue.go's ConsumeFront/refillAtBack for the
// matching half of this protocol, which additionally tombstones per
// queue node so a refilled order is never reachable from two live nodes.
type Order struct {
	ID     uuid.UUID
	Side   Side
	Price  uint64
	Kind   Kind
	Payload Payload
	TIF    TIF
	Owner  string

	Timestamp uint64 // caller-supplied arrival ms

	// EnqueueTick is the tick at which this order (or its current visible
	// slice, after a refill) entered the queue. It is atomic because
	// Iceberg/ReserveOrder refills rewrite it to model the time-priority
	// reset spec §4.4/§9 mandate for a replenished slice.
	EnqueueTick atomic.Uint64

	VisibleQty atomic.Uint64
	HiddenQty  atomic.Uint64
	Removed    atomic.Bool

	// firstExecutionPrice is the price of this resting order's very first
	// fill. MatchResult.FirstPrice is computed separately in matchLoop and
	// does not read it.
	firstExecutionSet   atomic.Bool
	firstExecutionPrice atomic.Uint64
}

// NewOrder builds a resting Order from a caller Descriptor. It does not
// enqueue anything; callers go through PriceLevel.AddOrder for that.
func NewOrder(desc Descriptor, tick uint64) (*Order, error) {
	if desc.Quantity == 0 {
		switch desc.Kind {
		case Iceberg, ReserveOrder:
			if desc.Payload.OriginalVisible == 0 {
				return nil, ErrZeroQuantity
			}
		default:
			return nil, ErrZeroQuantity
		}
	}

	id := uuid.Nil
	if desc.ID != "" {
		parsed, err := uuid.Parse(desc.ID)
		if err != nil {
			return nil, ErrInvalidDescriptor
		}
		id = parsed
	} else {
		id = uuid.New()
	}

	visible, hidden := splitQuantity(desc)

	o := &Order{
		ID:        id,
		Side:      desc.Side,
		Price:     desc.Price,
		Kind:      desc.Kind,
		Payload:   desc.Payload,
		TIF:       desc.TIF,
		Owner:     desc.Owner,
		Timestamp: desc.Timestamp,
	}
	o.EnqueueTick.Store(tick)
	o.VisibleQty.Store(visible)
	o.HiddenQty.Store(hidden)
	return o, nil
}

// splitQuantity decides the initial visible/hidden split for a descriptor,
// per kind. StandardLimit, PostOnly, TrailingStop, PeggedLimit and
// MarketToLimit are fully visible; Iceberg and ReserveOrder reveal only
// OriginalVisible and reserve the remainder.
func splitQuantity(desc Descriptor) (visible, hidden uint64) {
	switch desc.Kind {
	case Iceberg, ReserveOrder:
		visible = min(desc.Quantity, desc.Payload.OriginalVisible)
		if visible == 0 {
			visible = desc.Payload.OriginalVisible
		}
		if desc.Quantity > visible {
			hidden = desc.Quantity - visible
		}
		return visible, hidden
	default:
		return desc.Quantity, 0
	}
}

// refillEligible reports whether this order kind auto-replenishes its
// visible slice once fully consumed, per spec §3's Iceberg rule and §9's
// established refill-to-back-of-queue convention.
func (o *Order) refillEligible() bool {
	switch o.Kind {
	case Iceberg:
		return true
	case ReserveOrder:
		return o.Payload.AutoReplenish
	default:
		return false
	}
}

// refillAmount computes how much of the hidden reserve to reveal on a
// refill event, given the kind's policy.
func (o *Order) refillAmount(hidden uint64) uint64 {
	switch o.Kind {
	case ReserveOrder:
		if o.Payload.ReplenishAmount > 0 {
			return min(o.Payload.ReplenishAmount, hidden)
		}
		return min(o.Payload.OriginalVisible, hidden)
	default:
		return min(o.Payload.OriginalVisible, hidden)
	}
}

// recordFirstExecution captures the price of this order's first fill,
// idempotently. matchLoop calls it on each maker it fills.
func (o *Order) recordFirstExecution(price uint64) {
	if o.firstExecutionSet.CompareAndSwap(false, true) {
		o.firstExecutionPrice.Store(price)
	}
}
