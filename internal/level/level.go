package level

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PriceLevel owns exactly one Queue and one Statistics block, plus the
// atomic aggregates visible_qty_total, hidden_qty_total and order_count,
// for all resting orders at one exact price on one side of the book (spec
// §4.3). It is the concurrency-heavy core: every public method here is
// safe for many concurrent maker, taker and canceller goroutines with no
// mutex in the hot path.
type PriceLevel struct {
	Price uint64
	Side  Side

	queue *Queue
	stats Statistics

	visibleQtyTotal atomic.Uint64
	hiddenQtyTotal  atomic.Uint64
	orderCount      atomic.Uint64

	log zerolog.Logger
}

// New returns an empty PriceLevel for the given price and side.
func New(price uint64, side Side) *PriceLevel {
	return &PriceLevel{
		Price: price,
		Side:  side,
		queue: NewQueue(),
		log:   log.With().Uint64("price", price).Str("side", side.String()).Logger(),
	}
}

// AddOrder enqueues a well-formed descriptor whose price equals this
// level's price. aboutToCross signals, for PostOnly rejection, that the
// caller has determined this order would immediately cross the book if
// inserted (spec §4.3's add-order contract). On success it returns the
// order's id; on failure, no state is mutated.
func (l *PriceLevel) AddOrder(desc Descriptor, tick uint64, aboutToCross bool) (uuid.UUID, error) {
	if desc.Price != l.Price {
		return uuid.Nil, ErrPriceMismatch
	}
	if desc.Kind == PostOnly && aboutToCross {
		return uuid.Nil, ErrPostOnlyWouldCross
	}
	if (desc.TIF.Kind == GoodTillDate || desc.TIF.Kind == Day) && desc.TIF.DeadlineTick <= tick {
		return uuid.Nil, ErrExpired
	}

	order, err := NewOrder(desc, tick)
	if err != nil {
		return uuid.Nil, err
	}

	l.queue.Enqueue(order)
	l.visibleQtyTotal.Add(order.VisibleQty.Load())
	l.hiddenQtyTotal.Add(order.HiddenQty.Load())
	l.orderCount.Add(1)
	l.stats.recordAdd()

	l.log.Debug().
		Str("id", order.ID.String()).
		Str("kind", order.Kind.String()).
		Uint64("visible", order.VisibleQty.Load()).
		Uint64("hidden", order.HiddenQty.Load()).
		Msg("order added")

	return order.ID, nil
}

// CancelOrder removes id from the book if it is still live. Non-blocking
// and idempotent: a second cancellation of the same id returns NotFound.
func (l *PriceLevel) CancelOrder(id uuid.UUID) error {
	order, ok := l.queue.RemoveByID(id)
	if !ok {
		return ErrNotFound
	}
	vis := order.VisibleQty.Swap(0)
	hidden := order.HiddenQty.Swap(0)
	if vis > 0 {
		l.subVisible(vis)
	}
	if hidden > 0 {
		l.subHidden(hidden)
	}
	l.orderCount.Add(^uint64(0)) // -1
	l.stats.recordRemove()

	l.log.Debug().Str("id", id.String()).Msg("order cancelled")
	return nil
}

// subVisible and subHidden perform a saturating-at-zero atomic subtract:
// under the consumption/cancellation races resolved in queue.go and
// resolveDepletion, a level's aggregates are only ever decremented by an
// amount that was actually captured from the order a moment before, so
// these never underflow in practice; the floor guards against any residual
// double-decrement rather than wrapping to a huge value if one ever did.
func (l *PriceLevel) subVisible(amount uint64) {
	for {
		cur := l.visibleQtyTotal.Load()
		next := uint64(0)
		if cur > amount {
			next = cur - amount
		}
		if l.visibleQtyTotal.CompareAndSwap(cur, next) {
			return
		}
	}
}

func (l *PriceLevel) subHidden(amount uint64) {
	for {
		cur := l.hiddenQtyTotal.Load()
		next := uint64(0)
		if cur > amount {
			next = cur - amount
		}
		if l.hiddenQtyTotal.CompareAndSwap(cur, next) {
			return
		}
	}
}

// ExpireBefore sweeps the queue removing GoodTillDate/Day orders whose
// deadline is at or before tick, returning the count removed. Like
// CancelOrder, each removal is a CompareAndSwap race against concurrent
// matchers/cancellers; ExpireBefore only finalizes orders it actually wins.
func (l *PriceLevel) ExpireBefore(tick uint64) int {
	removed := 0
	for view := range l.queue.Snapshot() {
		o := view.Order
		if o.TIF.Kind != GoodTillDate && o.TIF.Kind != Day {
			continue
		}
		if o.TIF.DeadlineTick > tick {
			continue
		}
		if err := l.CancelOrder(o.ID); err == nil {
			removed++
		}
	}
	if removed > 0 {
		l.log.Debug().Int("count", removed).Uint64("tick", tick).Msg("expired resting orders")
	}
	return removed
}

// VisibleQtyTotal, HiddenQtyTotal and OrderCount expose the level's
// aggregate atomics for callers (e.g. the multi-level book) that need a
// cheap top-of-book read without a full Snapshot.
func (l *PriceLevel) VisibleQtyTotal() uint64 { return l.visibleQtyTotal.Load() }
func (l *PriceLevel) HiddenQtyTotal() uint64  { return l.hiddenQtyTotal.Load() }
func (l *PriceLevel) OrderCount() uint64      { return l.orderCount.Load() }

// Stats returns a value-copy snapshot of the statistics block.
func (l *PriceLevel) Stats() StatsSnapshot { return l.stats.snapshot() }

// resolveDepletion is called exactly once per depletion event, by the
// unique goroutine whose ConsumeFront decrement took an order's VisibleQty
// to zero (queue.go's ConsumeDepleted outcome). It decides refill vs
// removal and performs every piece of bookkeeping that decision implies,
// so match.go's caller only needs to apply the fill statistics common to
// every outcome.
func (l *PriceLevel) resolveDepletion(order *Order, tick uint64) (refilled bool, refillAmount uint64) {
	if order.Removed.Load() {
		// A concurrent cancel/expire already claimed this order; nothing
		// left for us to finalize.
		return false, 0
	}
	if order.refillEligible() {
		hidden := order.HiddenQty.Load()
		if amount := order.refillAmount(hidden); hidden > 0 && amount > 0 {
			// Retire the depleted node and link a fresh one for this order
			// at the tail *before* claiming the hidden reserve, so the
			// queue never has two live nodes for the same order even
			// momentarily (the old node is what "move to back" resets
			// time priority against). If a concurrent cancel/expire
			// already claimed the depleted node, back off entirely.
			if !l.queue.refillAtBack(order) {
				return false, 0
			}
			if order.HiddenQty.CompareAndSwap(hidden, hidden-amount) {
				order.VisibleQty.Store(amount)
				order.EnqueueTick.Store(tick) // time priority resets (spec §4.4 step 6, §9)
				l.visibleQtyTotal.Add(amount)
				l.subHidden(amount)
				l.log.Debug().
					Str("id", order.ID.String()).
					Uint64("refilled", amount).
					Msg("iceberg/reserve refill")
				return true, amount
			}
			// A concurrent cancel retired the node we just linked and
			// claimed HiddenQty before our CAS landed; it owns the
			// bookkeeping for this order from here.
			return false, 0
		}
	}

	if !l.queue.reapTombstone(order) {
		// Lost the Removed race to a concurrent cancel/expire; they own
		// the order_count/hidden-leftover bookkeeping.
		return false, 0
	}
	if leftoverHidden := order.HiddenQty.Swap(0); leftoverHidden > 0 {
		l.subHidden(leftoverHidden)
	}
	l.orderCount.Add(^uint64(0))
	return false, 0
}
