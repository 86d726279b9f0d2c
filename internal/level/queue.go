package level

import (
	"iter"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// queueNode is one link in a Michael & Scott style lock-free FIFO. The
// queue never removes a node on a partial consumption — only enqueue
// (append a node) and the lazy reap of already-removed nodes physically
// unlink nodes. This keeps enqueue and peek/consume wait-free-ish under
// the bounded-retry model spec §5 requires.
//
// removed is a per-node tombstone, deliberately separate from Order.Removed
// (which marks an order cancelled/expired for good). A node also becomes
// stale — without the order itself being gone — when an Iceberg/Reserve
// refill relinks the same *Order onto a fresh node at the tail to reset
// time priority (see refillAtBack); that old node must stop being
// traversable even though the order it pointed at is still live.
type queueNode struct {
	next    atomic.Pointer[queueNode]
	order   *Order
	removed atomic.Bool
}

// Queue is the Order Queue of spec §4.1: a multi-producer, multi-consumer
// FIFO of order descriptors with an additional remove_by_id. Enqueue and
// the front-consuming path never block; remove_by_id is lock-free-with-retry
// via a logical per-node tombstone reaped lazily by peekFront and
// consumeFront.
type Queue struct {
	head atomic.Pointer[queueNode]
	tail atomic.Pointer[queueNode]

	// index supports O(1) remove_by_id lookups. It holds only a reference
	// into the queue — the queue itself remains the source of truth, and a
	// stale index entry is harmless because removal is gated on the node's
	// own removed flag, not on index membership (spec §9's "weak reference"
	// auxiliary map).
	index sync.Map // uuid.UUID -> *queueNode
}

// NewQueue returns an empty queue, primed with a dummy head/tail sentinel
// the way Michael & Scott's algorithm requires.
func NewQueue() *Queue {
	dummy := &queueNode{}
	q := &Queue{}
	q.head.Store(dummy)
	q.tail.Store(dummy)
	return q
}

// Enqueue appends order to the back of the queue. Constant-time amortized,
// never blocks.
func (q *Queue) Enqueue(order *Order) {
	q.link(&queueNode{order: order})
}

// link performs the Michael & Scott tail-CAS append, helping along any
// lagging tail pointer it finds along the way.
func (q *Queue) link(n *queueNode) {
	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if tail != q.tail.Load() {
			continue
		}
		if next != nil {
			// Tail lagged behind a node someone else already linked in;
			// help advance it before retrying our own link.
			q.tail.CompareAndSwap(tail, next)
			continue
		}
		if tail.next.CompareAndSwap(nil, n) {
			q.tail.CompareAndSwap(tail, n)
			q.index.Store(n.order.ID, n)
			return
		}
	}
}

// PeekFront returns the order at the front of the queue whose node has not
// been retired, lazily unlinking any already-removed nodes it passes over.
// Returns nil if the queue holds no live node.
func (q *Queue) PeekFront() *Order {
	for {
		h := q.head.Load()
		first := h.next.Load()
		if first == nil {
			return nil
		}
		if first.removed.Load() {
			q.head.CompareAndSwap(h, first)
			continue
		}
		return first.order
	}
}

// ConsumeOutcome classifies what a ConsumeFront call actually did, so the
// caller can apply the right statistics/aggregate bookkeeping.
type ConsumeOutcome int

const (
	// ConsumeNone means the front order was drained, refilled, cancelled
	// or expired by a concurrent operation before this call's decrement
	// could land. No quantity was consumed; retry from PeekFront.
	ConsumeNone ConsumeOutcome = iota
	// ConsumePartial means quantity was consumed but the order still has
	// visible (or is the subject of a concurrent depletion this call did
	// not win); the order remains at the front.
	ConsumePartial
	// ConsumeDepleted means this call's decrement was the one that took
	// the order's VisibleQty to exactly zero. The caller must resolve
	// refill-vs-removal via PriceLevel.resolveDepletion before returning.
	ConsumeDepleted
)

// ConsumeFront atomically decrements the front live order's VisibleQty by
// at most requested. It returns the order, the quantity actually consumed,
// and an outcome telling the caller what bookkeeping responsibility (if
// any) comes with this call. ConsumeFront never performs refill-or-remove
// policy itself — callers with ConsumeDepleted must call
// PriceLevel.resolveDepletion to finish the transition; resolveDepletion
// handles the tombstone reap internally when it decides against a refill.
func (q *Queue) ConsumeFront(requested uint64) (order *Order, consumed uint64, outcome ConsumeOutcome) {
	h := q.head.Load()
	first := h.next.Load()
	if first == nil {
		return nil, 0, ConsumeNone
	}
	if first.removed.Load() {
		q.head.CompareAndSwap(h, first)
		return first.order, 0, ConsumeNone
	}
	ord := first.order

	for {
		cur := ord.VisibleQty.Load()
		if cur == 0 {
			// Another goroutine's CAS already drained this order (or is
			// mid-refill); we have no claim on this depletion event.
			return ord, 0, ConsumeNone
		}
		take := requested
		if cur < take {
			take = cur
		}
		if ord.VisibleQty.CompareAndSwap(cur, cur-take) {
			if cur-take == 0 {
				return ord, take, ConsumeDepleted
			}
			return ord, take, ConsumePartial
		}
	}
}

// reapTombstone marks order's current front node removed via CompareAndSwap
// and best-effort advances the head pointer past it, used after
// resolveDepletion decides an order will not be refilled. Returns whether
// this call won the race to finalize the node — false means a concurrent
// cancel/expire already claimed it and owns the aggregate/statistics
// bookkeeping.
func (q *Queue) reapTombstone(order *Order) bool {
	h := q.head.Load()
	n := h.next.Load()
	if n == nil || n.order != order {
		// Already advanced past (or relinked away from) by a concurrent
		// operation; nothing left here for us to claim.
		return false
	}
	won := n.removed.CompareAndSwap(false, true)
	q.index.Delete(order.ID)
	q.head.CompareAndSwap(h, n)
	return won
}

// refillAtBack retires the node currently holding order's depleted view and
// links a fresh node for the same *Order at the tail, the mechanism behind
// Iceberg/ReserveOrder's time-priority-resetting refill (spec §4.4 step 6,
// §9). The stale node is marked removed so it can never again be consumed
// or yielded by Snapshot, leaving exactly one live node per order at all
// times. Returns false if a concurrent cancel/expire already claimed the
// node first, in which case the caller must not proceed with the refill.
func (q *Queue) refillAtBack(order *Order) bool {
	h := q.head.Load()
	first := h.next.Load()
	if first == nil || first.order != order {
		return false
	}
	if !first.removed.CompareAndSwap(false, true) {
		return false
	}
	q.head.CompareAndSwap(h, first)
	q.link(&queueNode{order: order})
	return true
}

// RemoveByID marks order id as a tombstone if it is still live, returning
// the order and true on success, or (nil, false) if the id is unknown or
// already removed. Physical unlinking happens lazily via PeekFront /
// ConsumeFront once the node reaches the front; Snapshot only skips it.
// order.Removed is the permanent cancel/expire
// marker (and the CAS gate making this idempotent); the node's own removed
// flag is what traversal actually checks, since a prior refill may have
// already moved the order onto a node different from the one index
// currently points at.
func (q *Queue) RemoveByID(id uuid.UUID) (*Order, bool) {
	v, ok := q.index.Load(id)
	if !ok {
		return nil, false
	}
	n := v.(*queueNode)
	if !n.order.Removed.CompareAndSwap(false, true) {
		return nil, false
	}
	n.removed.Store(true)
	q.index.Delete(id)
	// Best-effort physical reap; correctness does not depend on this
	// succeeding since PeekFront/ConsumeFront reap tombstones lazily and
	// Snapshot skips them.
	if h := q.head.Load(); h.next.Load() == n {
		q.head.CompareAndSwap(h, n)
	}
	return n.order, true
}

// OrderView is the (id, visible_qty) pair surfaced by Snapshot, per spec
// §4.1's iter_snapshot contract.
type OrderView struct {
	Order      *Order
	VisibleQty uint64
	HiddenQty  uint64
}

// Snapshot returns a lazy, finite, non-restartable sequence over the queue
// in order, skipping tombstoned orders, per spec §4.1's iter_snapshot. Each
// call to Snapshot walks the queue state as of that call; the resulting
// iterator is a single-pass view, not a live one.
func (q *Queue) Snapshot() iter.Seq[OrderView] {
	return func(yield func(OrderView) bool) {
		n := q.head.Load()
		for {
			next := n.next.Load()
			if next == nil {
				return
			}
			n = next
			if n.removed.Load() {
				continue
			}
			view := OrderView{
				Order:      n.order,
				VisibleQty: n.order.VisibleQty.Load(),
				HiddenQty:  n.order.HiddenQty.Load(),
			}
			if !yield(view) {
				return
			}
		}
	}
}
