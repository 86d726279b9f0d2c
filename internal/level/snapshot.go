package level

// OrderSnapshot is one resting order's externally visible state, as
// surfaced by PriceLevel.Snapshot (spec §4.5).
type OrderSnapshot struct {
	ID          string
	Side        Side
	Kind        Kind
	VisibleQty  uint64
	HiddenQty   uint64
	Owner       string
	Timestamp   uint64
	EnqueueTick uint64
}

// Snapshot is the point-in-time, read-only view of a price level's full
// state: its aggregates, every live resting order in queue order, and its
// statistics (spec §4.5). Like Queue.Snapshot, it is assembled from a
// single walk and does not update after it is returned.
type Snapshot struct {
	Price           uint64
	Side            Side
	VisibleQtyTotal uint64
	HiddenQtyTotal  uint64
	OrderCount      uint64
	Orders          []OrderSnapshot
	Stats           StatsSnapshot
}

// Snapshot assembles a Snapshot of the level's current state. The
// aggregates and the per-order walk are each internally consistent but are
// not taken under a shared lock, so under concurrent matching the returned
// view can reflect a state that existed at no single instant — exactly the
// best-effort consistency spec §4.5 calls for.
func (l *PriceLevel) Snapshot() Snapshot {
	snap := Snapshot{
		Price:           l.Price,
		Side:            l.Side,
		VisibleQtyTotal: l.visibleQtyTotal.Load(),
		HiddenQtyTotal:  l.hiddenQtyTotal.Load(),
		OrderCount:      l.orderCount.Load(),
		Stats:           l.stats.snapshot(),
	}
	for view := range l.queue.Snapshot() {
		o := view.Order
		snap.Orders = append(snap.Orders, OrderSnapshot{
			ID:          o.ID.String(),
			Side:        o.Side,
			Kind:        o.Kind,
			VisibleQty:  view.VisibleQty,
			HiddenQty:   view.HiddenQty,
			Owner:       o.Owner,
			Timestamp:   o.Timestamp,
			EnqueueTick: o.EnqueueTick.Load(),
		})
	}
	return snap
}
