package level

import "sync/atomic"

// Statistics is the atomic counter block of spec §4.2. Every field is an
// independent atomic; no counter requires cross-field consistency. Derived
// values are computed on read from two or more atomic loads and are
// best-effort consistent — a monotone-valid snapshot, not a transactional
// one, exactly as spec §4.2 documents.
type Statistics struct {
	ordersAdded        atomic.Uint64
	ordersRemoved      atomic.Uint64
	ordersExecuted     atomic.Uint64
	quantityExecuted   atomic.Uint64
	valueExecuted      atomic.Uint64
	valueOverflowed    atomic.Bool
	sumWaitingTimeMs   atomic.Uint64
	lastExecutionTick  atomic.Uint64
}

func (s *Statistics) recordAdd() {
	s.ordersAdded.Add(1)
}

func (s *Statistics) recordRemove() {
	s.ordersRemoved.Add(1)
}

// recordFill applies one transaction's worth of execution to the block:
// quantity/value accumulation (saturating on overflow per spec §4.4's
// numeric semantics), the last-execution-tick CAS-max, and — only when the
// maker was fully consumed — orders_executed and the waiting-time sum.
func (s *Statistics) recordFill(qty, price, tick uint64, makerFullyConsumed bool, makerEnqueueTick uint64) {
	s.quantityExecuted.Add(qty)
	s.addValueExecuted(qty, price)
	s.casMaxLastExecutionTick(tick)
	if makerFullyConsumed {
		s.ordersExecuted.Add(1)
		if tick > makerEnqueueTick {
			s.sumWaitingTimeMs.Add(tick - makerEnqueueTick)
		}
	}
}

// addValueExecuted adds qty*price to valueExecuted, saturating to
// math.MaxUint64 and latching the overflow flag rather than wrapping
// silently, per spec §4.4/§7.
func (s *Statistics) addValueExecuted(qty, price uint64) {
	product, mulOverflow := mulUint64Checked(qty, price)
	if mulOverflow {
		s.valueExecuted.Store(maxUint64)
		s.valueOverflowed.Store(true)
		return
	}
	for {
		cur := s.valueExecuted.Load()
		sum := cur + product
		if sum < cur { // addition overflowed
			s.valueExecuted.Store(maxUint64)
			s.valueOverflowed.Store(true)
			return
		}
		if s.valueExecuted.CompareAndSwap(cur, sum) {
			return
		}
	}
}

func (s *Statistics) casMaxLastExecutionTick(tick uint64) {
	for {
		cur := s.lastExecutionTick.Load()
		if tick <= cur {
			return
		}
		if s.lastExecutionTick.CompareAndSwap(cur, tick) {
			return
		}
	}
}

const maxUint64 = ^uint64(0)

// mulUint64Checked returns a*b and whether the multiplication overflowed
// uint64 range.
func mulUint64Checked(a, b uint64) (product uint64, overflow bool) {
	if a == 0 || b == 0 {
		return 0, false
	}
	product = a * b
	return product, product/a != b
}

// StatsSnapshot is an immutable value copy of the statistics block plus the
// derived values computed from it (spec §4.2, §4.5).
type StatsSnapshot struct {
	OrdersAdded       uint64
	OrdersRemoved     uint64
	OrdersExecuted    uint64
	QuantityExecuted  uint64
	ValueExecuted     uint64
	ValueOverflowed   bool
	SumWaitingTimeMs  uint64
	LastExecutionTick uint64
}

// AvgExecutionPrice is value_executed / quantity_executed, or 0 if nothing
// has executed yet.
func (s StatsSnapshot) AvgExecutionPrice() float64 {
	if s.QuantityExecuted == 0 {
		return 0
	}
	return float64(s.ValueExecuted) / float64(s.QuantityExecuted)
}

// AvgWaitingTime is sum_waiting_time_ms / orders_executed, or 0 if nothing
// has fully executed yet.
func (s StatsSnapshot) AvgWaitingTime() float64 {
	if s.OrdersExecuted == 0 {
		return 0
	}
	return float64(s.SumWaitingTimeMs) / float64(s.OrdersExecuted)
}

// TimeSinceLastExecution is now - last_execution_tick, or -1 if there has
// never been an execution.
func (s StatsSnapshot) TimeSinceLastExecution(now uint64) int64 {
	if s.LastExecutionTick == 0 {
		return -1
	}
	return int64(now) - int64(s.LastExecutionTick)
}

func (s *Statistics) snapshot() StatsSnapshot {
	return StatsSnapshot{
		OrdersAdded:       s.ordersAdded.Load(),
		OrdersRemoved:     s.ordersRemoved.Load(),
		OrdersExecuted:    s.ordersExecuted.Load(),
		QuantityExecuted:  s.quantityExecuted.Load(),
		ValueExecuted:     s.valueExecuted.Load(),
		ValueOverflowed:   s.valueOverflowed.Load(),
		SumWaitingTimeMs:  s.sumWaitingTimeMs.Load(),
		LastExecutionTick: s.lastExecutionTick.Load(),
	}
}
