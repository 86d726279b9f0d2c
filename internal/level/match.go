package level

import "github.com/google/uuid"

// TakerOrder is the incoming order passed to MatchOrder: an id, a side, a
// kind (StandardLimit/MarketToLimit matter for pricing residual handling),
// a TIF, and the remaining quantity to fill.
type TakerOrder struct {
	ID        uuid.UUID
	Side      Side
	Kind      Kind
	TIF       TIF
	Remaining uint64
}

// Transaction is one maker/taker fill record (spec §6).
type Transaction struct {
	MakerID    uuid.UUID
	TakerID    uuid.UUID
	Price      uint64
	Quantity   uint64
	ExecutedAt uint64
}

// TakerStatus is the wire-facing status tag of spec §6's MatchResult.
type TakerStatus string

const (
	StatusFilled   TakerStatus = "filled"
	StatusPartial  TakerStatus = "partial"
	StatusNone     TakerStatus = "none"
	StatusRejected TakerStatus = "rejected"
)

// MatchResult is the outcome of a single MatchOrder call (spec §4.3/§6).
// FirstPrice is set, for any taker kind, once at least one transaction
// occurred; for a MarketToLimit taker it is the price the caller should use
// for the taker's converted residual limit order.
type MatchResult struct {
	Transactions     []Transaction
	FilledQty        uint64
	TakerRemaining   uint64
	TakerStatus      TakerStatus
	RejectionReason  string
	FirstPrice       uint64
	FirstPriceIsSet  bool
}

// MatchOrder walks the level's queue front-to-back, consuming or partially
// consuming resting orders against taker, per spec §4.4's matching loop. It
// never fails — on no liquidity it returns an empty, zero-fill result. The
// level's own state (queue + statistics + aggregates) is mutated only
// through Queue's and Statistics's atomic primitives; MatchOrder itself
// holds no lock.
func (l *PriceLevel) MatchOrder(taker TakerOrder, tick uint64) MatchResult {
	if taker.TIF.Kind == FillOrKill {
		return l.matchFillOrKill(taker, tick)
	}
	return l.matchLoop(taker, tick)
}

// matchLoop is the common GTC/IOC/GTD/Day/MarketToLimit path: consume what
// liquidity exists, front to back, until the taker is filled or the level
// runs dry. IOC callers are expected to treat a nonzero TakerRemaining as
// "discard, do not rest"; GTC/GTD/Day callers rest the remainder themselves
// (spec §4.4 step 7 — the level never re-queues a taker, only makers).
func (l *PriceLevel) matchLoop(taker TakerOrder, tick uint64) MatchResult {
	var result MatchResult
	remaining := taker.Remaining

	for remaining > 0 {
		if l.visibleQtyTotal.Load() == 0 {
			break
		}

		maker, consumed, outcome := l.queue.ConsumeFront(remaining)
		if maker == nil {
			break
		}
		if outcome == ConsumeNone {
			// Concurrent activity drained/refilled/removed the front
			// order before our decrement could land; retry against
			// whatever is at the front now.
			continue
		}

		fullyConsumed := outcome == ConsumeDepleted
		if fullyConsumed {
			refilled, _ := l.resolveDepletion(maker, tick)
			fullyConsumed = !refilled
		}

		l.subVisible(consumed)
		remaining -= consumed

		maker.recordFirstExecution(l.Price)
		if !result.FirstPriceIsSet {
			result.FirstPrice = l.Price
			result.FirstPriceIsSet = true
		}

		l.stats.recordFill(consumed, l.Price, tick, fullyConsumed, maker.EnqueueTick.Load())

		result.Transactions = append(result.Transactions, Transaction{
			MakerID:    maker.ID,
			TakerID:    taker.ID,
			Price:      l.Price,
			Quantity:   consumed,
			ExecutedAt: tick,
		})
		result.FilledQty += consumed
	}

	result.TakerRemaining = remaining
	result.TakerStatus = statusFor(taker.Remaining, remaining)
	return result
}

// matchFillOrKill implements spec §4.4 step 7's FOK special case: pre-walk
// the queue (a non-mutating Snapshot) to confirm the full requested
// quantity is available before touching any state; if not, abort with zero
// transactions and a rejected status. The pre-walk is necessarily
// best-effort under concurrency (other takers can still drain liquidity
// between the check and the real match), so a FOK can still legitimately
// fail for "not found" here: if the subsequent live match comes up short,
// every transaction already applied stands (spec §7's atomicity rule binds
// the engine, not a cross-call lock we deliberately do not take), and the
// call is reported as rejected. There is no re-check between the pre-walk
// and the match.
func (l *PriceLevel) matchFillOrKill(taker TakerOrder, tick uint64) MatchResult {
	if !l.hasLiquidityFor(taker.Remaining) {
		return MatchResult{
			TakerRemaining:  taker.Remaining,
			TakerStatus:     StatusRejected,
			RejectionReason: "insufficient liquidity for fill-or-kill",
		}
	}

	result := l.matchLoop(TakerOrder{
		ID:        taker.ID,
		Side:      taker.Side,
		Kind:      taker.Kind,
		TIF:       TIF{Kind: ImmediateOrCancel},
		Remaining: taker.Remaining,
	}, tick)

	if result.TakerRemaining > 0 {
		// The pre-walk's optimistic view was invalidated by a concurrent
		// taker; we already applied the partial transactions that did
		// land (per spec §7, each individual transaction the matcher
		// commits is final), but report the call itself as rejected so
		// the caller knows its FOK semantics were not honored end to end.
		result.TakerStatus = StatusRejected
		result.RejectionReason = "fill-or-kill liquidity vanished during match"
		return result
	}
	return result
}

// hasLiquidityFor sums visible quantity across live resting orders via a
// single Snapshot pass, stopping as soon as it can confirm enough is
// present.
func (l *PriceLevel) hasLiquidityFor(requested uint64) bool {
	var available uint64
	for view := range l.queue.Snapshot() {
		available += view.VisibleQty
		if available >= requested {
			return true
		}
	}
	return available >= requested
}

func statusFor(requested, remaining uint64) TakerStatus {
	switch {
	case remaining == 0:
		return StatusFilled
	case remaining == requested:
		return StatusNone
	default:
		return StatusPartial
	}
}
