// Package book assembles levelforge's per-price-level engine into a
// multi-level order book: one Price Level per distinct price on each side,
// kept in price priority by a btree.BTreeG. This is the caller the core
// engine's design notes describe — the thing that resolves
// about_to_cross for PostOnly, walks opposing levels during a sweep, and
// decides what to do with a taker's residual.
package book

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/btree"

	"levelforge/internal/level"
)

// Book is a single instrument's two-sided collection of price levels,
// sorted bids-high-to-low and asks-low-to-high, exactly as
// engine.OrderBook's btree-backed prototype did it, generalized to hold
// level.PriceLevel instead of a flat order slice.
type Book struct {
	bids *btree.BTreeG[*level.PriceLevel]
	asks *btree.BTreeG[*level.PriceLevel]

	buyOrderCount  uint64
	sellOrderCount uint64

	log zerolog.Logger
}

// New returns an empty book for one instrument.
func New(symbol string) *Book {
	bids := btree.NewBTreeG(func(a, b *level.PriceLevel) bool {
		return a.Price > b.Price // highest bid first
	})
	asks := btree.NewBTreeG(func(a, b *level.PriceLevel) bool {
		return a.Price < b.Price // lowest ask first
	})
	return &Book{
		bids: bids,
		asks: asks,
		log:  log.With().Str("symbol", symbol).Logger(),
	}
}

// PlaceResult is what PlaceOrder returns: the id assigned (if the order
// was accepted, whether it rested, filled, or partially filled), the
// transactions produced by any sweep across the book, and the taker's
// unfilled remainder.
type PlaceResult struct {
	ID            uuid.UUID
	Transactions  []level.Transaction
	FilledQty     uint64
	RemainingQty  uint64
	RestedAtPrice uint64
	Rested        bool
	FirstPrice    uint64
	FirstPriceSet bool
}

// PlaceOrder routes desc through the book: it first sweeps the opposing
// side for any crossing liquidity (subject to desc.TIF and desc.Kind), and
// rests any GTC/GTD/Day remainder on the book's own side. PostOnly orders
// are rejected with ErrPostOnlyWouldCross before any mutation if the
// opposing side would cross at desc.Price, per the level engine's add-order
// contract (the about_to_cross hint is computed here, by the book, since
// only the book has visibility across price levels). A FillOrKill taker is
// likewise pre-checked for total liquidity across every crossing level
// before any level is touched — level.PriceLevel's own FOK pre-walk only
// sees its own queue, so without this a taker satisfiable by two levels
// combined would be wrongly rejected at the first.
func (b *Book) PlaceOrder(desc level.Descriptor, tick uint64) (PlaceResult, error) {
	if desc.Quantity == 0 {
		switch desc.Kind {
		case level.Iceberg, level.ReserveOrder:
		default:
			return PlaceResult{}, level.ErrZeroQuantity
		}
	}

	opposing, resting := b.sidesFor(desc.Side)

	aboutToCross := b.crosses(desc.Side, desc.Price, opposing)
	if desc.Kind == level.PostOnly && aboutToCross {
		return PlaceResult{}, level.ErrPostOnlyWouldCross
	}

	matchTIF := desc.TIF
	if desc.TIF.Kind == level.FillOrKill {
		if !b.hasLiquidityAcrossBook(desc.Side, desc.Price, desc.Quantity, opposing) {
			return PlaceResult{}, level.ErrFillOrKillShort
		}
		// The book as a whole has confirmed enough visible quantity; walk
		// each level as plain IOC so a single level coming up short of the
		// full remaining quantity does not trigger its own FOK rejection.
		matchTIF = level.TIF{Kind: level.ImmediateOrCancel}
	}

	var result PlaceResult
	remaining := desc.Quantity
	takerID := uuid.New()
	if desc.ID != "" {
		if parsed, err := uuid.Parse(desc.ID); err == nil {
			takerID = parsed
		}
	}

	if desc.Kind != level.PostOnly {
		for remaining > 0 {
			lvl, ok := opposing.MinMut()
			if !ok || !b.crosses(desc.Side, desc.Price, opposing) {
				break
			}

			matchResult := lvl.MatchOrder(level.TakerOrder{
				ID:        takerID,
				Side:      desc.Side,
				Kind:      desc.Kind,
				TIF:       matchTIF,
				Remaining: remaining,
			}, tick)

			result.Transactions = append(result.Transactions, matchResult.Transactions...)
			result.FilledQty += matchResult.FilledQty
			if matchResult.FirstPriceIsSet && !result.FirstPriceSet {
				result.FirstPrice = matchResult.FirstPrice
				result.FirstPriceSet = true
			}
			remaining = matchResult.TakerRemaining

			// matchTIF is never FillOrKill here (the book resolves that
			// above), so matchResult.TakerStatus is never StatusRejected.
			if lvl.VisibleQtyTotal() == 0 && lvl.HiddenQtyTotal() == 0 {
				opposing.Delete(lvl)
			}
			if len(matchResult.Transactions) == 0 {
				break
			}
		}
	}

	result.ID = takerID
	result.RemainingQty = remaining

	if remaining == 0 || desc.TIF.Kind == level.ImmediateOrCancel || desc.TIF.Kind == level.FillOrKill {
		return result, nil
	}

	restDesc := desc
	restDesc.ID = takerID.String()
	restDesc.Quantity = remaining
	if result.FirstPriceSet && desc.Kind == level.MarketToLimit {
		restDesc.Price = result.FirstPrice
		restDesc.Kind = level.StandardLimit
	}

	lvl := b.levelAt(resting, restDesc.Price, desc.Side)
	id, err := lvl.AddOrder(restDesc, tick, false)
	if err != nil {
		return result, err
	}
	result.ID = id
	result.Rested = true
	result.RestedAtPrice = restDesc.Price
	b.bumpCount(desc.Side, 1)
	b.log.Debug().
		Str("id", id.String()).
		Uint64("price", restDesc.Price).
		Uint64("qty", restDesc.Quantity).
		Msg("order rested")
	return result, nil
}

// CancelOrder removes id from the level at price on side; it returns
// ErrNotFound if no level exists there or that level does not hold id.
func (b *Book) CancelOrder(side level.Side, price uint64, id uuid.UUID) error {
	levels := b.asks
	if side == level.Buy {
		levels = b.bids
	}
	lvl, ok := levels.GetMut(&level.PriceLevel{Price: price, Side: side})
	if !ok {
		return level.ErrNotFound
	}
	err := lvl.CancelOrder(id)
	if err == nil {
		b.bumpCount(side, ^uint64(0))
		if lvl.OrderCount() == 0 {
			levels.Delete(lvl)
		}
	}
	return err
}

// ExpireBefore sweeps every level on both sides, removing GTD/Day orders
// whose deadline is at or before tick, and drops any level the sweep left
// empty. Returns the total removed.
func (b *Book) ExpireBefore(tick uint64) int {
	total := 0
	var emptied []*level.PriceLevel
	b.bids.Scan(func(lvl *level.PriceLevel) bool {
		total += lvl.ExpireBefore(tick)
		if lvl.OrderCount() == 0 {
			emptied = append(emptied, lvl)
		}
		return true
	})
	b.asks.Scan(func(lvl *level.PriceLevel) bool {
		total += lvl.ExpireBefore(tick)
		if lvl.OrderCount() == 0 {
			emptied = append(emptied, lvl)
		}
		return true
	})
	for _, lvl := range emptied {
		if lvl.Side == level.Buy {
			b.bids.Delete(lvl)
		} else {
			b.asks.Delete(lvl)
		}
	}
	return total
}

// BestBid and BestAsk return the top-of-book price and whether it exists.
func (b *Book) BestBid() (uint64, bool) {
	lvl, ok := b.bids.MinMut()
	if !ok {
		return 0, false
	}
	return lvl.Price, true
}

func (b *Book) BestAsk() (uint64, bool) {
	lvl, ok := b.asks.MinMut()
	if !ok {
		return 0, false
	}
	return lvl.Price, true
}

func (b *Book) sidesFor(side level.Side) (opposing, resting *btree.BTreeG[*level.PriceLevel]) {
	if side == level.Buy {
		return b.asks, b.bids
	}
	return b.bids, b.asks
}

// crosses reports whether a taker on side at price would immediately match
// against the opposing book's best price.
func (b *Book) crosses(side level.Side, price uint64, opposing *btree.BTreeG[*level.PriceLevel]) bool {
	lvl, ok := opposing.MinMut()
	if !ok {
		return false
	}
	return crossesAt(side, price, lvl.Price)
}

// crossesAt is the single-price version of the crossing rule: a buy crosses
// an ask at or below its limit, a sell crosses a bid at or above its limit.
func crossesAt(side level.Side, price, levelPrice uint64) bool {
	if side == level.Buy {
		return levelPrice <= price
	}
	return levelPrice >= price
}

// hasLiquidityAcrossBook sums visible quantity over every opposing level
// that would cross at price, stopping as soon as requested is covered.
// opposing is ordered best-price-first for its side, so the scan can stop
// the instant a level no longer crosses — nothing further out ever will.
func (b *Book) hasLiquidityAcrossBook(side level.Side, price, requested uint64, opposing *btree.BTreeG[*level.PriceLevel]) bool {
	var available uint64
	opposing.Scan(func(lvl *level.PriceLevel) bool {
		if !crossesAt(side, price, lvl.Price) {
			return false
		}
		available += lvl.VisibleQtyTotal()
		return available < requested
	})
	return available >= requested
}

func (b *Book) levelAt(levels *btree.BTreeG[*level.PriceLevel], price uint64, side level.Side) *level.PriceLevel {
	probe := &level.PriceLevel{Price: price, Side: side}
	if lvl, ok := levels.GetMut(probe); ok {
		return lvl
	}
	lvl := level.New(price, side)
	levels.Set(lvl)
	return lvl
}

func (b *Book) bumpCount(side level.Side, delta uint64) {
	if side == level.Buy {
		b.buyOrderCount += delta
	} else {
		b.sellOrderCount += delta
	}
}
