package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"levelforge/internal/level"
)

func limitDesc(side level.Side, price, qty uint64) level.Descriptor {
	return level.Descriptor{
		Side:     side,
		Price:    price,
		Quantity: qty,
		Kind:     level.StandardLimit,
		TIF:      level.TIF{Kind: level.GoodTillCanceled},
	}
}

func TestBook_RestsNonCrossingOrders(t *testing.T) {
	b := New("TEST")

	result, err := b.PlaceOrder(limitDesc(level.Buy, 99, 10), 1)
	require.NoError(t, err)
	assert.True(t, result.Rested)
	assert.Empty(t, result.Transactions)

	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, uint64(99), bid)
}

func TestBook_CrossingOrderMatchesAndRestsRemainder(t *testing.T) {
	b := New("TEST")
	_, err := b.PlaceOrder(limitDesc(level.Sell, 100, 10), 1)
	require.NoError(t, err)

	result, err := b.PlaceOrder(limitDesc(level.Buy, 100, 15), 2)
	require.NoError(t, err)

	require.Len(t, result.Transactions, 1)
	assert.Equal(t, uint64(10), result.FilledQty)
	assert.Equal(t, uint64(5), result.RemainingQty)
	assert.True(t, result.Rested)

	_, askOk := b.BestAsk()
	assert.False(t, askOk, "ask fully consumed should be removed from the book")

	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, uint64(100), bid)
}

func TestBook_SweepsMultipleLevels(t *testing.T) {
	b := New("TEST")
	_, err := b.PlaceOrder(limitDesc(level.Sell, 100, 5), 1)
	require.NoError(t, err)
	_, err = b.PlaceOrder(limitDesc(level.Sell, 101, 5), 2)
	require.NoError(t, err)

	result, err := b.PlaceOrder(limitDesc(level.Buy, 101, 8), 3)
	require.NoError(t, err)

	require.Len(t, result.Transactions, 2)
	assert.Equal(t, uint64(100), result.Transactions[0].Price)
	assert.Equal(t, uint64(5), result.Transactions[0].Quantity)
	assert.Equal(t, uint64(101), result.Transactions[1].Price)
	assert.Equal(t, uint64(3), result.Transactions[1].Quantity)
	assert.Equal(t, uint64(0), result.RemainingQty)
}

func TestBook_PostOnlyRejectedWhenCrossing(t *testing.T) {
	b := New("TEST")
	_, err := b.PlaceOrder(limitDesc(level.Sell, 100, 5), 1)
	require.NoError(t, err)

	desc := limitDesc(level.Buy, 100, 5)
	desc.Kind = level.PostOnly
	_, err = b.PlaceOrder(desc, 2)
	assert.ErrorIs(t, err, level.ErrPostOnlyWouldCross)

	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, uint64(100), ask)
}

func TestBook_CancelOrder(t *testing.T) {
	b := New("TEST")
	result, err := b.PlaceOrder(limitDesc(level.Buy, 99, 10), 1)
	require.NoError(t, err)

	require.NoError(t, b.CancelOrder(level.Buy, 99, result.ID))
	_, ok := b.BestBid()
	assert.False(t, ok, "level should be removed once its last order is cancelled")

	err = b.CancelOrder(level.Buy, 99, result.ID)
	assert.ErrorIs(t, err, level.ErrNotFound)
}

func TestBook_FillOrKillSatisfiedAcrossTwoLevels(t *testing.T) {
	b := New("TEST")
	_, err := b.PlaceOrder(limitDesc(level.Sell, 100, 5), 1)
	require.NoError(t, err)
	_, err = b.PlaceOrder(limitDesc(level.Sell, 101, 5), 2)
	require.NoError(t, err)

	desc := limitDesc(level.Buy, 101, 8)
	desc.TIF = level.TIF{Kind: level.FillOrKill}
	result, err := b.PlaceOrder(desc, 3)
	require.NoError(t, err)

	require.Len(t, result.Transactions, 2)
	assert.Equal(t, uint64(8), result.FilledQty)
	assert.Equal(t, uint64(0), result.RemainingQty)
	assert.False(t, result.Rested, "FillOrKill never rests a remainder")
}

func TestBook_FillOrKillRejectedWhenBookWideLiquidityShort(t *testing.T) {
	b := New("TEST")
	_, err := b.PlaceOrder(limitDesc(level.Sell, 100, 5), 1)
	require.NoError(t, err)
	_, err = b.PlaceOrder(limitDesc(level.Sell, 101, 2), 2)
	require.NoError(t, err)

	desc := limitDesc(level.Buy, 101, 8)
	desc.TIF = level.TIF{Kind: level.FillOrKill}
	_, err = b.PlaceOrder(desc, 3)
	assert.ErrorIs(t, err, level.ErrFillOrKillShort)

	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, uint64(100), ask, "no level should be touched on a rejected FOK")
}

func TestBook_ExpireBeforeSweepsBothSides(t *testing.T) {
	b := New("TEST")
	desc := limitDesc(level.Buy, 99, 10)
	desc.TIF = level.TIF{Kind: level.GoodTillDate, DeadlineTick: 5}
	_, err := b.PlaceOrder(desc, 1)
	require.NoError(t, err)

	assert.Equal(t, 0, b.ExpireBefore(4))
	assert.Equal(t, 1, b.ExpireBefore(5))
	_, ok := b.BestBid()
	assert.False(t, ok)
}
