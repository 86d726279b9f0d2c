package level

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatistics_RecordFillAccumulates(t *testing.T) {
	var s Statistics
	s.recordFill(5, 100, 10, false, 1)
	s.recordFill(5, 100, 12, true, 1)

	snap := s.snapshot()
	assert.Equal(t, uint64(10), snap.QuantityExecuted)
	assert.Equal(t, uint64(1000), snap.ValueExecuted)
	assert.Equal(t, uint64(1), snap.OrdersExecuted)
	assert.Equal(t, uint64(11), snap.SumWaitingTimeMs) // 12 - 1
	assert.Equal(t, uint64(12), snap.LastExecutionTick)
	assert.False(t, snap.ValueOverflowed)
}

func TestStatistics_CasMaxLastExecutionTickNeverRegresses(t *testing.T) {
	var s Statistics
	s.casMaxLastExecutionTick(10)
	s.casMaxLastExecutionTick(5)
	assert.Equal(t, uint64(10), s.lastExecutionTick.Load())
	s.casMaxLastExecutionTick(20)
	assert.Equal(t, uint64(20), s.lastExecutionTick.Load())
}

func TestStatistics_ValueExecutedSaturatesOnOverflow(t *testing.T) {
	var s Statistics
	s.addValueExecuted(maxUint64, 2)
	snap := s.snapshot()
	assert.Equal(t, maxUint64, snap.ValueExecuted)
	assert.True(t, snap.ValueOverflowed)
}

func TestStatsSnapshot_DerivedValues(t *testing.T) {
	snap := StatsSnapshot{
		QuantityExecuted:  10,
		ValueExecuted:     1050,
		OrdersExecuted:    2,
		SumWaitingTimeMs:  40,
		LastExecutionTick: 100,
	}
	assert.Equal(t, 105.0, snap.AvgExecutionPrice())
	assert.Equal(t, 20.0, snap.AvgWaitingTime())
	assert.Equal(t, int64(50), snap.TimeSinceLastExecution(150))

	var empty StatsSnapshot
	assert.Equal(t, 0.0, empty.AvgExecutionPrice())
	assert.Equal(t, 0.0, empty.AvgWaitingTime())
	assert.Equal(t, int64(-1), empty.TimeSinceLastExecution(150))
}

func TestMulUint64Checked_DetectsOverflow(t *testing.T) {
	_, overflow := mulUint64Checked(maxUint64, 2)
	assert.True(t, overflow)

	product, overflow := mulUint64Checked(3, 4)
	assert.False(t, overflow)
	assert.Equal(t, uint64(12), product)
}
