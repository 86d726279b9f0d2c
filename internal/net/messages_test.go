package net

import (
	"encoding/binary"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"levelforge/internal/level"
)

func encodeNewOrder(t *testing.T, m NewOrderMessage) []byte {
	t.Helper()
	buf := make([]byte, NewOrderMessageHeaderLen+len(m.Username))
	buf[0] = byte(m.Side)
	buf[1] = byte(m.Kind)
	buf[2] = byte(m.TIFKind)
	binary.BigEndian.PutUint64(buf[3:11], m.Price)
	binary.BigEndian.PutUint64(buf[11:19], m.Quantity)
	binary.BigEndian.PutUint64(buf[19:27], m.OriginalVisible)
	binary.BigEndian.PutUint64(buf[27:35], m.DeadlineTick)
	binary.BigEndian.PutUint64(buf[35:43], m.Timestamp)
	buf[43] = byte(len(m.Username))
	copy(buf[NewOrderMessageHeaderLen:], m.Username)
	return buf
}

func TestParseNewOrder_RoundTrips(t *testing.T) {
	body := encodeNewOrder(t, NewOrderMessage{
		Side:            level.Buy,
		Kind:            level.Iceberg,
		TIFKind:         level.GoodTillCanceled,
		Price:           100,
		Quantity:        30,
		OriginalVisible: 10,
		Timestamp:       42,
		Username:        "trader1",
	})

	m, err := parseNewOrder(body)
	require.NoError(t, err)
	assert.Equal(t, level.Buy, m.Side)
	assert.Equal(t, level.Iceberg, m.Kind)
	assert.Equal(t, uint64(100), m.Price)
	assert.Equal(t, uint64(30), m.Quantity)
	assert.Equal(t, uint64(10), m.OriginalVisible)
	assert.Equal(t, uint64(42), m.Timestamp)
	assert.Equal(t, "trader1", m.Username)

	desc := m.Descriptor()
	assert.Equal(t, level.Buy, desc.Side)
	assert.Equal(t, uint64(100), desc.Price)
	assert.Equal(t, uint64(10), desc.Payload.OriginalVisible)
	assert.NotEmpty(t, desc.ID)
}

func TestParseNewOrder_TooShort(t *testing.T) {
	_, err := parseNewOrder(make([]byte, 5))
	assert.ErrorIs(t, err, ErrMessageTooShort)
}

func TestParseCancelOrder_RoundTrips(t *testing.T) {
	id := uuid.New()
	buf := make([]byte, CancelOrderMessageHeaderLen)
	buf[0] = byte(level.Sell)
	binary.BigEndian.PutUint64(buf[1:9], 105)
	copy(buf[9:25], id[:])

	m, err := parseCancelOrder(buf)
	require.NoError(t, err)
	assert.Equal(t, level.Sell, m.Side)
	assert.Equal(t, uint64(105), m.Price)
	assert.Equal(t, id, m.ID)
}

func TestParseMessage_DispatchesByType(t *testing.T) {
	body := encodeNewOrder(t, NewOrderMessage{Side: level.Buy, Kind: level.StandardLimit, Price: 1, Quantity: 1})
	frame := make([]byte, 2+len(body))
	binary.BigEndian.PutUint16(frame[0:2], uint16(NewOrder))
	copy(frame[2:], body)

	msg, err := parseMessage(frame)
	require.NoError(t, err)
	assert.Equal(t, NewOrder, msg.GetType())
}

func TestReport_SerializeIncludesErrorString(t *testing.T) {
	r := Report{MessageType: ErrorReport, ErrStrLen: uint32(len("boom")), Err: "boom"}
	wire, err := r.Serialize()
	require.NoError(t, err)
	assert.Equal(t, byte(ErrorReport), wire[0])
	assert.Equal(t, "boom", string(wire[reportFixedHeaderLen:]))
}
