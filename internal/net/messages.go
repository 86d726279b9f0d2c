package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"levelforge/internal/level"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short for specified username length")
)

type MessageType int

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
)

type ReportMessageType int

const (
	ExecutionReport ReportMessageType = iota
	ErrorReport
)

type Message interface {
	GetType() MessageType
}

// Message format constants. A NewOrderMessage's fixed header carries every
// common descriptor field from spec §6 except the id (minted on decode, see
// Descriptor) plus the one payload field (original
// visible quantity) needed by Iceberg/ReserveOrder; fields irrelevant to
// other kinds are simply ignored on decode.
const (
	BaseMessageHeaderLen        = 2
	NewOrderMessageHeaderLen    = 1 + 1 + 1 + 8 + 8 + 8 + 8 + 8 + 1
	CancelOrderMessageHeaderLen = 1 + 8 + 16
)

// Generic message type.
type BaseMessage struct {
	TypeOf MessageType // 2 bytes
}

func (m BaseMessage) GetType() MessageType {
	return m.TypeOf
}

func parseMessage(msg []byte) (Message, error) {
	if len(msg) < BaseMessageHeaderLen {
		return BaseMessage{}, errors.New("message too short to contain header")
	}

	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	msg = msg[2:]
	switch typeOf {
	case NewOrder:
		return parseNewOrder(msg)
	case CancelOrder:
		return parseCancelOrder(msg)
	default:
		return BaseMessage{}, ErrInvalidMessageType
	}
}

// NewOrderMessage is the wire form of a level.Descriptor (spec §6's
// externally-serializable order descriptor, here framed as fixed-width
// binary rather than JSON to match the worker pool's byte-oriented
// transport).
type NewOrderMessage struct {
	BaseMessage
	Side             level.Side    // 1 byte
	Kind             level.Kind    // 1 byte
	TIFKind          level.TIFKind // 1 byte
	Price            uint64        // 8 bytes
	Quantity         uint64        // 8 bytes
	OriginalVisible  uint64        // 8 bytes (Iceberg/ReserveOrder only)
	DeadlineTick     uint64        // 8 bytes (GoodTillDate/Day only)
	Timestamp        uint64        // 8 bytes
	UsernameLen      uint8         // 1 byte
	Username         string        // n bytes
}

// Descriptor converts the wire message into the level engine's Descriptor,
// minting a fresh id (the wire format does not let a client choose one).
func (o *NewOrderMessage) Descriptor() level.Descriptor {
	return level.Descriptor{
		ID:        uuid.New().String(),
		Side:      o.Side,
		Price:     o.Price,
		Quantity:  o.Quantity,
		Kind:      o.Kind,
		Payload:   level.Payload{OriginalVisible: o.OriginalVisible},
		TIF:       level.TIF{Kind: o.TIFKind, DeadlineTick: o.DeadlineTick},
		Timestamp: o.Timestamp,
		Owner:     o.Username,
	}
}

func parseNewOrder(msg []byte) (NewOrderMessage, error) {
	m := NewOrderMessage{BaseMessage: BaseMessage{TypeOf: NewOrder}}
	if len(msg) < NewOrderMessageHeaderLen {
		return NewOrderMessage{}, ErrMessageTooShort
	}

	m.Side = level.Side(msg[0])
	m.Kind = level.Kind(msg[1])
	m.TIFKind = level.TIFKind(msg[2])
	m.Price = binary.BigEndian.Uint64(msg[3:11])
	m.Quantity = binary.BigEndian.Uint64(msg[11:19])
	m.OriginalVisible = binary.BigEndian.Uint64(msg[19:27])
	m.DeadlineTick = binary.BigEndian.Uint64(msg[27:35])
	m.Timestamp = binary.BigEndian.Uint64(msg[35:43])
	m.UsernameLen = msg[43]

	expectedTotalLen := NewOrderMessageHeaderLen + int(m.UsernameLen)
	if len(msg) < expectedTotalLen {
		return NewOrderMessage{}, ErrMessageTooShort
	}
	m.Username = string(msg[NewOrderMessageHeaderLen:expectedTotalLen])

	return m, nil
}

type CancelOrderMessage struct {
	BaseMessage
	Side  level.Side // 1 byte
	Price uint64     // 8 bytes
	ID    uuid.UUID  // 16 bytes
}

func parseCancelOrder(msg []byte) (CancelOrderMessage, error) {
	m := CancelOrderMessage{BaseMessage: BaseMessage{TypeOf: CancelOrder}}

	if len(msg) < CancelOrderMessageHeaderLen {
		return CancelOrderMessage{}, ErrMessageTooShort
	}
	m.Side = level.Side(msg[0])
	m.Price = binary.BigEndian.Uint64(msg[1:9])
	id, err := uuid.FromBytes(msg[9:25])
	if err != nil {
		return CancelOrderMessage{}, err
	}
	m.ID = id

	return m, nil
}

// Report is the wire form of a transaction or error sent back to a client.
type Report struct {
	MessageType ReportMessageType // 1 byte
	Side        level.Side        // 1 byte
	Timestamp   uint64            // 8 bytes
	Quantity    uint64            // 8 bytes
	Price       uint64            // 8 bytes
	MakerID     uuid.UUID         // 16 bytes
	TakerID     uuid.UUID         // 16 bytes
	ErrStrLen   uint32            // 4 bytes
	Err         string            // n bytes
}

const reportFixedHeaderLen = 1 + 1 + 8 + 8 + 8 + 16 + 16 + 4

// Serialize converts the report to be sent on the wire.
func (r *Report) Serialize() ([]byte, error) {
	totalSize := reportFixedHeaderLen + len(r.Err)

	buf := make([]byte, totalSize)
	buf[0] = byte(r.MessageType)
	buf[1] = byte(r.Side)
	binary.BigEndian.PutUint64(buf[2:10], r.Timestamp)
	binary.BigEndian.PutUint64(buf[10:18], r.Quantity)
	binary.BigEndian.PutUint64(buf[18:26], r.Price)
	copy(buf[26:42], r.MakerID[:])
	copy(buf[42:58], r.TakerID[:])
	binary.BigEndian.PutUint32(buf[58:62], r.ErrStrLen)
	if r.ErrStrLen > 0 {
		copy(buf[reportFixedHeaderLen:], r.Err)
	}
	return buf, nil
}

// generateWireTradeReport turns one level.Transaction into its wire form.
func generateWireTradeReport(side level.Side, tx level.Transaction) ([]byte, error) {
	report := Report{
		MessageType: ExecutionReport,
		Side:        side,
		Timestamp:   tx.ExecutedAt,
		Quantity:    tx.Quantity,
		Price:       tx.Price,
		MakerID:     tx.MakerID,
		TakerID:     tx.TakerID,
	}
	return report.Serialize()
}

func generateWireErrorReport(err error) ([]byte, error) {
	errStr := fmt.Sprintf("%v", err)
	report := Report{
		MessageType: ErrorReport,
		Timestamp:   uint64(time.Now().UnixMilli()),
		ErrStrLen:   uint32(len(errStr)),
		Err:         errStr,
	}
	return report.Serialize()
}
