package level

// Side is which side of the book a resting or taker order belongs to.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "sell"
	}
	return "buy"
}

// Kind tags the seven order variants from SPEC_FULL.md's data model. Behavior
// for each kind lives in the matcher's dispatch (match.go), not on the kind
// itself — there is no per-kind virtual method table.
type Kind int

const (
	StandardLimit Kind = iota
	Iceberg
	PostOnly
	TrailingStop
	PeggedLimit
	MarketToLimit
	ReserveOrder
)

func (k Kind) String() string {
	switch k {
	case StandardLimit:
		return "standard_limit"
	case Iceberg:
		return "iceberg"
	case PostOnly:
		return "post_only"
	case TrailingStop:
		return "trailing_stop"
	case PeggedLimit:
		return "pegged_limit"
	case MarketToLimit:
		return "market_to_limit"
	case ReserveOrder:
		return "reserve_order"
	default:
		return "unknown"
	}
}

// PegReference names what a PeggedLimit order's price tracks. Repricing
// itself happens outside the level (spec §4.4, §9) — the level only stores
// the reference tag for callers that need it on a snapshot.
type PegReference int

const (
	BestBid PegReference = iota
	BestAsk
	MidPrice
)

// TIFKind is the time-in-force discriminant.
type TIFKind int

const (
	GoodTillCanceled TIFKind = iota
	ImmediateOrCancel
	FillOrKill
	GoodTillDate
	Day
)

// TIF carries the time-in-force and, for GoodTillDate and Day, the deadline
// tick. Per spec §9's open question, the engine has no wall-clock authority
// of its own: Day's deadline is whatever tick the caller computed as "end of
// day" and supplied here — the level treats it identically to GoodTillDate.
type TIF struct {
	Kind         TIFKind
	DeadlineTick uint64
}

// Payload bundles the per-kind fields that are not shared by every order.
// Unused fields for a given Kind are simply zero. This mirrors the tagged
// variant from spec §3 without Go-side inheritance or per-kind structs: the
// matcher reads only the fields relevant to order.Kind.
type Payload struct {
	// Iceberg / ReserveOrder
	OriginalVisible    uint64
	ReplenishThreshold uint64
	ReplenishAmount    uint64
	AutoReplenish      bool

	// TrailingStop
	TrailAmount     uint64
	ReferencePrice  uint64
	IsTrailPercent  bool

	// PeggedLimit
	PegReference PegReference
	PegOffset    int64
}

// Descriptor is the caller-facing, externally-serializable order request
// (spec §6): `{id, side, price, quantity, kind, tif, timestamp}`. AddOrder
// consumes one of these and, on success, mints the resting Order.
type Descriptor struct {
	ID        string // uuid string; empty means "assign one"
	Side      Side
	Price     uint64
	Quantity  uint64
	Kind      Kind
	Payload   Payload
	TIF       TIF
	Timestamp uint64 // caller-supplied arrival time, milliseconds
	Owner     string
}
