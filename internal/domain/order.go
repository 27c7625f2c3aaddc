package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order as seen by the engine.
type OrderStatus int

const (
	StatusNone OrderStatus = iota
	StatusPendingSubmit
	StatusSubmitted
	StatusPartiallyFilled
	StatusFilled
	StatusCanceled
	StatusInvalid
)

func (s OrderStatus) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusPendingSubmit:
		return "pending_submit"
	case StatusSubmitted:
		return "submitted"
	case StatusPartiallyFilled:
		return "partially_filled"
	case StatusFilled:
		return "filled"
	case StatusCanceled:
		return "canceled"
	case StatusInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transitions are allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusFilled || s == StatusCanceled || s == StatusInvalid
}

// IsOpen reports whether the order is still working at the broker.
func (s OrderStatus) IsOpen() bool {
	return s == StatusSubmitted || s == StatusPartiallyFilled
}

// rank orders statuses along the forward lifecycle. Terminal states
// share the top rank so none of them can displace another.
func (s OrderStatus) rank() int {
	switch s {
	case StatusNone:
		return 0
	case StatusPendingSubmit:
		return 1
	case StatusSubmitted:
		return 2
	case StatusPartiallyFilled:
		return 3
	case StatusFilled, StatusCanceled, StatusInvalid:
		return 4
	default:
		return 0
	}
}

// CanTransition reports whether moving from s to next is a legal
// lifecycle step. Transitions only move forward; a terminal status
// accepts nothing, with the one exception that a fill may arrive in
// pieces, so PartiallyFilled and Filled may trade places.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if s == next {
		return !s.IsTerminal()
	}
	if (s == StatusFilled && next == StatusPartiallyFilled) ||
		(s == StatusPartiallyFilled && next == StatusFilled) {
		return true
	}
	if s.IsTerminal() {
		return false
	}
	return next.rank() > s.rank()
}

// TimeInForce controls how long an order stays working.
type TimeInForce int

const (
	Day TimeInForce = iota
	GoodTilCanceled
	ImmediateOrCancel
	FillOrKill
)

func (t TimeInForce) String() string {
	switch t {
	case GoodTilCanceled:
		return "gtc"
	case ImmediateOrCancel:
		return "ioc"
	case FillOrKill:
		return "fok"
	default:
		return "day"
	}
}

// Side is the direction of an order, derived from the quantity sign.
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

// OrderKind is the closed set of supported order types. Each variant
// carries exactly the price fields that type needs, so an order can
// never hold a stop price without being a stop order.
type OrderKind interface {
	orderKind()
}

// MarketOrder executes at the prevailing price.
type MarketOrder struct{}

// LimitOrder executes at LimitPrice or better.
type LimitOrder struct {
	LimitPrice decimal.Decimal
}

// StopMarketOrder becomes a market order once StopPrice trades.
type StopMarketOrder struct {
	StopPrice decimal.Decimal
}

// StopLimitOrder becomes a limit order at LimitPrice once StopPrice trades.
type StopLimitOrder struct {
	LimitPrice decimal.Decimal
	StopPrice  decimal.Decimal
}

// TrailingStopOrder follows the price at a fixed offset. Exactly one of
// TrailPrice or TrailPercent is meaningful, selected by UsePercent.
// TrailPercent is a fractional rate: 0.05 means five percent.
type TrailingStopOrder struct {
	TrailPrice   decimal.Decimal
	TrailPercent decimal.Decimal
	UsePercent   bool
}

func (MarketOrder) orderKind()       {}
func (LimitOrder) orderKind()        {}
func (StopMarketOrder) orderKind()   {}
func (StopLimitOrder) orderKind()    {}
func (TrailingStopOrder) orderKind() {}

// Order is a broker-agnostic order. Qty is signed: positive buys,
// negative sells. The engine owns ID; BrokerIDs collects every id the
// broker has assigned, oldest first, and never shrinks.
type Order struct {
	ID            string
	Instrument    Instrument
	Qty           decimal.Decimal
	Kind          OrderKind
	TIF           TimeInForce
	Status        OrderStatus
	BrokerIDs     []string
	ExtendedHours bool
	CreatedAt     time.Time
}

// Side derives the order direction from the quantity sign.
func (o *Order) Side() Side {
	if o.Qty.IsNegative() {
		return Sell
	}
	return Buy
}

// AbsQty is the unsigned quantity sent on the wire.
func (o *Order) AbsQty() decimal.Decimal {
	return o.Qty.Abs()
}

// IsOpen reports whether the order is still working at the broker.
func (o *Order) IsOpen() bool {
	return o.Status.IsOpen()
}

// AddBrokerID appends a broker-assigned id. Ids already present are
// kept where they are; the list only ever grows.
func (o *Order) AddBrokerID(id string) {
	if id == "" {
		return
	}
	for _, existing := range o.BrokerIDs {
		if existing == id {
			return
		}
	}
	o.BrokerIDs = append(o.BrokerIDs, id)
}

// BrokerID returns the most recently assigned broker id, or "" when
// the order has never reached the broker.
func (o *Order) BrokerID() string {
	if len(o.BrokerIDs) == 0 {
		return ""
	}
	return o.BrokerIDs[len(o.BrokerIDs)-1]
}

// ApplyStatus moves the order to next when that is a legal forward
// transition and reports whether it did.
func (o *Order) ApplyStatus(next OrderStatus) bool {
	if !o.Status.CanTransition(next) {
		return false
	}
	o.Status = next
	return true
}
