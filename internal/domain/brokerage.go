package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Holding is a position reported by the broker. Qty is signed the same
// way order quantities are: negative means short.
type Holding struct {
	Instrument   Instrument      `json:"instrument"`
	Qty          decimal.Decimal `json:"qty"`
	AvgPrice     decimal.Decimal `json:"avg_price"`
	MarketPrice  decimal.Decimal `json:"market_price"`
	MarketValue  decimal.Decimal `json:"market_value"`
	UnrealizedPL decimal.Decimal `json:"unrealized_pl"`
	Currency     string          `json:"currency"`
}

// CashAmount is a cash balance in a single currency.
type CashAmount struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// OrderEvent notifies the engine that an order changed state at the
// broker. Order is a snapshot taken at emission time.
type OrderEvent struct {
	Order   Order
	Ts      time.Time
	Status  OrderStatus
	Fee     decimal.Decimal
	Message string
}

// Brokerage is the trading side of a broker adapter. Order operations
// report success as a bool and surface detail through OrderEvents and
// the log rather than errors; query methods return empty results on
// failure so a flaky broker degrades to "nothing to report".
type Brokerage interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool

	PlaceOrder(ctx context.Context, o *Order) bool
	UpdateOrder(ctx context.Context, o *Order) bool
	CancelOrder(ctx context.Context, o *Order) bool

	GetOpenOrders(ctx context.Context) []*Order
	GetAccountHoldings(ctx context.Context) []Holding
	GetCashBalance(ctx context.Context) []CashAmount

	OrderEvents() <-chan OrderEvent
}
