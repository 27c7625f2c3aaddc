package alpaca

import (
	"time"

	"github.com/shopspring/decimal"
)

// REST wire types. Alpaca serializes numbers as JSON strings on the
// trading API; decimal.Decimal accepts both forms.

type accountResponse struct {
	ID            string          `json:"id"`
	AccountNumber string          `json:"account_number"`
	Status        string          `json:"status"`
	Currency      string          `json:"currency"`
	Cash          decimal.Decimal `json:"cash"`
	BuyingPower   decimal.Decimal `json:"buying_power"`
	Equity        decimal.Decimal `json:"equity"`
}

type orderRequest struct {
	Symbol        string           `json:"symbol"`
	Qty           decimal.Decimal  `json:"qty"`
	Side          string           `json:"side"`
	Type          string           `json:"type"`
	TimeInForce   string           `json:"time_in_force"`
	LimitPrice    *decimal.Decimal `json:"limit_price,omitempty"`
	StopPrice     *decimal.Decimal `json:"stop_price,omitempty"`
	TrailPrice    *decimal.Decimal `json:"trail_price,omitempty"`
	TrailPercent  *decimal.Decimal `json:"trail_percent,omitempty"`
	ExtendedHours bool             `json:"extended_hours,omitempty"`
	ClientOrderID string           `json:"client_order_id,omitempty"`
}

// orderPatchRequest carries only the fields being replaced; everything
// else keeps its value at the broker.
type orderPatchRequest struct {
	Qty        *decimal.Decimal `json:"qty,omitempty"`
	LimitPrice *decimal.Decimal `json:"limit_price,omitempty"`
	StopPrice  *decimal.Decimal `json:"stop_price,omitempty"`
	Trail      *decimal.Decimal `json:"trail,omitempty"`
}

type wireOrder struct {
	ID             string           `json:"id"`
	ClientOrderID  string           `json:"client_order_id"`
	Symbol         string           `json:"symbol"`
	AssetClass     string           `json:"asset_class"`
	Qty            decimal.Decimal  `json:"qty"`
	FilledQty      decimal.Decimal  `json:"filled_qty"`
	Type           string           `json:"type"`
	Side           string           `json:"side"`
	TimeInForce    string           `json:"time_in_force"`
	LimitPrice     *decimal.Decimal `json:"limit_price"`
	StopPrice      *decimal.Decimal `json:"stop_price"`
	TrailPrice     *decimal.Decimal `json:"trail_price"`
	TrailPercent   *decimal.Decimal `json:"trail_percent"`
	FilledAvgPrice *decimal.Decimal `json:"filled_avg_price"`
	Status         string           `json:"status"`
	ExtendedHours  bool             `json:"extended_hours"`
	CreatedAt      time.Time        `json:"created_at"`
}

type positionResponse struct {
	Symbol        string          `json:"symbol"`
	AssetClass    string          `json:"asset_class"`
	Qty           decimal.Decimal `json:"qty"`
	Side          string          `json:"side"`
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	MarketValue   decimal.Decimal `json:"market_value"`
	UnrealizedPL  decimal.Decimal `json:"unrealized_pl"`
}

type barsResponse struct {
	Bars          map[string][]wireBar `json:"bars"`
	NextPageToken *string              `json:"next_page_token"`
}

type wireBar struct {
	Ts     time.Time       `json:"t"`
	Open   decimal.Decimal `json:"o"`
	High   decimal.Decimal `json:"h"`
	Low    decimal.Decimal `json:"l"`
	Close  decimal.Decimal `json:"c"`
	Volume decimal.Decimal `json:"v"`
}

// Streaming wire types. Every inbound websocket frame is a JSON array
// of objects, each tagged by "T".

type authRequest struct {
	Action string `json:"action"`
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

type subscribeRequest struct {
	Action string   `json:"action"`
	Trades []string `json:"trades"`
	Quotes []string `json:"quotes"`
	Bars   []string `json:"bars"`
}

type streamTrade struct {
	Symbol   string          `json:"S"`
	Price    decimal.Decimal `json:"p"`
	Size     decimal.Decimal `json:"s"`
	Exchange string          `json:"x"`
	Ts       time.Time       `json:"t"`
}

type streamQuote struct {
	Symbol   string          `json:"S"`
	BidPrice decimal.Decimal `json:"bp"`
	BidSize  decimal.Decimal `json:"bs"`
	AskPrice decimal.Decimal `json:"ap"`
	AskSize  decimal.Decimal `json:"as"`
	Ts       time.Time       `json:"t"`
}

type streamBar struct {
	Symbol string          `json:"S"`
	Open   decimal.Decimal `json:"o"`
	High   decimal.Decimal `json:"h"`
	Low    decimal.Decimal `json:"l"`
	Close  decimal.Decimal `json:"c"`
	Volume decimal.Decimal `json:"v"`
	Ts     time.Time       `json:"t"`
}

type streamControl struct {
	T    string `json:"T"`
	Msg  string `json:"msg"`
	Code int    `json:"code"`
}
