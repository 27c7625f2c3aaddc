package event

import (
	"time"

	"github.com/shopspring/decimal"

	"alpaca_go/internal/domain"
)

// Type defines the type of market data event.
type Type uint16

const (
	EvTrade Type = iota + 1
	EvQuote
	EvBar
)

func (t Type) String() string {
	switch t {
	case EvTrade:
		return "trade"
	case EvQuote:
		return "quote"
	case EvBar:
		return "bar"
	default:
		return "unknown"
	}
}

// Event is the interface for all market data events.
type Event interface {
	GetInstrument() domain.Instrument
	GetTs() time.Time
	GetType() Type
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	Instrument domain.Instrument `json:"instrument"`
	Ts         time.Time         `json:"ts"`
}

func (e BaseEvent) GetInstrument() domain.Instrument { return e.Instrument }
func (e BaseEvent) GetTs() time.Time                 { return e.Ts }

// TradeEvent is a single executed trade.
type TradeEvent struct {
	BaseEvent
	Price    decimal.Decimal `json:"price"`
	Size     decimal.Decimal `json:"size"`
	Exchange string          `json:"exchange,omitempty"`
}

func (e TradeEvent) GetType() Type { return EvTrade }

// QuoteSide marks which side of the book a quote update describes.
type QuoteSide uint8

const (
	Bid QuoteSide = iota
	Ask
)

func (s QuoteSide) String() string {
	if s == Ask {
		return "ask"
	}
	return "bid"
}

// QuoteEvent is one side of a top-of-book update. A venue quote that
// carries both sides fans out into two QuoteEvents.
type QuoteEvent struct {
	BaseEvent
	Side  QuoteSide       `json:"side"`
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

func (e QuoteEvent) GetType() Type { return EvQuote }

// BarEvent is an aggregated OHLCV bar.
type BarEvent struct {
	BaseEvent
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

func (e BarEvent) GetType() Type { return EvBar }
